package models

import (
	"sort"
	"strings"
)

type ClauseType string

const (
	ClausePricing      ClauseType = "Pricing"
	ClauseSeason       ClauseType = "Season"
	ClauseBlackout     ClauseType = "Blackout"
	ClauseAllotment    ClauseType = "Allotment"
	ClauseCutoff       ClauseType = "Cutoff"
	ClauseCancellation ClauseType = "Cancellation"
	ClauseNoShow       ClauseType = "NoShow"
	ClauseSurcharge    ClauseType = "Surcharge"
	ClauseTax          ClauseType = "Tax"
	ClauseStopSell     ClauseType = "StopSell"
	ClausePromotion    ClauseType = "Promotion"
	ClausePayment      ClauseType = "Payment"
	ClauseOther        ClauseType = "Other"
)

// ClauseTypes lists every accepted clause type.
var ClauseTypes = []ClauseType{
	ClausePricing, ClauseSeason, ClauseBlackout, ClauseAllotment, ClauseCutoff,
	ClauseCancellation, ClauseNoShow, ClauseSurcharge, ClauseTax, ClauseStopSell,
	ClausePromotion, ClausePayment, ClauseOther,
}

type SourceAnchor struct {
	Page    *int   `json:"page,omitempty"`
	Heading string `json:"heading,omitempty"`
	TableID string `json:"table_id,omitempty"`
}

type SeasonWindow struct {
	From Date `json:"from"`
	To   Date `json:"to"`
}

type RateRow struct {
	DateFrom Date    `json:"date_from"`
	DateTo   Date    `json:"date_to"`
	Rate     float64 `json:"rate" validate:"gt=0"`
	Currency string  `json:"currency" validate:"required"`
	Notes    string  `json:"notes,omitempty"`
}

// Clause is one contractual provision as of a single snapshot.
type Clause struct {
	ID            string         `json:"id" validate:"required"`
	Type          ClauseType     `json:"type" validate:"required,clausetype"`
	Title         string         `json:"title" validate:"required"`
	Scope         *Fields        `json:"scope,omitempty"`
	Season        []SeasonWindow `json:"season,omitempty"`
	Blackout      []string       `json:"blackout,omitempty"`
	Table         []RateRow      `json:"table,omitempty" validate:"omitempty,dive"`
	Policy        *Fields        `json:"policy,omitempty"`
	Text          string         `json:"text,omitempty"`
	EffectiveFrom Date           `json:"effective_from"`
	EffectiveTo   *Date          `json:"effective_to"`
	SourceAnchor  *SourceAnchor  `json:"source_anchor,omitempty"`
	Confidence    float64        `json:"confidence" validate:"gte=0,lte=1"`
}

// InForce reports whether d falls inside the clause's effective window.
func (c Clause) InForce(d Date) bool {
	if c.EffectiveFrom.After(d) {
		return false
	}
	return IsOpen(c.EffectiveTo) || !c.EffectiveTo.Before(d)
}

func (c Clause) Clone() Clause {
	out := c
	out.Scope = c.Scope.Clone()
	out.Policy = c.Policy.Clone()
	out.Season = append([]SeasonWindow(nil), c.Season...)
	out.Blackout = append([]string(nil), c.Blackout...)
	out.Table = append([]RateRow(nil), c.Table...)
	if c.EffectiveTo != nil {
		to := *c.EffectiveTo
		out.EffectiveTo = &to
	}
	if c.SourceAnchor != nil {
		anchor := *c.SourceAnchor
		if anchor.Page != nil {
			page := *anchor.Page
			anchor.Page = &page
		}
		out.SourceAnchor = &anchor
	}
	return out
}

type ContractMeta struct {
	Hotel      string `json:"hotel" validate:"required"`
	SignDate   Date   `json:"sign_date"`
	Currency   string `json:"currency" validate:"required"`
	SourceFile string `json:"source_file"`
}

// BaseContract is a full snapshot of every clause known at one version.
type BaseContract struct {
	ContractID string       `json:"contract_id" validate:"required"`
	Meta       ContractMeta `json:"meta"`
	Clauses    []Clause     `json:"clauses" validate:"dive"`
}

func (b BaseContract) Clone() BaseContract {
	out := b
	if b.Clauses == nil {
		return out
	}
	out.Clauses = make([]Clause, len(b.Clauses))
	for i, c := range b.Clauses {
		out.Clauses[i] = c.Clone()
	}
	return out
}

// ClauseByID returns the first clause with the given id.
func (b BaseContract) ClauseByID(id string) (Clause, bool) {
	for _, c := range b.Clauses {
		if c.ID == id {
			return c, true
		}
	}
	return Clause{}, false
}

// ScopeSignature renders scope entries sorted by key as lower-cased
// "key:value" pairs joined by "|". Empty scope yields "".
func ScopeSignature(scope *Fields) string {
	if scope.Len() == 0 {
		return ""
	}
	keys := scope.Keys()
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+scope.String(k))
	}
	return strings.ToLower(strings.Join(parts, "|"))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
