package render

import (
	"fmt"
	"strings"

	"github.com/david/contract-ledger/internal/models"
)

// ClauseRef is the part of a clause a redline line shows.
type ClauseRef struct {
	ID            string            `json:"id"`
	Type          models.ClauseType `json:"type"`
	Title         string            `json:"title"`
	EffectiveFrom models.Date       `json:"effective_from"`
	EffectiveTo   *models.Date      `json:"effective_to"`
}

func refOf(c models.Clause) ClauseRef {
	return ClauseRef{ID: c.ID, Type: c.Type, Title: c.Title, EffectiveFrom: c.EffectiveFrom, EffectiveTo: c.EffectiveTo}
}

func (r ClauseRef) String() string {
	return fmt.Sprintf("%s %s %s %s→%s", r.ID, r.Type, r.Title, r.EffectiveFrom, models.FormatOpen(r.EffectiveTo))
}

// Redline lists clause ids that appeared or disappeared between two snapshots.
// Clauses present in both are not compared.
type Redline struct {
	Added   []ClauseRef `json:"added"`
	Removed []ClauseRef `json:"removed"`
}

// Diff compares clause ids of old and latest. A nil old counts every clause
// of latest as added. Added follows latest's order and Removed follows old's.
func Diff(old *models.BaseContract, latest models.BaseContract) Redline {
	oldIDs := map[string]struct{}{}
	if old != nil {
		for _, c := range old.Clauses {
			oldIDs[c.ID] = struct{}{}
		}
	}
	newIDs := make(map[string]struct{}, len(latest.Clauses))
	for _, c := range latest.Clauses {
		newIDs[c.ID] = struct{}{}
	}

	rl := Redline{Added: []ClauseRef{}, Removed: []ClauseRef{}}
	for _, c := range latest.Clauses {
		if _, ok := oldIDs[c.ID]; !ok {
			rl.Added = append(rl.Added, refOf(c))
		}
	}
	if old != nil {
		for _, c := range old.Clauses {
			if _, ok := newIDs[c.ID]; !ok {
				rl.Removed = append(rl.Removed, refOf(c))
			}
		}
	}
	return rl
}

func (r Redline) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0
}

func (r Redline) Markdown() string {
	lines := []string{"# Redline", ""}
	for _, c := range r.Added {
		lines = append(lines, "+ ADD "+c.String())
	}
	for _, c := range r.Removed {
		lines = append(lines, "- REMOVE "+c.String())
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}
