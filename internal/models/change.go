package models

// ChangeType is the closed set of change kinds an addendum can carry.
// Values outside the set still decode so the merge can report them.
type ChangeType string

const (
	ChangeRateAdjustment  ChangeType = "RateAdjustment"
	ChangePromotion       ChangeType = "Promotion"
	ChangeAllotmentUpdate ChangeType = "AllotmentUpdate"
	ChangeStopSell        ChangeType = "StopSell"
	ChangeOpenSell        ChangeType = "OpenSell"
	ChangePolicyUpdate    ChangeType = "PolicyUpdate"
	ChangeTaxUpdate       ChangeType = "TaxUpdate"
	ChangeSurchargeUpdate ChangeType = "SurchargeUpdate"
)

var ChangeTypes = []ChangeType{
	ChangeRateAdjustment, ChangePromotion, ChangeAllotmentUpdate, ChangeStopSell,
	ChangeOpenSell, ChangePolicyUpdate, ChangeTaxUpdate, ChangeSurchargeUpdate,
}

func (t ChangeType) Known() bool {
	for _, k := range ChangeTypes {
		if k == t {
			return true
		}
	}
	return false
}

type ChangeOp string

const (
	OpAdd     ChangeOp = "add"
	OpReplace ChangeOp = "replace"
	OpRemove  ChangeOp = "remove"
)

// ChangeTarget is either a direct clause reference or a type/scope filter.
type ChangeTarget struct {
	ClauseID string  `json:"clause_id,omitempty"`
	Type     string  `json:"type,omitempty"`
	Scope    *Fields `json:"scope,omitempty"`
}

type Change struct {
	ID            string       `json:"id" validate:"required"`
	Op            ChangeOp     `json:"op" validate:"required,oneof=add replace remove"`
	Type          ChangeType   `json:"type" validate:"required"`
	Target        ChangeTarget `json:"target"`
	Payload       *Fields      `json:"payload,omitempty"`
	EffectiveFrom Date         `json:"effective_from"`
	EffectiveTo   *Date        `json:"effective_to"`
	Notes         string       `json:"notes,omitempty"`
	Confidence    float64      `json:"confidence" validate:"gte=0,lte=1"`
}

// ChangeSet is the normalized output of one addendum document.
type ChangeSet struct {
	SourceDoc  string   `json:"source_doc" validate:"required"`
	IssuedDate Date     `json:"issued_date"`
	Changes    []Change `json:"changes" validate:"dive"`
}
