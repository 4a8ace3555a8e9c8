package merge

import (
	"errors"

	"github.com/david/contract-ledger/internal/config"
	"github.com/david/contract-ledger/internal/logger"
	"github.com/david/contract-ledger/internal/metrics"
	"github.com/david/contract-ledger/internal/models"
)

type Engine struct {
	matcher         Matcher
	defaultCurrency string
	log             *logger.Logger
}

func NewEngine(cfg config.MergeConfig, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		matcher:         Matcher{Tolerance: cfg.AmbiguityTolerance},
		defaultCurrency: cfg.DefaultCurrency,
		log:             log.With("component", "merge"),
	}
}

// Result is the merged contract plus what happened to each change.
type Result struct {
	Contract    models.BaseContract `json:"contract"`
	Diagnostics Diagnostics         `json:"diagnostics"`
}

type Diagnostics struct {
	Applied   []AppliedChange   `json:"applied"`
	Unmatched []UnmatchedChange `json:"unmatched"`
	Ambiguous []AmbiguousMatch  `json:"ambiguous"`
	Skipped   []SkippedChange   `json:"skipped"`
	Notices   []Notice          `json:"notices"`
}

type AppliedChange struct {
	ChangeID  string            `json:"change_id"`
	Type      models.ChangeType `json:"type"`
	ClauseIDs []string          `json:"clause_ids"`
}

type UnmatchedChange struct {
	ChangeID string              `json:"change_id"`
	Type     models.ChangeType   `json:"type"`
	Target   models.ChangeTarget `json:"target"`
}

// AmbiguousMatch is a fuzzy match that fanned out to more than one clause.
type AmbiguousMatch struct {
	ChangeID  string    `json:"change_id"`
	ClauseIDs []string  `json:"clause_ids"`
	Scores    []float64 `json:"scores"`
}

type SkippedChange struct {
	ChangeID string            `json:"change_id"`
	Type     models.ChangeType `json:"type"`
	Reason   string            `json:"reason"`
}

type Notice struct {
	ChangeID string `json:"change_id"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

const NoticeOpenSellAsStopSell = "open_sell_recorded_as_stop_sell"

// NeedsReview reports whether any change was dropped, fanned out or flagged.
func (d Diagnostics) NeedsReview() bool {
	return len(d.Unmatched) > 0 || len(d.Ambiguous) > 0 || len(d.Skipped) > 0 || len(d.Notices) > 0
}

// Apply merges cs into a copy of base. base itself is never modified.
// Changes run in SortChanges order and each sees the effects of the ones
// before it. Changes without a target are dropped and listed in
// Diagnostics.Unmatched.
func (e *Engine) Apply(base models.BaseContract, cs models.ChangeSet) Result {
	working := base.Clone()
	var diag Diagnostics

	for _, ch := range SortChanges(cs.Changes) {
		apply, ok := applicators[ch.Type]
		if !ok {
			diag.Skipped = append(diag.Skipped, SkippedChange{ChangeID: ch.ID, Type: ch.Type, Reason: "unsupported change type"})
			metrics.MergeChanges.WithLabelValues(metrics.OutcomeSkipped).Inc()
			continue
		}

		match := e.matcher.Match(working.Clauses, ch.Target)
		if match.Empty() {
			diag.Unmatched = append(diag.Unmatched, UnmatchedChange{ChangeID: ch.ID, Type: ch.Type, Target: ch.Target})
			metrics.MergeChanges.WithLabelValues(metrics.OutcomeUnmatched).Inc()
			e.log.Debug("change matched no clause", "change_id", ch.ID, "type", ch.Type)
			continue
		}
		if match.Ambiguous() && !scansScope(ch.Type) {
			diag.Ambiguous = append(diag.Ambiguous, AmbiguousMatch{
				ChangeID:  ch.ID,
				ClauseIDs: clauseIDs(working.Clauses, match.Indices),
				Scores:    match.Scores,
			})
			metrics.MergeChanges.WithLabelValues(metrics.OutcomeAmbiguous).Inc()
		}

		touched, err := apply(e, working.Clauses, match.Indices, ch)
		if err != nil {
			reason := err.Error()
			var skip *skipError
			if !errors.As(err, &skip) {
				e.log.Warn("applying change failed", "change_id", ch.ID, "error", err)
			}
			diag.Skipped = append(diag.Skipped, SkippedChange{ChangeID: ch.ID, Type: ch.Type, Reason: reason})
			metrics.MergeChanges.WithLabelValues(metrics.OutcomeSkipped).Inc()
			continue
		}

		diag.Applied = append(diag.Applied, AppliedChange{ChangeID: ch.ID, Type: ch.Type, ClauseIDs: clauseIDs(working.Clauses, touched)})
		metrics.MergeChanges.WithLabelValues(metrics.OutcomeApplied).Inc()

		if ch.Type == models.ChangeOpenSell {
			diag.Notices = append(diag.Notices, Notice{
				ChangeID: ch.ID,
				Code:     NoticeOpenSellAsStopSell,
				Message:  "OpenSell is recorded as a stop_sell window; no existing stop-sell was lifted",
			})
		}
	}

	Normalize(working.Clauses)

	e.log.Info("merge complete",
		"contract_id", base.ContractID,
		"source_doc", cs.SourceDoc,
		"changes", len(cs.Changes),
		"applied", len(diag.Applied),
		"unmatched", len(diag.Unmatched),
		"ambiguous", len(diag.Ambiguous),
		"skipped", len(diag.Skipped),
	)
	return Result{Contract: working, Diagnostics: diag}
}

// scansScope reports change types whose applicator selects clauses by scope
// itself, so the matcher's fan-out decides nothing for them.
func scansScope(t models.ChangeType) bool {
	return t == models.ChangeStopSell || t == models.ChangeOpenSell
}

func clauseIDs(clauses []models.Clause, idx []int) []string {
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, clauses[i].ID)
	}
	return out
}
