package merge

import (
	"fmt"
	"strings"

	"github.com/david/contract-ledger/internal/models"
)

// applicator mutates the working clauses for one change and returns the
// positions of the clauses it touched.
type applicator func(e *Engine, clauses []models.Clause, targets []int, ch models.Change) ([]int, error)

// applicators has one entry per known change kind.
var applicators = map[models.ChangeType]applicator{
	models.ChangeRateAdjustment:  applyRateAdjustment,
	models.ChangePromotion:       applyPromotion,
	models.ChangePolicyUpdate:    applyPolicySlot,
	models.ChangeAllotmentUpdate: applyPolicySlot,
	models.ChangeTaxUpdate:       applyPolicySlot,
	models.ChangeSurchargeUpdate: applyPolicySlot,
	models.ChangeStopSell:        applySellWindow,
	models.ChangeOpenSell:        applySellWindow,
}

// skipError marks a change that matched but could not be applied.
type skipError struct {
	reason string
}

func (e *skipError) Error() string { return e.reason }

func skipf(format string, args ...any) error {
	return &skipError{reason: fmt.Sprintf(format, args...)}
}

func applyRateAdjustment(e *Engine, clauses []models.Clause, targets []int, ch models.Change) ([]int, error) {
	rate, ok := ch.Payload.Float("rate")
	if !ok || rate <= 0 {
		return nil, skipf("payload.rate missing or not positive")
	}
	end := models.OrOpen(ch.EffectiveTo)
	if end.Before(ch.EffectiveFrom) {
		return nil, skipf("effective_to %s before effective_from %s", end, ch.EffectiveFrom)
	}

	for _, i := range targets {
		cl := &clauses[i]
		closeClauseWindow(cl, ch.EffectiveFrom)

		currency := ch.Payload.String("currency")
		if currency == "" {
			currency = firstCurrency(cl.Table, e.defaultCurrency)
		}
		cl.Table = insertRateRow(cl.Table, models.RateRow{
			DateFrom: ch.EffectiveFrom,
			DateTo:   end,
			Rate:     rate,
			Currency: currency,
			Notes:    ch.Payload.String("notes"),
		})
	}
	return targets, nil
}

// closeClauseWindow ends the clause the day before from when its window is
// open or reaches past from. A window that would end before it starts is
// left alone.
func closeClauseWindow(cl *models.Clause, from models.Date) {
	if !models.IsOpen(cl.EffectiveTo) && cl.EffectiveTo.Before(from) {
		return
	}
	closed := from.AddDays(-1)
	if closed.Before(cl.EffectiveFrom) {
		return
	}
	cl.EffectiveTo = &closed
}

func firstCurrency(table []models.RateRow, fallback string) string {
	if len(table) > 0 && table[0].Currency != "" {
		return table[0].Currency
	}
	if fallback == "" {
		return "VND"
	}
	return fallback
}

// insertRateRow adds row and trims existing rows so none overlap it. A row
// that straddles the new window keeps its head and, for a bounded window,
// a tail resuming the day after it ends. Order is restored by Normalize.
func insertRateRow(table []models.RateRow, row models.RateRow) []models.RateRow {
	out := make([]models.RateRow, 0, len(table)+2)
	for _, r := range table {
		if r.DateTo.Before(row.DateFrom) || r.DateFrom.After(row.DateTo) {
			out = append(out, r)
			continue
		}
		if r.DateFrom.Before(row.DateFrom) {
			head := r
			head.DateTo = row.DateFrom.AddDays(-1)
			out = append(out, head)
		}
		if r.DateTo.After(row.DateTo) {
			tail := r
			tail.DateFrom = row.DateTo.AddDays(1)
			out = append(out, tail)
		}
	}
	return append(out, row)
}

func applyPromotion(_ *Engine, clauses []models.Clause, targets []int, ch models.Change) ([]int, error) {
	layer := layerFor(ch)
	for _, i := range targets {
		if err := clauses[i].AddPromotion(layer); err != nil {
			return nil, err
		}
	}
	return targets, nil
}

func applyPolicySlot(_ *Engine, clauses []models.Clause, targets []int, ch models.Change) ([]int, error) {
	layer := layerFor(ch)
	for _, i := range targets {
		if err := clauses[i].SetPolicySlot(ch.Type, layer); err != nil {
			return nil, err
		}
	}
	return targets, nil
}

// applySellWindow records the window on every Pricing clause whose scope
// signature contains the change's scope signature, regardless of which
// clauses the target matched.
func applySellWindow(_ *Engine, clauses []models.Clause, _ []int, ch models.Change) ([]int, error) {
	sig := models.ScopeSignature(ch.Target.Scope)
	window := models.Window{From: ch.EffectiveFrom, To: ch.EffectiveTo}

	var touched []int
	for i := range clauses {
		if clauses[i].Type != models.ClausePricing {
			continue
		}
		if !strings.Contains(models.ScopeSignature(clauses[i].Scope), sig) {
			continue
		}
		if err := clauses[i].AddStopSell(window); err != nil {
			return nil, err
		}
		touched = append(touched, i)
	}
	return touched, nil
}

func layerFor(ch models.Change) models.PolicyLayer {
	payload := ch.Payload.Map()
	if payload == nil {
		payload = map[string]any{}
	}
	return models.PolicyLayer{Payload: payload, From: ch.EffectiveFrom, To: ch.EffectiveTo}
}
