package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/contract-ledger/internal/config"
	"github.com/david/contract-ledger/internal/models"
)

var d = models.MustParseDate

func newTestEngine() *Engine {
	return NewEngine(config.MergeConfig{AmbiguityTolerance: DefaultTolerance, DefaultCurrency: "VND"}, nil)
}

func pricingClause(id string, scope *models.Fields, rate float64) models.Clause {
	return models.Clause{
		ID:            id,
		Type:          models.ClausePricing,
		Title:         "Room rates " + id,
		Scope:         scope,
		EffectiveFrom: d("2025-01-01"),
		Table: []models.RateRow{
			{DateFrom: d("2025-01-01"), DateTo: models.OpenEnded, Rate: rate, Currency: "VND"},
		},
		Confidence: 0.9,
	}
}

func baseContract(clauses ...models.Clause) models.BaseContract {
	return models.BaseContract{
		ContractID: "hotel-abc-2025",
		Meta:       models.ContractMeta{Hotel: "Hotel ABC", SignDate: d("2025-01-05"), Currency: "VND", SourceFile: "hotel-abc-2025.pdf"},
		Clauses:    clauses,
	}
}

func TestSortChanges_OrdersByDateThenPrecedence(t *testing.T) {
	changes := []models.Change{
		{ID: "promo", Type: models.ChangePromotion, EffectiveFrom: d("2025-06-01")},
		{ID: "weird", Type: "Mystery", EffectiveFrom: d("2025-06-01")},
		{ID: "rate", Type: models.ChangeRateAdjustment, EffectiveFrom: d("2025-06-01")},
		{ID: "stop", Type: models.ChangeStopSell, EffectiveFrom: d("2025-06-01")},
		{ID: "early", Type: models.ChangePromotion, EffectiveFrom: d("2025-03-01")},
		{ID: "tax", Type: models.ChangeTaxUpdate, EffectiveFrom: d("2025-06-01")},
		{ID: "policy", Type: models.ChangePolicyUpdate, EffectiveFrom: d("2025-06-01")},
		{ID: "open", Type: models.ChangeOpenSell, EffectiveFrom: d("2025-06-01")},
	}

	sorted := SortChanges(changes)
	var ids []string
	for _, c := range sorted {
		ids = append(ids, c.ID)
	}
	// tax and policy share precedence 3 and keep their input order
	assert.Equal(t, []string{"early", "stop", "open", "rate", "tax", "policy", "promo", "weird"}, ids)
	assert.Equal(t, "promo", changes[0].ID, "input must not be reordered")

	again := SortChanges(sorted)
	assert.Equal(t, sorted, again)
}

func TestTokenSetRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "room_type:deluxe", "room_type:deluxe", 100},
		{"subset", "room_type:deluxe", "room_type:deluxe sea", 100},
		{"order insensitive", "a:1 b:2", "b:2 a:1", 100},
		{"signature is one token", "room_type:deluxe", "channel:ota|room_type:deluxe", 100.0 * 32 / 44},
		{"partial overlap", "a:1 b:2", "a:1 c:3", 100.0 * 10 / 14},
		{"empty side", "room_type:deluxe", "", 0},
		{"disjoint", "room_type:superior", "room_type:deluxe", 200.0 * 12 / 34},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TokenSetRatio(tt.a, tt.b), 0.01)
		})
	}
}

func TestRatio(t *testing.T) {
	assert.InDelta(t, 100, ratio("", ""), 0.001)
	assert.InDelta(t, 100, ratio("abc", "abc"), 0.001)
	assert.InDelta(t, 0, ratio("abc", "xyz"), 0.001)
	assert.InDelta(t, 200.0*2/7, ratio("abc", "axcy"), 0.001)
}

func TestMatcher(t *testing.T) {
	clauses := []models.Clause{
		pricingClause("p-deluxe", models.NewFields("room_type", "Deluxe"), 1_000_000),
		pricingClause("p-superior", models.NewFields("room_type", "Superior"), 800_000),
		pricingClause("p-deluxe-ota", models.NewFields("room_type", "Deluxe", "channel", "OTA"), 950_000),
		{ID: "cxl", Type: models.ClauseCancellation, Title: "Cancellation", EffectiveFrom: d("2025-01-01")},
	}
	m := Matcher{Tolerance: DefaultTolerance}

	t.Run("empty target returns all clauses", func(t *testing.T) {
		got := m.Match(clauses, models.ChangeTarget{})
		assert.Equal(t, []int{0, 1, 2, 3}, got.Indices)
		assert.False(t, got.Ambiguous())
	})

	t.Run("clause id wins over other fields", func(t *testing.T) {
		got := m.Match(clauses, models.ChangeTarget{ClauseID: "cxl", Type: "Pricing", Scope: models.NewFields("room_type", "deluxe")})
		assert.Equal(t, []int{3}, got.Indices)
	})

	t.Run("unknown clause id matches nothing", func(t *testing.T) {
		assert.True(t, m.Match(clauses, models.ChangeTarget{ClauseID: "nope"}).Empty())
	})

	t.Run("duplicate ids yield at most one", func(t *testing.T) {
		dup := append([]models.Clause{}, clauses...)
		dup = append(dup, pricingClause("cxl", nil, 1))
		assert.Len(t, m.Match(dup, models.ChangeTarget{ClauseID: "cxl"}).Indices, 1)
	})

	t.Run("type filter without scope", func(t *testing.T) {
		got := m.Match(clauses, models.ChangeTarget{Type: "Pricing"})
		assert.Equal(t, []int{0, 1, 2}, got.Indices)
	})

	t.Run("type filter with no candidates", func(t *testing.T) {
		assert.True(t, m.Match(clauses, models.ChangeTarget{Type: "Tax"}).Empty())
	})

	t.Run("wider scope signature is not a near-tie", func(t *testing.T) {
		got := m.Match(clauses, models.ChangeTarget{Type: "Pricing", Scope: models.NewFields("room_type", "deluxe")})
		assert.Equal(t, []int{0}, got.Indices)
		assert.False(t, got.Ambiguous())
		assert.Equal(t, []float64{100}, got.Scores)
	})

	t.Run("fuzzy near-ties fan out", func(t *testing.T) {
		rooms := []models.Clause{
			pricingClause("p-deluxe", models.NewFields("room_type", "Deluxe"), 1_000_000),
			pricingClause("p-superior", models.NewFields("room_type", "Superior"), 800_000),
			pricingClause("p-deluxe-sea", models.NewFields("room_type", "Deluxe Sea"), 1_100_000),
		}
		got := m.Match(rooms, models.ChangeTarget{Type: "Pricing", Scope: models.NewFields("room_type", "deluxe")})
		assert.Equal(t, []int{0, 2}, got.Indices)
		assert.True(t, got.Ambiguous())
		assert.Equal(t, []float64{100, 100}, got.Scores)
	})

	t.Run("fuzzy single winner", func(t *testing.T) {
		got := m.Match(clauses, models.ChangeTarget{Type: "Pricing", Scope: models.NewFields("room_type", "superior")})
		assert.Equal(t, []int{1}, got.Indices)
		assert.False(t, got.Ambiguous())
	})
}

func TestNormalize_SortsTables(t *testing.T) {
	clauses := []models.Clause{{
		ID: "p",
		Table: []models.RateRow{
			{DateFrom: d("2025-06-01"), DateTo: d("2025-06-30"), Rate: 3},
			{DateFrom: d("2025-01-01"), DateTo: d("2025-12-31"), Rate: 2},
			{DateFrom: d("2025-01-01"), DateTo: d("2025-03-31"), Rate: 1},
		},
	}}
	Normalize(clauses)
	table := clauses[0].Table
	for i := 1; i < len(table); i++ {
		prev, cur := table[i-1], table[i]
		ordered := prev.DateFrom.Before(cur.DateFrom) ||
			(prev.DateFrom.Equal(cur.DateFrom) && !cur.DateTo.Before(prev.DateTo))
		assert.True(t, ordered, "row %d out of order", i)
	}
	assert.Equal(t, 1.0, table[0].Rate)
}

func TestApply_RateAdjustmentClosesOpenWindow(t *testing.T) {
	base := baseContract(pricingClause("p1", nil, 1_000_000))
	cs := models.ChangeSet{
		SourceDoc:  "addendum-1.pdf",
		IssuedDate: d("2025-05-15"),
		Changes: []models.Change{{
			ID:            "ch1",
			Op:            models.OpReplace,
			Type:          models.ChangeRateAdjustment,
			Target:        models.ChangeTarget{Type: "Pricing"},
			Payload:       models.NewFields("rate", 1_200_000.0),
			EffectiveFrom: d("2025-06-01"),
			Confidence:    0.8,
		}},
	}

	res := newTestEngine().Apply(base, cs)

	cl := res.Contract.Clauses[0]
	require.Len(t, cl.Table, 2)
	assert.Equal(t, "2025-01-01", cl.Table[0].DateFrom.String())
	assert.Equal(t, "2025-05-31", cl.Table[0].DateTo.String())
	assert.Equal(t, 1_000_000.0, cl.Table[0].Rate)
	assert.Equal(t, "2025-06-01", cl.Table[1].DateFrom.String())
	assert.Equal(t, "9999-12-31", cl.Table[1].DateTo.String())
	assert.Equal(t, 1_200_000.0, cl.Table[1].Rate)
	assert.Equal(t, "VND", cl.Table[1].Currency)
	require.NotNil(t, cl.EffectiveTo)
	assert.Equal(t, "2025-05-31", cl.EffectiveTo.String())

	// the input snapshot is untouched
	assert.Len(t, base.Clauses[0].Table, 1)
	assert.Nil(t, base.Clauses[0].EffectiveTo)

	assert.Len(t, res.Diagnostics.Applied, 1)
	assert.False(t, res.Diagnostics.NeedsReview())
}

func TestApply_RateAdjustmentNeverOverlaps(t *testing.T) {
	tests := []struct {
		name    string
		changes []models.Change
		rows    int
	}{
		{
			name: "bounded window splits the open row",
			changes: []models.Change{
				{ID: "a", Type: models.ChangeRateAdjustment, Payload: models.NewFields("rate", 2.0), EffectiveFrom: d("2025-06-01"), EffectiveTo: models.DatePtr(d("2025-06-30"))},
			},
			rows: 3,
		},
		{
			name: "successive open changes",
			changes: []models.Change{
				{ID: "b", Type: models.ChangeRateAdjustment, Payload: models.NewFields("rate", 3.0), EffectiveFrom: d("2025-09-01")},
				{ID: "a", Type: models.ChangeRateAdjustment, Payload: models.NewFields("rate", 2.0), EffectiveFrom: d("2025-06-01")},
			},
			rows: 3,
		},
		{
			name: "same start replaces",
			changes: []models.Change{
				{ID: "a", Type: models.ChangeRateAdjustment, Payload: models.NewFields("rate", 2.0), EffectiveFrom: d("2025-01-01")},
			},
			rows: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := baseContract(pricingClause("p1", nil, 1))
			res := newTestEngine().Apply(base, models.ChangeSet{SourceDoc: "x", Changes: tt.changes})
			table := res.Contract.Clauses[0].Table
			require.Len(t, table, tt.rows)
			for i := 1; i < len(table); i++ {
				assert.True(t, table[i-1].DateTo.Before(table[i].DateFrom), "rows %d and %d overlap", i-1, i)
				assert.True(t, table[i-1].DateTo.AddDays(1).Equal(table[i].DateFrom), "gap between rows %d and %d", i-1, i)
			}
		})
	}
}

func TestApply_RateAdjustmentCurrencyFallback(t *testing.T) {
	usd := pricingClause("usd", models.NewFields("room_type", "suite"), 300)
	usd.Table[0].Currency = "USD"
	empty := models.Clause{ID: "empty", Type: models.ClausePricing, Title: "New", EffectiveFrom: d("2025-01-01")}

	cs := models.ChangeSet{SourceDoc: "x", Changes: []models.Change{
		{ID: "a", Type: models.ChangeRateAdjustment, Target: models.ChangeTarget{ClauseID: "usd"}, Payload: models.NewFields("rate", 350.0), EffectiveFrom: d("2025-04-01")},
		{ID: "b", Type: models.ChangeRateAdjustment, Target: models.ChangeTarget{ClauseID: "empty"}, Payload: models.NewFields("rate", 100.0), EffectiveFrom: d("2025-04-01")},
		{ID: "c", Type: models.ChangeRateAdjustment, Target: models.ChangeTarget{ClauseID: "usd"}, Payload: models.NewFields("rate", "400", "currency", "EUR", "notes", "peak"), EffectiveFrom: d("2025-07-01")},
	}}
	res := newTestEngine().Apply(baseContract(usd, empty), cs)

	got := res.Contract.Clauses[0].Table
	require.Len(t, got, 3)
	assert.Equal(t, "USD", got[1].Currency)
	assert.Equal(t, "EUR", got[2].Currency)
	assert.Equal(t, "peak", got[2].Notes)
	assert.Equal(t, "VND", res.Contract.Clauses[1].Table[0].Currency)
}

func TestApply_RateAdjustmentWithoutRateIsSkipped(t *testing.T) {
	cs := models.ChangeSet{SourceDoc: "x", Changes: []models.Change{
		{ID: "bad", Type: models.ChangeRateAdjustment, Payload: models.NewFields("note", "tbd"), EffectiveFrom: d("2025-04-01")},
	}}
	res := newTestEngine().Apply(baseContract(pricingClause("p1", nil, 1)), cs)
	require.Len(t, res.Diagnostics.Skipped, 1)
	assert.Equal(t, "bad", res.Diagnostics.Skipped[0].ChangeID)
	assert.Len(t, res.Contract.Clauses[0].Table, 1)
	assert.Nil(t, res.Contract.Clauses[0].EffectiveTo)
}

func TestApply_StopSellMatchesScopeSubstring(t *testing.T) {
	base := baseContract(
		pricingClause("deluxe", models.NewFields("room_type", "Deluxe"), 1),
		pricingClause("superior", models.NewFields("room_type", "Superior"), 1),
		pricingClause("noscope", nil, 1),
		models.Clause{ID: "stop", Type: models.ClauseStopSell, Title: "Stop sell", Scope: models.NewFields("room_type", "deluxe"), EffectiveFrom: d("2025-01-01")},
	)
	cs := models.ChangeSet{SourceDoc: "x", Changes: []models.Change{{
		ID:            "ss1",
		Type:          models.ChangeStopSell,
		Target:        models.ChangeTarget{Scope: models.NewFields("room_type", "deluxe")},
		EffectiveFrom: d("2025-07-01"),
		EffectiveTo:   models.DatePtr(d("2025-07-10")),
	}}}

	res := newTestEngine().Apply(base, cs)

	windows, err := res.Contract.Clauses[0].StopSellWindows()
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, "2025-07-01", windows[0].From.String())
	assert.Equal(t, "2025-07-10", windows[0].To.String())

	for _, i := range []int{1, 2, 3} {
		assert.Nil(t, res.Contract.Clauses[i].Policy, "clause %s should be untouched", res.Contract.Clauses[i].ID)
	}
	assert.Equal(t, []string{"deluxe"}, res.Diagnostics.Applied[0].ClauseIDs)
	// the target matched both deluxe clauses, but the stop-sell chose its own
	assert.Empty(t, res.Diagnostics.Ambiguous)
	assert.False(t, res.Diagnostics.NeedsReview())
}

func TestApply_OpenSellIsFlagged(t *testing.T) {
	base := baseContract(pricingClause("p1", models.NewFields("room_type", "deluxe"), 1))
	cs := models.ChangeSet{SourceDoc: "x", Changes: []models.Change{{
		ID: "os1", Type: models.ChangeOpenSell, Target: models.ChangeTarget{Type: "Pricing"}, EffectiveFrom: d("2025-08-01"),
	}}}
	res := newTestEngine().Apply(base, cs)

	windows, err := res.Contract.Clauses[0].StopSellWindows()
	require.NoError(t, err)
	assert.Len(t, windows, 1)
	require.Len(t, res.Diagnostics.Notices, 1)
	assert.Equal(t, NoticeOpenSellAsStopSell, res.Diagnostics.Notices[0].Code)
}

func TestApply_PromotionsStackAndUpdatesReplace(t *testing.T) {
	base := baseContract(pricingClause("p1", nil, 1))
	cs := models.ChangeSet{SourceDoc: "x", Changes: []models.Change{
		{ID: "promo1", Type: models.ChangePromotion, Target: models.ChangeTarget{ClauseID: "p1"}, Payload: models.NewFields("discount_pct", 10.0), EffectiveFrom: d("2025-03-01")},
		{ID: "promo2", Type: models.ChangePromotion, Target: models.ChangeTarget{ClauseID: "p1"}, Payload: models.NewFields("discount_pct", 15.0), EffectiveFrom: d("2025-04-01")},
		{ID: "tax1", Type: models.ChangeTaxUpdate, Target: models.ChangeTarget{ClauseID: "p1"}, Payload: models.NewFields("vat", 8.0), EffectiveFrom: d("2025-02-01")},
		{ID: "tax2", Type: models.ChangeTaxUpdate, Target: models.ChangeTarget{ClauseID: "p1"}, Payload: models.NewFields("vat", 10.0), EffectiveFrom: d("2025-05-01")},
		{ID: "allot", Type: models.ChangeAllotmentUpdate, Target: models.ChangeTarget{ClauseID: "p1"}, EffectiveFrom: d("2025-05-01")},
	}}
	res := newTestEngine().Apply(base, cs)
	cl := res.Contract.Clauses[0]

	promos, err := cl.Promotions()
	require.NoError(t, err)
	require.Len(t, promos, 2)
	assert.Equal(t, 10.0, promos[0].Payload["discount_pct"])
	assert.Equal(t, 15.0, promos[1].Payload["discount_pct"])

	tax, ok, err := cl.PolicySlot(models.ChangeTaxUpdate)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10.0, tax.Payload["vat"])
	assert.Equal(t, "2025-05-01", tax.From.String())

	allot, ok, err := cl.PolicySlot(models.ChangeAllotmentUpdate)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, allot.Payload)
}

func TestApply_UnmatchedAndUnknownAreReported(t *testing.T) {
	base := baseContract(pricingClause("p1", nil, 1))
	cs := models.ChangeSet{SourceDoc: "x", Changes: []models.Change{
		{ID: "ghost", Type: models.ChangePromotion, Target: models.ChangeTarget{ClauseID: "missing"}, EffectiveFrom: d("2025-03-01")},
		{ID: "alien", Type: "Teleport", EffectiveFrom: d("2025-03-01")},
	}}
	res := newTestEngine().Apply(base, cs)

	require.Len(t, res.Diagnostics.Unmatched, 1)
	assert.Equal(t, "ghost", res.Diagnostics.Unmatched[0].ChangeID)
	require.Len(t, res.Diagnostics.Skipped, 1)
	assert.Equal(t, "alien", res.Diagnostics.Skipped[0].ChangeID)
	assert.True(t, res.Diagnostics.NeedsReview())
	assert.Nil(t, res.Contract.Clauses[0].Policy)
}

func TestApply_AmbiguousFanOutIsReported(t *testing.T) {
	base := baseContract(
		pricingClause("a", models.NewFields("room_type", "deluxe"), 1),
		pricingClause("b", models.NewFields("room_type", "deluxe sea"), 1),
		pricingClause("c", models.NewFields("room_type", "deluxe", "view", "sea"), 1),
	)
	cs := models.ChangeSet{SourceDoc: "x", Changes: []models.Change{
		{ID: "p", Type: models.ChangePromotion, Target: models.ChangeTarget{Type: "Pricing", Scope: models.NewFields("room_type", "deluxe")}, Payload: models.NewFields("discount_pct", 5.0), EffectiveFrom: d("2025-03-01")},
	}}
	res := newTestEngine().Apply(base, cs)

	require.Len(t, res.Diagnostics.Ambiguous, 1)
	assert.Equal(t, []string{"a", "b"}, res.Diagnostics.Ambiguous[0].ClauseIDs)
	assert.True(t, res.Diagnostics.NeedsReview())
	for i, want := range []int{1, 1, 0} {
		cl := res.Contract.Clauses[i]
		promos, err := cl.Promotions()
		require.NoError(t, err)
		assert.Len(t, promos, want, "clause %s", cl.ID)
	}
}

func TestApplicatorsCoverEveryKnownChangeType(t *testing.T) {
	for _, ct := range models.ChangeTypes {
		_, ok := applicators[ct]
		assert.True(t, ok, "no applicator for %s", ct)
		assert.NotEqual(t, unknownPrecedence, Precedence(ct), "no precedence for %s", ct)
	}
}
