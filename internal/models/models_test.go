package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFields_PreservesKeyOrderThroughJSON(t *testing.T) {
	var f Fields
	require.NoError(t, json.Unmarshal([]byte(`{"zeta":1,"alpha":"x","mid":{"a":1}}`), &f))
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, f.Keys())

	out, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":"x","mid":{"a":1}}`, string(out))
}

func TestFields_SetReplacesInPlace(t *testing.T) {
	f := NewFields("a", 1, "b", 2)
	f.Set("a", 3)
	f.Set("c", 4)
	assert.Equal(t, []string{"a", "b", "c"}, f.Keys())
	v, _ := f.Float("a")
	assert.Equal(t, 3.0, v)

	f.Delete("b")
	assert.Equal(t, []string{"a", "c"}, f.Keys())
}

func TestFields_FloatAcceptsNumericStrings(t *testing.T) {
	f := NewFields("rate", "1200000", "bad", "n/a")
	v, ok := f.Float("rate")
	require.True(t, ok)
	assert.Equal(t, 1200000.0, v)

	_, ok = f.Float("bad")
	assert.False(t, ok)
	_, ok = f.Float("missing")
	assert.False(t, ok)
}

func TestScopeSignature(t *testing.T) {
	tests := []struct {
		name  string
		scope *Fields
		want  string
	}{
		{"nil", nil, ""},
		{"empty", &Fields{}, ""},
		{"single", NewFields("room_type", "Deluxe"), "room_type:deluxe"},
		{"sorted by key", NewFields("room_type", "Deluxe", "channel", "OTA"), "channel:ota|room_type:deluxe"},
		{"numbers", NewFields("min_nights", 2.0), "min_nights:2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScopeSignature(tt.scope))
		})
	}
}

func TestDate_JSONAndArithmetic(t *testing.T) {
	d := MustParseDate("2025-06-01")
	assert.Equal(t, "2025-05-31", d.AddDays(-1).String())

	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-06-01"`, string(raw))

	var back Date
	require.NoError(t, json.Unmarshal([]byte(`"2025-06-01T10:30:00Z"`), &back))
	assert.True(t, back.Equal(d))

	var empty Date
	require.NoError(t, json.Unmarshal([]byte(`null`), &empty))
	assert.True(t, empty.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`"June first"`), &back))
}

func TestClause_InForce(t *testing.T) {
	c := Clause{EffectiveFrom: MustParseDate("2025-01-01"), EffectiveTo: DatePtr(MustParseDate("2025-03-31"))}
	assert.False(t, c.InForce(MustParseDate("2024-12-31")))
	assert.True(t, c.InForce(MustParseDate("2025-01-01")))
	assert.True(t, c.InForce(MustParseDate("2025-03-31")))
	assert.False(t, c.InForce(MustParseDate("2025-04-01")))

	c.EffectiveTo = nil
	assert.True(t, c.InForce(MustParseDate("2099-01-01")))
}

func TestClause_PolicyAccessorsSurviveRoundTrip(t *testing.T) {
	c := Clause{ID: "p1", Type: ClausePricing}
	require.NoError(t, c.AddStopSell(Window{From: MustParseDate("2025-07-01"), To: DatePtr(MustParseDate("2025-07-10"))}))
	require.NoError(t, c.AddPromotion(PolicyLayer{Payload: map[string]any{"discount_pct": 10.0}, From: MustParseDate("2025-05-01")}))
	require.NoError(t, c.SetPolicySlot(ChangeTaxUpdate, PolicyLayer{Payload: map[string]any{"vat": 8.0}, From: MustParseDate("2025-02-01")}))
	require.NoError(t, c.SetPolicySlot(ChangeTaxUpdate, PolicyLayer{Payload: map[string]any{"vat": 10.0}, From: MustParseDate("2025-03-01")}))

	raw, err := json.Marshal(c)
	require.NoError(t, err)
	var back Clause
	require.NoError(t, json.Unmarshal(raw, &back))

	windows, err := back.StopSellWindows()
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, "2025-07-10", windows[0].To.String())

	promos, err := back.Promotions()
	require.NoError(t, err)
	require.Len(t, promos, 1)
	assert.Nil(t, promos[0].To)

	slot, ok, err := back.PolicySlot(ChangeTaxUpdate)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10.0, slot.Payload["vat"])
	assert.Equal(t, []string{"stop_sell", "promotions", "TaxUpdate"}, back.Policy.Keys())
}

func TestBaseContract_CloneIsIndependent(t *testing.T) {
	orig := BaseContract{
		ContractID: "hotel-a",
		Clauses: []Clause{{
			ID:    "p1",
			Type:  ClausePricing,
			Scope: NewFields("room_type", "deluxe"),
			Table: []RateRow{{DateFrom: MustParseDate("2025-01-01"), DateTo: OpenEnded, Rate: 100, Currency: "VND"}},
		}},
	}
	cp := orig.Clone()
	cp.Clauses[0].Table[0].Rate = 200
	cp.Clauses[0].Scope.Set("room_type", "suite")
	cp.Clauses[0].EffectiveTo = DatePtr(MustParseDate("2025-02-01"))
	require.NoError(t, cp.Clauses[0].AddStopSell(Window{From: MustParseDate("2025-03-01")}))

	assert.Equal(t, 100.0, orig.Clauses[0].Table[0].Rate)
	assert.Equal(t, "deluxe", orig.Clauses[0].Scope.String("room_type"))
	assert.Nil(t, orig.Clauses[0].EffectiveTo)
	assert.Nil(t, orig.Clauses[0].Policy)
}

func TestContentHash_Stable(t *testing.T) {
	bc := BaseContract{ContractID: "x", Meta: ContractMeta{Hotel: "H", Currency: "VND"}}
	a, err := ContentHash(bc)
	require.NoError(t, err)
	b, err := ContentHash(bc.Clone())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "sha256:")
}
