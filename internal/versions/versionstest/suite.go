// Package versionstest holds behaviour checks shared by every versions.Store.
package versionstest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/models"
	"github.com/david/contract-ledger/internal/versions"
)

// Snapshot returns a small contract for store tests.
func Snapshot(contractID string, clauseIDs ...string) models.BaseContract {
	bc := models.BaseContract{
		ContractID: contractID,
		Meta: models.ContractMeta{
			Hotel:      "Hotel ABC",
			SignDate:   models.MustParseDate("2025-01-05"),
			Currency:   "VND",
			SourceFile: contractID + ".pdf",
		},
	}
	for _, id := range clauseIDs {
		bc.Clauses = append(bc.Clauses, models.Clause{
			ID:            id,
			Type:          models.ClausePricing,
			Title:         "Rates " + id,
			Scope:         models.NewFields("room_type", "deluxe"),
			EffectiveFrom: models.MustParseDate("2025-01-01"),
			Table: []models.RateRow{{
				DateFrom: models.MustParseDate("2025-01-01"),
				DateTo:   models.OpenEnded,
				Rate:     1_000_000,
				Currency: "VND",
			}},
			Confidence: 0.9,
		})
	}
	return bc
}

// Run exercises the Store contract. newStore must return an empty store
// each time it is called.
func Run(t *testing.T, newStore func(t *testing.T) versions.Store) {
	t.Run("numbering starts at one", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		next, err := s.NextVersionID(ctx, "hotel-a")
		require.NoError(t, err)
		assert.Equal(t, 1, next)

		_, err = s.Latest(ctx, "hotel-a")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("save load and list", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		v1 := Snapshot("hotel-a", "c1")
		v2 := Snapshot("hotel-a", "c1", "c2")
		require.NoError(t, s.Save(ctx, "hotel-a", 1, v1))
		require.NoError(t, s.Save(ctx, "hotel-a", 2, v2))

		latest, err := s.Latest(ctx, "hotel-a")
		require.NoError(t, err)
		assert.Equal(t, 2, latest)

		got, err := s.Load(ctx, "hotel-a", 1)
		require.NoError(t, err)
		wantHash, err := models.ContentHash(v1)
		require.NoError(t, err)
		gotHash, err := models.ContentHash(*got)
		require.NoError(t, err)
		assert.Equal(t, wantHash, gotHash, "snapshot must round-trip unchanged")

		infos, err := s.List(ctx, "hotel-a")
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, 1, infos[0].Version)
		assert.Equal(t, 2, infos[1].Version)
		assert.Equal(t, 2, infos[1].ClauseCount)
		assert.Equal(t, wantHash, infos[0].ContentHash)

		other, err := s.List(ctx, "hotel-b")
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("versions are immutable", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, "hotel-a", 1, Snapshot("hotel-a", "c1")))
		err := s.Save(ctx, "hotel-a", 1, Snapshot("hotel-a", "c9"))
		assert.ErrorIs(t, err, apperr.ErrConflict)

		got, err := s.Load(ctx, "hotel-a", 1)
		require.NoError(t, err)
		assert.Equal(t, "c1", got.Clauses[0].ID)
	})

	t.Run("missing version", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Load(context.Background(), "hotel-a", 7)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("next follows the highest saved version", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, "hotel-a", 1, Snapshot("hotel-a", "c1")))
		require.NoError(t, s.Save(ctx, "hotel-a", 2, Snapshot("hotel-a", "c1")))
		next, err := s.NextVersionID(ctx, "hotel-a")
		require.NoError(t, err)
		assert.Equal(t, 3, next)

		other, err := s.NextVersionID(ctx, "hotel-b")
		require.NoError(t, err)
		assert.Equal(t, 1, other)
	})
}
