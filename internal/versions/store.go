// Package versions keeps the append-only snapshot chain of each contract.
package versions

import (
	"context"
	"time"

	"github.com/david/contract-ledger/internal/models"
)

// Store persists immutable contract snapshots keyed by (contract id, version).
//
// Version numbers start at 1 and only grow. Implementations remember the
// highest number ever saved for a contract, so a number is never handed out
// twice even if a snapshot is deleted behind the store's back.
type Store interface {
	NextVersionID(ctx context.Context, contractID string) (int, error)
	// Save fails with apperr.ErrConflict if the version already exists.
	Save(ctx context.Context, contractID string, version int, snapshot models.BaseContract) error
	// Latest returns apperr.ErrNotFound when the contract has no versions.
	Latest(ctx context.Context, contractID string) (int, error)
	Load(ctx context.Context, contractID string, version int) (*models.BaseContract, error)
	List(ctx context.Context, contractID string) ([]models.VersionInfo, error)
}

// Describe builds the listing entry stored alongside a snapshot.
func Describe(contractID string, version int, snapshot models.BaseContract, createdAt time.Time) (models.VersionInfo, error) {
	hash, err := models.ContentHash(snapshot)
	if err != nil {
		return models.VersionInfo{}, err
	}
	return models.VersionInfo{
		ContractID:  contractID,
		Version:     version,
		CreatedAt:   createdAt.UTC(),
		ContentHash: hash,
		SourceFile:  snapshot.Meta.SourceFile,
		ClauseCount: len(snapshot.Clauses),
	}, nil
}
