package versions

import (
	"context"
	"fmt"

	"github.com/david/contract-ledger/internal/logger"
	"github.com/david/contract-ledger/internal/models"
)

// History appends snapshots to a Store and reads them back.
type History struct {
	store Store
	log   *logger.Logger
}

func NewHistory(store Store, log *logger.Logger) *History {
	if log == nil {
		log = logger.Nop()
	}
	return &History{store: store, log: log.With("component", "versions")}
}

func (h *History) Store() Store { return h.store }

// Commit saves snapshot under the next free version number and returns it.
// Callers serialise commits per contract.
func (h *History) Commit(ctx context.Context, snapshot models.BaseContract) (int, error) {
	version, err := h.store.NextVersionID(ctx, snapshot.ContractID)
	if err != nil {
		return 0, fmt.Errorf("allocating version for %s: %w", snapshot.ContractID, err)
	}
	if err := h.store.Save(ctx, snapshot.ContractID, version, snapshot); err != nil {
		return 0, fmt.Errorf("saving %s v%d: %w", snapshot.ContractID, version, err)
	}
	h.log.Info("version committed", "contract_id", snapshot.ContractID, "version", version, "clauses", len(snapshot.Clauses))
	return version, nil
}

// LatestSnapshot returns the newest snapshot and its version number.
func (h *History) LatestSnapshot(ctx context.Context, contractID string) (*models.BaseContract, int, error) {
	version, err := h.store.Latest(ctx, contractID)
	if err != nil {
		return nil, 0, err
	}
	snap, err := h.store.Load(ctx, contractID, version)
	if err != nil {
		return nil, 0, err
	}
	return snap, version, nil
}

func (h *History) Load(ctx context.Context, contractID string, version int) (*models.BaseContract, error) {
	return h.store.Load(ctx, contractID, version)
}

func (h *History) List(ctx context.Context, contractID string) ([]models.VersionInfo, error) {
	return h.store.List(ctx, contractID)
}

// StateAsOf returns a copy of snapshot holding only the clauses in force on d.
func StateAsOf(snapshot models.BaseContract, d models.Date) models.BaseContract {
	out := models.BaseContract{
		ContractID: snapshot.ContractID,
		Meta:       snapshot.Meta,
		Clauses:    []models.Clause{},
	}
	for _, c := range snapshot.Clauses {
		if c.InForce(d) {
			out.Clauses = append(out.Clauses, c.Clone())
		}
	}
	return out
}
