package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/models"
)

// MemoryOperators keeps accounts in process memory, for deployments without
// Postgres and for tests.
type MemoryOperators struct {
	mu      sync.RWMutex
	byEmail map[string]models.Operator
}

func NewMemoryOperators() *MemoryOperators {
	return &MemoryOperators{byEmail: make(map[string]models.Operator)}
}

func (m *MemoryOperators) CreateOperator(_ context.Context, email, passwordHash string) (models.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[email]; ok {
		return models.Operator{}, apperr.Conflictf("operator %s", email)
	}
	op := models.Operator{ID: uuid.New(), Email: email, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	m.byEmail[email] = op
	op.PasswordHash = ""
	return op, nil
}

func (m *MemoryOperators) OperatorByEmail(_ context.Context, email string) (models.Operator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	op, ok := m.byEmail[email]
	if !ok {
		return models.Operator{}, apperr.NotFoundf("operator %s", email)
	}
	return op, nil
}
