package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/models"
)

type OperatorStore struct {
	pool *pgxpool.Pool
}

func NewOperatorStore(pool *pgxpool.Pool) *OperatorStore {
	return &OperatorStore{pool: pool}
}

func (s *OperatorStore) CreateOperator(ctx context.Context, email, passwordHash string) (models.Operator, error) {
	var op models.Operator
	err := s.pool.QueryRow(ctx, `
		INSERT INTO operators (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, email, created_at
	`, email, passwordHash).Scan(&op.ID, &op.Email, &op.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.Operator{}, apperr.Conflictf("operator %s", email)
		}
		return models.Operator{}, fmt.Errorf("insert failed: %w", err)
	}
	return op, nil
}

func (s *OperatorStore) OperatorByEmail(ctx context.Context, email string) (models.Operator, error) {
	var op models.Operator
	err := s.pool.QueryRow(ctx,
		"SELECT id, email, password_hash, created_at FROM operators WHERE email = $1", email,
	).Scan(&op.ID, &op.Email, &op.PasswordHash, &op.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Operator{}, apperr.NotFoundf("operator %s", email)
	}
	if err != nil {
		return models.Operator{}, err
	}
	return op, nil
}
