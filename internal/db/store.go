package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/models"
	"github.com/david/contract-ledger/internal/versions"
)

const uniqueViolation = "23505"

// VersionStore keeps contract snapshots in Postgres.
type VersionStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewVersionStore(pool *pgxpool.Pool) *VersionStore {
	return &VersionStore{pool: pool, now: time.Now}
}

var _ versions.Store = (*VersionStore)(nil)

func (s *VersionStore) NextVersionID(ctx context.Context, contractID string) (int, error) {
	var next int
	err := s.pool.QueryRow(ctx, `
		SELECT GREATEST(
			COALESCE((SELECT last_version FROM contract_heads WHERE contract_id = $1), 0),
			COALESCE((SELECT MAX(version) FROM contract_versions WHERE contract_id = $1), 0)
		) + 1
	`, contractID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next version for %s: %w", contractID, err)
	}
	return next, nil
}

func (s *VersionStore) Save(ctx context.Context, contractID string, version int, snapshot models.BaseContract) error {
	info, err := versions.Describe(contractID, version, snapshot, s.now())
	if err != nil {
		return err
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO contract_versions (contract_id, version, snapshot, content_hash, source_file, clause_count, created_at)
		VALUES ($1, $2, $3::json, $4, $5, $6, $7)
	`, contractID, version, string(raw), info.ContentHash, info.SourceFile, info.ClauseCount, info.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperr.Conflictf("contract %s version %d already exists", contractID, version)
		}
		return fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO contract_heads (contract_id, last_version)
		VALUES ($1, $2)
		ON CONFLICT (contract_id) DO UPDATE
		SET last_version = GREATEST(contract_heads.last_version, EXCLUDED.last_version),
		    updated_at = NOW()
	`, contractID, version)
	if err != nil {
		return fmt.Errorf("update head: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *VersionStore) Latest(ctx context.Context, contractID string) (int, error) {
	var latest *int
	err := s.pool.QueryRow(ctx, "SELECT MAX(version) FROM contract_versions WHERE contract_id = $1", contractID).Scan(&latest)
	if err != nil {
		return 0, fmt.Errorf("latest version for %s: %w", contractID, err)
	}
	if latest == nil {
		return 0, apperr.NotFoundf("contract %s has no versions", contractID)
	}
	return *latest, nil
}

func (s *VersionStore) Load(ctx context.Context, contractID string, version int) (*models.BaseContract, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		"SELECT snapshot FROM contract_versions WHERE contract_id = $1 AND version = $2",
		contractID, version,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFoundf("contract %s version %d", contractID, version)
	}
	if err != nil {
		return nil, fmt.Errorf("load contract %s version %d: %w", contractID, version, err)
	}

	var bc models.BaseContract
	if err := json.Unmarshal(raw, &bc); err != nil {
		return nil, fmt.Errorf("decode contract %s version %d: %w", contractID, version, err)
	}
	return &bc, nil
}

func (s *VersionStore) List(ctx context.Context, contractID string) ([]models.VersionInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT version, created_at, content_hash, source_file, clause_count
		FROM contract_versions
		WHERE contract_id = $1
		ORDER BY version
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("list versions for %s: %w", contractID, err)
	}
	defer rows.Close()

	out := []models.VersionInfo{}
	for rows.Next() {
		info := models.VersionInfo{ContractID: contractID}
		if err := rows.Scan(&info.Version, &info.CreatedAt, &info.ContentHash, &info.SourceFile, &info.ClauseCount); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}
