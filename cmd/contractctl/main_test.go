package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/contract-ledger/internal/localstore"
	"github.com/david/contract-ledger/internal/models"
	"github.com/david/contract-ledger/internal/versions"
)

const baseJSON = `{
  "meta": {"hotel": "Hotel ABC", "sign_date": "2025-01-05", "currency": "VND"},
  "clauses": [
    {"id": "c1", "type": "Pricing", "title": "Room rates", "scope": {"room": "Deluxe"},
     "effective_from": "2025-01-05",
     "table": [{"date_from": "2025-01-05", "date_to": "2025-12-31", "rate": 1200000, "currency": "VND"}]},
    {"id": "c2", "type": "Cancellation", "title": "Cancellation", "text": "Free until 3 days before arrival",
     "effective_from": "2025-01-05"}
  ]
}`

const changesJSON = `{
  "changes": [
    {"id": "ch1", "type": "RateAdjustment", "target": {"type": "Pricing", "scope": {"room": "Deluxe"}},
     "payload": {"rate": "1.500.000 VND"}, "effective_from": "2025-07-01"},
    {"id": "ch2", "type": "PolicyUpdate", "target": {"clause_id": "c9"},
     "payload": {"policy": {"deadline_days": 7}}, "effective_from": "2025-07-01"}
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestMergeCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "database:\n  backend: memory\n")
	basePath := writeFile(t, dir, "hotel-abc.json", baseJSON)
	changesPath := writeFile(t, dir, "addendum-1.json", changesJSON)
	outPath := filepath.Join(dir, "merged.json")

	stdout, _, err := run(t, "--config", cfgPath, "merge", "--base", basePath, "--changes", changesPath, "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "applied")
	assert.Contains(t, stdout, "unmatched")
	assert.Contains(t, stdout, "NEEDS REVIEW")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var merged models.BaseContract
	require.NoError(t, json.Unmarshal(data, &merged))
	assert.Equal(t, "hotel-abc", merged.ContractID)

	pricing, ok := merged.ClauseByID("c1")
	require.True(t, ok)
	require.Len(t, pricing.Table, 2)
	assert.Equal(t, 1500000.0, pricing.Table[1].Rate)
}

func TestMergeCommandRejectsInvalidBase(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "database:\n  backend: memory\n")
	basePath := writeFile(t, dir, "bad.json", `{"meta": {"hotel": "X"}, "clauses": [{"id": "c1", "type": "Pricing", "effective_from": "2025-01-01", "table": [{"date_from": "2025-01-01", "date_to": "2025-02-01", "rate": -5}]}]}`)
	changesPath := writeFile(t, dir, "changes.json", `{"changes": []}`)

	_, _, err := run(t, "--config", cfgPath, "merge", "--base", basePath, "--changes", changesPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.json")
}

func seedBadger(t *testing.T, path string) {
	t.Helper()
	store, err := localstore.Open(path, nil)
	require.NoError(t, err)
	defer store.Close()

	history := versions.NewHistory(store, nil)
	ctx := context.Background()

	v1 := models.BaseContract{
		ContractID: "hotel-abc",
		Meta:       models.ContractMeta{Hotel: "Hotel ABC", SignDate: models.MustParseDate("2025-01-05"), Currency: "VND"},
		Clauses: []models.Clause{
			{ID: "c1", Type: models.ClausePricing, Title: "Room rates", EffectiveFrom: models.MustParseDate("2025-01-05")},
		},
	}
	_, err = history.Commit(ctx, v1)
	require.NoError(t, err)

	v2 := v1.Clone()
	v2.Clauses = append(v2.Clauses, models.Clause{
		ID: "c2", Type: models.ClauseCancellation, Title: "Cancellation",
		EffectiveFrom: models.MustParseDate("2025-07-01"),
	})
	_, err = history.Commit(ctx, v2)
	require.NoError(t, err)
}

func TestHistoryCommands(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "badger")
	seedBadger(t, dbPath)
	cfgPath := writeFile(t, dir, "config.yaml", "database:\n  backend: badger\n  badger_path: "+dbPath+"\n")

	stdout, _, err := run(t, "--config", cfgPath, "versions", "hotel-abc")
	require.NoError(t, err)
	assert.Contains(t, stdout, "VERSION")
	assert.Contains(t, stdout, " 2 |")

	stdout, _, err = run(t, "--config", cfgPath, "show", "hotel-abc", "--as-of", "2025-03-01")
	require.NoError(t, err)
	var view models.BaseContract
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	require.Len(t, view.Clauses, 1)
	assert.Equal(t, "c1", view.Clauses[0].ID)

	stdout, _, err = run(t, "--config", cfgPath, "show", "hotel-abc", "--version", "1", "--markdown")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Hotel ABC")

	stdout, _, err = run(t, "--config", cfgPath, "redline", "hotel-abc", "2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "+ ADD c2")

	_, _, err = run(t, "--config", cfgPath, "versions", "missing")
	assert.Error(t, err)

	_, _, err = run(t, "--config", cfgPath, "redline", "hotel-abc", "zero")
	assert.Error(t, err)
}

func TestMigrateNeedsPostgres(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", "database:\n  backend: memory\n")

	_, _, err := run(t, "--config", cfgPath, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}
