// Package blob stores uploaded documents, rendered Markdown and raw LLM output.
package blob

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/david/contract-ledger/internal/config"
	"github.com/david/contract-ledger/internal/logger"
)

// Store is a flat key/value blob store. Keys use "/" separators.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns apperr.ErrNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	// URI names where key lives, for API responses and logs.
	URI(key string) string
}

// New opens the backend selected in cfg.
func New(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "fs":
		return NewFS(cfg.DataDir)
	case "gcs":
		return NewGCS(ctx, cfg.Bucket, cfg.Prefix, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	k := path.Clean(strings.TrimPrefix(key, "/"))
	if k == "." || k == ".." || strings.HasPrefix(k, "../") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return k, nil
}

// DocumentKey is where an uploaded source document is kept.
func DocumentKey(id, filename string) string {
	return "docs/" + id + "_" + path.Base(filename)
}

func RenderKey(contractID string, version int) string {
	return fmt.Sprintf("renders/%s/v%d.md", contractID, version)
}

func RedlineKey(contractID string, version int) string {
	return fmt.Sprintf("renders/%s/v%d_redline.md", contractID, version)
}
