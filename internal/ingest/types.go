package ingest

import (
	"context"
	"time"

	"github.com/david/contract-ledger/internal/ai"
	"github.com/david/contract-ledger/internal/merge"
	"github.com/david/contract-ledger/internal/models"
)

// TextExtractor turns an uploaded document into text segments.
type TextExtractor interface {
	Extract(ctx context.Context, filename string, data []byte) ([]models.TextSegment, error)
}

// DocumentExtractor asks a language model for the JSON shape of a contract
// or change set. *ai.Extractor implements it.
type DocumentExtractor interface {
	Extract(ctx context.Context, chunks []models.Chunk, mode ai.Mode, source string) (map[string]any, error)
}

// Outputs names the blobs written for one ingested version.
type Outputs struct {
	Document string `json:"document"`
	Markdown string `json:"markdown"`
	Redline  string `json:"redline,omitempty"`
}

// IngestResult is returned by both ingest paths. Diagnostics is set only for
// addenda.
type IngestResult struct {
	ContractID  string             `json:"contract_id"`
	Version     int                `json:"version"`
	Outputs     Outputs            `json:"outputs"`
	Diagnostics *merge.Diagnostics `json:"diagnostics,omitempty"`
	Duration    time.Duration      `json:"-"`
}
