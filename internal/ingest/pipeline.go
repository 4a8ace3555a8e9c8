package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/david/contract-ledger/internal/ai"
	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/blob"
	"github.com/david/contract-ledger/internal/lock"
	"github.com/david/contract-ledger/internal/logger"
	"github.com/david/contract-ledger/internal/merge"
	"github.com/david/contract-ledger/internal/metrics"
	"github.com/david/contract-ledger/internal/models"
	"github.com/david/contract-ledger/internal/render"
	"github.com/david/contract-ledger/internal/versions"
)

const (
	kindBase     = "base"
	kindAddendum = "addendum"
)

// Pipeline runs uploaded documents through extraction, validation and
// merging, and commits the result as a new contract version.
type Pipeline struct {
	Text      TextExtractor
	Extractor DocumentExtractor
	Validator *Validator
	Engine    *merge.Engine
	History   *versions.History
	Blobs     blob.Store
	Locker    lock.Locker
	MaxChars  int
	Log       *logger.Logger

	now func() time.Time
}

func NewPipeline(text TextExtractor, extractor DocumentExtractor, engine *merge.Engine, history *versions.History, blobs blob.Store, locker lock.Locker, maxChars int, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Pipeline{
		Text:      text,
		Extractor: extractor,
		Validator: NewValidator(),
		Engine:    engine,
		History:   history,
		Blobs:     blobs,
		Locker:    locker,
		MaxChars:  maxChars,
		Log:       log.With("component", "pipeline"),
		now:       time.Now,
	}
}

// IngestBase extracts a base contract from an uploaded document and stores
// it as the next version of the contract named by the file's stem.
func (p *Pipeline) IngestBase(ctx context.Context, filename string, data []byte) (res *IngestResult, err error) {
	start := p.now()
	defer func() { p.observe(kindBase, start, err) }()

	contractID := ContractIDFromFilename(filename)
	if contractID == "" {
		return nil, apperr.Validation("filename", "file", "cannot derive a contract id from %q", filename)
	}
	p.Log.Info("Starting base ingestion", "contract_id", contractID, "file", filename, "bytes", len(data))

	docURI, err := p.keepDocument(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	raw, err := p.extract(ctx, filename, data, ai.ModeBase)
	if err != nil {
		return nil, err
	}
	today := models.DateOf(p.now())
	bc, err := DecodeBase(RepairBase(raw, today), contractID, baseName(filename))
	if err != nil {
		return nil, err
	}
	if err := p.Validator.ValidateBase(bc); err != nil {
		return nil, err
	}

	version, err := p.commit(ctx, contractID, func(context.Context) (models.BaseContract, error) {
		return bc, nil
	})
	if err != nil {
		return nil, err
	}

	outputs := Outputs{Document: docURI}
	outputs.Markdown = p.keepRender(ctx, blob.RenderKey(contractID, version), render.Markdown(bc))

	p.Log.Info("Base ingestion complete", "contract_id", contractID, "version", version, "clauses", len(bc.Clauses))
	return &IngestResult{ContractID: contractID, Version: version, Outputs: outputs, Duration: p.now().Sub(start)}, nil
}

// IngestAddendum extracts a change set from an uploaded addendum, merges it
// into the latest version of contractID and stores the result as a new
// version. Diagnostics lists every change that did not apply cleanly.
func (p *Pipeline) IngestAddendum(ctx context.Context, contractID, filename string, data []byte) (res *IngestResult, err error) {
	start := p.now()
	defer func() { p.observe(kindAddendum, start, err) }()

	if _, err := p.History.Store().Latest(ctx, contractID); err != nil {
		return nil, err
	}
	p.Log.Info("Starting addendum ingestion", "contract_id", contractID, "file", filename, "bytes", len(data))

	docURI, err := p.keepDocument(ctx, filename, data)
	if err != nil {
		return nil, err
	}
	raw, err := p.extract(ctx, filename, data, ai.ModeAddendum)
	if err != nil {
		return nil, err
	}
	cs, err := DecodeChangeSet(RepairAddendum(raw, filename, models.DateOf(p.now())))
	if err != nil {
		return nil, err
	}
	if err := p.Validator.ValidateChangeSet(cs); err != nil {
		return nil, err
	}

	var (
		previous *models.BaseContract
		result   merge.Result
	)
	version, err := p.commit(ctx, contractID, func(ctx context.Context) (models.BaseContract, error) {
		base, _, err := p.History.LatestSnapshot(ctx, contractID)
		if err != nil {
			return models.BaseContract{}, err
		}
		previous = base
		result = p.Engine.Apply(*base, cs)
		return result.Contract, nil
	})
	if err != nil {
		return nil, err
	}

	outputs := Outputs{Document: docURI}
	outputs.Markdown = p.keepRender(ctx, blob.RenderKey(contractID, version), render.Markdown(result.Contract))
	outputs.Redline = p.keepRender(ctx, blob.RedlineKey(contractID, version), render.Diff(previous, result.Contract).Markdown())

	diag := result.Diagnostics
	p.Log.Info("Addendum ingestion complete",
		"contract_id", contractID,
		"version", version,
		"changes", len(cs.Changes),
		"needs_review", diag.NeedsReview(),
	)
	return &IngestResult{ContractID: contractID, Version: version, Outputs: outputs, Diagnostics: &diag, Duration: p.now().Sub(start)}, nil
}

// commit builds the next snapshot and saves it while holding the contract's
// lock. Once the lock is held the caller's cancellation no longer applies so
// a merge is never abandoned half way.
func (p *Pipeline) commit(ctx context.Context, contractID string, build func(context.Context) (models.BaseContract, error)) (int, error) {
	unlock, err := p.Locker.Lock(ctx, contractID)
	if err != nil {
		return 0, fmt.Errorf("locking %s: %w", contractID, err)
	}
	defer unlock()

	ctx = context.WithoutCancel(ctx)
	snapshot, err := build(ctx)
	if err != nil {
		return 0, err
	}
	return p.History.Commit(ctx, snapshot)
}

func (p *Pipeline) extract(ctx context.Context, filename string, data []byte, mode ai.Mode) (map[string]any, error) {
	segments, err := p.Text.Extract(ctx, filename, data)
	if err != nil {
		return nil, fmt.Errorf("extracting text from %s: %w", filename, err)
	}
	chunks := Segment(segments, p.MaxChars)
	if len(chunks) == 0 {
		return nil, apperr.Validation("empty_document", "file", "no text found in %s", filename)
	}
	p.Log.Debug("Document segmented", "file", filename, "segments", len(segments), "chunks", len(chunks))

	raw, err := p.Extractor.Extract(ctx, chunks, mode, filename)
	if err != nil {
		return nil, fmt.Errorf("extracting %s fields from %s: %w", mode, filename, err)
	}
	return raw, nil
}

func (p *Pipeline) keepDocument(ctx context.Context, filename string, data []byte) (string, error) {
	key := blob.DocumentKey(uuid.NewString(), filename)
	if err := p.Blobs.Put(ctx, key, data, contentTypeFor(filename)); err != nil {
		return "", fmt.Errorf("storing %s: %w", filename, err)
	}
	return p.Blobs.URI(key), nil
}

// keepRender stores a rendered view. The version is already committed, so a
// failure here is logged and the output left empty.
func (p *Pipeline) keepRender(ctx context.Context, key, markdown string) string {
	if err := p.Blobs.Put(context.WithoutCancel(ctx), key, []byte(markdown), "text/markdown; charset=utf-8"); err != nil {
		p.Log.Warn("failed to store render", "key", key, "error", err)
		return ""
	}
	return p.Blobs.URI(key)
}

func (p *Pipeline) observe(kind string, start time.Time, err error) {
	metrics.IngestDuration.WithLabelValues(kind).Observe(p.now().Sub(start).Seconds())
	metrics.IngestTotal.WithLabelValues(kind, resultLabel(err)).Inc()
	if err != nil {
		p.Log.Warn("ingestion failed", "kind", kind, "error", err)
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrValidation):
		return "invalid"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrUpstream):
		return "upstream"
	default:
		return "error"
	}
}

// State returns the latest snapshot of a contract, or its view on asOf when
// asOf is set, together with the version it was read from.
func (p *Pipeline) State(ctx context.Context, contractID string, asOf *models.Date) (models.BaseContract, int, error) {
	snap, version, err := p.History.LatestSnapshot(ctx, contractID)
	if err != nil {
		return models.BaseContract{}, 0, err
	}
	if asOf != nil {
		return versions.StateAsOf(*snap, *asOf), version, nil
	}
	return *snap, version, nil
}

func (p *Pipeline) Versions(ctx context.Context, contractID string) ([]models.VersionInfo, error) {
	infos, err := p.History.List(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, apperr.NotFoundf("contract %s", contractID)
	}
	return infos, nil
}

func (p *Pipeline) LoadVersion(ctx context.Context, contractID string, version int) (*models.BaseContract, error) {
	return p.History.Load(ctx, contractID, version)
}

// Redline compares a version with the one before it. Version 1, or a version
// whose predecessor is gone, shows every clause as added.
func (p *Pipeline) Redline(ctx context.Context, contractID string, version int) (render.Redline, error) {
	latest, err := p.History.Load(ctx, contractID, version)
	if err != nil {
		return render.Redline{}, err
	}
	var old *models.BaseContract
	if version > 1 {
		old, err = p.History.Load(ctx, contractID, version-1)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return render.Redline{}, err
		}
	}
	return render.Diff(old, *latest), nil
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filename[strings.LastIndex(filename, ".")+1:]) {
	case "pdf":
		return "application/pdf"
	case "html", "htm":
		return "text/html"
	case "md", "txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
