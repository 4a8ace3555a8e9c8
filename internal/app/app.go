// Package app assembles the pipeline and its collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/contract-ledger/internal/ai"
	"github.com/david/contract-ledger/internal/auth"
	"github.com/david/contract-ledger/internal/blob"
	"github.com/david/contract-ledger/internal/config"
	"github.com/david/contract-ledger/internal/db"
	"github.com/david/contract-ledger/internal/ingest"
	"github.com/david/contract-ledger/internal/localstore"
	"github.com/david/contract-ledger/internal/lock"
	"github.com/david/contract-ledger/internal/logger"
	"github.com/david/contract-ledger/internal/merge"
	"github.com/david/contract-ledger/internal/versions"
)

type App struct {
	Config    *config.Config
	Pipeline  *ingest.Pipeline
	Operators auth.OperatorStore
	Log       *logger.Logger

	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// OpenStores connects the version and operator stores selected by
// cfg.Database. Postgres migrations are applied on connect.
func OpenStores(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (versions.Store, auth.OperatorStore, io.Closer, error) {
	switch cfg.Backend {
	case "postgres":
		pool, err := db.Connect(ctx, cfg.URL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.ApplyMigrations(ctx, pool, log); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return db.NewVersionStore(pool), db.NewOperatorStore(pool), poolCloser(pool), nil
	case "badger":
		store, err := localstore.Open(cfg.BadgerPath, log)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, auth.NewMemoryOperators(), store, nil
	case "", "memory":
		return versions.NewMemoryStore(), auth.NewMemoryOperators(), closerFunc(func() error { return nil }), nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
}

func poolCloser(pool *pgxpool.Pool) io.Closer {
	return closerFunc(func() error {
		pool.Close()
		return nil
	})
}

// TextExtractor returns the Docling client, backed by local PDF extraction
// when enabled. Without a Docling URL only local extraction is available.
func TextExtractor(cfg config.DoclingConfig, log *logger.Logger) ingest.TextExtractor {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.URL == "" {
		log.Warn("Docling URL not set; using local PDF text extraction only")
		return ingest.PDFExtractor{}
	}
	docling := ingest.NewDoclingClient(cfg, log)
	if !cfg.LocalFallback {
		return docling
	}
	return ingest.FallbackExtractor{Primary: docling, Fallback: ingest.PDFExtractor{}, Log: log}
}

// New wires every component. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{Config: cfg, Log: log}

	store, operators, storeCloser, err := OpenStores(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, storeCloser)
	a.Operators = operators

	blobs, err := blob.New(ctx, cfg.Storage, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening blob storage: %w", err)
	}
	if c, ok := blobs.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	locker, err := lock.New(ctx, cfg.Lock, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening lock backend: %w", err)
	}
	if c, ok := locker.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	llm, err := ai.NewCompleter(cfg.LLM)
	if err != nil {
		a.Close()
		return nil, err
	}
	extractor := ai.NewExtractor(llm, cfg.LLM, blobs, log)

	engine := merge.NewEngine(cfg.Merge, log)
	history := versions.NewHistory(store, log)
	a.Pipeline = ingest.NewPipeline(TextExtractor(cfg.Docling, log), extractor, engine, history, blobs, locker, cfg.Segment.MaxChars, log)

	log.Info("Components ready",
		"database", cfg.Database.Backend,
		"storage", cfg.Storage.Backend,
		"lock", cfg.Lock.Backend,
		"llm", llm.Name(),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
