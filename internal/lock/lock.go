// Package lock serialises ingest commits per contract.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/david/contract-ledger/internal/config"
	"github.com/david/contract-ledger/internal/logger"
)

// Locker hands out an exclusive hold on one key. Lock blocks until the key
// is free or ctx is done; the returned func releases the hold.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func New(ctx context.Context, cfg config.LockConfig, log *logger.Logger) (Locker, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocal(), nil
	case "redis":
		return NewRedis(ctx, cfg.RedisAddr, time.Duration(cfg.TTLSeconds)*time.Second, log)
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}
