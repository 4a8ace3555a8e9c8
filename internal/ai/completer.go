// Package ai extracts structured contract data from document chunks with an LLM.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/david/contract-ledger/internal/config"
)

// Request is one completion call. System may be empty.
type Request struct {
	System      string
	Prompt      string
	JSONMode    bool
	Temperature float32
	TopP        float32
}

// Completer is implemented by each LLM provider.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Service string
	Code    int
	Err     error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s returned status %d: %v", e.Service, e.Code, e.Err)
	}
	return fmt.Sprintf("%s returned status %d", e.Service, e.Code)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt could succeed.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500 || e.Code == 0
}

// NewCompleter picks the provider named in cfg.
func NewCompleter(cfg config.LLMConfig) (Completer, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Provider {
	case "", "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm provider openai needs an api key")
		}
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "ollama":
		return NewOllamaClient(cfg.BaseURL, cfg.Model, timeout), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
