package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/config"
	"github.com/david/contract-ledger/internal/logger"
	"github.com/david/contract-ledger/internal/metrics"
	"github.com/david/contract-ledger/internal/models"
)

type Mode string

const (
	ModeBase     Mode = "base"
	ModeAddendum Mode = "addendum"
)

// RawSink keeps raw model output for later inspection.
type RawSink interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Extractor turns document chunks into the JSON shape of a contract or a
// change set. The result is unrepaired model output.
type Extractor struct {
	llm         Completer
	limiter     *rate.Limiter
	maxAttempts uint
	temperature float32
	topP        float32
	sink        RawSink
	log         *logger.Logger

	newBackOff func() backoff.BackOff
	now        func() time.Time
}

func NewExtractor(llm Completer, cfg config.LLMConfig, sink RawSink, log *logger.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	limit := rate.Inf
	if cfg.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.RateLimitRPS)
	}
	attempts := uint(1)
	if cfg.MaxRetries > 1 {
		attempts = uint(cfg.MaxRetries)
	}
	return &Extractor{
		llm:         llm,
		limiter:     rate.NewLimiter(limit, 1),
		maxAttempts: attempts,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		sink:        sink,
		log:         log.With("component", "extractor", "provider", llm.Name()),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 8 * time.Second
			return b
		},
		now: time.Now,
	}
}

// Extract asks the model for a base contract or a change set built from chunks.
// Failures after all attempts are returned as *apperr.UpstreamError.
func (x *Extractor) Extract(ctx context.Context, chunks []models.Chunk, mode Mode, source string) (map[string]any, error) {
	req := Request{
		System:      systemPrompt,
		Prompt:      buildUserPrompt(chunks, mode),
		Temperature: x.temperature,
		TopP:        x.topP,
	}
	x.log.Info("LLM request", "mode", mode, "chunks", len(chunks), "source", source)

	attempts := 0
	doc, err := backoff.Retry(ctx, func() (map[string]any, error) {
		attempts++
		if err := x.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}
		doc, err := x.attempt(ctx, req, mode, source)
		if err != nil {
			metrics.UpstreamAttempts.WithLabelValues(x.llm.Name(), "error").Inc()
			var se *StatusError
			if errors.As(err, &se) && !se.Retryable() {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		metrics.UpstreamAttempts.WithLabelValues(x.llm.Name(), "ok").Inc()
		return doc, nil
	},
		backoff.WithBackOff(x.newBackOff()),
		backoff.WithMaxTries(x.maxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			x.log.Warn("LLM attempt failed, retrying", "error", err, "wait", wait)
		}),
	)
	if err != nil {
		return nil, &apperr.UpstreamError{Service: x.llm.Name(), Attempts: attempts, Err: err}
	}
	return doc, nil
}

// attempt tries JSON mode first and falls back to plain text with salvage.
func (x *Extractor) attempt(ctx context.Context, req Request, mode Mode, source string) (map[string]any, error) {
	req.JSONMode = true
	resp, err := x.llm.Complete(ctx, req)
	if err == nil {
		x.keepRaw(ctx, resp, mode, source)
		doc, parseErr := parseLLMResponse(resp)
		if parseErr == nil {
			return doc, nil
		}
		x.log.Warn("JSON mode output did not parse, retrying in text mode", "error", parseErr)
	} else {
		x.log.Warn("JSON mode generation failed, retrying in text mode", "error", err)
	}

	req.JSONMode = false
	resp, err = x.llm.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	x.keepRaw(ctx, resp, mode, source)
	doc, err := parseLLMResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse LLM JSON after text mode: %w (response: %.200s)", err, resp)
	}
	return doc, nil
}

func (x *Extractor) keepRaw(ctx context.Context, content string, mode Mode, source string) {
	if x.sink == nil {
		return
	}
	name := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	key := fmt.Sprintf("llm/%s_%s_%d.json", name, mode, x.now().UnixNano())
	if err := x.sink.Put(ctx, key, []byte(content), "application/json"); err != nil {
		x.log.Warn("failed to save raw LLM output", "key", key, "error", err)
	}
}

func parseLLMResponse(resp string) (map[string]any, error) {
	// Clean markdown code blocks
	cleaned := strings.TrimSpace(resp)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	// Extract first valid JSON object {...}
	if jsonStr, ok := extractFirstJSONObject(cleaned); ok {
		cleaned = jsonStr
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("LLM returned null")
	}
	return doc, nil
}

// extractFirstJSONObject finds the first outermost balanced {...}
func extractFirstJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}
		if char == '\\' && inString {
			escaped = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch char {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
