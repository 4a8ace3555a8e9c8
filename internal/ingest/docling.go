package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/config"
	"github.com/david/contract-ledger/internal/logger"
	"github.com/david/contract-ledger/internal/metrics"
	"github.com/david/contract-ledger/internal/models"
)

const doclingService = "docling"

// doclingParams are sent as form fields next to the file. Lists and booleans
// are JSON encoded.
var doclingParams = []struct {
	name  string
	value any
}{
	{"from_formats", []string{"pdf"}},
	{"to_formats", []string{"text"}},
	{"image_export_mode", "placeholder"},
	{"do_ocr", true},
	{"force_ocr", false},
	{"ocr_engine", "easyocr"},
	{"ocr_lang", []string{"en"}},
	{"pdf_backend", "dlparse_v2"},
	{"table_mode", "accurate"},
	{"abort_on_error", false},
	{"include_images", false},
}

// DoclingClient converts documents through a Docling conversion endpoint.
// The whole document comes back as a single segment.
type DoclingClient struct {
	url      string
	client   *http.Client
	maxTries uint
	log      *logger.Logger

	newBackOff func() backoff.BackOff
}

func NewDoclingClient(cfg config.DoclingConfig, log *logger.Logger) *DoclingClient {
	if log == nil {
		log = logger.Nop()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	tries := uint(1)
	if cfg.MaxRetries > 1 {
		tries = uint(cfg.MaxRetries)
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &DoclingClient{
		url:      cfg.URL,
		client:   &http.Client{Timeout: timeout, Transport: transport},
		maxTries: tries,
		log:      log.With("component", doclingService),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 2 * time.Second
			b.MaxInterval = 15 * time.Second
			return b
		},
	}
}

func (d *DoclingClient) Extract(ctx context.Context, filename string, data []byte) ([]models.TextSegment, error) {
	attempts := 0
	text, err := backoff.Retry(ctx, func() (string, error) {
		attempts++
		text, err := d.convert(ctx, filename, data)
		if err != nil {
			metrics.UpstreamAttempts.WithLabelValues(doclingService, "error").Inc()
			return "", err
		}
		metrics.UpstreamAttempts.WithLabelValues(doclingService, "ok").Inc()
		return text, nil
	},
		backoff.WithBackOff(d.newBackOff()),
		backoff.WithMaxTries(d.maxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			d.log.Warn("docling attempt failed, retrying", "file", filename, "error", err, "wait", wait)
		}),
	)
	if err != nil {
		return nil, &apperr.UpstreamError{Service: doclingService, Attempts: attempts, Err: err}
	}
	d.log.Info("document converted", "file", filename, "chars", len(text), "attempts", attempts)
	return []models.TextSegment{{
		PageRange:   []int{},
		RawMarkdown: text,
		TableBlocks: []string{},
	}}, nil
}

func (d *DoclingClient) convert(ctx context.Context, filename string, data []byte) (string, error) {
	body, contentType, err := doclingForm(filename, data)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, body)
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("docling status %d: %s", resp.StatusCode, TruncateText(string(raw), 200))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", backoff.Permanent(err)
		}
		return "", err
	}
	return doclingText(resp.Header.Get("Content-Type"), raw), nil
}

func doclingForm(filename string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range doclingParams {
		value, ok := p.value.(string)
		if !ok {
			encoded, err := json.Marshal(p.value)
			if err != nil {
				return nil, "", err
			}
			value = string(encoded)
		}
		if err := w.WriteField(p.name, value); err != nil {
			return nil, "", err
		}
	}
	part, err := w.CreateFormFile("files", filepath.Base(filename))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// doclingText pulls the document text out of a conversion response. The
// first non-empty of "text", "content" and "result" wins, then the
// document.text_content / document.md_content shape of newer servers. Any
// other JSON is kept verbatim and non-JSON bodies are used as they are.
func doclingText(contentType string, body []byte) string {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		if looksLikeHTML(contentType, body) {
			return HTMLToText(string(body))
		}
		return string(body)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return strings.TrimSpace(string(body))
	}
	for _, key := range []string{"text", "content", "result"} {
		v := obj[key]
		if !present(v) {
			continue
		}
		switch t := v.(type) {
		case string:
			return t
		case []any:
			lines := make([]string, 0, len(t))
			for _, item := range t {
				lines = append(lines, fmt.Sprint(item))
			}
			return strings.Join(lines, "\n")
		default:
			return strings.TrimSpace(string(body))
		}
	}
	if doc, ok := obj["document"].(map[string]any); ok {
		for _, key := range []string{"text_content", "md_content"} {
			if s, ok := doc[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(string(body))
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	case bool:
		return t
	case float64:
		return t != 0
	}
	return true
}
