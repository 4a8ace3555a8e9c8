package ingest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/config"
	"github.com/david/contract-ledger/internal/models"
)

func newTestDocling(url string, tries int) *DoclingClient {
	d := NewDoclingClient(config.DoclingConfig{URL: url, TimeoutSeconds: 5, MaxRetries: tries}, nil)
	d.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return d
}

func TestDoclingClient_SendsFormAndParsesText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, `["pdf"]`, r.FormValue("from_formats"))
		assert.Equal(t, `["text"]`, r.FormValue("to_formats"))
		assert.Equal(t, "placeholder", r.FormValue("image_export_mode"))
		assert.Equal(t, "true", r.FormValue("do_ocr"))
		assert.Equal(t, "false", r.FormValue("force_ocr"))
		assert.Equal(t, `["en"]`, r.FormValue("ocr_lang"))
		assert.Equal(t, "dlparse_v2", r.FormValue("pdf_backend"))

		f, hdr, err := r.FormFile("files")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "contract.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-fake", string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "# Pricing\nDeluxe 1.200.000"}`))
	}))
	defer srv.Close()

	segs, err := newTestDocling(srv.URL, 1).Extract(context.Background(), "/tmp/up/contract.pdf", []byte("%PDF-fake"))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "# Pricing\nDeluxe 1.200.000", segs[0].RawMarkdown)
	assert.Equal(t, []int{}, segs[0].PageRange)
}

func TestDoclingClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"content": ["line one", "line two"]}`))
	}))
	defer srv.Close()

	segs, err := newTestDocling(srv.URL, 3).Extract(context.Background(), "a.pdf", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "line one\nline two", segs[0].RawMarkdown)
}

func TestDoclingClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad file", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestDocling(srv.URL, 3).Extract(context.Background(), "a.pdf", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrUpstream))

	var ue *apperr.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "docling", ue.Service)
	assert.Equal(t, 1, ue.Attempts)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoclingText(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{"text key", "application/json", `{"text": "hello"}`, "hello"},
		{"empty text falls to content", "application/json", `{"text": "", "content": "from content"}`, "from content"},
		{"result list", "application/json", `{"result": ["a", 1, true]}`, "a\n1\ntrue"},
		{"object value keeps raw json", "application/json", `{"text": {"pages": 2}}`, `{"text": {"pages": 2}}`},
		{"document shape", "application/json", `{"document": {"md_content": "# Title"}, "status": "success"}`, "# Title"},
		{"top-level list", "application/json", `["x", "y"]`, `["x", "y"]`},
		{"plain text", "text/plain", "just text", "just text"},
		{"html", "text/html", "<html><body><h1>Rates</h1><p>Deluxe</p></body></html>", "# Rates\nDeluxe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, doclingText(tt.contentType, []byte(tt.body)))
		})
	}
}

func TestFallbackExtractor(t *testing.T) {
	failing := extractorFunc(func(context.Context, string, []byte) ([]models.TextSegment, error) {
		return nil, &apperr.UpstreamError{Service: "docling", Attempts: 1, Err: errors.New("down")}
	})
	working := extractorFunc(func(context.Context, string, []byte) ([]models.TextSegment, error) {
		return []models.TextSegment{{RawMarkdown: "local"}}, nil
	})

	segs, err := FallbackExtractor{Primary: failing, Fallback: working}.Extract(context.Background(), "a.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, "local", segs[0].RawMarkdown)

	_, err = FallbackExtractor{Primary: failing, Fallback: failing}.Extract(context.Background(), "a.pdf", nil)
	assert.True(t, errors.Is(err, apperr.ErrUpstream))

	_, err = FallbackExtractor{Primary: failing}.Extract(context.Background(), "a.pdf", nil)
	assert.Error(t, err)
}

func TestPDFExtractor_RejectsGarbage(t *testing.T) {
	_, err := PDFExtractor{}.Extract(context.Background(), "broken.pdf", []byte("not a pdf"))
	assert.Error(t, err)
}

type extractorFunc func(ctx context.Context, filename string, data []byte) ([]models.TextSegment, error)

func (f extractorFunc) Extract(ctx context.Context, filename string, data []byte) ([]models.TextSegment, error) {
	return f(ctx, filename, data)
}
