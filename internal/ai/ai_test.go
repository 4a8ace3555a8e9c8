package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/config"
	"github.com/david/contract-ledger/internal/models"
)

func TestExtractFirstJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"leading prose", `Here you go: {"a":{"b":2}} thanks`, `{"a":{"b":2}}`, true},
		{"brace in string", `{"t":"a } b","n":1}`, `{"t":"a } b","n":1}`, true},
		{"escaped quote", `{"t":"say \"}\" now"}`, `{"t":"say \"}\" now"}`, true},
		{"unbalanced", `{"a":1`, "", false},
		{"none", `no json`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractFirstJSONObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLLMResponse_StripsFences(t *testing.T) {
	doc, err := parseLLMResponse("```json\n{\"changes\": []}\n```")
	require.NoError(t, err)
	assert.Contains(t, doc, "changes")

	_, err = parseLLMResponse("I could not find anything.")
	assert.Error(t, err)
}

func TestCanonicalTypes(t *testing.T) {
	ct, ok := CanonicalClauseType("pricing")
	assert.True(t, ok)
	assert.Equal(t, models.ClausePricing, ct)

	ct, ok = CanonicalClauseType("No-Show")
	assert.True(t, ok)
	assert.Equal(t, models.ClauseNoShow, ct)

	_, ok = CanonicalClauseType("Breakfast")
	assert.False(t, ok)

	ch, ok := CanonicalChangeType("rate_adjustment")
	assert.True(t, ok)
	assert.Equal(t, models.ChangeRateAdjustment, ch)
}

func TestOllamaClient_Complete(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(generateResponse{Response: `{"ok":true}`, Done: true})
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3", time.Second)
	out, err := c.Complete(context.Background(), Request{System: "sys", Prompt: "hi", JSONMode: true, Temperature: 0.1})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, "json", got.Format)
	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, "sys", got.System)
	assert.False(t, got.Stream)
}

func TestOllamaClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllamaClient(srv.URL, "", time.Second).Complete(context.Background(), Request{Prompt: "x"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.True(t, se.Retryable())
}

func TestOpenAIClient_Complete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"meta\":{}}"}}]
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL+"/v1", "")
	out, err := c.Complete(context.Background(), Request{System: "sys", Prompt: "user", JSONMode: true, Temperature: 0.1, TopP: 0.1})
	require.NoError(t, err)
	assert.Equal(t, `{"meta":{}}`, out)
	assert.Equal(t, DefaultOpenAIModel, body["model"])
	format, _ := body["response_format"].(map[string]any)
	assert.Equal(t, "json_object", format["type"])
	msgs, _ := body["messages"].([]any)
	assert.Len(t, msgs, 2)
}

type scriptedCompleter struct {
	mu      sync.Mutex
	replies []func(Request) (string, error)
	calls   []Request
}

func (s *scriptedCompleter) Name() string { return "scripted" }

func (s *scriptedCompleter) Complete(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if len(s.replies) == 0 {
		return "", errors.New("no more replies")
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	return next(req)
}

func reply(s string) func(Request) (string, error) {
	return func(Request) (string, error) { return s, nil }
}

func fail(err error) func(Request) (string, error) {
	return func(Request) (string, error) { return "", err }
}

type memorySink struct {
	mu   sync.Mutex
	keys []string
}

func (m *memorySink) Put(_ context.Context, key string, _ []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	return nil
}

func testExtractor(llm Completer, sink RawSink) *Extractor {
	x := NewExtractor(llm, config.LLMConfig{MaxRetries: 2, Temperature: 0.1, TopP: 0.1}, sink, nil)
	x.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return x
}

func TestExtractor_JSONModeFirst(t *testing.T) {
	llm := &scriptedCompleter{replies: []func(Request) (string, error){reply(`{"changes":[{"id":"a"}]}`)}}
	sink := &memorySink{}
	x := testExtractor(llm, sink)

	chunks := []models.Chunk{{Label: "Pricing", Markdown: "# Bảng giá\n| Deluxe | 1.000.000 |"}}
	doc, err := x.Extract(context.Background(), chunks, ModeAddendum, "docs/abc_addendum-1.pdf")
	require.NoError(t, err)
	assert.Len(t, doc["changes"], 1)

	require.Len(t, llm.calls, 1)
	assert.True(t, llm.calls[0].JSONMode)
	assert.Contains(t, llm.calls[0].Prompt, "Mode: ADDENDUM")
	assert.Contains(t, llm.calls[0].Prompt, "[Chunk Pricing]")
	require.Len(t, sink.keys, 1)
	assert.True(t, strings.HasPrefix(sink.keys[0], "llm/abc_addendum-1_addendum_"), sink.keys[0])
}

func TestExtractor_FallsBackToTextMode(t *testing.T) {
	llm := &scriptedCompleter{replies: []func(Request) (string, error){
		reply("not json at all"),
		reply("Sure! ```json\n{\"meta\": {\"hotel\": \"A\"}, \"clauses\": []}\n```"),
	}}
	doc, err := testExtractor(llm, nil).Extract(context.Background(), nil, ModeBase, "base.pdf")
	require.NoError(t, err)
	assert.Contains(t, doc, "clauses")
	require.Len(t, llm.calls, 2)
	assert.False(t, llm.calls[1].JSONMode)
}

func TestExtractor_RetriesThenGivesUp(t *testing.T) {
	boom := &StatusError{Service: "scripted", Code: http.StatusBadGateway}
	llm := &scriptedCompleter{replies: []func(Request) (string, error){fail(boom), fail(boom), fail(boom), fail(boom)}}
	_, err := testExtractor(llm, nil).Extract(context.Background(), nil, ModeBase, "base.pdf")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUpstream)
	var ue *apperr.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, 2, ue.Attempts)
	assert.Len(t, llm.calls, 4)
}

func TestExtractor_DoesNotRetryClientErrors(t *testing.T) {
	denied := &StatusError{Service: "scripted", Code: http.StatusUnauthorized}
	llm := &scriptedCompleter{replies: []func(Request) (string, error){fail(denied), fail(denied), reply(`{}`)}}
	_, err := testExtractor(llm, nil).Extract(context.Background(), nil, ModeBase, "base.pdf")

	require.ErrorIs(t, err, apperr.ErrUpstream)
	assert.Len(t, llm.calls, 2)
}
