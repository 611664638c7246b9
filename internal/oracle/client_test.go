package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "AIzaSyTESTKEY000000000000000000000000000"

// newTestClient points a client at an httptest server with backoff sleeps
// replaced by no-ops so retry tests run instantly.
func newTestClient(t *testing.T, cfg Config, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	if cfg.APIKey == "" {
		cfg.APIKey = testAPIKey
	}
	cfg.Endpoint = srv.URL
	cfg.HTTPClient = srv.Client()

	c, err := NewClient(cfg, NewLimiter(1000), zerolog.Nop())
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func geminiBody(t *testing.T, text string) []byte {
	t.Helper()
	var resp GeminiResponse
	resp.Candidates = []struct {
		Content      GeminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	}{
		{Content: GeminiContent{Role: "model", Parts: []GeminiPart{{Text: text}}}},
	}
	body, err := json.Marshal(&resp)
	require.NoError(t, err)
	return body
}

func TestNewClientValidatesKey(t *testing.T) {
	_, err := NewClient(Config{}, NewLimiter(1), zerolog.Nop())
	assert.True(t, IsKind(err, KindBadRequest))

	_, err = NewClient(Config{APIKey: "sk-wrong-ecosystem"}, NewLimiter(1), zerolog.Nop())
	assert.True(t, IsKind(err, KindBadRequest))
}

func TestGenerateHappyPath(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, testAPIKey, r.Header.Get("x-goog-api-key"))
		w.Write(geminiBody(t, "hello"))
	})

	text, err := c.Generate(context.Background(), "classify this")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGuardRejectsOversizedPrompt(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.Generate(context.Background(), strings.Repeat("a", maxPromptRunes+1))
	assert.True(t, IsKind(err, KindBadRequest))
	assert.Equal(t, int32(0), calls.Load(), "guard failures must not reach the API")
}

func TestGuardRejectsInjectionPatterns(t *testing.T) {
	c := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		t.Error("guard failures must not reach the API")
	})

	for _, prompt := range []string{
		"please drop table users",
		"<script>alert(1)</script>",
		"x' OR '1'='1",
	} {
		_, err := c.Generate(context.Background(), prompt)
		assert.True(t, IsKind(err, KindBadRequest), "prompt %q", prompt)
	}
}

func TestTrustedBypassesGuard(t *testing.T) {
	c := newTestClient(t, Config{Trusted: true}, func(w http.ResponseWriter, r *http.Request) {
		w.Write(geminiBody(t, "ok"))
	})

	text, err := c.Generate(context.Background(), "summary mentions DROP TABLE in an article")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestGenerateRetriesThrottleThenExhausts(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Generate(context.Background(), "classify this")
	assert.True(t, IsKind(err, KindRateExhausted))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateRetriesServerErrorThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write(geminiBody(t, "recovered"))
	})

	text, err := c.Generate(context.Background(), "classify this")
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateBadRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.Generate(context.Background(), "classify this")
	assert.True(t, IsKind(err, KindBadRequest))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateJSON(t *testing.T) {
	c := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		w.Write(geminiBody(t, "```json\n{\"is_relevant\": true}\n```"))
	})

	out, err := c.GenerateJSON(context.Background(), "classify this")
	require.NoError(t, err)
	assert.Equal(t, `{"is_relevant": true}`, out)
}

func TestGenerateJSONRejectsNonJSON(t *testing.T) {
	c := newTestClient(t, Config{}, func(w http.ResponseWriter, r *http.Request) {
		w.Write(geminiBody(t, "I cannot answer in JSON, sorry."))
	})

	_, err := c.GenerateJSON(context.Background(), "classify this")
	assert.True(t, IsKind(err, KindMalformedResponse))
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no fences", `  {"a": 1}  `, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around fence", "Here you go:\n```json\n{\"a\": 1}\n```\nDone.", `{"a": 1}`},
		{"unterminated fence", "```json\n{\"a\": 1}", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripCodeFences(tt.input))
		})
	}
}
