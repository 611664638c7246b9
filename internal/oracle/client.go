// Package oracle is the rate-limited Gemini client used by both
// classification tiers.
//
// DESIGN: One process-global Limiter is shared across every classifier so
// concurrent workers cannot exceed the per-minute quota. Failures are
// classified into a small taxonomy (errors.go) that callers use to decide
// between retrying, falling back to heuristics, and rejecting input.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	// DefaultModel is the generation model both classifiers call.
	DefaultModel = "gemini-2.5-flash"

	// DefaultEndpoint is the generateContent REST endpoint template.
	DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

	// apiKeyPrefix is the expected Gemini API key prefix.
	apiKeyPrefix = "AIzaSy"

	// maxPromptRunes caps prompt size in code points.
	maxPromptRunes = 10000

	// maxResponseSize prevents OOM on unexpectedly large API responses (10MB).
	maxResponseSize = 10 * 1024 * 1024

	// maxErrorBodyLen limits error body in error messages to avoid log bloat.
	maxErrorBodyLen = 500

	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 3
)

// bannedPatterns are substrings rejected by the input guard, matched
// case-insensitively.
var bannedPatterns = []string{
	"<script>", "</script>",
	"DROP TABLE", "DELETE FROM",
	"'; --", "' OR '1'='1",
	"UNION SELECT", "INSERT INTO",
}

// Config for the oracle client.
type Config struct {
	APIKey     string
	Model      string        // default DefaultModel
	Endpoint   string        // default DefaultEndpoint (expects %s for model)
	Timeout    time.Duration // per-request timeout, default 60s
	MaxRetries int           // default 3

	// Trusted disables the input guard for prompts assembled entirely
	// from templated internal data.
	Trusted bool

	// HTTPClient overrides the default client (tests, pooling).
	HTTPClient *http.Client
}

// Client calls the Gemini generateContent API.
type Client struct {
	cfg     Config
	url     string
	http    *http.Client
	limiter *Limiter
	log     zerolog.Logger

	// Injected for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient validates the API key and builds a client sharing the given
// limiter. The key must be non-empty and carry the expected prefix; this
// fails at construction so a bad deployment dies before the first call.
func NewClient(cfg Config, limiter *Limiter, log zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, newError(KindBadRequest, "GEMINI_API_KEY not set", nil)
	}
	if !strings.HasPrefix(cfg.APIKey, apiKeyPrefix) {
		return nil, newError(KindBadRequest, fmt.Sprintf("invalid GEMINI_API_KEY format: key should start with %q", apiKeyPrefix), nil)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{} // timeout via context, not client
	}

	url := cfg.Endpoint
	if strings.Contains(url, "%s") {
		url = fmt.Sprintf(url, cfg.Model)
	}

	return &Client{
		cfg:     cfg,
		url:     url,
		http:    httpClient,
		limiter: limiter,
		log:     log,
		sleep:   sleepCtx,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// guard rejects oversized prompts and known injection substrings.
func guard(prompt string) error {
	if n := utf8.RuneCountInString(prompt); n > maxPromptRunes {
		return newError(KindBadRequest, fmt.Sprintf("prompt too long: %d code points (max %d)", n, maxPromptRunes), nil)
	}
	lower := strings.ToLower(prompt)
	for _, pattern := range bannedPatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return newError(KindBadRequest, fmt.Sprintf("suspicious content detected: %q found in prompt", pattern), nil)
		}
	}
	return nil
}

// Generate sends a prompt and returns the response text. Transport and
// throttling failures are retried with exponential backoff (1s, 2s, 4s);
// every attempt consumes a rate-limit slot. Guard violations and HTTP 400
// fail immediately without a retry.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.cfg.Trusted {
		if err := guard(prompt); err != nil {
			return "", err
		}
	}

	var lastErr error
	throttled := false

	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			c.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("retrying oracle call")
			if err := c.sleep(ctx, backoff); err != nil {
				return "", newError(KindTransport, "cancelled while backing off", err)
			}
		}

		if err := c.limiter.Acquire(ctx); err != nil {
			return "", newError(KindTransport, "cancelled while rate limited", err)
		}

		text, retryable, wasThrottle, err := c.doRequest(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
		throttled = throttled || wasThrottle
	}

	if throttled {
		return "", newError(KindRateExhausted, fmt.Sprintf("still throttled after %d attempts", c.cfg.MaxRetries), lastErr)
	}
	return "", newError(KindTransport, fmt.Sprintf("request failed after %d attempts", c.cfg.MaxRetries), lastErr)
}

// doRequest performs one HTTP attempt. Returns the extracted text, whether
// the failure is retryable, and whether it was a throttle response.
func (c *Client) doRequest(ctx context.Context, prompt string) (text string, retryable, throttle bool, err error) {
	body, err := json.Marshal(&GeminiRequest{
		Contents: []GeminiContent{
			{Role: "user", Parts: []GeminiPart{{Text: prompt}}},
		},
		GenerationConfig: &GeminiGenerationConfig{Temperature: 0.0},
	})
	if err != nil {
		return "", false, false, newError(KindBadRequest, "failed to marshal request", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", false, false, newError(KindBadRequest, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", true, false, newError(KindTransport, "request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", true, false, newError(KindTransport, "failed to read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to parsing.
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, true, newError(KindRateExhausted, "throttled by API", fmt.Errorf("status 429: %s", truncateBody(respBody)))
	case resp.StatusCode >= 500:
		return "", true, false, newError(KindTransport, fmt.Sprintf("server error %d", resp.StatusCode), fmt.Errorf("%s", truncateBody(respBody)))
	case resp.StatusCode == http.StatusBadRequest:
		return "", false, false, newError(KindBadRequest, "API rejected request", fmt.Errorf("status 400: %s", truncateBody(respBody)))
	default:
		return "", false, false, newError(KindTransport, fmt.Sprintf("unexpected status %d", resp.StatusCode), fmt.Errorf("%s", truncateBody(respBody)))
	}

	var parsed GeminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", false, false, newError(KindMalformedResponse, "failed to parse response", err)
	}
	out, err := extractText(&parsed)
	if err != nil {
		return "", false, false, newError(KindMalformedResponse, "empty response", err)
	}
	return out, false, false, nil
}

func truncateBody(body []byte) string {
	s := string(body)
	if len(s) > maxErrorBodyLen {
		s = s[:maxErrorBodyLen] + "... (truncated)"
	}
	return s
}

// GenerateJSON sends a prompt expecting a JSON object back. Markdown code
// fences around the payload are stripped before validation; anything that
// still is not valid JSON is a malformed-response failure.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	text, err := c.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	stripped := StripCodeFences(text)
	if !gjson.Valid(stripped) {
		return "", newError(KindMalformedResponse, "response is not valid JSON", fmt.Errorf("payload: %s", truncateBody([]byte(stripped))))
	}
	return stripped, nil
}

// StripCodeFences extracts the payload from ```json ... ``` or ``` ... ```
// fences. Input without fences passes through trimmed.
func StripCodeFences(text string) string {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(text)
}
