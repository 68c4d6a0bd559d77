// Package insight calls the external text-analysis collaborator. The
// collaborator is best-effort: any failure degrades to a neutral result so a
// journal write never fails because analysis was down.
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"mindwell/internal/platform/metrics"
)

const defaultTimeout = 3 * time.Second

// Analysis is the collaborator's verdict on one piece of text. Unavailable
// marks the neutral fallback so callers can distinguish "neutral text" from
// "analysis skipped".
type Analysis struct {
	SentimentScore float64  `json:"sentimentScore"`
	Sentiment      string   `json:"sentiment"`
	Emotions       []string `json:"emotions"`
	KeyPhrases     []string `json:"keyPhrases"`
	Insights       []string `json:"insights"`
	Unavailable    bool     `json:"-"`
}

func neutral() *Analysis {
	return &Analysis{Sentiment: "neutral", Unavailable: true}
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a client for the given base URL. An empty URL produces a client
// that always falls back to neutral.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AnalyzeText returns the collaborator's analysis, or the neutral fallback
// on any transport error, timeout, or non-2xx response. The error return is
// always nil today; it stays in the signature so a caller that must know can
// be given a strict mode later.
func (c *Client) AnalyzeText(ctx context.Context, text string) (*Analysis, error) {
	if c.baseURL == "" {
		return c.fallback("insight service not configured", nil), nil
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return c.fallback("failed to encode request", err), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return c.fallback("failed to build request", err), nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fallback("insight request failed", err), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.fallback(fmt.Sprintf("insight returned status %d", resp.StatusCode), nil), nil
	}

	var analysis Analysis
	if err := json.NewDecoder(resp.Body).Decode(&analysis); err != nil {
		return c.fallback("failed to decode insight response", err), nil
	}
	return &analysis, nil
}

func (c *Client) fallback(reason string, err error) *Analysis {
	if c.metrics != nil {
		c.metrics.InsightFallbacks.Inc()
	}
	if err != nil {
		c.logger.Warn("insight fallback", "reason", reason, "error", err)
	} else {
		c.logger.Warn("insight fallback", "reason", reason)
	}
	return neutral()
}
