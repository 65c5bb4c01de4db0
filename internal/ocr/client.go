// Package ocr adapts an external text-recognition service into payment amount candidates.
package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/frahmantamala/order-assistant/internal/payment"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	Bounds     Bounds
	MaxRetries uint64
	Backoff    time.Duration
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	bounds     Bounds
	maxRetries uint64
	backoff    time.Duration
	logger     *slog.Logger
}

type textResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		bounds:     cfg.Bounds,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		logger:     logger,
	}
}

// Extract implements payment.AmountExtractor.
func (c *Client) Extract(ctx context.Context, proofReference string) ([]payment.Candidate, error) {
	text, err := c.fetchText(ctx, proofReference)
	if err != nil {
		return nil, err
	}

	candidates := ParseCandidates(text.Text, text.Confidence, c.bounds)
	c.logger.Debug("ocr candidates extracted",
		"proof_reference", proofReference,
		"candidates", len(candidates),
		"confidence", text.Confidence)
	return candidates, nil
}

func (c *Client) fetchText(ctx context.Context, proofReference string) (*textResponse, error) {
	endpoint := fmt.Sprintf("%s/v1/proofs/%s/text", c.baseURL, url.PathEscape(proofReference))
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.backoff))

	var out textResponse
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create ocr request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("ocr request failed: %w", err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= http.StatusInternalServerError, resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("ocr service unavailable, retrying", "status", resp.StatusCode, "proof_reference", proofReference)
			return retry.RetryableError(fmt.Errorf("ocr service returned status %d", resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("ocr service returned status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("failed to decode ocr response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
