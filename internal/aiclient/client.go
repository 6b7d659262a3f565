package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single classification call; the dominant latency in
// the whole pipeline is this remote call
const DefaultTimeout = 30 * time.Second

const (
	classifyTextPath    = "/api/classify"
	classifyReceiptPath = "/api/classify-receipt"
)

// Config holds classification service settings
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the external AI/OCR classification service
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new classification client
func NewClient(config *Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    config.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ClassifyText sends a free-text chat message for classification
func (c *Client) ClassifyText(ctx context.Context, text, userID string) (*Outcome, error) {
	return c.classify(ctx, classifyTextPath, map[string]string{
		"text":    text,
		"user_id": userID,
	})
}

// ClassifyReceipt sends a receipt image reference for OCR classification.
// The response contract is identical to ClassifyText.
func (c *Client) ClassifyReceipt(ctx context.Context, imageURL, userID string) (*Outcome, error) {
	return c.classify(ctx, classifyReceiptPath, map[string]string{
		"image_url": imageURL,
		"user_id":   userID,
	})
}

func (c *Client) classify(ctx context.Context, path string, payload map[string]string) (*Outcome, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Classification call failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Classification call returned error status",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: status %d: %s", ErrServiceUnavailable, resp.StatusCode, truncate(respBody, 256))
	}

	outcome, err := decodeOutcome(respBody)
	if err != nil {
		c.logger.Error("Classification response failed validation",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.logger.Debug("Classification call succeeded",
		slog.String("path", path),
		slog.String("kind", string(outcome.Kind)),
		slog.Duration("latency", time.Since(start)),
	)

	return outcome, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
