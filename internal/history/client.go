// Package history fetches a channel's message backlog from the REST
// backend. One fetch seeds each timeline before live events are trusted.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/lalith-99/areachat/internal/models"
)

// ErrFetchFailed wraps any transport or non-2xx failure. Callers recover
// by treating history as empty; a missing backlog never blocks the
// channel.
var ErrFetchFailed = errors.New("history: fetch failed")

// Client calls the backend's chat history endpoints with a bearer token.
type Client struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient swaps the underlying *http.Client (tests, custom
// transports).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient builds a history client for the backend at baseURL
// (e.g. "http://localhost:8081").
func NewClient(baseURL string, logger *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		base:   baseURL,
		http:   &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Global fetches the company-wide channel backlog, chronological
// ascending.
func (c *Client) Global(ctx context.Context, token string) ([]models.Message, error) {
	return c.fetch(ctx, token, c.base+"/api/chat/grupal")
}

// Private fetches the one-to-one backlog with otherID, chronological
// ascending.
func (c *Client) Private(ctx context.Context, token string, otherID models.ID) ([]models.Message, error) {
	return c.fetch(ctx, token, c.base+"/api/chat/privado/"+url.PathEscape(string(otherID)))
}

func (c *Client) fetch(ctx context.Context, token, endpoint string) ([]models.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("history request failed", zap.String("url", endpoint), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		c.logger.Warn("history request rejected",
			zap.String("url", endpoint),
			zap.Int("status", resp.StatusCode),
		)
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	var msgs []models.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrFetchFailed, err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return msgs, nil
}
