// Package apiclient is the authorized HTTP client every non-auth console
// call goes through. An authorization failure on any call ends the session.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/gov-console/exchange"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxErrorBody = 4 << 10

// StatusError is returned for non-2xx responses other than a 401 or 403 that
// ended the session.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed with status %d: %s", e.Status, e.Body)
}

type Client struct {
	baseURL     string
	base        http.RoundTripper
	timeout     time.Duration
	tokens      TokenSource
	invalidator Invalidator
	httpClient  *http.Client
	logger      zerolog.Logger
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithBaseTransport replaces the network transport under the auth layers.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.base = rt
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the API at baseURL. The controller usually plays
// both tokens and invalidator.
func New(baseURL string, tokens TokenSource, invalidator Invalidator, options ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("[apiclient.New] token source is required")
	}
	if invalidator == nil {
		return nil, errors.New("[apiclient.New] invalidator is required")
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("[apiclient.New] base url is required")
	}

	c := &Client{
		baseURL:     baseURL,
		timeout:     30 * time.Second,
		tokens:      tokens,
		invalidator: invalidator,
		logger:      log.With().Str("component", "apiclient").Logger(),
	}
	for _, opt := range options {
		opt(c)
	}
	c.httpClient = &http.Client{
		Timeout:   c.timeout,
		Transport: NewTransport(c.base, c.tokens, c.invalidator),
	}
	return c, nil
}

// GetJSON fetches path and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

// Do sends body (JSON encoded when non-nil) and decodes the reply into out
// when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "[Client.Do] encode body")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "[Client.Do] build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(exchange.RequestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "[Client.Do] %s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("API request failed")
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "[Client.Do] decode response")
	}
	return nil
}
