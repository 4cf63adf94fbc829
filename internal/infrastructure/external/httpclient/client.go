package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// TokenSource hands out access tokens for a platform connection
type TokenSource interface {
	AccessToken(ctx context.Context, conn *entities.PlatformConnection) (string, error)
	ForceRefresh(ctx context.Context, conn *entities.PlatformConnection) (string, error)
}

// StatusError is a non-2xx provider response
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed when repeated
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Options tunes timeouts and retry pacing
type Options struct {
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxElapsed      time.Duration
}

// Client calls provider REST APIs on behalf of a connected user.
// A 401 forces one token refresh; 429 and 5xx are retried with backoff.
type Client struct {
	http   *http.Client
	tokens TokenSource
	opts   Options
	logger *zap.Logger
}

// New creates a client
func New(tokens TokenSource, opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = time.Second
	}
	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = 30 * time.Second
	}
	return &Client{
		http:   &http.Client{Timeout: opts.Timeout},
		tokens: tokens,
		opts:   opts,
		logger: logger,
	}
}

// GetJSON fetches url and decodes the JSON body into out
func (c *Client) GetJSON(ctx context.Context, conn *entities.PlatformConnection, url string, out interface{}) error {
	body, err := c.Do(ctx, conn, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}

// PostJSON sends in as JSON and decodes the response into out
func (c *Client) PostJSON(ctx context.Context, conn *entities.PlatformConnection, url string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	body, err := c.Do(ctx, conn, http.MethodPost, url, payload)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}

// Do performs an authorized request and returns the raw response body
func (c *Client) Do(ctx context.Context, conn *entities.PlatformConnection, method, url string, payload []byte) ([]byte, error) {
	token, err := c.tokens.AccessToken(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	refreshed := false
	var out []byte
	op := func() error {
		body, err := c.send(ctx, method, url, payload, token)
		if err == nil {
			out = body
			return nil
		}

		var se *StatusError
		if !errors.As(err, &se) {
			return err
		}
		if se.StatusCode == http.StatusUnauthorized && !refreshed {
			refreshed = true
			c.logger.Warn("⚠️ Provider rejected token, forcing refresh",
				zap.String("platform", string(conn.Platform)),
				zap.String("user_id", conn.UserID.String()),
			)
			fresh, rerr := c.tokens.ForceRefresh(ctx, conn)
			if rerr != nil {
				return backoff.Permanent(fmt.Errorf("token refresh after 401: %w", rerr))
			}
			token = fresh
			return err
		}
		if !se.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.InitialInterval
	bo.MaxElapsedTime = c.opts.MaxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, method, url string, payload []byte, token string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
