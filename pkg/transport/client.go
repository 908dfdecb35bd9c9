// Package transport is the HTTP client side of the vault protocol.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

const (
	requestIDHeader = "X-Request-Id"
	maxErrorBody    = 512

	// DefaultMaxResponseBytes bounds a response body. A read response is the stored
	// upload plus its proof, so it must exceed the server's upload limit.
	DefaultMaxResponseBytes int64 = 256 << 20
)

var (
	// ErrUnexpectedStatus is wrapped by every *StatusError
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrResponseTooLarge is returned when a response body exceeds the client's limit
	ErrResponseTooLarge = errors.New("response too large")
)

// StatusError reports a response whose status code did not match the operation
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %v %d: %s", e.Method, e.Path, ErrUnexpectedStatus, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// IsNotFound reports whether err is a 404 from the server
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     5,
	InitialBackoff:  100 * time.Millisecond,
	MaxBackoff:      5 * time.Second,
	BackoffMultiple: 2.0,
}

// Client talks to a vault server. Reads are retried on network errors and 5xx
// responses; uploads are sent exactly once.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *zap.Logger

	maxResponseBytes int64
}

// NewClient creates a new transport client for the server at baseURL
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		retryConfig: DefaultRetryConfig,
		logger:      logger,

		maxResponseBytes: DefaultMaxResponseBytes,
	}
}

// WithRetryConfig replaces the retry settings
func (c *Client) WithRetryConfig(rc RetryConfig) *Client {
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	c.retryConfig = rc
	return c
}

// WithHTTPClient replaces the underlying http.Client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithMaxResponseBytes replaces the response body limit
func (c *Client) WithMaxResponseBytes(n int64) *Client {
	if n > 0 {
		c.maxResponseBytes = n
	}
	return c
}

// BaseURL returns the server address the client was created with
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload submits SignedUpload bytes for name and returns the server's inclusion proof
func (c *Client) Upload(ctx context.Context, name string, signedUpload []byte) (merkle.Proof, error) {
	path := "/upload/" + url.PathEscape(name)
	body, err := c.send(ctx, http.MethodPost, path, signedUpload, http.StatusCreated)
	if err != nil {
		return nil, err
	}

	proof, rest, err := merkle.DecodeProof(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode upload proof: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after upload proof", merkle.ErrMalformedProof, len(rest))
	}
	return proof, nil
}

// Read fetches the stored SignedUpload bytes for name with their inclusion proof
func (c *Client) Read(ctx context.Context, name string) (merkle.Proof, []byte, error) {
	path := "/read/" + url.PathEscape(name)
	body, err := c.getWithRetry(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	proof, rest, err := merkle.DecodeProof(body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode read proof: %w", err)
	}
	return proof, rest, nil
}

// TopHash fetches the server's current top hash
func (c *Client) TopHash(ctx context.Context) (types.Digest, error) {
	body, err := c.getWithRetry(ctx, "/verify")
	if err != nil {
		return types.Digest{}, err
	}
	root, err := types.DigestFromBytes(body)
	if err != nil {
		return types.Digest{}, fmt.Errorf("invalid top hash response: %w", err)
	}
	return root, nil
}

// Health checks the server's health endpoint
func (c *Client) Health(ctx context.Context) error {
	_, err := c.getWithRetry(ctx, "/healthz")
	return err
}

func (c *Client) getWithRetry(ctx context.Context, path string) ([]byte, error) {
	var lastErr error
	backoff := c.retryConfig.InitialBackoff
	for attempt := 0; attempt < c.retryConfig.MaxAttempts; attempt++ {
		body, err := c.send(ctx, http.MethodGet, path, nil, http.StatusOK)
		if err == nil {
			return body, nil
		}
		if !retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err

		if attempt < c.retryConfig.MaxAttempts-1 {
			c.logger.Sugar().Debugw("Retrying request", "path", path, "attempt", attempt+1, "backoff", backoff, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * c.retryConfig.BackoffMultiple)
			if backoff > c.retryConfig.MaxBackoff {
				backoff = c.retryConfig.MaxBackoff
			}
		}
	}

	return nil, fmt.Errorf("GET %s failed after %d attempts: %w", path, c.retryConfig.MaxAttempts, lastErr)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, want int) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(requestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &networkError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return nil, &networkError{err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if int64(len(body)) > c.maxResponseBytes {
		return nil, fmt.Errorf("%s %s: %w: more than %d bytes", method, path, ErrResponseTooLarge, c.maxResponseBytes)
	}

	if resp.StatusCode != want {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		c.logger.Sugar().Debugw("Unexpected response status",
			"request_id", requestID,
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		return nil, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: msg}
	}
	return body, nil
}

type networkError struct {
	err error
}

func (e *networkError) Error() string { return e.err.Error() }
func (e *networkError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var ne *networkError
	if errors.As(err, &ne) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode >= http.StatusInternalServerError
}
