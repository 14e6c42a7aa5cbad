// Package client implements the resilient HTTP client used for all outbound
// calls. Transient failures are classified through the error taxonomy and
// retried with exponential backoff; non-retryable classifications are
// returned as-is on the first failure.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkout/internal/core/errs"
	"checkout/internal/metrics"
)

// Config holds the recognized client options. Supplied once at construction,
// immutable thereafter.
type Config struct {
	BaseEndpoint  string        `yaml:"base_endpoint"`
	Timeout       time.Duration `yaml:"timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
	Debug         bool          `yaml:"debug"`
	LogRequests   bool          `yaml:"log_requests"`
	LogResponses  bool          `yaml:"log_responses"`
	LogErrors     bool          `yaml:"log_errors"`
}

// DefaultConfig returns the baseline configuration for an endpoint:
// 10s timeout, 2 retries, 300ms base backoff, errors-only logging.
func DefaultConfig(endpoint string) Config {
	return Config{
		BaseEndpoint:  endpoint,
		Timeout:       10 * time.Second,
		RetryAttempts: 2,
		RetryBackoff:  300 * time.Millisecond,
		LogErrors:     true,
	}
}

// Validate returns the list of violated constraints, empty when the config
// is usable. A client refuses to execute with an invalid configuration.
func (c Config) Validate() []string {
	var violations []string

	if c.BaseEndpoint == "" {
		violations = append(violations, "base_endpoint is required")
	} else if u, err := url.Parse(c.BaseEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
		violations = append(violations, fmt.Sprintf("base_endpoint %q is not an absolute URL", c.BaseEndpoint))
	}
	if c.Timeout <= 0 {
		violations = append(violations, "timeout must be > 0")
	}
	if c.RetryAttempts < 0 {
		violations = append(violations, "retry_attempts must be >= 0")
	}
	if c.RetryBackoff < 0 {
		violations = append(violations, "retry_backoff must be >= 0")
	}

	return violations
}

// Response is a decoded-enough HTTP response: status plus raw body. Callers
// unmarshal the body themselves.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Client executes outbound calls with timeout, classification and retry.
// It owns no state beyond in-flight request bookkeeping.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a client, refusing invalid configuration.
func New(cfg Config) (*Client, error) {
	if violations := cfg.Validate(); len(violations) > 0 {
		return nil, fmt.Errorf("invalid client config: %s", strings.Join(violations, "; "))
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: slog.Default(),
	}, nil
}

// NewDiagnostic creates a client with all logging flags on. Retry semantics
// are identical to the default; only verbosity changes.
func NewDiagnostic(endpoint string) (*Client, error) {
	cfg := DefaultConfig(endpoint)
	cfg.Debug = true
	cfg.LogRequests = true
	cfg.LogResponses = true
	cfg.LogErrors = true
	return New(cfg)
}

// NewQuiet creates a client that logs errors only.
func NewQuiet(endpoint string) (*Client, error) {
	return New(DefaultConfig(endpoint))
}

// Config returns a copy of the client's configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Do executes one logical request. Retryable failures are reattempted up to
// RetryAttempts times, waiting RetryBackoff * 2^attempt between tries;
// Validation, Permission and StockInsufficient classifications are
// definitionally non-retryable and return immediately. A cancelled context
// abandons the in-flight attempt, suppresses any scheduled retry, and
// returns a network/abort classification; an expired deadline reports
// network/timeout instead.
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, errs.FromValidation(map[string]string{"body": err.Error()})
		}
	}

	var lastErr *errs.ClassifiedError
	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBackoff << (attempt - 1)
			metrics.RequestRetries.WithLabelValues(method).Inc()
			if c.cfg.Debug {
				c.log.Debug("retrying request", "method", method, "path", path, "attempt", attempt, "delay", delay)
			}
			select {
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, errs.FromTimeout(0)
				}
				return nil, errs.FromAbort()
			case <-time.After(delay):
			}
		}

		resp, cerr := c.attempt(ctx, method, path, payload)
		if cerr == nil {
			return resp, nil
		}

		lastErr = cerr
		if c.cfg.LogErrors {
			c.log.Warn("request failed", "method", method, "path", path, "attempt", attempt, "error", cerr)
		}
		if !cerr.Retryable {
			return nil, cerr
		}
	}

	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte) (*Response, *errs.ClassifiedError) {
	target := strings.TrimRight(c.cfg.BaseEndpoint, "/") + path

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, errs.FromUnknown(fmt.Errorf("build request: %w", err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.cfg.LogRequests {
		c.log.Info("request", "method", method, "url", target, "bytes", len(payload))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, errs.FromAbort()
		}
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, errs.FromTimeout(time.Since(start))
		}
		return nil, errs.FromTransportFailure(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.FromTransportFailure(fmt.Errorf("read response: %w", err))
	}

	if c.cfg.LogResponses {
		c.log.Info("response", "method", method, "url", target, "status", resp.StatusCode,
			"bytes", len(data), "elapsed", time.Since(start))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{Status: resp.StatusCode, Body: data}, nil
	}

	return nil, classifyStatus(resp.StatusCode, method, path, data)
}

// classifyStatus maps a non-2xx response onto the taxonomy. Server-side
// payloads carry structured detail for validation and stock conflicts.
func classifyStatus(status int, method, path string, body []byte) *errs.ClassifiedError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.FromPermissionDenial(method + " " + path)

	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		var detail struct {
			Fields map[string]string `json:"fields"`
		}
		_ = json.Unmarshal(body, &detail)
		if len(detail.Fields) == 0 {
			detail.Fields = map[string]string{"request": strings.TrimSpace(string(body))}
		}
		return errs.FromValidation(detail.Fields)

	case status == http.StatusConflict:
		var detail struct {
			Shortfalls []errs.Shortfall `json:"shortfalls"`
		}
		_ = json.Unmarshal(body, &detail)
		return errs.FromStockShortfall(detail.Shortfalls)

	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return errs.FromTransportFailure(fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(body))))

	default:
		return errs.FromUnknown(fmt.Errorf("unexpected status %d: %s", status, strings.TrimSpace(string(body))))
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// ConnectivityReport is the result of a liveness probe.
type ConnectivityReport struct {
	Success bool   `json:"success"`
	Status  int    `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TestConnectivity issues a lightweight probe against the endpoint's health
// path. It reports rather than fails: no error is ever returned.
func (c *Client) TestConnectivity(ctx context.Context) ConnectivityReport {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(c.cfg.BaseEndpoint, "/")+"/health", nil)
	if err != nil {
		return ConnectivityReport{Error: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ConnectivityReport{Error: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	return ConnectivityReport{
		Success: resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:  resp.StatusCode,
	}
}
