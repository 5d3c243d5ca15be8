// Package upstream implements typed clients for the external intelligence
// providers. Responses decode into provider-native shapes and flow through
// the session cache before any check interprets them; classification lives
// in internal/checks, never here.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// ErrorKind classifies adapter failures. Checks that depend on a failed
// source classify RiskNone and record the kind in evidence; the screening
// continues.
type ErrorKind string

const (
	KindAuthDenied ErrorKind = "auth_denied"
	KindHTTP       ErrorKind = "http_error"
	KindTimeout    ErrorKind = "timeout"
	KindDecode     ErrorKind = "decode"
)

// Error is an upstream call failure.
type Error struct {
	Provider string
	Endpoint string
	Kind     ErrorKind
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream: %s %s: %s (status %d): %v", e.Provider, e.Endpoint, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("upstream: %s %s: %s: %v", e.Provider, e.Endpoint, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError unwraps err to an upstream *Error if one is in the chain.
func AsError(err error) (*Error, bool) {
	var ue *Error
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

const maxErrorBody = 1024

// client is the shared HTTP plumbing for one provider: bearer auth,
// per-call timeouts, a circuit breaker, and failure classification.
type client struct {
	provider      string
	baseURL       string
	token         string
	http          *http.Client
	breaker       *gobreaker.CircuitBreaker
	logger        *slog.Logger
	lookupTimeout time.Duration
	bulkTimeout   time.Duration
}

func newClient(provider, baseURL, token string, lookupTimeout, bulkTimeout time.Duration, logger *slog.Logger) *client {
	c := &client{
		provider:      provider,
		baseURL:       baseURL,
		token:         token,
		http:          &http.Client{},
		logger:        logger,
		lookupTimeout: lookupTimeout,
		bulkTimeout:   bulkTimeout,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    provider,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("upstream circuit breaker state change",
				"provider", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// call performs one HTTP request under the provider's breaker and decodes
// the body into out. endpoint names the logical operation for errors and
// logs; timeout bounds this call only.
func (c *client) call(ctx context.Context, endpoint string, req *http.Request, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req = req.WithContext(ctx)

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	_, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, c.classifyTransport(endpoint, err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusForbidden:
			return nil, &Error{Provider: c.provider, Endpoint: endpoint, Kind: KindAuthDenied,
				Status: resp.StatusCode, Err: errors.New("credentials rejected")}
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, &Error{Provider: c.provider, Endpoint: endpoint, Kind: KindHTTP,
				Status: resp.StatusCode, Err: fmt.Errorf("unexpected status: %s", string(body))}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, &Error{Provider: c.provider, Endpoint: endpoint, Kind: KindDecode, Err: err}
		}
		return nil, nil
	})

	elapsed := time.Since(start)
	if err != nil {
		c.logger.Warn("upstream call failed",
			"provider", c.provider, "endpoint", endpoint, "elapsed", elapsed, "error", err)
		if _, ok := AsError(err); ok {
			return err
		}
		// Breaker-open and other non-classified failures.
		return &Error{Provider: c.provider, Endpoint: endpoint, Kind: KindHTTP, Err: err}
	}
	c.logger.Debug("upstream call",
		"provider", c.provider, "endpoint", endpoint, "elapsed", elapsed)
	return nil
}

func (c *client) classifyTransport(endpoint string, err error) *Error {
	kind := KindHTTP
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		kind = KindTimeout
	}
	return &Error{Provider: c.provider, Endpoint: endpoint, Kind: kind, Err: err}
}
