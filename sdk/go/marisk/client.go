package marisk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the marisk server (e.g. "http://localhost:8080").
	BaseURL string

	// Credential is the bearer credential: either an Ed25519-signed JWT or a
	// configured static API key. Leave empty against a server running in
	// open mode.
	Credential string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the marisk screening API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	credential string
	client     *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("marisk: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		credential: cfg.Credential,
		client:     httpClient,
	}, nil
}

// RequestOption customizes a single API call.
type RequestOption func(*http.Request)

// WithIdempotencyKey sets the Idempotency-Key header on a write. Retrying
// the same key with the same payload replays the stored response instead of
// re-executing the operation.
func WithIdempotencyKey(key string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set("Idempotency-Key", key)
	}
}

// Screen runs the full check catalog for the vertical and returns the
// assembled verdict. The server appends the verdict; retrieve it later with
// Verdict or VerdictHistory.
func (c *Client) Screen(ctx context.Context, vertical Vertical, req ScreeningRequest, opts ...RequestOption) (*OperationVerdict, error) {
	var resp OperationVerdict
	if err := c.post(ctx, "/v1/screenings/"+string(vertical), req, &resp, opts...); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Approve records the approval overrides and returns the reconciled verdict.
func (c *Client) Approve(ctx context.Context, req ApprovalRequest, opts ...RequestOption) (*OperationVerdict, error) {
	var resp OperationVerdict
	if err := c.post(ctx, "/v1/approvals", req, &resp, opts...); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Verdict retrieves the operation's current verdict: the newest revision
// across screenings and reconciliations.
func (c *Client) Verdict(ctx context.Context, id uuid.UUID) (*OperationVerdict, error) {
	var resp OperationVerdict
	if err := c.get(ctx, "/v1/verdicts/"+id.String(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerdictHistory retrieves every verdict revision for the operation, oldest
// first, tagged with the log that produced it.
func (c *Client) VerdictHistory(ctx context.Context, id uuid.UUID) ([]VerdictRecord, error) {
	var resp []VerdictRecord
	if err := c.get(ctx, "/v1/verdicts/"+id.String()+"/history", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// WatchlistVessel looks up a vessel on the local watchlist register by its
// 7-digit IMO number.
func (c *Client) WatchlistVessel(ctx context.Context, imo string) (*WatchlistVessel, error) {
	var resp WatchlistVessel
	if err := c.get(ctx, "/v1/reference/watchlist/"+url.PathEscape(imo), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SanctionedEntity looks up a party in the sanctioned-entity register.
// Matching is on the normalized name, so spelling variants hit the same row.
func (c *Client) SanctionedEntity(ctx context.Context, name string) (*SanctionedEntity, error) {
	params := url.Values{}
	params.Set("name", name)
	var resp SanctionedEntity
	if err := c.get(ctx, "/v1/reference/sanctions?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks the server's health status. This endpoint does not require
// authentication and will work even if the client has invalid credentials.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.get(ctx, "/healthz", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// apiErrorEnvelope is the server's standard error response wrapper.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any, opts ...RequestOption) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marisk: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("marisk: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("marisk: create request: %w", err)
	}

	return c.doRequest(req, dest)
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	if c.credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("marisk: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("marisk: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	// Unwrap the server's { "data": ... } envelope.
	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("marisk: decode response envelope: %w", err)
	}

	if envelope.Data == nil {
		// Fallback: some endpoints may not wrap in "data".
		return json.Unmarshal(bodyBytes, dest)
	}

	return json.Unmarshal(envelope.Data, dest)
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.RequestID = envelope.Meta.RequestID
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
