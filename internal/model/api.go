package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Field length limits for screening request fields. These bound what flows
// into Postgres TEXT columns and upstream query parameters from
// caller-controlled input.
const (
	MaxNameLen         = 500
	MaxReasonLen       = 4 * 1024
	MaxRoleNames       = 200
	MaxVoyageNumberLen = 100
)

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the standard envelope for list endpoints.
type ListResponse struct {
	Data  any          `json:"data"`
	Total int          `json:"total"`
	Meta  ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// HealthResponse reports server health for GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Uptime   int64  `json:"uptime_seconds"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeUpstreamError = "UPSTREAM_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// ScreeningRequest is the request body shared by every vertical's screening
// endpoint. Role name lists live in Roles keyed by the vertical's role keys;
// unknown role keys are rejected against the catalog.
type ScreeningRequest struct {
	UUID         uuid.UUID           `json:"uuid"`
	VoyageNumber string              `json:"voyage_number,omitempty"`
	VesselIMO    string              `json:"vessel_imo"`
	VesselName   string              `json:"vessel_name"`
	Segment      string              `json:"segment,omitempty"`
	TradeType    string              `json:"trade_type,omitempty"`
	WindowStart  string              `json:"window_start,omitempty"`
	WindowEnd    string              `json:"window_end,omitempty"`
	CargoOrigin  string              `json:"cargo_origin,omitempty"`
	PortCountry  string              `json:"port_country,omitempty"`
	Roles        map[string][]string `json:"roles"`
	Operator     Operator            `json:"operator"`
}

// Validate checks structural requirements common to all verticals.
// Vertical-specific role keys are validated by the orchestrator against the
// catalog.
func (r *ScreeningRequest) Validate() error {
	if r.UUID == uuid.Nil {
		return fmt.Errorf("uuid is required")
	}
	if err := ValidateIMO(r.VesselIMO); err != nil {
		return fmt.Errorf("vessel_imo: %w", err)
	}
	if r.VesselName == "" {
		return fmt.Errorf("vessel_name is required")
	}
	if len(r.VesselName) > MaxNameLen {
		return fmt.Errorf("vessel_name exceeds maximum length of %d characters", MaxNameLen)
	}
	if len(r.VoyageNumber) > MaxVoyageNumberLen {
		return fmt.Errorf("voyage_number exceeds maximum length of %d characters", MaxVoyageNumberLen)
	}
	if (r.WindowStart == "") != (r.WindowEnd == "") {
		return fmt.Errorf("window_start and window_end must be provided together")
	}
	if r.WindowStart != "" {
		start, err := ParseISODate(r.WindowStart)
		if err != nil {
			return fmt.Errorf("window_start: %w", err)
		}
		end, err := ParseISODate(r.WindowEnd)
		if err != nil {
			return fmt.Errorf("window_end: %w", err)
		}
		if end.Before(start) {
			return fmt.Errorf("window_end precedes window_start")
		}
	}
	for role, names := range r.Roles {
		if len(names) > MaxRoleNames {
			return fmt.Errorf("role %q exceeds %d names", role, MaxRoleNames)
		}
		for i, name := range names {
			if name == "" {
				return fmt.Errorf("role %q: name[%d] is empty", role, i)
			}
			if len(name) > MaxNameLen {
				return fmt.Errorf("role %q: name[%d] exceeds maximum length of %d characters", role, i, MaxNameLen)
			}
		}
	}
	return nil
}

// Window resolves the request's date window, defaulting to the standard
// 365-day lookback ending today. Validate must have passed.
func (r *ScreeningRequest) Window(now time.Time) DateWindow {
	if r.WindowStart == "" {
		return DefaultWindow(now)
	}
	start, _ := ParseISODate(r.WindowStart)
	end, _ := ParseISODate(r.WindowEnd)
	return DateWindow{Start: start, End: end}
}

// ApprovalItem is one (role, name) override tuple within an approval
// request. RiskScreeningStatus echoes the status at screening time;
// RiskChangeStatus carries the operator's override in the per-entity wire
// vocabulary.
type ApprovalItem struct {
	Role                string `json:"role"`
	Name                string `json:"name"`
	RiskScreeningStatus string `json:"risk_screening_status,omitempty"`
	RiskChangeStatus    string `json:"risk_change_status"`
	ChangeReason        string `json:"change_reason,omitempty"`
}

// ApprovalRequest is the request body for POST /v1/approvals. One request
// appends one ApprovalRecord per item and triggers reconciliation.
type ApprovalRequest struct {
	UUID       uuid.UUID      `json:"uuid"`
	Approvals  []ApprovalItem `json:"approvals"`
	ApprovedAt string         `json:"approved_at,omitempty"`
	Applicant  Operator       `json:"applicant"`
	Approvers  []Operator     `json:"approvers,omitempty"`
}

// Validate checks the approval request body.
func (r *ApprovalRequest) Validate() error {
	if r.UUID == uuid.Nil {
		return fmt.Errorf("uuid is required")
	}
	if len(r.Approvals) == 0 {
		return fmt.Errorf("approvals must not be empty")
	}
	for i, a := range r.Approvals {
		if a.Role == "" {
			return fmt.Errorf("approvals[%d].role is required", i)
		}
		if a.Name == "" {
			return fmt.Errorf("approvals[%d].name is required", i)
		}
		if a.RiskChangeStatus == "" {
			return fmt.Errorf("approvals[%d].risk_change_status is required", i)
		}
		if len(a.ChangeReason) > MaxReasonLen {
			return fmt.Errorf("approvals[%d].change_reason exceeds maximum length of %d bytes", i, MaxReasonLen)
		}
	}
	if r.ApprovedAt != "" {
		if _, err := time.Parse(time.RFC3339, r.ApprovedAt); err != nil {
			if _, dErr := ParseISODate(r.ApprovedAt); dErr != nil {
				return fmt.Errorf("approved_at: want RFC3339 or YYYY-MM-DD: %w", err)
			}
		}
	}
	return nil
}

// ApprovedAtTime resolves the approval timestamp, defaulting to now.
// Validate must have passed.
func (r *ApprovalRequest) ApprovedAtTime(now time.Time) time.Time {
	if r.ApprovedAt == "" {
		return now.UTC()
	}
	if t, err := time.Parse(time.RFC3339, r.ApprovedAt); err == nil {
		return t.UTC()
	}
	t, _ := ParseISODate(r.ApprovedAt)
	return t.UTC()
}
