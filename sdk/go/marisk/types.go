package marisk

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Vertical identifies the operational event family being screened.
type Vertical string

const (
	VerticalSTS         Vertical = "sts"
	VerticalPurchase    Vertical = "purchase"
	VerticalSecondhand  Vertical = "secondhand"
	VerticalWarehousing Vertical = "warehousing"
	VerticalVoyage      Vertical = "voyage"
)

// Risk level wire values, shared by checks, stakeholders, and projections.
const (
	RiskNone   = "无风险"
	RiskMedium = "中风险"
	RiskHigh   = "高风险"
)

// Overall operation statuses.
const (
	StatusNormal    = "normal"
	StatusWatch     = "watch"
	StatusIntercept = "intercept"
)

// Operator is the human or system identity a screening or approval is
// performed on behalf of. Echoed verbatim into the verdict.
type Operator struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	Department string `json:"department,omitempty"`
}

// ScreeningRequest is the request body for POST /v1/screenings/{vertical}.
// Roles maps the vertical's role keys to party-name lists.
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

// ApprovalItem is one (role, name) override tuple within an approval request.
type ApprovalItem struct {
	Role                string `json:"role"`
	Name                string `json:"name"`
	RiskScreeningStatus string `json:"risk_screening_status,omitempty"`
	RiskChangeStatus    string `json:"risk_change_status"`
	ChangeReason        string `json:"change_reason,omitempty"`
}

// ApprovalRequest is the request body for POST /v1/approvals.
type ApprovalRequest struct {
	UUID       uuid.UUID      `json:"uuid"`
	Approvals  []ApprovalItem `json:"approvals"`
	ApprovedAt string         `json:"approved_at,omitempty"`
	Applicant  Operator       `json:"applicant"`
	Approvers  []Operator     `json:"approvers,omitempty"`
}

// CheckResult is the outcome of one check for one subject.
type CheckResult struct {
	CheckID     string          `json:"check_id"`
	Subject     string          `json:"subject"`
	RiskLevel   string          `json:"risk_level"`
	ScreenedAt  time.Time       `json:"screened_at"`
	Description string          `json:"description,omitempty"`
	Evidence    json.RawMessage `json:"evidence,omitempty"`
	Reason      map[string]any  `json:"reason,omitempty"`
}

// StakeholderVerdict is the per-name outcome within a role list.
type StakeholderVerdict struct {
	Name         string          `json:"name"`
	RiskLevel    string          `json:"risk_level"`
	ScreenedAt   time.Time       `json:"screened_at"`
	ChangeReason string          `json:"change_reason,omitempty"`
	ChangedAt    *time.Time      `json:"changed_at,omitempty"`
	Evidence     json.RawMessage `json:"evidence,omitempty"`
}

// DomainStatuses are the per-domain projections of a verdict.
type DomainStatuses struct {
	CargoRisk    string `json:"cargo_risk"`
	PortRisk     string `json:"port_risk"`
	CustomerRisk string `json:"customer_risk"`
}

// OperationVerdict is the assembled outcome of one screening call.
//
// VesselChecks is keyed by check id. The server emits the object with its
// fields in catalog order; the client decodes it as a map, so iterate a
// known id list when order matters.
type OperationVerdict struct {
	UUID         uuid.UUID `json:"uuid"`
	Vertical     Vertical  `json:"vertical"`
	VoyageNumber string    `json:"voyage_number,omitempty"`
	VesselIMO    string    `json:"vessel_imo"`
	VesselName   string    `json:"vessel_name"`
	ScreenedAt   time.Time `json:"screened_at"`
	WindowStart  string    `json:"window_start"`
	WindowEnd    string    `json:"window_end"`
	Segment      string    `json:"segment,omitempty"`
	TradeType    string    `json:"trade_type,omitempty"`
	CargoOrigin  string    `json:"cargo_origin,omitempty"`
	PortCountry  string    `json:"port_country,omitempty"`

	OverallStatus      string         `json:"overall_status"`
	OverallStatusLabel string         `json:"overall_status_label"`
	VesselStatus       string         `json:"vessel_status"`
	StakeholderStatus  string         `json:"stakeholder_status"`
	DomainStatuses     DomainStatuses `json:"domain_statuses"`

	VesselChecks map[string]CheckResult          `json:"vessel_checks"`
	Stakeholders map[string][]StakeholderVerdict `json:"stakeholders"`

	CargoOriginCheck *CheckResult `json:"cargo_origin_check,omitempty"`
	PortCountryCheck *CheckResult `json:"port_country_check,omitempty"`

	Operator Operator `json:"operator"`
}

// VerdictRecord is one entry in an operation's verdict history.
type VerdictRecord struct {
	Verdict       OperationVerdict `json:"verdict"`
	Source        string           `json:"source"`
	ApprovalCount int              `json:"approval_count,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Verdict history sources.
const (
	SourceScreening      = "screening"
	SourceReconciliation = "reconciliation"
)

// WatchlistVessel is a row from the vessel watchlist register.
type WatchlistVessel struct {
	IMO        string    `json:"imo"`
	VesselName string    `json:"vessel_name"`
	ListedAt   time.Time `json:"listed_at"`
	Source     string    `json:"source,omitempty"`
	Notes      string    `json:"notes,omitempty"`
}

// SanctionedEntity is a row from the sanctioned-entity register.
type SanctionedEntity struct {
	Name                  string          `json:"name"`
	SanctionsLev          string          `json:"sanctions_lev"`
	HighHits              json.RawMessage `json:"high_hits,omitempty"`
	MediumHits            json.RawMessage `json:"medium_hits,omitempty"`
	NoRiskHits            json.RawMessage `json:"no_risk_hits,omitempty"`
	IsSan                 bool            `json:"is_san"`
	IsSco                 bool            `json:"is_sco"`
	IsOol                 bool            `json:"is_ool"`
	IsOneYear             bool            `json:"is_one_year"`
	IsSanctionedCountries bool            `json:"is_sanctioned_countries"`
	Description           json.RawMessage `json:"description,omitempty"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// HealthResponse reports server health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Uptime   int64  `json:"uptime_seconds"`
}
