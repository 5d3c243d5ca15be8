package model

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Vertical identifies the operational event family being screened. The
// check catalog keys vertical-specific inclusion on this value.
type Vertical string

const (
	VerticalSTS         Vertical = "sts"
	VerticalPurchase    Vertical = "purchase"
	VerticalSecondhand  Vertical = "secondhand"
	VerticalWarehousing Vertical = "warehousing"
	VerticalVoyage      Vertical = "voyage"
)

// Verticals lists every supported vertical in route order.
func Verticals() []Vertical {
	return []Vertical{VerticalSTS, VerticalPurchase, VerticalSecondhand, VerticalWarehousing, VerticalVoyage}
}

// ParseVertical maps a route segment to its Vertical, reporting whether the
// segment names a supported vertical.
func ParseVertical(s string) (Vertical, bool) {
	v := Vertical(s)
	switch v {
	case VerticalSTS, VerticalPurchase, VerticalSecondhand, VerticalWarehousing, VerticalVoyage:
		return v, true
	}
	return "", false
}

// DateWindow is the closed screening interval, dates only.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

const isoDate = "2006-01-02"

// DefaultWindow is the standard lookback: today minus 365 days to today.
func DefaultWindow(now time.Time) DateWindow {
	end := now.UTC().Truncate(24 * time.Hour)
	return DateWindow{Start: end.AddDate(0, 0, -365), End: end}
}

// StartISO returns the window start as YYYY-MM-DD.
func (w DateWindow) StartISO() string { return w.Start.Format(isoDate) }

// EndISO returns the window end as YYYY-MM-DD.
func (w DateWindow) EndISO() string { return w.End.Format(isoDate) }

// Composite returns the hyphenated start-end form some upstream endpoints
// take as a single parameter: YYYY-MM-DD-YYYY-MM-DD.
func (w DateWindow) Composite() string { return w.StartISO() + "-" + w.EndISO() }

// ParseISODate parses a YYYY-MM-DD wire date.
func ParseISODate(s string) (time.Time, error) {
	return time.Parse(isoDate, s)
}

// Operator is the human or system identity a screening or approval was
// performed on behalf of. Echoed verbatim into the verdict.
type Operator struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	Department string `json:"department,omitempty"`
}

// StakeholderVerdict is the per-name outcome within a role list.
//
// ChangedAt is set when the classification differs from the previous
// verdict for the same (operation uuid, role, name) — a first screening
// counts as a change — and carries forward unchanged otherwise. Approval
// reconciliation compares approval timestamps against it.
type StakeholderVerdict struct {
	Name         string          `json:"name"`
	RiskLevel    RiskLevel       `json:"risk_level"`
	ScreenedAt   time.Time       `json:"screened_at"`
	ChangeReason string          `json:"change_reason,omitempty"`
	ChangedAt    *time.Time      `json:"changed_at,omitempty"`
	Evidence     json.RawMessage `json:"evidence,omitempty"`
}

// DomainStatuses are the per-domain projections of a verdict. Each value is
// the maximum over a fixed category of checks; absent categories project
// RiskNone.
type DomainStatuses struct {
	CargoRisk    RiskLevel `json:"cargo_risk"`
	PortRisk     RiskLevel `json:"port_risk"`
	CustomerRisk RiskLevel `json:"customer_risk"`
}

// OperationVerdict is the assembled outcome of one screening call. It is
// stored append-only as a JSON document plus projected columns; the four
// projected statuses are a pure function of the embedded check results.
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

	OverallStatus      OperationStatus `json:"overall_status"`
	OverallStatusLabel string          `json:"overall_status_label"`
	VesselStatus       RiskLevel       `json:"vessel_status"`
	StakeholderStatus  RiskLevel       `json:"stakeholder_status"`
	DomainStatuses     DomainStatuses  `json:"domain_statuses"`

	// VesselChecks holds one field per vessel-level check, ordered by the
	// registry. Role keys map to stakeholder verdict lists; a role present
	// on the request with no names keeps an empty (non-null) array.
	VesselChecks VesselChecks                    `json:"vessel_checks"`
	Stakeholders map[string][]StakeholderVerdict `json:"stakeholders"`

	// Country checks are present only on verticals that screen them.
	CargoOriginCheck *CheckResult `json:"cargo_origin_check,omitempty"`
	PortCountryCheck *CheckResult `json:"port_country_check,omitempty"`

	Operator Operator `json:"operator"`
}

// Role returns the stakeholder entries under a role key, or nil when the
// verdict does not carry that role.
func (v *OperationVerdict) Role(role string) []StakeholderVerdict {
	return v.Stakeholders[role]
}

// StakeholderProjection returns the sorted set of (normalized name, level)
// pairs across every role. Reconciliation compares this projection against
// the change-log head to decide whether a new revision diverges.
func (v *OperationVerdict) StakeholderProjection() []string {
	seen := make(map[string]struct{})
	for _, list := range v.Stakeholders {
		for _, s := range list {
			seen[NormalizeName(s.Name)+"\x00"+s.RiskLevel.String()] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for pair := range seen {
		out = append(out, pair)
	}
	sort.Strings(out)
	return out
}

// Clone deep-copies the verdict via JSON round-trip. Reconciliation mutates
// the copy, never the loaded row.
func (v *OperationVerdict) Clone() (*OperationVerdict, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out OperationVerdict
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
