// Package checks holds the declarative catalog of screening checks and
// their evaluators. Evaluators are pure functions over the subject and the
// session's prefetched upstream data; all I/O happens before evaluation, in
// the orchestrator's prefetch. The catalog is the single place expressing
// which checks each vertical runs and which roles it screens.
package checks

import (
	"encoding/json"
	"time"

	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/storage"
	"github.com/harborview/marisk/internal/upstream"
)

// Kind distinguishes atomic checks from composites.
type Kind string

const (
	KindAtomic    Kind = "atomic"
	KindComposite Kind = "composite"
)

// Category groups checks for the per-domain status projections.
type Category string

const (
	CategoryStakeholderSanctions Category = "stakeholder-sanctions"
	CategoryVesselSanctions      Category = "vessel-sanctions"
	CategoryVesselBehavior       Category = "vessel-behavior"
	CategoryCargoOrigin          Category = "cargo-origin"
	CategoryPortCountry          Category = "port-country"
)

// Descriptor is one catalog entry. For atomic vessel checks, evaluate holds
// the classification function; stakeholder and country checks are evaluated
// through EvaluateStakeholder / EvaluateCountry since their subject is not
// the vessel. Composites carry Children and reduce by max severity.
type Descriptor struct {
	ID          string
	Kind        Kind
	Category    Category
	Subject     model.SubjectKind
	NeedsWindow bool
	Levels      []model.RiskLevel
	Description string
	Children    []string

	evaluate func(Input) model.CheckResult
}

// Source pairs one upstream dataset with the error its fetch produced.
// Evaluators that depend on a failed source classify RiskNone and record
// the failure in evidence; the screening continues.
type Source[T any] struct {
	Value T
	Err   error
}

// Ok builds a successful source.
func Ok[T any](v T) Source[T] { return Source[T]{Value: v} }

// Fail builds a failed source.
func Fail[T any](err error) Source[T] { return Source[T]{Err: err} }

// VesselData is the prefetched upstream dataset for one vessel. The
// orchestrator fills it through the session cache once per screening; every
// vessel check reads from it without further I/O.
type VesselData struct {
	Sanctions         Source[[]upstream.SanctionRecord]
	RiskScore         Source[*upstream.RiskScore]
	ComplianceRisks   Source[[]upstream.ComplianceRisk]
	VoyageEvents      Source[[]upstream.VoyageEvent]
	ComplianceSummary Source[[]upstream.ComplianceSummary]

	// BulkRisk is the vessel's entry from the Intelligence-B bulk call,
	// nil when the provider has no record. CompanyScreening is the B
	// compliance response.
	BulkRisk         Source[*upstream.VesselRisk]
	CompanyScreening Source[*upstream.ComplianceScreening]

	// Watchlist is nil when the vessel is not listed; a lookup miss is not
	// an error.
	Watchlist Source[*storage.WatchlistVessel]
}

// Input is what an atomic vessel evaluator sees: the subject vessel, the
// screening instant, the resolved date window, and the prefetched data.
type Input struct {
	Vessel model.Vessel
	Now    time.Time
	Window model.DateWindow
	Data   *VesselData
}

// result assembles a CheckResult with the common fields filled in.
func result(d Descriptor, subject string, now time.Time, level model.RiskLevel, evidence json.RawMessage, reason map[string]any) model.CheckResult {
	return model.CheckResult{
		CheckID:     d.ID,
		Subject:     subject,
		RiskLevel:   level,
		ScreenedAt:  now,
		Description: d.Description,
		Evidence:    evidence,
		Reason:      reason,
	}
}

// failed is the uniform outcome for a check whose upstream source errored:
// RiskNone with the failure kind and message in evidence.
func failed(d Descriptor, subject string, now time.Time, err error) model.CheckResult {
	kind := string(upstream.KindHTTP)
	if ue, ok := upstream.AsError(err); ok {
		kind = string(ue.Kind)
	}
	return result(d, subject, now, model.RiskNone, model.ErrorEvidence(kind, err.Error()), nil)
}

// marshalEvidence renders matched upstream items as the evidence payload.
// Evidence is advisory; a marshal failure degrades to empty evidence rather
// than failing the check.
func marshalEvidence(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
