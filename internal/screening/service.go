// Package screening drives a screening session end to end: it resolves the
// vertical's check list, warms the session cache against both intelligence
// providers, evaluates every check, assembles the verdict with its status
// projections, and persists it append-only. Approval reconciliation lives
// here too, replaying operator overrides onto the latest verdict.
package screening

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/harborview/marisk/internal/checks"
	"github.com/harborview/marisk/internal/fetch"
	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/storage"
	"github.com/harborview/marisk/internal/telemetry"
	"github.com/harborview/marisk/internal/upstream"
)

// Store is the persistence surface the orchestrator needs. *storage.DB
// implements it; tests substitute a fake.
type Store interface {
	InsertVerdict(ctx context.Context, v model.OperationVerdict) error
	LatestVerdict(ctx context.Context, id uuid.UUID) (model.OperationVerdict, error)
	VerdictHistory(ctx context.Context, id uuid.UUID) ([]storage.VerdictRecord, error)
	InsertChangeLog(ctx context.Context, v model.OperationVerdict, approvalCount int) error
	LatestChangeLog(ctx context.Context, id uuid.UUID) (storage.VerdictRecord, error)
	InsertApprovals(ctx context.Context, approvals []model.ApprovalRecord) error
	ListApprovals(ctx context.Context, id uuid.UUID) ([]model.ApprovalRecord, error)
	LookupWatchlistVessel(ctx context.Context, imo string) (storage.WatchlistVessel, error)
	LookupSanctionedEntity(ctx context.Context, name string) (storage.SanctionedEntity, error)
	IsHighRiskPortCountry(ctx context.Context, country string) (bool, error)
	IsHighRiskOriginCountry(ctx context.Context, country string) (bool, error)
}

// ErrInvalidRequest wraps request validation failures so handlers can map
// them to 400 without inspecting messages.
var ErrInvalidRequest = errors.New("screening: invalid request")

// Service is the risk check orchestrator.
type Service struct {
	store  Store
	a      *upstream.ClientA
	b      *upstream.ClientB
	l2     *fetch.Store // optional cross-session cache, nil when disabled
	fanout int
	logger *slog.Logger

	// now is injectable for deterministic tests.
	now func() time.Time

	duration   metric.Float64Histogram
	screenings metric.Int64Counter
}

// New creates the orchestrator. l2 may be nil.
func New(store Store, a *upstream.ClientA, b *upstream.ClientB, l2 *fetch.Store, fanout int, logger *slog.Logger) *Service {
	meter := telemetry.Meter("marisk/screening")
	dur, _ := meter.Float64Histogram("marisk.screening.duration",
		metric.WithDescription("End-to-end screening time (ms)"),
		metric.WithUnit("ms"),
	)
	count, _ := meter.Int64Counter("marisk.screenings",
		metric.WithDescription("Screenings performed, by vertical and outcome"),
	)
	return &Service{
		store:      store,
		a:          a,
		b:          b,
		l2:         l2,
		fanout:     fanout,
		logger:     logger,
		now:        time.Now,
		duration:   dur,
		screenings: count,
	}
}

// Screen runs one full screening session and persists the verdict. The
// verdict is returned only after the row committed; a persist failure is
// the call's failure.
func (s *Service) Screen(ctx context.Context, vertical model.Vertical, req model.ScreeningRequest) (model.OperationVerdict, error) {
	start := time.Now()

	spec, err := checks.ForVertical(vertical)
	if err != nil {
		return model.OperationVerdict{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := req.Validate(); err != nil {
		return model.OperationVerdict{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validateRoles(spec, req.Roles); err != nil {
		return model.OperationVerdict{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	now := s.now().UTC()
	window := req.Window(now)
	sess := fetch.NewSession(s.l2)

	// One warm pass against every upstream source; checks read from the
	// session afterwards.
	data := s.prefetch(ctx, sess, req.VesselIMO, window)
	if err := ctx.Err(); err != nil {
		return model.OperationVerdict{}, err
	}

	verdict := model.OperationVerdict{
		UUID:         req.UUID,
		Vertical:     vertical,
		VoyageNumber: req.VoyageNumber,
		VesselIMO:    req.VesselIMO,
		VesselName:   req.VesselName,
		ScreenedAt:   now,
		WindowStart:  window.StartISO(),
		WindowEnd:    window.EndISO(),
		Segment:      req.Segment,
		TradeType:    req.TradeType,
		CargoOrigin:  req.CargoOrigin,
		PortCountry:  req.PortCountry,
		Operator:     req.Operator,
	}

	s.evaluateVesselChecks(&verdict, req, now, window, data)

	previous, err := s.loadPrevious(ctx, req.UUID)
	if err != nil {
		return model.OperationVerdict{}, err
	}
	if err := s.evaluateStakeholders(ctx, sess, &verdict, spec, req, now, previous); err != nil {
		return model.OperationVerdict{}, err
	}
	s.evaluateCountries(ctx, &verdict, spec, req, now)

	Aggregate(&verdict)

	if err := ctx.Err(); err != nil {
		return model.OperationVerdict{}, err
	}
	if err := s.store.InsertVerdict(ctx, verdict); err != nil {
		s.screenings.Add(ctx, 1,
			metric.WithAttributes(attribute.String("vertical", string(vertical)), attribute.String("outcome", "persist_error")))
		return model.OperationVerdict{}, fmt.Errorf("screening: persist verdict: %w", err)
	}

	hits, misses := sess.Stats()
	elapsed := time.Since(start)
	s.duration.Record(ctx, float64(elapsed.Milliseconds()))
	s.screenings.Add(ctx, 1,
		metric.WithAttributes(attribute.String("vertical", string(vertical)), attribute.String("outcome", string(verdict.OverallStatus))))
	s.logger.Info("screening complete",
		"uuid", req.UUID, "vertical", vertical, "vessel_imo", req.VesselIMO,
		"overall_status", verdict.OverallStatus, "elapsed", elapsed,
		"cache_hits", hits, "cache_misses", misses)

	return verdict, nil
}

// validateRoles rejects role keys the vertical does not screen and list
// inputs on single-name roles.
func validateRoles(spec checks.VerticalSpec, roles map[string][]string) error {
	known := make(map[string]checks.RoleSpec, len(spec.Roles))
	for _, r := range spec.Roles {
		known[r.Key] = r
	}
	for key, names := range roles {
		r, ok := known[key]
		if !ok {
			return fmt.Errorf("role %q is not screened for vertical %s", key, spec.Vertical)
		}
		if r.Single && len(names) > 1 {
			return fmt.Errorf("role %q accepts a single name, got %d", key, len(names))
		}
	}
	return nil
}

// evaluateVesselChecks runs every vessel-subject check in registry order.
// Atomics come first in the order, so composites always find their children
// already evaluated.
func (s *Service) evaluateVesselChecks(v *model.OperationVerdict, req model.ScreeningRequest, now time.Time, window model.DateWindow, data *checks.VesselData) {
	in := checks.Input{
		Vessel: model.Vessel{IMO: req.VesselIMO, Name: req.VesselName},
		Now:    now,
		Window: window,
		Data:   data,
	}
	results := make(map[string]model.CheckResult)
	for _, id := range checks.VesselOrder() {
		d := checks.Catalog(id)
		var res model.CheckResult
		if d.Kind == checks.KindComposite {
			res = checks.EvaluateComposite(d, results, req.VesselIMO, now)
		} else {
			res = checks.EvaluateVessel(d, in)
		}
		results[id] = res
		v.VesselChecks.Set(res)
	}
}

// loadPrevious fetches the operation's latest stored verdict for changed_at
// computation. A never-screened operation is the common case.
func (s *Service) loadPrevious(ctx context.Context, id uuid.UUID) (*model.OperationVerdict, error) {
	prev, err := s.store.LatestVerdict(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("screening: load previous verdict: %w", err)
	}
	return &prev, nil
}

// evaluateStakeholders screens every named party, role by role, preserving
// request order within each role. Lookups run concurrently up to the fanout
// and coalesce by normalized name, so a party named under two roles costs
// one register read.
func (s *Service) evaluateStakeholders(ctx context.Context, sess *fetch.Session, v *model.OperationVerdict, spec checks.VerticalSpec, req model.ScreeningRequest, now time.Time, previous *model.OperationVerdict) error {
	v.Stakeholders = make(map[string][]model.StakeholderVerdict, len(spec.Roles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)

	for _, role := range spec.Roles {
		names := req.Roles[role.Key]
		// Empty input keeps an empty, non-null array in the verdict.
		out := make([]model.StakeholderVerdict, len(names))
		v.Stakeholders[role.Key] = out

		for i, name := range names {
			g.Go(func() error {
				res := s.screenStakeholder(gctx, sess, name, now)
				out[i] = stakeholderVerdict(name, res, now, previousEntry(previous, role.Key, name))
				return gctx.Err()
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, role := range spec.Roles {
		if v.Stakeholders[role.Key] == nil {
			v.Stakeholders[role.Key] = []model.StakeholderVerdict{}
		}
	}
	return nil
}

// screenStakeholder evaluates one name against the sanctioned-entities
// register through the session cache.
func (s *Service) screenStakeholder(ctx context.Context, sess *fetch.Session, name string, now time.Time) model.CheckResult {
	key := "db sanctioned-entities " + model.NormalizeName(name)
	ent, err := fetch.Do(ctx, sess, key, func(ctx context.Context) (*storage.SanctionedEntity, error) {
		e, err := s.store.LookupSanctionedEntity(ctx, name)
		if err != nil {
			return nil, err
		}
		return &e, nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return checks.EvaluateStakeholder(name, now, nil, storage.ErrNotFound)
	}
	return checks.EvaluateStakeholder(name, now, ent, err)
}

// stakeholderVerdict folds a check result and the previous verdict entry
// into the stored per-name record. changed_at moves only when the level
// differs from the previous verdict; a first screening counts as a change.
func stakeholderVerdict(name string, res model.CheckResult, now time.Time, prev *model.StakeholderVerdict) model.StakeholderVerdict {
	out := model.StakeholderVerdict{
		Name:       name,
		RiskLevel:  res.RiskLevel,
		ScreenedAt: now,
		Evidence:   stakeholderEvidence(res),
	}
	if prev != nil && prev.RiskLevel == res.RiskLevel {
		out.ChangedAt = prev.ChangedAt
		out.ChangeReason = prev.ChangeReason
	} else {
		t := now
		out.ChangedAt = &t
	}
	return out
}

// stakeholderEvidence folds a check's evidence and reason map into the one
// evidence document the stakeholder record carries.
func stakeholderEvidence(res model.CheckResult) []byte {
	if len(res.Evidence) == 0 && len(res.Reason) == 0 {
		return nil
	}
	doc := map[string]any{}
	if len(res.Evidence) > 0 {
		doc["evidence"] = res.Evidence
	}
	if len(res.Reason) > 0 {
		doc["reason"] = res.Reason
	}
	return marshalOrNil(doc)
}

// previousEntry finds the previous verdict's record for (role, name). Role
// keys match case-insensitively, names on the normalized form.
func previousEntry(previous *model.OperationVerdict, role, name string) *model.StakeholderVerdict {
	if previous == nil {
		return nil
	}
	want := model.NormalizeName(name)
	for key, list := range previous.Stakeholders {
		if !equalFold(key, role) {
			continue
		}
		for i := range list {
			if model.NormalizeName(list[i].Name) == want {
				return &list[i]
			}
		}
	}
	return nil
}

// evaluateCountries runs the port-country and cargo-origin checks when the
// vertical screens them. An absent country name still produces a result
// with level none, never an omitted field.
func (s *Service) evaluateCountries(ctx context.Context, v *model.OperationVerdict, spec checks.VerticalSpec, req model.ScreeningRequest, now time.Time) {
	if spec.HasCargoOrigin {
		res := s.screenCountry(ctx, checks.CargoOriginRisk, req.CargoOrigin, now, s.store.IsHighRiskOriginCountry)
		v.CargoOriginCheck = &res
	}
	if spec.HasPortCountry {
		res := s.screenCountry(ctx, checks.PortCountryRisk, req.PortCountry, now, s.store.IsHighRiskPortCountry)
		v.PortCountryCheck = &res
	}
}

func (s *Service) screenCountry(ctx context.Context, checkID, country string, now time.Time, lookup func(context.Context, string) (bool, error)) model.CheckResult {
	if country == "" {
		return checks.EvaluateCountry(checkID, "", now, false, nil)
	}
	listed, err := lookup(ctx, country)
	return checks.EvaluateCountry(checkID, country, now, listed, err)
}
