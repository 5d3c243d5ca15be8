package screening

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/storage"
)

// Approve records an approval act and reconciles it onto the latest
// verdict. One request fans out to one ApprovalRecord per (role, name)
// tuple; records append to the approval log before reconciliation replays
// the full log, so retries and out-of-order arrivals converge on the same
// result.
func (s *Service) Approve(ctx context.Context, req model.ApprovalRequest) (model.OperationVerdict, error) {
	if err := req.Validate(); err != nil {
		return model.OperationVerdict{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	// The operation must have been screened; approvals cannot create a
	// verdict out of nothing.
	if _, err := s.store.LatestVerdict(ctx, req.UUID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.OperationVerdict{}, err
		}
		return model.OperationVerdict{}, fmt.Errorf("screening: load verdict for approval: %w", err)
	}

	approvedAt := req.ApprovedAtTime(s.now().UTC())
	records := make([]model.ApprovalRecord, 0, len(req.Approvals))
	for _, item := range req.Approvals {
		records = append(records, model.ApprovalRecord{
			UUID:          req.UUID,
			Role:          item.Role,
			Name:          item.Name,
			OverrideLevel: model.ParseRiskLevel(item.RiskChangeStatus),
			Reason:        item.ChangeReason,
			ApprovedAt:    approvedAt,
			Applicant:     req.Applicant,
		})
	}
	if err := s.store.InsertApprovals(ctx, records); err != nil {
		return model.OperationVerdict{}, fmt.Errorf("screening: record approvals: %w", err)
	}

	verdict, _, err := s.Reconcile(ctx, req.UUID)
	return verdict, err
}

// Reconcile replays the operation's full approval log onto its latest
// verdict: overrides apply in approved_at order, each only when newer than
// the entry's changed_at, projections recompute, and a new change-log row
// appends only when the reconciled stakeholder projection diverges from the
// change-log head. Reconciliation never calls upstream providers; a fresh
// look at the world is a new screening.
//
// The returned bool reports whether a change-log row was appended. With no
// approvals on file the stored verdict returns untouched and nothing is
// written.
func (s *Service) Reconcile(ctx context.Context, id uuid.UUID) (model.OperationVerdict, bool, error) {
	stored, err := s.store.LatestVerdict(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return model.OperationVerdict{}, false, err
		}
		return model.OperationVerdict{}, false, fmt.Errorf("screening: load latest verdict: %w", err)
	}

	approvals, err := s.store.ListApprovals(ctx, id)
	if err != nil {
		return model.OperationVerdict{}, false, fmt.Errorf("screening: list approvals: %w", err)
	}
	if len(approvals) == 0 {
		return stored, false, nil
	}

	verdict, err := stored.Clone()
	if err != nil {
		return model.OperationVerdict{}, false, fmt.Errorf("screening: clone verdict: %w", err)
	}

	applied := 0
	for _, a := range approvals {
		if s.applyApproval(verdict, a) {
			applied++
		}
	}
	Aggregate(verdict)

	appended, err := s.appendIfDiverged(ctx, verdict, applied)
	if err != nil {
		return model.OperationVerdict{}, false, err
	}
	s.logger.Info("reconciliation complete",
		"uuid", id, "approvals", len(approvals), "applied", applied, "appended", appended)
	return *verdict, appended, nil
}

// applyApproval rewrites one stakeholder entry per the override. A missing
// (role, name) is a conflict: the approval references a party the verdict
// never screened — warn and skip, reconciliation proceeds.
func (s *Service) applyApproval(v *model.OperationVerdict, a model.ApprovalRecord) bool {
	entry := locateStakeholder(v, a.Role, a.Name)
	if entry == nil {
		s.logger.Warn("approval references unknown stakeholder, skipping",
			"uuid", a.UUID, "role", a.Role, "name", a.Name)
		return false
	}

	// Timestamp precedence: an override older than the entry's last change
	// is stale — a newer automated finding wins.
	if entry.ChangedAt != nil && !a.ApprovedAt.After(*entry.ChangedAt) {
		return false
	}

	approvedAt := a.ApprovedAt
	entry.RiskLevel = a.OverrideLevel
	entry.ChangedAt = &approvedAt
	entry.ChangeReason = a.Reason
	return true
}

// locateStakeholder finds the verdict entry for (role, name); role keys
// match case-insensitively, names on the normalized form.
func locateStakeholder(v *model.OperationVerdict, role, name string) *model.StakeholderVerdict {
	want := model.NormalizeName(name)
	for key, list := range v.Stakeholders {
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

// appendIfDiverged writes the reconciled verdict to the change log only
// when its stakeholder projection differs from the change-log head, keeping
// repeated reconciliation of the same approvals idempotent.
func (s *Service) appendIfDiverged(ctx context.Context, v *model.OperationVerdict, applied int) (bool, error) {
	head, err := s.store.LatestChangeLog(ctx, v.UUID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("screening: load change-log head: %w", err)
	}
	if err == nil && slices.Equal(head.Verdict.StakeholderProjection(), v.StakeholderProjection()) {
		return false, nil
	}

	v.ScreenedAt = v.ScreenedAt.UTC()
	if err := s.store.InsertChangeLog(ctx, *v, applied); err != nil {
		return false, fmt.Errorf("screening: append change log: %w", err)
	}
	return true, nil
}

// History returns the operation's verdict trail, oldest first.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]storage.VerdictRecord, error) {
	return s.store.VerdictHistory(ctx, id)
}

// Latest returns the operation's current verdict.
func (s *Service) Latest(ctx context.Context, id uuid.UUID) (model.OperationVerdict, error) {
	return s.store.LatestVerdict(ctx, id)
}
