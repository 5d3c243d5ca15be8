package screening

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/storage"
)

func reconcilerUnderTest(store Store) *Service {
	// Reconciliation never touches upstream; nil clients make that a
	// hard guarantee in these tests.
	return New(store, nil, nil, nil, 8, testLogger())
}

func seedVerdict(t *testing.T, store *fakeStore, id uuid.UUID, t0 time.Time) {
	t.Helper()
	v := model.OperationVerdict{
		UUID:      id,
		Vertical:  model.VerticalSTS,
		VesselIMO: testIMO,
		Stakeholders: map[string][]model.StakeholderVerdict{
			"counterparty": {
				{Name: "Dark Fleet Holdings", RiskLevel: model.RiskHigh, ScreenedAt: t0, ChangedAt: &t0},
				{Name: "Honest Shipping Co", RiskLevel: model.RiskNone, ScreenedAt: t0, ChangedAt: &t0},
			},
			"sts_vessel": {},
		},
	}
	Aggregate(&v)
	require.NoError(t, store.InsertVerdict(context.Background(), v))
}

func TestReconcileNoApprovalsIsNoOp(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	seedVerdict(t, store, id, t0)

	svc := reconcilerUnderTest(store)
	verdict, appended, err := svc.Reconcile(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, appended)
	assert.Empty(t, store.changes)
	assert.Equal(t, model.RiskHigh, verdict.Stakeholders["counterparty"][0].RiskLevel)
}

func TestReconcileOverturn(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(48 * time.Hour)
	seedVerdict(t, store, id, t0)

	require.NoError(t, store.InsertApprovals(context.Background(), []model.ApprovalRecord{{
		UUID: id, Role: "counterparty", Name: "Dark Fleet Holdings",
		OverrideLevel: model.RiskNone, Reason: "cleared after manual review", ApprovedAt: t1,
	}}))

	svc := reconcilerUnderTest(store)
	verdict, appended, err := svc.Reconcile(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, appended)

	entry := verdict.Stakeholders["counterparty"][0]
	assert.Equal(t, model.RiskNone, entry.RiskLevel)
	require.NotNil(t, entry.ChangedAt)
	assert.Equal(t, t1, *entry.ChangedAt)
	assert.Equal(t, "cleared after manual review", entry.ChangeReason)

	// Projections recomputed over the overridden entry.
	assert.Equal(t, model.RiskNone, verdict.StakeholderStatus)
	assert.Equal(t, model.StatusNormal, verdict.OverallStatus)
	require.Len(t, store.changes, 1)

	// Same approvals again: projection matches the change-log head, no
	// second row.
	_, appended, err = svc.Reconcile(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, appended)
	assert.Len(t, store.changes, 1)
}

func TestReconcileStaleApprovalIgnored(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	seedVerdict(t, store, id, t0)

	// Approved before the machine's changed_at: the newer automated
	// finding wins.
	require.NoError(t, store.InsertApprovals(context.Background(), []model.ApprovalRecord{{
		UUID: id, Role: "counterparty", Name: "Dark Fleet Holdings",
		OverrideLevel: model.RiskNone, ApprovedAt: t0.Add(-time.Hour),
	}}))

	svc := reconcilerUnderTest(store)
	verdict, _, err := svc.Reconcile(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.RiskHigh, verdict.Stakeholders["counterparty"][0].RiskLevel)
}

func TestReconcileMissingChangedAtIsMinusInfinity(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	v := model.OperationVerdict{
		UUID: id, Vertical: model.VerticalSTS, VesselIMO: testIMO,
		Stakeholders: map[string][]model.StakeholderVerdict{
			"counterparty": {{Name: "Dark Fleet Holdings", RiskLevel: model.RiskHigh, ScreenedAt: t0}},
		},
	}
	Aggregate(&v)
	require.NoError(t, store.InsertVerdict(context.Background(), v))

	require.NoError(t, store.InsertApprovals(context.Background(), []model.ApprovalRecord{{
		UUID: id, Role: "counterparty", Name: "Dark Fleet Holdings",
		OverrideLevel: model.RiskMedium, ApprovedAt: t0.Add(-time.Hour),
	}}))

	svc := reconcilerUnderTest(store)
	verdict, _, err := svc.Reconcile(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.RiskMedium, verdict.Stakeholders["counterparty"][0].RiskLevel)
}

func TestReconcileConflictSkipped(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	seedVerdict(t, store, id, t0)

	require.NoError(t, store.InsertApprovals(context.Background(), []model.ApprovalRecord{
		{UUID: id, Role: "counterparty", Name: "Never Screened Ltd",
			OverrideLevel: model.RiskNone, ApprovedAt: t0.Add(time.Hour)},
		{UUID: id, Role: "counterparty", Name: "Dark Fleet Holdings",
			OverrideLevel: model.RiskMedium, ApprovedAt: t0.Add(2 * time.Hour)},
	}))

	svc := reconcilerUnderTest(store)
	verdict, appended, err := svc.Reconcile(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, appended)
	assert.Equal(t, model.RiskMedium, verdict.Stakeholders["counterparty"][0].RiskLevel)
}

func TestReconcileRoleMatchesCaseInsensitively(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	seedVerdict(t, store, id, t0)

	require.NoError(t, store.InsertApprovals(context.Background(), []model.ApprovalRecord{{
		UUID: id, Role: "Counterparty", Name: "DARK FLEET  holdings",
		OverrideLevel: model.RiskNone, ApprovedAt: t0.Add(time.Hour),
	}}))

	svc := reconcilerUnderTest(store)
	verdict, _, err := svc.Reconcile(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.RiskNone, verdict.Stakeholders["counterparty"][0].RiskLevel)
}

func TestReconcileAscendingOrderWins(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	seedVerdict(t, store, id, t0)

	// Inserted newest-first; the store returns them approved_at ascending
	// so the latest decision applies last.
	require.NoError(t, store.InsertApprovals(context.Background(), []model.ApprovalRecord{
		{UUID: id, Role: "counterparty", Name: "Dark Fleet Holdings",
			OverrideLevel: model.RiskMedium, ApprovedAt: t0.Add(3 * time.Hour)},
		{UUID: id, Role: "counterparty", Name: "Dark Fleet Holdings",
			OverrideLevel: model.RiskNone, ApprovedAt: t0.Add(1 * time.Hour)},
	}))

	svc := reconcilerUnderTest(store)
	verdict, _, err := svc.Reconcile(context.Background(), id)
	require.NoError(t, err)

	entry := verdict.Stakeholders["counterparty"][0]
	assert.Equal(t, model.RiskMedium, entry.RiskLevel)
	assert.Equal(t, t0.Add(3*time.Hour), *entry.ChangedAt)
}

func TestReconcileUnknownOperation(t *testing.T) {
	store := newFakeStore()
	svc := reconcilerUnderTest(store)
	_, _, err := svc.Reconcile(context.Background(), uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestApproveRecordsAndReconciles(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	seedVerdict(t, store, id, t0)

	svc := reconcilerUnderTest(store)
	verdict, err := svc.Approve(context.Background(), model.ApprovalRequest{
		UUID: id,
		Approvals: []model.ApprovalItem{{
			Role: "counterparty", Name: "Dark Fleet Holdings",
			RiskScreeningStatus: "高风险", RiskChangeStatus: "无风险",
			ChangeReason: "counterparty cleared by compliance",
		}},
		ApprovedAt: t0.Add(24 * time.Hour).Format(time.RFC3339),
		Applicant:  model.Operator{ID: "op-2", Name: "Approver"},
	})
	require.NoError(t, err)

	entry := verdict.Stakeholders["counterparty"][0]
	assert.Equal(t, model.RiskNone, entry.RiskLevel)
	assert.Equal(t, "counterparty cleared by compliance", entry.ChangeReason)
	require.Len(t, store.approvals, 1)
	assert.Equal(t, "op-2", store.approvals[0].Applicant.ID)
}

func TestApproveUnknownOperation(t *testing.T) {
	store := newFakeStore()
	svc := reconcilerUnderTest(store)
	_, err := svc.Approve(context.Background(), model.ApprovalRequest{
		UUID: uuid.New(),
		Approvals: []model.ApprovalItem{{
			Role: "counterparty", Name: "Anyone", RiskChangeStatus: "无风险",
		}},
	})
	require.ErrorIs(t, err, storage.ErrNotFound)
}
