//go:build integration

package storage_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/storage"
	"github.com/harborview/marisk/internal/testutil"
)

var testDB *storage.DB

func TestMain(m *testing.M) {
	tc := testutil.MustStartPostgres()
	defer tc.Terminate()

	var err error
	testDB, err = tc.NewTestDB(context.Background(), testutil.TestLogger())
	if err != nil {
		tc.Terminate()
		panic(err)
	}
	code := m.Run()
	testDB.Close()
	tc.Terminate()
	os.Exit(code)
}

func sampleVerdict(id uuid.UUID, status model.OperationStatus) model.OperationVerdict {
	v := model.OperationVerdict{
		UUID:               id,
		Vertical:           model.VerticalVoyage,
		VesselIMO:          "9842190",
		VesselName:         "Pacific Dawn",
		ScreenedAt:         time.Now().UTC(),
		WindowStart:        "2025-08-25",
		WindowEnd:          "2026-08-25",
		OverallStatus:      status,
		OverallStatusLabel: status.Label(),
		VesselStatus:       model.RiskNone,
		StakeholderStatus:  model.RiskNone,
		Stakeholders: map[string][]model.StakeholderVerdict{
			"counterparty": {{Name: "Honest Shipping Co", RiskLevel: model.RiskNone, ScreenedAt: time.Now().UTC()}},
		},
	}
	v.VesselChecks.Set(model.CheckResult{CheckID: "vessel_sanctions", Subject: "9842190", RiskLevel: model.RiskNone})
	return v
}

func TestVerdictRoundTrip(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, testDB.InsertVerdict(ctx, sampleVerdict(id, model.StatusNormal)))

	got, err := testDB.LatestVerdict(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.UUID)
	assert.Equal(t, model.StatusNormal, got.OverallStatus)

	// Field order of the vessel-checks object survives the JSONB round trip.
	require.Equal(t, 1, got.VesselChecks.Len())
	r, ok := got.VesselChecks.Get("vessel_sanctions")
	require.True(t, ok)
	assert.Equal(t, "9842190", r.Subject)
}

func TestLatestVerdictNotFound(t *testing.T) {
	_, err := testDB.LatestVerdict(context.Background(), uuid.New())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestChangeLogWinsTie(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, testDB.InsertVerdict(ctx, sampleVerdict(id, model.StatusNormal)))
	require.NoError(t, testDB.InsertChangeLog(ctx, sampleVerdict(id, model.StatusIntercept), 2))

	got, err := testDB.LatestVerdict(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusIntercept, got.OverallStatus)

	rec, err := testDB.LatestChangeLog(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.ApprovalCount)
	assert.Equal(t, storage.SourceReconciliation, rec.Source)
}

func TestVerdictHistoryOrdering(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, testDB.InsertVerdict(ctx, sampleVerdict(id, model.StatusNormal)))
	require.NoError(t, testDB.InsertChangeLog(ctx, sampleVerdict(id, model.StatusWatch), 1))
	require.NoError(t, testDB.InsertVerdict(ctx, sampleVerdict(id, model.StatusIntercept)))

	records, err := testDB.VerdictHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, storage.SourceScreening, records[0].Source)
	assert.Equal(t, storage.SourceReconciliation, records[1].Source)
	assert.Equal(t, model.StatusIntercept, records[2].Verdict.OverallStatus)
}

func TestApprovalsRoundTrip(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	base := time.Now().UTC().Truncate(time.Microsecond)

	// Inserted newest-first; ListApprovals must return application order.
	require.NoError(t, testDB.InsertApprovals(ctx, []model.ApprovalRecord{
		{UUID: id, Role: "counterparty", Name: "Dark Fleet Holdings", OverrideLevel: model.RiskNone, ApprovedAt: base.Add(time.Hour), Applicant: model.Operator{ID: "op-2"}},
		{UUID: id, Role: "counterparty", Name: "Dark Fleet Holdings", OverrideLevel: model.RiskHigh, Reason: "manual review", ApprovedAt: base, Applicant: model.Operator{ID: "op-1"}},
	}))

	approvals, err := testDB.ListApprovals(ctx, id)
	require.NoError(t, err)
	require.Len(t, approvals, 2)
	assert.Equal(t, model.RiskHigh, approvals[0].OverrideLevel)
	assert.Equal(t, "manual review", approvals[0].Reason)
	assert.Equal(t, model.RiskNone, approvals[1].OverrideLevel)
	assert.Equal(t, "op-2", approvals[1].Applicant.ID)
}

func TestWatchlistRoundTrip(t *testing.T) {
	ctx := context.Background()
	listed := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, testDB.UpsertWatchlistVessel(ctx, storage.WatchlistVessel{
		IMO: "9700001", VesselName: "Dark Horizon", ListedAt: &listed, Source: "uani",
	}))
	// Upsert refreshes in place.
	require.NoError(t, testDB.UpsertWatchlistVessel(ctx, storage.WatchlistVessel{
		IMO: "9700001", VesselName: "Dark Horizon II", ListedAt: &listed, Source: "uani",
	}))

	w, err := testDB.LookupWatchlistVessel(ctx, "9700001")
	require.NoError(t, err)
	assert.Equal(t, "Dark Horizon II", w.VesselName)

	_, err = testDB.LookupWatchlistVessel(ctx, "1111111")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSanctionedEntityNormalizedLookup(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, testDB.UpsertSanctionedEntity(ctx, storage.SanctionedEntity{
		Name:         "Dark Fleet Holdings",
		SanctionsLev: "高风险",
		HighHits:     []json.RawMessage{json.RawMessage(`{"list":"OFAC"}`)},
		IsSan:        true,
	}))

	// Spelling variants of the stored name resolve to the same row.
	e, err := testDB.LookupSanctionedEntity(ctx, "  DARK   fleet HOLDINGS ")
	require.NoError(t, err)
	assert.Equal(t, "高风险", e.SanctionsLev)
	assert.True(t, e.IsSan)
	require.Len(t, e.HighHits, 1)
}

func TestLegacyDoubleEncodedHits(t *testing.T) {
	ctx := context.Background()

	// Legacy importer rows store the array as a JSON string.
	_, err := testDB.Pool().Exec(ctx,
		`INSERT INTO sanctioned_entities (name, name_normalized, sanctions_lev, high_hits)
		 VALUES ($1, $2, $3, to_jsonb($4::text))`,
		"Legacy Entity", model.NormalizeName("Legacy Entity"), "中风险", `[{"list":"EU"}]`,
	)
	require.NoError(t, err)

	e, err := testDB.LookupSanctionedEntity(ctx, "Legacy Entity")
	require.NoError(t, err)
	require.Len(t, e.HighHits, 1)
	assert.JSONEq(t, `{"list":"EU"}`, string(e.HighHits[0]))
}

func TestCountryTables(t *testing.T) {
	ctx := context.Background()

	require.NoError(t, testDB.AddHighRiskPortCountry(ctx, "Northland"))
	require.NoError(t, testDB.AddHighRiskOriginCountry(ctx, "Eastland"))

	listed, err := testDB.IsHighRiskPortCountry(ctx, "NORTHLAND")
	require.NoError(t, err)
	assert.True(t, listed)

	listed, err = testDB.IsHighRiskOriginCountry(ctx, "Westland")
	require.NoError(t, err)
	assert.False(t, listed)
}

func TestIdempotencyLifecycle(t *testing.T) {
	ctx := context.Background()
	endpoint := "POST:/v1/screenings/voyage"

	// First reservation owns processing.
	lookup, err := testDB.BeginIdempotency(ctx, endpoint, "key-1", "hash-1")
	require.NoError(t, err)
	assert.False(t, lookup.Completed)

	// Concurrent retry with the same payload blocks.
	_, err = testDB.BeginIdempotency(ctx, endpoint, "key-1", "hash-1")
	assert.ErrorIs(t, err, storage.ErrIdempotencyInProgress)

	// Same key, different payload is a conflict.
	_, err = testDB.BeginIdempotency(ctx, endpoint, "key-1", "hash-2")
	assert.ErrorIs(t, err, storage.ErrIdempotencyPayloadMismatch)

	require.NoError(t, testDB.CompleteIdempotency(ctx, endpoint, "key-1", 200, map[string]string{"ok": "yes"}))

	// Retry after completion replays the stored response.
	lookup, err = testDB.BeginIdempotency(ctx, endpoint, "key-1", "hash-1")
	require.NoError(t, err)
	assert.True(t, lookup.Completed)
	assert.Equal(t, 200, lookup.StatusCode)
	assert.JSONEq(t, `{"ok":"yes"}`, string(lookup.ResponseData))

	// Clearing an in-progress key frees it for retry.
	_, err = testDB.BeginIdempotency(ctx, endpoint, "key-2", "hash-1")
	require.NoError(t, err)
	require.NoError(t, testDB.ClearInProgressIdempotency(ctx, endpoint, "key-2"))
	lookup, err = testDB.BeginIdempotency(ctx, endpoint, "key-2", "hash-1")
	require.NoError(t, err)
	assert.False(t, lookup.Completed)

	// Cleanup with zero TTLs removes everything.
	deleted, err := testDB.CleanupIdempotencyKeys(ctx, 0, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, deleted, int64(2))
}
