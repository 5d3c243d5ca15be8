package upstream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/marisk/internal/fetch"
	"github.com/harborview/marisk/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testWindow() model.DateWindow {
	return model.DateWindow{
		Start: time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
	}
}

func envelopeAResponse(items any) []byte {
	b, _ := json.Marshal(map[string]any{
		"IsSuccess": true,
		"Data":      map[string]any{"Items": items},
	})
	return b
}

func TestClientASanctions(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write(envelopeAResponse([]SanctionRecord{
			{Source: "OFAC", StartDate: "2024-01-15"},
		}))
	}))
	defer srv.Close()

	a := NewClientA(srv.URL, "token-a", 5*time.Second, 30*time.Second, testLogger())
	records, err := a.Sanctions(context.Background(), fetch.NewSession(nil), "9842190")
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-a", gotAuth)
	assert.Equal(t, "/api/v1/vessels/9842190/sanctions", gotPath)
	require.Len(t, records, 1)
	assert.Equal(t, "OFAC", records[0].Source)
}

func TestClientAWindowParam(t *testing.T) {
	var gotWindow string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWindow = r.URL.Query().Get("window")
		_, _ = w.Write(envelopeAResponse([]ComplianceSummary{}))
	}))
	defer srv.Close()

	a := NewClientA(srv.URL, "token-a", 5*time.Second, 30*time.Second, testLogger())
	_, err := a.Compliance(context.Background(), fetch.NewSession(nil), "9842190", testWindow())
	require.NoError(t, err)
	assert.Equal(t, "2025-08-25-2026-08-25", gotWindow)
}

func TestClientARiskScoreEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(envelopeAResponse([]RiskScore{}))
	}))
	defer srv.Close()

	a := NewClientA(srv.URL, "token-a", 5*time.Second, 30*time.Second, testLogger())
	score, err := a.RiskScore(context.Background(), fetch.NewSession(nil), "9842190", testWindow())
	require.NoError(t, err)
	assert.Nil(t, score, "no record decodes to nil, not an error")
}

func TestClientAAuthDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a := NewClientA(srv.URL, "bad-token", 5*time.Second, 30*time.Second, testLogger())
	_, err := a.Sanctions(context.Background(), fetch.NewSession(nil), "9842190")
	require.Error(t, err)

	ue, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindAuthDenied, ue.Kind)
	assert.Equal(t, ProviderA, ue.Provider)
	assert.Equal(t, http.StatusForbidden, ue.Status)
}

func TestClientAPayloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"IsSuccess":false,"Message":"vessel unknown"}`))
	}))
	defer srv.Close()

	a := NewClientA(srv.URL, "token-a", 5*time.Second, 30*time.Second, testLogger())
	_, err := a.Sanctions(context.Background(), fetch.NewSession(nil), "9842190")
	require.Error(t, err)

	ue, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindDecode, ue.Kind)
	assert.Contains(t, ue.Error(), "vessel unknown")
}

func TestClientATimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write(envelopeAResponse([]SanctionRecord{}))
	}))
	defer srv.Close()

	a := NewClientA(srv.URL, "token-a", 20*time.Millisecond, 30*time.Second, testLogger())
	_, err := a.Sanctions(context.Background(), fetch.NewSession(nil), "9842190")
	require.Error(t, err)

	ue, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, ue.Kind)
}

func TestClientASlowEndpointsUseBulkBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(120 * time.Millisecond)
		_, _ = w.Write(envelopeAResponse([]VoyageEvent{
			{RiskTypes: []string{"Suspicious Loitering"}},
		}))
	}))
	defer srv.Close()

	// The lookup budget alone would expire mid-response; voyage events run
	// on the bulk budget.
	a := NewClientA(srv.URL, "token-a", 20*time.Millisecond, 2*time.Second, testLogger())
	events, err := a.VoyageEvents(context.Background(), fetch.NewSession(nil), "9842190", testWindow())
	require.NoError(t, err)
	require.Len(t, events, 1)

	// The short budget still bounds the quick lookups.
	_, err = a.Sanctions(context.Background(), fetch.NewSession(nil), "9842190")
	require.Error(t, err)
	ue, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, ue.Kind)
}

func TestClientASessionCoalesces(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write(envelopeAResponse([]SanctionRecord{{Source: "OFAC"}}))
	}))
	defer srv.Close()

	a := NewClientA(srv.URL, "token-a", 5*time.Second, 30*time.Second, testLogger())
	sess := fetch.NewSession(nil)

	for range 3 {
		records, err := a.Sanctions(context.Background(), sess, "9842190")
		require.NoError(t, err)
		require.Len(t, records, 1)
	}
	assert.Equal(t, int64(1), calls.Load(), "repeated reads within one session hit the wire once")

	// A fresh session goes back to the wire.
	_, err := a.Sanctions(context.Background(), fetch.NewSession(nil), "9842190")
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestClientBBulkRisk(t *testing.T) {
	var calls atomic.Int64
	var gotBody bulkRiskRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v2/vessels/risk", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode([]VesselRisk{
			{IMO: 9842190, SanctionCount: 1},
			{IMO: 9700001},
		})
	}))
	defer srv.Close()

	b := NewClientB(srv.URL, "token-b", 5*time.Second, 10*time.Second, testLogger())
	sess := fetch.NewSession(nil)

	risks, err := b.BulkRisk(context.Background(), sess, []int{9842190, 9700001, 9842190}, testWindow())
	require.NoError(t, err)
	require.Len(t, risks, 2)

	// IMOs dedupe and sort before the wire call.
	assert.Equal(t, []int{9700001, 9842190}, gotBody.IMOs)
	assert.Equal(t, "2025-08-25", gotBody.StartDate)

	// Any permutation of the same set shares the cache entry.
	_, err = b.BulkRisk(context.Background(), sess, []int{9700001, 9842190}, testWindow())
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())

	hit := FindVesselRisk(risks, 9842190)
	require.NotNil(t, hit)
	assert.Equal(t, 1, hit.SanctionCount)
	assert.Nil(t, FindVesselRisk(risks, 1111111))
}

func TestClientBCompliance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/vessels/9842190/compliance", r.URL.Path)
		_ = json.NewEncoder(w).Encode(ComplianceScreening{
			IMO:              9842190,
			ComplianceStatus: "Sanctioned",
			SanctionedCompanies: []SanctionedCompany{
				{Name: "Dark Fleet Holdings", Role: "owner", Source: "OFAC"},
			},
		})
	}))
	defer srv.Close()

	b := NewClientB(srv.URL, "token-b", 5*time.Second, 10*time.Second, testLogger())
	screening, err := b.Compliance(context.Background(), fetch.NewSession(nil), 9842190)
	require.NoError(t, err)
	require.NotNil(t, screening)
	require.Len(t, screening.SanctionedCompanies, 1)
	assert.Equal(t, "Dark Fleet Holdings", screening.SanctionedCompanies[0].Name)
}

func TestCircuitBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewClientA(srv.URL, "token-a", 5*time.Second, 30*time.Second, testLogger())

	// Each failure uses a fresh session so the error is not memoized away.
	var lastErr error
	for range 6 {
		_, lastErr = a.Sanctions(context.Background(), fetch.NewSession(nil), "9842190")
		require.Error(t, lastErr)
	}

	// After five consecutive failures the breaker rejects without dialing.
	ue, ok := AsError(lastErr)
	require.True(t, ok)
	assert.Equal(t, KindHTTP, ue.Kind)
	assert.Zero(t, ue.Status, "breaker-open failure carries no HTTP status")
}
