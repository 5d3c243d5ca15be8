package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/marisk/internal/auth"
	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/screening"
	"github.com/harborview/marisk/internal/storage"
	"github.com/harborview/marisk/internal/upstream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is a minimal in-memory screening.Store for routing tests.
type memStore struct {
	mu       sync.Mutex
	verdicts []model.OperationVerdict
	changes  []model.OperationVerdict
	counts   []int
	records  []model.ApprovalRecord
}

func (m *memStore) InsertVerdict(_ context.Context, v model.OperationVerdict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts = append(m.verdicts, v)
	return nil
}

func (m *memStore) InsertChangeLog(_ context.Context, v model.OperationVerdict, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, v)
	m.counts = append(m.counts, n)
	return nil
}

func (m *memStore) LatestVerdict(_ context.Context, id uuid.UUID) (model.OperationVerdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.changes) - 1; i >= 0; i-- {
		if m.changes[i].UUID == id {
			return m.changes[i], nil
		}
	}
	for i := len(m.verdicts) - 1; i >= 0; i-- {
		if m.verdicts[i].UUID == id {
			return m.verdicts[i], nil
		}
	}
	return model.OperationVerdict{}, storage.ErrNotFound
}

func (m *memStore) LatestChangeLog(_ context.Context, id uuid.UUID) (storage.VerdictRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.changes) - 1; i >= 0; i-- {
		if m.changes[i].UUID == id {
			return storage.VerdictRecord{Verdict: m.changes[i], Source: storage.SourceReconciliation}, nil
		}
	}
	return storage.VerdictRecord{}, storage.ErrNotFound
}

func (m *memStore) VerdictHistory(_ context.Context, id uuid.UUID) ([]storage.VerdictRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.VerdictRecord
	for _, v := range m.verdicts {
		if v.UUID == id {
			out = append(out, storage.VerdictRecord{Verdict: v, Source: storage.SourceScreening})
		}
	}
	for _, v := range m.changes {
		if v.UUID == id {
			out = append(out, storage.VerdictRecord{Verdict: v, Source: storage.SourceReconciliation})
		}
	}
	return out, nil
}

func (m *memStore) InsertApprovals(_ context.Context, records []model.ApprovalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

func (m *memStore) ListApprovals(_ context.Context, id uuid.UUID) ([]model.ApprovalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ApprovalRecord
	for _, a := range m.records {
		if a.UUID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) LookupWatchlistVessel(context.Context, string) (storage.WatchlistVessel, error) {
	return storage.WatchlistVessel{}, storage.ErrNotFound
}

func (m *memStore) LookupSanctionedEntity(context.Context, string) (storage.SanctionedEntity, error) {
	return storage.SanctionedEntity{}, storage.ErrNotFound
}

func (m *memStore) IsHighRiskPortCountry(context.Context, string) (bool, error)   { return false, nil }
func (m *memStore) IsHighRiskOriginCountry(context.Context, string) (bool, error) { return false, nil }

// emptyProviders serves well-formed empty responses for every endpoint of
// both intelligence providers.
func emptyProviders(t *testing.T) (*httptest.Server, *httptest.Server) {
	t.Helper()
	a := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"IsSuccess":true,"Data":{"Items":[]}}`))
	}))
	t.Cleanup(a.Close)
	b := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(b.Close)
	return a, b
}

func newTestServer(t *testing.T, verifier *auth.Verifier) (*Server, *memStore) {
	t.Helper()
	store := &memStore{}
	aSrv, bSrv := emptyProviders(t)
	a := upstream.NewClientA(aSrv.URL, "token-a", 5*time.Second, 30*time.Second, testLogger())
	b := upstream.NewClientB(bSrv.URL, "token-b", 5*time.Second, 10*time.Second, testLogger())
	svc := screening.New(store, a, b, nil, 8, testLogger())

	if verifier == nil {
		var err error
		verifier, err = auth.NewVerifier("", nil, testLogger())
		require.NoError(t, err)
	}

	srv := New(ServerConfig{
		DB:                  nil, // routes under test never reach the pool
		ScreeningSvc:        svc,
		Verifier:            verifier,
		Logger:              testLogger(),
		Version:             "test",
		MaxRequestBodyBytes: 1 << 20,
	})
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func screeningBody(id uuid.UUID) model.ScreeningRequest {
	return model.ScreeningRequest{
		UUID:       id,
		VesselIMO:  "9842190",
		VesselName: "Clean Horizon",
		Roles: map[string][]string{
			"counterparty": {"Honest Shipping Co"},
			"sts_vessel":   {},
		},
		CargoOrigin: "Southland",
		PortCountry: "Northland",
		Operator:    model.Operator{ID: "op-1"},
	}
}

func TestScreeningEndToEnd(t *testing.T) {
	srv, store := newTestServer(t, nil)
	id := uuid.New()

	rec := doJSON(t, srv, http.MethodPost, "/v1/screenings/sts", screeningBody(id), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp struct {
		Data model.OperationVerdict `json:"data"`
		Meta model.ResponseMeta     `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.Data.UUID)
	assert.Equal(t, model.StatusNormal, resp.Data.OverallStatus)
	assert.NotEmpty(t, resp.Meta.RequestID)
	require.Len(t, store.verdicts, 1)

	// The stored verdict is now readable through the verdict routes.
	rec = doJSON(t, srv, http.MethodGet, "/v1/verdicts/"+id.String(), nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/v1/verdicts/"+id.String()+"/history", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
}

func TestScreeningUnknownVertical(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv, http.MethodPost, "/v1/screenings/chartering", screeningBody(uuid.New()), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScreeningInvalidBody(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/screenings/sts", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, model.ErrCodeInvalidInput, body.Error.Code)
}

func TestScreeningValidationFailure(t *testing.T) {
	srv, store := newTestServer(t, nil)

	bad := screeningBody(uuid.New())
	bad.VesselIMO = "12345" // not 7 digits
	rec := doJSON(t, srv, http.MethodPost, "/v1/screenings/sts", bad, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.verdicts)
}

func TestApprovalUnknownOperation(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv, http.MethodPost, "/v1/approvals", model.ApprovalRequest{
		UUID: uuid.New(),
		Approvals: []model.ApprovalItem{{
			Role: "counterparty", Name: "Anyone", RiskChangeStatus: "无风险",
		}},
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApprovalEndToEnd(t *testing.T) {
	srv, store := newTestServer(t, nil)
	id := uuid.New()

	rec := doJSON(t, srv, http.MethodPost, "/v1/screenings/sts", screeningBody(id), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/v1/approvals", model.ApprovalRequest{
		UUID: id,
		Approvals: []model.ApprovalItem{{
			Role: "counterparty", Name: "Honest Shipping Co",
			RiskChangeStatus: "高风险", ChangeReason: "adverse media hit",
		}},
		Applicant: model.Operator{ID: "op-2"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data model.OperationVerdict `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, model.RiskHigh, resp.Data.Stakeholders["counterparty"][0].RiskLevel)
	require.Len(t, store.records, 1)
	require.Len(t, store.changes, 1)
}

func TestVerdictBadUUID(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv, http.MethodGet, "/v1/verdicts/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerdictNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv, http.MethodGet, "/v1/verdicts/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReferenceWatchlistBadIMO(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv, http.MethodGet, "/v1/reference/watchlist/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRequiredWhenConfigured(t *testing.T) {
	hash, err := auth.HashAPIKey("sk-test")
	require.NoError(t, err)
	verifier, err := auth.NewVerifier("", []string{hash}, testLogger())
	require.NoError(t, err)
	srv, _ := newTestServer(t, verifier)

	id := uuid.New()

	rec := doJSON(t, srv, http.MethodPost, "/v1/screenings/sts", screeningBody(id), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/v1/screenings/sts", screeningBody(id), map[string]string{
		"Authorization": "Bearer sk-wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/v1/screenings/sts", screeningBody(id), map[string]string{
		"Authorization": "Bearer sk-test",
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv, http.MethodGet, "/v1/verdicts/"+uuid.NewString(), nil, nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRequestIDEchoed(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := doJSON(t, srv, http.MethodGet, "/v1/verdicts/"+uuid.NewString(), nil, map[string]string{
		"X-Request-ID": "fixed-id",
	})
	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))

	var body model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "fixed-id", body.Meta.RequestID)
}
