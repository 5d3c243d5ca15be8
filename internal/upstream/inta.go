package upstream

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/harborview/marisk/internal/fetch"
	"github.com/harborview/marisk/internal/model"
)

// ProviderA is the label recorded on Intelligence-A errors and evidence.
const ProviderA = "intelligence-a"

// envelopeA is the wrapper Intelligence-A puts around every response.
// IsSuccess=false with a 200 status is a payload-level failure.
type envelopeA[T any] struct {
	IsSuccess bool   `json:"IsSuccess"`
	Message   string `json:"Message"`
	Data      struct {
		Items []T `json:"Items"`
	} `json:"Data"`
}

// ComplianceSummary is one entry from the vessel compliance endpoint.
type ComplianceSummary struct {
	RiskLevel   string `json:"RiskLevel"`
	Description string `json:"Description,omitempty"`
	Source      string `json:"Source,omitempty"`
	StartDate   string `json:"StartDate,omitempty"`
	EndDate     string `json:"EndDate,omitempty"`
}

// RiskScore is the vessel risk profile: a total score plus flag history
// fields used by the flag-change check.
type RiskScore struct {
	TotalRiskScore *float64 `json:"TotalRiskScore"`
	Flag           FlagInfo `json:"Flag"`
}

// FlagInfo describes the vessel's current flag registration.
type FlagInfo struct {
	FlagCode      string `json:"FlagCode,omitempty"`
	FlagName      string `json:"FlagName,omitempty"`
	FlagStartDate string `json:"FlagStartDate,omitempty"`
}

// SanctionRecord is one designation from the vessel sanctions endpoint.
// An empty EndDate means the designation is still in force.
type SanctionRecord struct {
	Source    string `json:"Source"`
	Program   string `json:"Program,omitempty"`
	StartDate string `json:"StartDate,omitempty"`
	EndDate   string `json:"EndDate,omitempty"`
}

// ComplianceRisk is one scored risk signal from the compliance-risks
// endpoint, keyed by provider risk type.
type ComplianceRisk struct {
	RiskType            string `json:"RiskType"`
	ComplianceRiskScore string `json:"ComplianceRiskScore"`
	StartDate           string `json:"StartDate,omitempty"`
	EndDate             string `json:"EndDate,omitempty"`
	Details             string `json:"Details,omitempty"`
}

// VoyageEvent is one behavioral event (AIS gap, dark activity, STS
// transfer, port call, loitering) from the voyage-events endpoint.
type VoyageEvent struct {
	VoyageID           string   `json:"VoyageId,omitempty"`
	RiskTypes          []string `json:"RiskTypes"`
	AisGapStartEezName string   `json:"AisGapStartEezName,omitempty"`
	AisGapEndEezName   string   `json:"AisGapEndEezName,omitempty"`
	PortName           string   `json:"PortName,omitempty"`
	PortCountry        string   `json:"PortCountry,omitempty"`
	PairedVesselIMO    string   `json:"PairedVesselImo,omitempty"`
	PairedVesselName   string   `json:"PairedVesselName,omitempty"`
	StartDate          string   `json:"StartDate,omitempty"`
	EndDate            string   `json:"EndDate,omitempty"`
}

// ClientA talks to Intelligence-A. Every lookup keys itself by method,
// URL and query parameters and runs through the caller's session cache,
// so repeated reads within one screening hit the wire once.
type ClientA struct {
	c *client
}

// NewClientA builds an Intelligence-A client. Short per-vessel lookups run
// on lookupTimeout; the provider serves risk scoring, compliance risks and
// voyage events slowly, so those run on bulkTimeout.
func NewClientA(baseURL, token string, lookupTimeout, bulkTimeout time.Duration, logger *slog.Logger) *ClientA {
	return &ClientA{c: newClient(ProviderA, baseURL, token, lookupTimeout, bulkTimeout, logger)}
}

func (a *ClientA) vesselURL(imo, suffix string) string {
	return a.c.baseURL + "/api/v1/vessels/" + url.PathEscape(imo) + "/" + suffix
}

func windowParams(w model.DateWindow) url.Values {
	return url.Values{"window": []string{w.Composite()}}
}

// getItems performs a cached GET against one vessel endpoint and unwraps
// the Items array from the provider envelope. timeout bounds the wire call.
func getItems[T any](ctx context.Context, a *ClientA, sess *fetch.Session, endpoint, rawURL string, params url.Values, timeout time.Duration) ([]T, error) {
	key, err := fetch.Key(http.MethodGet, rawURL, params, nil)
	if err != nil {
		return nil, &Error{Provider: ProviderA, Endpoint: endpoint, Kind: KindDecode, Err: err}
	}
	return fetch.Do(ctx, sess, key, func(ctx context.Context) ([]T, error) {
		u := rawURL
		if len(params) > 0 {
			u += "?" + params.Encode()
		}
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, &Error{Provider: ProviderA, Endpoint: endpoint, Kind: KindHTTP, Err: err}
		}
		var env envelopeA[T]
		if err := a.c.call(ctx, endpoint, req, timeout, &env); err != nil {
			return nil, err
		}
		if !env.IsSuccess {
			return nil, &Error{Provider: ProviderA, Endpoint: endpoint, Kind: KindDecode,
				Err: payloadError(env.Message)}
		}
		return env.Data.Items, nil
	})
}

// Compliance returns the vessel's compliance summary rows for the window.
func (a *ClientA) Compliance(ctx context.Context, sess *fetch.Session, imo string, w model.DateWindow) ([]ComplianceSummary, error) {
	return getItems[ComplianceSummary](ctx, a, sess, "compliance", a.vesselURL(imo, "compliance"), windowParams(w), a.c.lookupTimeout)
}

// RiskScore returns the vessel's risk profile, or nil when the provider
// has no record for the vessel. Scoring is one of the provider's slow
// endpoints and runs on the bulk budget.
func (a *ClientA) RiskScore(ctx context.Context, sess *fetch.Session, imo string, w model.DateWindow) (*RiskScore, error) {
	items, err := getItems[RiskScore](ctx, a, sess, "risk", a.vesselURL(imo, "risk"), windowParams(w), a.c.bulkTimeout)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// Sanctions returns the vessel's designation history across all lists.
// The endpoint is not window-scoped; currency is judged from EndDate.
func (a *ClientA) Sanctions(ctx context.Context, sess *fetch.Session, imo string) ([]SanctionRecord, error) {
	return getItems[SanctionRecord](ctx, a, sess, "sanctions", a.vesselURL(imo, "sanctions"), nil, a.c.lookupTimeout)
}

// ComplianceRisks returns the vessel's scored risk signals for the window,
// on the bulk budget.
func (a *ClientA) ComplianceRisks(ctx context.Context, sess *fetch.Session, imo string, w model.DateWindow) ([]ComplianceRisk, error) {
	return getItems[ComplianceRisk](ctx, a, sess, "compliance-risks", a.vesselURL(imo, "compliance-risks"), windowParams(w), a.c.bulkTimeout)
}

// VoyageEvents returns the vessel's behavioral events for the window, on
// the bulk budget.
func (a *ClientA) VoyageEvents(ctx context.Context, sess *fetch.Session, imo string, w model.DateWindow) ([]VoyageEvent, error) {
	return getItems[VoyageEvent](ctx, a, sess, "voyage-events", a.vesselURL(imo, "voyage-events"), windowParams(w), a.c.bulkTimeout)
}

type payloadError string

func (p payloadError) Error() string {
	if p == "" {
		return "provider reported failure"
	}
	return "provider reported failure: " + string(p)
}
