package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/harborview/marisk/internal/fetch"
	"github.com/harborview/marisk/internal/model"
)

// ProviderB is the label recorded on Intelligence-B errors and evidence.
const ProviderB = "intelligence-b"

// VesselRisk is one vessel's entry in the bulk risk response.
type VesselRisk struct {
	IMO           int             `json:"imo"`
	SanctionCount int             `json:"sanctionCount"`
	AISGaps       []AISGap        `json:"aisGaps"`
	Compliance    ComplianceRisks `json:"compliance"`
}

// AISGap is one reported transponder gap.
type AISGap struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Zone      string `json:"zone,omitempty"`
}

// ComplianceRisks nests the sanction-risk block of a bulk entry.
type ComplianceRisks struct {
	SanctionRisks SanctionRisks `json:"sanctionRisks"`
}

// SanctionRisks carries the cargo and trade findings. Elements stay raw:
// the checks only test presence and attach them to evidence unchanged.
type SanctionRisks struct {
	SanctionedCargo  []json.RawMessage `json:"sanctionedCargo"`
	SanctionedTrades []json.RawMessage `json:"sanctionedTrades"`
}

// ComplianceScreening is the per-vessel compliance response, listing
// sanctioned companies linked to the vessel.
type ComplianceScreening struct {
	IMO                 int                 `json:"imo,omitempty"`
	ComplianceStatus    string              `json:"complianceStatus,omitempty"`
	SanctionedCompanies []SanctionedCompany `json:"sanctionedCompanies"`
}

// SanctionedCompany is one company designation tied to a vessel.
type SanctionedCompany struct {
	Name   string `json:"name"`
	Role   string `json:"role,omitempty"`
	Source string `json:"source,omitempty"`
}

// ClientB talks to Intelligence-B.
type ClientB struct {
	c *client
}

// NewClientB builds an Intelligence-B client. bulkTimeout bounds the
// batch risk call, which the provider serves far slower than lookups.
func NewClientB(baseURL, token string, lookupTimeout, bulkTimeout time.Duration, logger *slog.Logger) *ClientB {
	return &ClientB{c: newClient(ProviderB, baseURL, token, lookupTimeout, bulkTimeout, logger)}
}

type bulkRiskRequest struct {
	IMOs      []int  `json:"imos"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// BulkRisk screens a set of vessels in one call. IMOs are deduplicated
// and sorted ascending before keying, so any permutation of the same set
// shares a cache entry.
func (b *ClientB) BulkRisk(ctx context.Context, sess *fetch.Session, imos []int, w model.DateWindow) ([]VesselRisk, error) {
	const endpoint = "bulk-risk"
	sorted := slices.Clone(imos)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	rawURL := b.c.baseURL + "/v2/vessels/risk"
	body := bulkRiskRequest{IMOs: sorted, StartDate: w.StartISO(), EndDate: w.EndISO()}
	key, err := fetch.KeyJSON(http.MethodPost, rawURL, nil, body)
	if err != nil {
		return nil, &Error{Provider: ProviderB, Endpoint: endpoint, Kind: KindDecode, Err: err}
	}
	return fetch.Do(ctx, sess, key, func(ctx context.Context) ([]VesselRisk, error) {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Provider: ProviderB, Endpoint: endpoint, Kind: KindDecode, Err: err}
		}
		req, err := http.NewRequest(http.MethodPost, rawURL, bytes.NewReader(payload))
		if err != nil {
			return nil, &Error{Provider: ProviderB, Endpoint: endpoint, Kind: KindHTTP, Err: err}
		}
		req.Header.Set("Content-Type", "application/json")
		var out []VesselRisk
		if err := b.c.call(ctx, endpoint, req, b.c.bulkTimeout, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Compliance returns the vessel's company screening, or nil when the
// provider has no record.
func (b *ClientB) Compliance(ctx context.Context, sess *fetch.Session, imo int) (*ComplianceScreening, error) {
	const endpoint = "compliance"
	rawURL := b.c.baseURL + "/v2/vessels/" + url.PathEscape(model.FormatIMO(imo)) + "/compliance"
	key, err := fetch.Key(http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return nil, &Error{Provider: ProviderB, Endpoint: endpoint, Kind: KindDecode, Err: err}
	}
	return fetch.Do(ctx, sess, key, func(ctx context.Context) (*ComplianceScreening, error) {
		req, err := http.NewRequest(http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, &Error{Provider: ProviderB, Endpoint: endpoint, Kind: KindHTTP, Err: err}
		}
		var out ComplianceScreening
		if err := b.c.call(ctx, endpoint, req, b.c.lookupTimeout, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// FindVesselRisk picks one vessel's entry out of a bulk response.
func FindVesselRisk(risks []VesselRisk, imo int) *VesselRisk {
	for i := range risks {
		if risks[i].IMO == imo {
			return &risks[i]
		}
	}
	return nil
}
