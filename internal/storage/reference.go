package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/harborview/marisk/internal/model"
)

// WatchlistVessel is one row of the vessel watchlist.
type WatchlistVessel struct {
	IMO        string     `json:"imo"`
	VesselName string     `json:"vessel_name"`
	ListedAt   *time.Time `json:"listed_at,omitempty"`
	Source     string     `json:"source,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// SanctionedEntity is one row of the sanctioned-entities register. Hit
// arrays and flags are attached verbatim to check evidence; only
// SanctionsLev feeds classification.
type SanctionedEntity struct {
	Name                  string            `json:"name"`
	SanctionsLev          string            `json:"sanctions_lev"`
	HighHits              []json.RawMessage `json:"high_hits"`
	MediumHits            []json.RawMessage `json:"medium_hits"`
	NoRiskHits            []json.RawMessage `json:"no_risk_hits"`
	IsSan                 bool              `json:"is_san"`
	IsSco                 bool              `json:"is_sco"`
	IsOol                 bool              `json:"is_ool"`
	IsOneYear             bool              `json:"is_one_year"`
	IsSanctionedCountries bool              `json:"is_sanctioned_countries"`
	Description           json.RawMessage   `json:"description,omitempty"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// LookupWatchlistVessel returns the watchlist row for an IMO, or
// ErrNotFound when the vessel is not listed.
func (db *DB) LookupWatchlistVessel(ctx context.Context, imo string) (WatchlistVessel, error) {
	var w WatchlistVessel
	err := db.pool.QueryRow(ctx,
		`SELECT imo, vessel_name, listed_at, source, notes FROM uani_vessels WHERE imo = $1`,
		imo,
	).Scan(&w.IMO, &w.VesselName, &w.ListedAt, &w.Source, &w.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WatchlistVessel{}, ErrNotFound
		}
		return WatchlistVessel{}, fmt.Errorf("storage: lookup watchlist: %w", err)
	}
	return w, nil
}

// UpsertWatchlistVessel inserts or refreshes a watchlist row, keyed by IMO.
func (db *DB) UpsertWatchlistVessel(ctx context.Context, w WatchlistVessel) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO uani_vessels (imo, vessel_name, listed_at, source, notes)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (imo) DO UPDATE SET
		   vessel_name = EXCLUDED.vessel_name,
		   listed_at = EXCLUDED.listed_at,
		   source = EXCLUDED.source,
		   notes = EXCLUDED.notes`,
		w.IMO, w.VesselName, w.ListedAt, w.Source, w.Notes,
	)
	if err != nil {
		return fmt.Errorf("storage: upsert watchlist: %w", err)
	}
	return nil
}

// LookupSanctionedEntity returns the register row matching the name after
// normalization, or ErrNotFound. Hit arrays decode to arrays regardless of
// whether the row stores them natively or legacy string-encoded.
func (db *DB) LookupSanctionedEntity(ctx context.Context, name string) (SanctionedEntity, error) {
	var (
		e                        SanctionedEntity
		highRaw, medRaw, noneRaw []byte
	)
	err := db.pool.QueryRow(ctx,
		`SELECT name, sanctions_lev, high_hits, medium_hits, no_risk_hits,
		 is_san, is_sco, is_ool, is_one_year, is_sanctioned_countries, description, updated_at
		 FROM sanctioned_entities WHERE name_normalized = $1`,
		model.NormalizeName(name),
	).Scan(&e.Name, &e.SanctionsLev, &highRaw, &medRaw, &noneRaw,
		&e.IsSan, &e.IsSco, &e.IsOol, &e.IsOneYear, &e.IsSanctionedCountries,
		&e.Description, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SanctionedEntity{}, ErrNotFound
		}
		return SanctionedEntity{}, fmt.Errorf("storage: lookup sanctioned entity: %w", err)
	}

	if e.HighHits, err = decodeJSONArray(highRaw); err != nil {
		return SanctionedEntity{}, fmt.Errorf("storage: decode high hits for %q: %w", e.Name, err)
	}
	if e.MediumHits, err = decodeJSONArray(medRaw); err != nil {
		return SanctionedEntity{}, fmt.Errorf("storage: decode medium hits for %q: %w", e.Name, err)
	}
	if e.NoRiskHits, err = decodeJSONArray(noneRaw); err != nil {
		return SanctionedEntity{}, fmt.Errorf("storage: decode no-risk hits for %q: %w", e.Name, err)
	}
	return e, nil
}

// UpsertSanctionedEntity inserts or refreshes a register row, keyed by the
// normalized name. Arrays are stored natively; reads still accept legacy
// string-encoded rows.
func (db *DB) UpsertSanctionedEntity(ctx context.Context, e SanctionedEntity) error {
	high, err := marshalJSONArray(e.HighHits)
	if err != nil {
		return fmt.Errorf("storage: marshal high hits: %w", err)
	}
	med, err := marshalJSONArray(e.MediumHits)
	if err != nil {
		return fmt.Errorf("storage: marshal medium hits: %w", err)
	}
	none, err := marshalJSONArray(e.NoRiskHits)
	if err != nil {
		return fmt.Errorf("storage: marshal no-risk hits: %w", err)
	}
	desc := e.Description
	if len(desc) == 0 {
		desc = json.RawMessage("{}")
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO sanctioned_entities (name, name_normalized, sanctions_lev,
		 high_hits, medium_hits, no_risk_hits,
		 is_san, is_sco, is_ool, is_one_year, is_sanctioned_countries, description, updated_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6::jsonb, $7, $8, $9, $10, $11, $12::jsonb, $13)
		 ON CONFLICT (name_normalized) DO UPDATE SET
		   name = EXCLUDED.name,
		   sanctions_lev = EXCLUDED.sanctions_lev,
		   high_hits = EXCLUDED.high_hits,
		   medium_hits = EXCLUDED.medium_hits,
		   no_risk_hits = EXCLUDED.no_risk_hits,
		   is_san = EXCLUDED.is_san,
		   is_sco = EXCLUDED.is_sco,
		   is_ool = EXCLUDED.is_ool,
		   is_one_year = EXCLUDED.is_one_year,
		   is_sanctioned_countries = EXCLUDED.is_sanctioned_countries,
		   description = EXCLUDED.description,
		   updated_at = EXCLUDED.updated_at`,
		e.Name, model.NormalizeName(e.Name), e.SanctionsLev,
		high, med, none,
		e.IsSan, e.IsSco, e.IsOol, e.IsOneYear, e.IsSanctionedCountries,
		desc, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage: upsert sanctioned entity: %w", err)
	}
	return nil
}

// IsHighRiskPortCountry reports whether the country appears in the
// high-risk port-country table. Matching is on the normalized name.
func (db *DB) IsHighRiskPortCountry(ctx context.Context, country string) (bool, error) {
	return db.countryListed(ctx, "high_risk_port_countries", country)
}

// IsHighRiskOriginCountry reports whether the country appears in the
// high-risk cargo-origin table. Matching is on the normalized name.
func (db *DB) IsHighRiskOriginCountry(ctx context.Context, country string) (bool, error) {
	return db.countryListed(ctx, "high_risk_origin_countries", country)
}

// AddHighRiskPortCountry adds a country to the high-risk port table.
func (db *DB) AddHighRiskPortCountry(ctx context.Context, country string) error {
	return db.addCountry(ctx, "high_risk_port_countries", country)
}

// AddHighRiskOriginCountry adds a country to the high-risk origin table.
func (db *DB) AddHighRiskOriginCountry(ctx context.Context, country string) error {
	return db.addCountry(ctx, "high_risk_origin_countries", country)
}

func (db *DB) countryListed(ctx context.Context, table, country string) (bool, error) {
	var listed bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE country_normalized = $1)`,
		model.NormalizeName(country),
	).Scan(&listed)
	if err != nil {
		return false, fmt.Errorf("storage: lookup %s: %w", table, err)
	}
	return listed, nil
}

func (db *DB) addCountry(ctx context.Context, table, country string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO `+table+` (country_normalized, country, added_at)
		 VALUES ($1, $2, now()) ON CONFLICT DO NOTHING`,
		model.NormalizeName(country), country,
	)
	if err != nil {
		return fmt.Errorf("storage: add to %s: %w", table, err)
	}
	return nil
}

// ReferenceCounts reports the register sizes, logged once at boot so an
// operator can spot an empty or stale import immediately.
func (db *DB) ReferenceCounts(ctx context.Context) (watchlist, entities int64, err error) {
	err = db.pool.QueryRow(ctx,
		`SELECT (SELECT count(*) FROM uani_vessels), (SELECT count(*) FROM sanctioned_entities)`,
	).Scan(&watchlist, &entities)
	if err != nil {
		return 0, 0, fmt.Errorf("storage: reference counts: %w", err)
	}
	return watchlist, entities, nil
}

// decodeJSONArray decodes a JSONB array cell into its elements. Legacy
// rows store arrays double-encoded as JSON strings; both forms decode to
// the same representation.
func decodeJSONArray(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		trimmed = []byte(s)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func marshalJSONArray(items []json.RawMessage) ([]byte, error) {
	if items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(items)
}
