package checks

import (
	"errors"
	"time"

	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/storage"
)

// EvaluateStakeholder classifies one named party against the sanctioned-
// entities register. ent is the lookup result; a storage.ErrNotFound from
// the lookup arrives here as a nil ent with a nil err and classifies none.
// The stored level maps directly; hit arrays and flags attach verbatim to
// the reason map.
func EvaluateStakeholder(name string, now time.Time, ent *storage.SanctionedEntity, err error) model.CheckResult {
	d := Catalog(StakeholderSanctions)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return failed(d, name, now, err)
	}
	if ent == nil || errors.Is(err, storage.ErrNotFound) {
		return result(d, name, now, model.RiskNone, nil, emptyHitReason())
	}

	reason := map[string]any{
		"sanctions_list":     rawOrEmpty(ent.HighHits),
		"mid_sanctions_list": rawOrEmpty(ent.MediumHits),
		"no_sanctions_list":  rawOrEmpty(ent.NoRiskHits),
		"flags": map[string]bool{
			"is_san":                 ent.IsSan,
			"is_sco":                 ent.IsSco,
			"is_ool":                 ent.IsOol,
			"is_one_year":            ent.IsOneYear,
			"is_sanctioned_countries": ent.IsSanctionedCountries,
		},
	}
	var evidence []byte
	if len(ent.Description) > 0 {
		evidence = ent.Description
	}
	return result(d, name, now, model.ParseRiskLevel(ent.SanctionsLev), evidence, reason)
}

func emptyHitReason() map[string]any {
	return map[string]any{
		"sanctions_list":     []any{},
		"mid_sanctions_list": []any{},
		"no_sanctions_list":  []any{},
		"flags":              map[string]bool{},
	}
}

func rawOrEmpty[T any](items []T) any {
	if items == nil {
		return []any{}
	}
	return items
}

// EvaluateCountry classifies a country against one of the high-risk country
// tables. id selects the descriptor (PortCountryRisk or CargoOriginRisk);
// listed is the table membership result.
func EvaluateCountry(id, country string, now time.Time, listed bool, err error) model.CheckResult {
	d := Catalog(id)
	if err != nil {
		return failed(d, country, now, err)
	}
	if !listed {
		return result(d, country, now, model.RiskNone, nil, nil)
	}
	return result(d, country, now, model.RiskHigh, marshalEvidence(map[string]string{
		"country": country,
	}), map[string]any{"listed": true})
}
