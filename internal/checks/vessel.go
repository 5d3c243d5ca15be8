package checks

import (
	"time"

	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/upstream"
)

// Atomic vessel evaluators. Each classifies one signal out of the
// prefetched dataset; the matched items go into evidence verbatim so a
// reviewer can see what drove the level.

func evalCurrentSanctions(in Input) model.CheckResult {
	d := Catalog(VesselCurrentSanctions)
	if in.Data.Sanctions.Err != nil {
		return failed(d, in.Vessel.IMO, in.Now, in.Data.Sanctions.Err)
	}

	var current, historical []upstream.SanctionRecord
	highSource := false
	for _, rec := range in.Data.Sanctions.Value {
		if rec.EndDate == "" {
			current = append(current, rec)
			if IsHighRiskSanctionSource(rec.Source) {
				highSource = true
			}
		} else {
			historical = append(historical, rec)
		}
	}

	level := model.RiskNone
	switch {
	case highSource:
		level = model.RiskHigh
	case len(current) > 0:
		level = model.RiskMedium
	case len(historical) > 0:
		level = model.RiskMedium
	}

	matched := current
	if len(matched) == 0 {
		matched = historical
	}
	var evidence []byte
	if len(matched) > 0 {
		evidence = marshalEvidence(matched)
	}
	return result(d, in.Vessel.IMO, in.Now, level, evidence, map[string]any{
		"current_count":    len(current),
		"historical_count": len(historical),
	})
}

func evalHistoricalSanctions(in Input) model.CheckResult {
	d := Catalog(VesselHistoricalSanctions)
	if in.Data.Sanctions.Err != nil {
		return failed(d, in.Vessel.IMO, in.Now, in.Data.Sanctions.Err)
	}

	var historical []upstream.SanctionRecord
	for _, rec := range in.Data.Sanctions.Value {
		if rec.EndDate != "" {
			historical = append(historical, rec)
		}
	}
	if len(historical) == 0 {
		return result(d, in.Vessel.IMO, in.Now, model.RiskNone, nil, nil)
	}
	return result(d, in.Vessel.IMO, in.Now, model.RiskMedium, marshalEvidence(historical), map[string]any{
		"historical_count": len(historical),
	})
}

func evalUANIWatchlist(in Input) model.CheckResult {
	d := Catalog(VesselUANIWatchlist)
	if in.Data.Watchlist.Err != nil {
		return failed(d, in.Vessel.IMO, in.Now, in.Data.Watchlist.Err)
	}
	listed := in.Data.Watchlist.Value
	if listed == nil {
		return result(d, in.Vessel.IMO, in.Now, model.RiskNone, nil, nil)
	}
	return result(d, in.Vessel.IMO, in.Now, model.RiskHigh, marshalEvidence(listed), map[string]any{
		"source": listed.Source,
	})
}

func evalRiskScoreA(in Input) model.CheckResult {
	d := Catalog(VesselRiskScoreA)
	if in.Data.RiskScore.Err != nil {
		return failed(d, in.Vessel.IMO, in.Now, in.Data.RiskScore.Err)
	}
	score := in.Data.RiskScore.Value
	if score == nil || score.TotalRiskScore == nil {
		return result(d, in.Vessel.IMO, in.Now, model.RiskNone, nil, nil)
	}
	level := model.RiskMedium
	if *score.TotalRiskScore == 100 {
		level = model.RiskHigh
	}
	return result(d, in.Vessel.IMO, in.Now, level, marshalEvidence(score), map[string]any{
		"total_risk_score": *score.TotalRiskScore,
	})
}

func evalRiskScoreB(in Input) model.CheckResult {
	d := Catalog(VesselRiskScoreB)
	if in.Data.BulkRisk.Err != nil {
		return failed(d, in.Vessel.IMO, in.Now, in.Data.BulkRisk.Err)
	}
	risk := in.Data.BulkRisk.Value
	if risk == nil || risk.SanctionCount == 0 {
		return result(d, in.Vessel.IMO, in.Now, model.RiskNone, nil, nil)
	}
	return result(d, in.Vessel.IMO, in.Now, model.RiskHigh, marshalEvidence(risk), map[string]any{
		"sanction_count": risk.SanctionCount,
	})
}

// flagChangeLookback is the window within which a re-flagging classifies
// medium.
const flagChangeLookback = 365 * 24 * time.Hour

func evalFlagChange(in Input) model.CheckResult {
	d := Catalog(VesselFlagChange)
	if in.Data.RiskScore.Err != nil {
		return failed(d, in.Vessel.IMO, in.Now, in.Data.RiskScore.Err)
	}
	score := in.Data.RiskScore.Value
	if score == nil || score.Flag.FlagStartDate == "" {
		return result(d, in.Vessel.IMO, in.Now, model.RiskNone, nil, nil)
	}
	start, err := model.ParseISODate(score.Flag.FlagStartDate)
	if err != nil {
		// Unparseable provider date: treat as no recent change, keep the
		// raw value visible.
		return result(d, in.Vessel.IMO, in.Now, model.RiskNone, marshalEvidence(score.Flag), map[string]any{
			"flag_start_date": score.Flag.FlagStartDate,
		})
	}
	level := model.RiskNone
	if in.Now.Sub(start) <= flagChangeLookback {
		level = model.RiskMedium
	}
	return result(d, in.Vessel.IMO, in.Now, level, marshalEvidence(score.Flag), map[string]any{
		"flag_code":       score.Flag.FlagCode,
		"flag_start_date": score.Flag.FlagStartDate,
	})
}

func evalAISManipulation(in Input) model.CheckResult {
	d := Catalog(VesselAISManipulation)
	if in.Data.ComplianceRisks.Err != nil {
		return failed(d, in.Vessel.IMO, in.Now, in.Data.ComplianceRisks.Err)
	}
	for _, risk := range in.Data.ComplianceRisks.Value {
		if risk.RiskType != riskTypeAISManipulation {
			continue
		}
		var level model.RiskLevel
		switch risk.ComplianceRiskScore {
		case "High":
			level = model.RiskHigh
		case "Medium":
			level = model.RiskMedium
		default:
			level = model.RiskNone
		}
		return result(d, in.Vessel.IMO, in.Now, level, marshalEvidence(risk), map[string]any{
			"compliance_risk_score": risk.ComplianceRiskScore,
		})
	}
	return result(d, in.Vessel.IMO, in.Now, model.RiskNone, nil, nil)
}

// aisGapEvidence is one flagged AIS gap with its sanctioned-EEZ marker.
type aisGapEvidence struct {
	Voyage          upstream.VoyageEvent `json:"voyage"`
	IsSanctionedEEZ string               `json:"is_sanctioned_eez"`
}

func evalAISGap(in Input) model.CheckResult {
	d := Catalog(VesselAISGap)
	if in.Data.VoyageEvents.Err != nil {
		return failed(d, in.Vessel.IMO, in.Now, in.Data.VoyageEvents.Err)
	}
	var gaps []aisGapEvidence
	for _, v := range in.Data.VoyageEvents.Value {
		if !hasRiskType(v.RiskTypes, riskTypeAISGap) {
			continue
		}
		flag := model.FlagNo
		if IsSanctionedEEZ(v.AisGapStartEezName) {
			flag = model.FlagYes
		}
		gaps = append(gaps, aisGapEvidence{Voyage: v, IsSanctionedEEZ: flag})
	}
	if len(gaps) == 0 {
		return result(d, in.Vessel.IMO, in.Now, model.RiskNone, nil, nil)
	}
	return result(d, in.Vessel.IMO, in.Now, model.RiskMedium, marshalEvidence(gaps), map[string]any{
		"gap_count": len(gaps),
	})
}

func evalAISGapB(in Input) model.CheckResult {
	d := Catalog(VesselAISGapB)
	if in.Data.BulkRisk.Err != nil {
		return failed(d, in.Vessel.IMO, in.Now, in.Data.BulkRisk.Err)
	}
	risk := in.Data.BulkRisk.Value
	if risk == nil || len(risk.AISGaps) == 0 {
		return result(d, in.Vessel.IMO, in.Now, model.RiskNone, nil, nil)
	}
	return result(d, in.Vessel.IMO, in.Now, model.RiskMedium, marshalEvidence(risk.AISGaps), map[string]any{
		"gap_count": len(risk.AISGaps),
	})
}

// voyageTypeCheck classifies on the presence of voyages carrying any of the
// wanted risk types. Most behavior checks are instances of this shape.
func voyageTypeCheck(d Descriptor, in Input, level model.RiskLevel, match func([]string) bool) model.CheckResult {
	if in.Data.VoyageEvents.Err != nil {
		return failed(d, in.Vessel.IMO, in.Now, in.Data.VoyageEvents.Err)
	}
	var matched []upstream.VoyageEvent
	for _, v := range in.Data.VoyageEvents.Value {
		if match(v.RiskTypes) {
			matched = append(matched, v)
		}
	}
	if len(matched) == 0 {
		return result(d, in.Vessel.IMO, in.Now, model.RiskNone, nil, nil)
	}
	return result(d, in.Vessel.IMO, in.Now, level, marshalEvidence(matched), map[string]any{
		"voyage_count": len(matched),
	})
}

func evalRiskyPortCall(in Input) model.CheckResult {
	return voyageTypeCheck(Catalog(VesselRiskyPortCall), in, model.RiskHigh, func(types []string) bool {
		return hasRiskType(types, riskTypeHighRiskPort)
	})
}

func evalDarkPortCall(in Input) model.CheckResult {
	return voyageTypeCheck(Catalog(VesselDarkPortCall), in, model.RiskHigh, func(types []string) bool {
		return hasRiskTypeIn(types, darkPortTypes)
	})
}

func evalDarkSTS(in Input) model.CheckResult {
	return voyageTypeCheck(Catalog(VesselDarkSTS), in, model.RiskHigh, func(types []string) bool {
		return hasRiskTypeIn(types, darkSTSTypes)
	})
}

func evalSanctionedSTS(in Input) model.CheckResult {
	return voyageTypeCheck(Catalog(VesselSanctionedSTS), in, model.RiskHigh, func(types []string) bool {
		return hasRiskType(types, riskTypeSanctionedSTS)
	})
}

func evalLoitering(in Input) model.CheckResult {
	return voyageTypeCheck(Catalog(VesselLoitering), in, model.RiskMedium, func(types []string) bool {
		return hasRiskType(types, riskTypeLoitering)
	})
}

func evalCargoSanctioned(in Input) model.CheckResult {
	d := Catalog(VesselCargoSanctioned)
	if in.Data.BulkRisk.Err != nil {
		return failed(d, in.Vessel.IMO, in.Now, in.Data.BulkRisk.Err)
	}
	risk := in.Data.BulkRisk.Value
	if risk == nil || len(risk.Compliance.SanctionRisks.SanctionedCargo) == 0 {
		return result(d, in.Vessel.IMO, in.Now, model.RiskNone, nil, nil)
	}
	cargo := risk.Compliance.SanctionRisks.SanctionedCargo
	return result(d, in.Vessel.IMO, in.Now, model.RiskHigh, marshalEvidence(cargo), map[string]any{
		"cargo_count": len(cargo),
	})
}

func evalTradeSanctioned(in Input) model.CheckResult {
	d := Catalog(VesselTradeSanctioned)
	if in.Data.BulkRisk.Err != nil {
		return failed(d, in.Vessel.IMO, in.Now, in.Data.BulkRisk.Err)
	}
	risk := in.Data.BulkRisk.Value
	if risk == nil || len(risk.Compliance.SanctionRisks.SanctionedTrades) == 0 {
		return result(d, in.Vessel.IMO, in.Now, model.RiskNone, nil, nil)
	}
	trades := risk.Compliance.SanctionRisks.SanctionedTrades
	return result(d, in.Vessel.IMO, in.Now, model.RiskHigh, marshalEvidence(trades), map[string]any{
		"trade_count": len(trades),
	})
}

func evalSanctionedCompanies(in Input) model.CheckResult {
	d := Catalog(VesselSanctionedCompanies)
	if in.Data.CompanyScreening.Err != nil {
		return failed(d, in.Vessel.IMO, in.Now, in.Data.CompanyScreening.Err)
	}
	screening := in.Data.CompanyScreening.Value
	if screening == nil || len(screening.SanctionedCompanies) == 0 {
		return result(d, in.Vessel.IMO, in.Now, model.RiskNone, nil, nil)
	}
	return result(d, in.Vessel.IMO, in.Now, model.RiskHigh, marshalEvidence(screening.SanctionedCompanies), map[string]any{
		"company_count": len(screening.SanctionedCompanies),
	})
}
