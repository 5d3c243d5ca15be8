package checks

import "strings"

// Check ids. These are the JSON field names of the vessel_checks object and
// the keys of the catalog; changing one changes the stored verdict shape.
const (
	VesselCurrentSanctions    = "vessel_current_sanctions"
	VesselHistoricalSanctions = "vessel_historical_sanctions"
	VesselUANIWatchlist       = "vessel_uani_watchlist"
	VesselRiskScoreA          = "vessel_risk_score_a"
	VesselRiskScoreB          = "vessel_risk_score_b"
	VesselFlagChange          = "vessel_flag_change"
	VesselAISManipulation     = "vessel_ais_manipulation"
	VesselAISGap              = "vessel_ais_gap"
	VesselAISGapB             = "vessel_ais_gap_b"
	VesselRiskyPortCall       = "vessel_risky_port_call"
	VesselDarkPortCall        = "vessel_dark_port_call"
	VesselDarkSTS             = "vessel_dark_sts"
	VesselSanctionedSTS       = "vessel_sanctioned_sts"
	VesselLoitering           = "vessel_loitering"
	VesselCargoSanctioned     = "vessel_cargo_sanctioned"
	VesselTradeSanctioned     = "vessel_trade_sanctioned"
	VesselSanctionedCompanies = "vessel_sanctioned_companies"
	StakeholderSanctions      = "stakeholder_sanctions"
	PortCountryRisk           = "port_country_risk"
	CargoOriginRisk           = "cargo_origin_risk"

	CompositeVesselSanctions = "vessel_sanctions"
	CompositeVesselBehavior  = "vessel_behavior"
	CompositeVesselCargo     = "vessel_cargo"
)

// Sanction sources whose current designations classify high on their own.
var highRiskSanctionSources = map[string]struct{}{
	"OFAC": {},
	"EU":   {},
	"HM":   {},
	"UN":   {},
}

// IsHighRiskSanctionSource reports whether a current designation from this
// source classifies high. Matching is case-insensitive on the trimmed name.
func IsHighRiskSanctionSource(source string) bool {
	_, ok := highRiskSanctionSources[strings.ToUpper(strings.TrimSpace(source))]
	return ok
}

// sanctionedEEZs is the fixed set of exclusive economic zones whose AIS
// gaps are flagged is_sanctioned_eez. Keys are lowercase; membership is
// case-insensitive.
var sanctionedEEZs = map[string]struct{}{
	"iranian exclusive economic zone":    {},
	"north korean exclusive economic zone": {},
	"syrian exclusive economic zone":     {},
	"cuban exclusive economic zone":      {},
	"venezuelan exclusive economic zone": {},
	"crimean exclusive economic zone":    {},
}

// IsSanctionedEEZ reports whether an EEZ name belongs to the sanctioned set.
func IsSanctionedEEZ(name string) bool {
	_, ok := sanctionedEEZs[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Voyage risk-type vocabulary from the Intelligence-A voyage-events feed.
// Classification keys on exact provider strings.
const (
	riskTypeAISGap          = "Suspicious AIS Gap"
	riskTypeHighRiskPort    = "High Risk Port Calling"
	riskTypeLoitering       = "Suspicious Loitering"
	riskTypeSanctionedSTS   = "STS With Sanctioned Vessel"
	riskTypeAISManipulation = "VesselAisManipulation"
)

var darkPortTypes = map[string]struct{}{
	"Possible Dark Port Calling": {},
	"Probable Dark Port Calling": {},
}

var darkSTSTypes = map[string]struct{}{
	"Possible Dark STS": {},
	"Probable Dark STS": {},
}

// hasRiskType reports whether any of the voyage's risk types matches.
func hasRiskType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}

func hasRiskTypeIn(types []string, set map[string]struct{}) bool {
	for _, t := range types {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}
