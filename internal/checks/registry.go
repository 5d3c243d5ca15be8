package checks

import (
	"fmt"

	"github.com/harborview/marisk/internal/model"
)

var (
	none   = model.RiskNone
	medium = model.RiskMedium
	high   = model.RiskHigh
)

// catalog is the static check registry. Order here fixes the order of
// vessel-level fields in every stored verdict.
var catalog = []Descriptor{
	{
		ID: VesselCurrentSanctions, Kind: KindAtomic, Category: CategoryVesselSanctions,
		Subject: model.SubjectVessel,
		Levels:  []model.RiskLevel{none, medium, high},
		Description: "Current sanctions designations against the vessel",
		evaluate:    evalCurrentSanctions,
	},
	{
		ID: VesselHistoricalSanctions, Kind: KindAtomic, Category: CategoryVesselSanctions,
		Subject: model.SubjectVessel,
		Levels:  []model.RiskLevel{none, medium},
		Description: "Expired sanctions designations against the vessel",
		evaluate:    evalHistoricalSanctions,
	},
	{
		ID: VesselUANIWatchlist, Kind: KindAtomic, Category: CategoryVesselSanctions,
		Subject: model.SubjectVessel,
		Levels:  []model.RiskLevel{none, high},
		Description: "Vessel appears on the UANI watchlist",
		evaluate:    evalUANIWatchlist,
	},
	{
		ID: VesselRiskScoreA, Kind: KindAtomic, Category: CategoryVesselSanctions,
		Subject: model.SubjectVessel, NeedsWindow: true,
		Levels:  []model.RiskLevel{none, medium, high},
		Description: "Provider A total risk score over the screening window",
		evaluate:    evalRiskScoreA,
	},
	{
		ID: VesselRiskScoreB, Kind: KindAtomic, Category: CategoryVesselSanctions,
		Subject: model.SubjectVessel, NeedsWindow: true,
		Levels:  []model.RiskLevel{none, high},
		Description: "Provider B fleet sanction counters",
		evaluate:    evalRiskScoreB,
	},
	{
		ID: VesselFlagChange, Kind: KindAtomic, Category: CategoryVesselBehavior,
		Subject: model.SubjectVessel,
		Levels:  []model.RiskLevel{none, medium},
		Description: "Flag registration changed within the last year",
		evaluate:    evalFlagChange,
	},
	{
		ID: VesselAISManipulation, Kind: KindAtomic, Category: CategoryVesselBehavior,
		Subject: model.SubjectVessel, NeedsWindow: true,
		Levels:  []model.RiskLevel{none, medium, high},
		Description: "AIS manipulation signal from advanced compliance risks",
		evaluate:    evalAISManipulation,
	},
	{
		ID: VesselAISGap, Kind: KindAtomic, Category: CategoryVesselBehavior,
		Subject: model.SubjectVessel, NeedsWindow: true,
		Levels:  []model.RiskLevel{none, medium},
		Description: "Suspicious AIS gaps in voyage history",
		evaluate:    evalAISGap,
	},
	{
		ID: VesselAISGapB, Kind: KindAtomic, Category: CategoryVesselBehavior,
		Subject: model.SubjectVessel, NeedsWindow: true,
		Levels:  []model.RiskLevel{none, medium},
		Description: "AIS gaps reported by provider B",
		evaluate:    evalAISGapB,
	},
	{
		ID: VesselRiskyPortCall, Kind: KindAtomic, Category: CategoryVesselBehavior,
		Subject: model.SubjectVessel, NeedsWindow: true,
		Levels:  []model.RiskLevel{none, high},
		Description: "Calls at high-risk ports",
		evaluate:    evalRiskyPortCall,
	},
	{
		ID: VesselDarkPortCall, Kind: KindAtomic, Category: CategoryVesselBehavior,
		Subject: model.SubjectVessel, NeedsWindow: true,
		Levels:  []model.RiskLevel{none, high},
		Description: "Possible or probable dark port calls",
		evaluate:    evalDarkPortCall,
	},
	{
		ID: VesselDarkSTS, Kind: KindAtomic, Category: CategoryVesselBehavior,
		Subject: model.SubjectVessel, NeedsWindow: true,
		Levels:  []model.RiskLevel{none, high},
		Description: "Possible or probable dark ship-to-ship transfers",
		evaluate:    evalDarkSTS,
	},
	{
		ID: VesselSanctionedSTS, Kind: KindAtomic, Category: CategoryVesselBehavior,
		Subject: model.SubjectVessel, NeedsWindow: true,
		Levels:  []model.RiskLevel{none, high},
		Description: "Ship-to-ship transfers with sanctioned vessels",
		evaluate:    evalSanctionedSTS,
	},
	{
		ID: VesselLoitering, Kind: KindAtomic, Category: CategoryVesselBehavior,
		Subject: model.SubjectVessel, NeedsWindow: true,
		Levels:  []model.RiskLevel{none, medium},
		Description: "Suspicious loitering events",
		evaluate:    evalLoitering,
	},
	{
		ID: VesselCargoSanctioned, Kind: KindAtomic, Category: CategoryCargoOrigin,
		Subject: model.SubjectVessel, NeedsWindow: true,
		Levels:  []model.RiskLevel{none, high},
		Description: "Sanctioned cargo findings from provider B",
		evaluate:    evalCargoSanctioned,
	},
	{
		ID: VesselTradeSanctioned, Kind: KindAtomic, Category: CategoryCargoOrigin,
		Subject: model.SubjectVessel, NeedsWindow: true,
		Levels:  []model.RiskLevel{none, high},
		Description: "Sanctioned trade findings from provider B",
		evaluate:    evalTradeSanctioned,
	},
	{
		ID: VesselSanctionedCompanies, Kind: KindAtomic, Category: CategoryStakeholderSanctions,
		Subject: model.SubjectVessel,
		Levels:  []model.RiskLevel{none, high},
		Description: "Sanctioned companies linked to the vessel",
		evaluate:    evalSanctionedCompanies,
	},
	{
		ID: StakeholderSanctions, Kind: KindAtomic, Category: CategoryStakeholderSanctions,
		Subject: model.SubjectStakeholder,
		Levels:  []model.RiskLevel{none, medium, high},
		Description: "Sanctioned-entities register lookup by name",
	},
	{
		ID: PortCountryRisk, Kind: KindAtomic, Category: CategoryPortCountry,
		Subject: model.SubjectCountry,
		Levels:  []model.RiskLevel{none, high},
		Description: "Port country appears in the high-risk table",
	},
	{
		ID: CargoOriginRisk, Kind: KindAtomic, Category: CategoryCargoOrigin,
		Subject: model.SubjectCountry,
		Levels:  []model.RiskLevel{none, high},
		Description: "Cargo origin country appears in the high-risk table",
	},
	{
		ID: CompositeVesselSanctions, Kind: KindComposite, Category: CategoryVesselSanctions,
		Subject: model.SubjectVessel,
		Levels:  []model.RiskLevel{none, medium, high},
		Description: "Combined vessel sanctions exposure",
		Children: []string{
			VesselCurrentSanctions, VesselHistoricalSanctions, VesselUANIWatchlist,
			VesselRiskScoreA, VesselRiskScoreB,
		},
	},
	{
		ID: CompositeVesselBehavior, Kind: KindComposite, Category: CategoryVesselBehavior,
		Subject: model.SubjectVessel,
		Levels:  []model.RiskLevel{none, medium, high},
		Description: "Combined vessel behavior exposure",
		Children: []string{
			VesselFlagChange, VesselAISManipulation, VesselAISGap, VesselAISGapB,
			VesselRiskyPortCall, VesselDarkPortCall, VesselDarkSTS,
			VesselSanctionedSTS, VesselLoitering,
		},
	},
	{
		ID: CompositeVesselCargo, Kind: KindComposite, Category: CategoryCargoOrigin,
		Subject: model.SubjectVessel,
		Levels:  []model.RiskLevel{none, high},
		Description: "Combined cargo and trade exposure",
		Children:    []string{VesselCargoSanctioned, VesselTradeSanctioned},
	},
}

var catalogByID map[string]Descriptor

func init() {
	m := make(map[string]Descriptor, len(catalog))
	for _, d := range catalog {
		if _, dup := m[d.ID]; dup {
			panic(fmt.Sprintf("checks: duplicate catalog id %q", d.ID))
		}
		m[d.ID] = d
	}
	for _, d := range m {
		for _, child := range d.Children {
			c, ok := m[child]
			if !ok {
				panic(fmt.Sprintf("checks: composite %q references unknown child %q", d.ID, child))
			}
			if c.Kind != KindAtomic {
				panic(fmt.Sprintf("checks: composite %q child %q is not atomic", d.ID, child))
			}
		}
	}
	catalogByID = m
}

// Catalog returns the descriptor for a check id. Unknown ids panic: every
// caller passes a compile-time constant, so a miss is a programming error.
func Catalog(id string) Descriptor {
	d, ok := catalogByID[id]
	if !ok {
		panic(fmt.Sprintf("checks: unknown check id %q", id))
	}
	return d
}

// EvaluateVessel runs one atomic vessel check over the prefetched data.
func EvaluateVessel(d Descriptor, in Input) model.CheckResult {
	if d.evaluate == nil {
		panic(fmt.Sprintf("checks: %q has no vessel evaluator", d.ID))
	}
	return d.evaluate(in)
}

// RoleSpec declares one stakeholder role a vertical screens. Single roles
// accept at most one name on the wire but still marshal as a list.
type RoleSpec struct {
	Key    string
	Single bool
}

// VerticalSpec is one vertical's screening shape: its role schema and
// whether it screens cargo-origin and port countries. Every vertical runs
// the full vessel check list; inclusion differences live in the roles and
// country checks.
type VerticalSpec struct {
	Vertical       model.Vertical
	Roles          []RoleSpec
	HasCargoOrigin bool
	HasPortCountry bool
}

var verticalSpecs = map[model.Vertical]VerticalSpec{
	model.VerticalSTS: {
		Vertical: model.VerticalSTS,
		Roles: []RoleSpec{
			{Key: "counterparty"},
			{Key: "sts_vessel"},
		},
		HasCargoOrigin: true,
		HasPortCountry: true,
	},
	model.VerticalPurchase: {
		Vertical: model.VerticalPurchase,
		Roles: []RoleSpec{
			{Key: "supplier"},
			{Key: "trader"},
		},
		HasCargoOrigin: true,
	},
	model.VerticalSecondhand: {
		Vertical: model.VerticalSecondhand,
		Roles: []RoleSpec{
			{Key: "buyer"},
			{Key: "broker"},
		},
	},
	model.VerticalWarehousing: {
		Vertical: model.VerticalWarehousing,
		Roles: []RoleSpec{
			{Key: "lessee"},
			{Key: "terminal", Single: true},
		},
		HasPortCountry: true,
	},
	model.VerticalVoyage: {
		Vertical: model.VerticalVoyage,
		Roles: []RoleSpec{
			{Key: "charterer"},
			{Key: "shipper"},
			{Key: "consignee"},
		},
		HasCargoOrigin: true,
		HasPortCountry: true,
	},
}

// ForVertical returns the vertical's screening shape.
func ForVertical(v model.Vertical) (VerticalSpec, error) {
	spec, ok := verticalSpecs[v]
	if !ok {
		return VerticalSpec{}, fmt.Errorf("checks: unknown vertical %q", v)
	}
	return spec, nil
}

// VesselOrder returns every vessel-subject check id in catalog order,
// atomics first, composites after their children. This fixes the field
// order of vessel_checks in stored verdicts.
func VesselOrder() []string {
	var ids []string
	for _, d := range catalog {
		if d.Subject == model.SubjectVessel {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Composites returns every composite descriptor in catalog order.
func Composites() []Descriptor {
	var out []Descriptor
	for _, d := range catalog {
		if d.Kind == KindComposite {
			out = append(out, d)
		}
	}
	return out
}
