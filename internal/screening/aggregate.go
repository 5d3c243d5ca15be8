package screening

import (
	"encoding/json"
	"strings"

	"github.com/harborview/marisk/internal/checks"
	"github.com/harborview/marisk/internal/model"
)

// Aggregate computes the verdict's four projected statuses from its
// embedded check results. It is a pure function of the verdict body and is
// re-run after reconciliation rewrites stakeholder levels.
func Aggregate(v *model.OperationVerdict) {
	var (
		all         []model.RiskLevel
		stakeholder []model.RiskLevel
		cargo       []model.RiskLevel
		port        []model.RiskLevel
	)

	vesselLevels := v.VesselChecks.Levels()
	all = append(all, vesselLevels...)
	for _, res := range v.VesselChecks.All() {
		switch checks.Catalog(res.CheckID).Category {
		case checks.CategoryStakeholderSanctions:
			stakeholder = append(stakeholder, res.RiskLevel)
		case checks.CategoryCargoOrigin:
			cargo = append(cargo, res.RiskLevel)
		case checks.CategoryPortCountry:
			port = append(port, res.RiskLevel)
		}
	}

	for _, list := range v.Stakeholders {
		for _, entry := range list {
			all = append(all, entry.RiskLevel)
			stakeholder = append(stakeholder, entry.RiskLevel)
		}
	}

	if v.CargoOriginCheck != nil {
		all = append(all, v.CargoOriginCheck.RiskLevel)
		cargo = append(cargo, v.CargoOriginCheck.RiskLevel)
	}
	if v.PortCountryCheck != nil {
		all = append(all, v.PortCountryCheck.RiskLevel)
		port = append(port, v.PortCountryCheck.RiskLevel)
	}

	v.OverallStatus = model.OperationStatusFor(model.MaxRiskLevel(all...))
	v.OverallStatusLabel = v.OverallStatus.Label()
	v.VesselStatus = model.MaxRiskLevel(vesselLevels...)
	v.StakeholderStatus = model.MaxRiskLevel(stakeholder...)
	v.DomainStatuses = model.DomainStatuses{
		CargoRisk:    model.MaxRiskLevel(cargo...),
		PortRisk:     model.MaxRiskLevel(port...),
		CustomerRisk: model.MaxRiskLevel(stakeholder...),
	}
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func marshalOrNil(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
