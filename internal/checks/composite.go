package checks

import (
	"encoding/json"
	"time"

	"github.com/harborview/marisk/internal/model"
)

// childEvidence is one child's contribution to a composite's evidence
// array, tagged with the child check id.
type childEvidence struct {
	CheckID   string          `json:"check_id"`
	RiskLevel model.RiskLevel `json:"risk_level"`
	Evidence  json.RawMessage `json:"evidence,omitempty"`
}

// EvaluateComposite reduces a composite's children to one result: the
// maximum level over the `none < medium < high` order, with evidence the
// union of child evidence tagged by child id. Children are resolved by id
// from the session's result set — composites never evaluate or fetch
// anything themselves. A child missing from results contributes RiskNone.
func EvaluateComposite(d Descriptor, results map[string]model.CheckResult, subject string, now time.Time) model.CheckResult {
	level := model.RiskNone
	var merged []childEvidence
	for _, childID := range d.Children {
		child, ok := results[childID]
		if !ok {
			continue
		}
		level = model.MaxRiskLevel(level, child.RiskLevel)
		if len(child.Evidence) > 0 {
			merged = append(merged, childEvidence{
				CheckID:   childID,
				RiskLevel: child.RiskLevel,
				Evidence:  child.Evidence,
			})
		}
	}

	var evidence []byte
	if len(merged) > 0 {
		evidence = marshalEvidence(merged)
	}
	return result(d, subject, now, level, evidence, map[string]any{
		"children": d.Children,
	})
}
