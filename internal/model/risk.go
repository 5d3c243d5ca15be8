package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RiskLevel is the ordered risk classification shared by every check.
// The zero value is RiskNone. Ordering: RiskNone < RiskMedium < RiskHigh.
type RiskLevel int

const (
	RiskNone RiskLevel = iota
	RiskMedium
	RiskHigh
)

// Wire forms for per-entity statuses. These are fixed by the screening
// contract and provider-agnostic.
const (
	wireRiskNone   = "无风险"
	wireRiskMedium = "中风险"
	wireRiskHigh   = "高风险"
)

// String returns the internal name used in logs and projected columns.
func (l RiskLevel) String() string {
	switch l {
	case RiskHigh:
		return "high"
	case RiskMedium:
		return "medium"
	default:
		return "none"
	}
}

// Wire returns the per-entity wire form carried in verdict JSON.
func (l RiskLevel) Wire() string {
	switch l {
	case RiskHigh:
		return wireRiskHigh
	case RiskMedium:
		return wireRiskMedium
	default:
		return wireRiskNone
	}
}

// MarshalJSON emits the wire form.
func (l RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Wire())
}

// UnmarshalJSON accepts any vocabulary ParseRiskLevel knows. Verdicts are
// replayed from stored JSON, so this must round-trip the wire form.
func (l *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("model: risk level: %w", err)
	}
	*l = ParseRiskLevel(s)
	return nil
}

// riskVocabulary maps every upstream and wire vocabulary onto the ordered
// set. Keys are case-folded before lookup. Unknown values classify as
// RiskNone by contract.
var riskVocabulary = map[string]RiskLevel{
	// wire forms
	wireRiskHigh:   RiskHigh,
	wireRiskMedium: RiskMedium,
	wireRiskNone:   RiskNone,
	// internal names
	"high":   RiskHigh,
	"medium": RiskMedium,
	"none":   RiskNone,
	// provider gradings
	"low":            RiskNone,
	"sanctioned":     RiskHigh,
	"risks detected": RiskMedium,
	"no risk":        RiskNone,
	"no risks":       RiskNone,
	"severe":         RiskHigh,
	"moderate":       RiskMedium,
}

// ParseRiskLevel maps a vocabulary string to a RiskLevel via the fixed
// table. Unknown or empty values map to RiskNone.
func ParseRiskLevel(s string) RiskLevel {
	if l, ok := riskVocabulary[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return RiskNone
}

// MaxRiskLevel reduces levels by the total order. Zero arguments reduce to
// RiskNone, matching the contract that missing results contribute none.
func MaxRiskLevel(levels ...RiskLevel) RiskLevel {
	max := RiskNone
	for _, l := range levels {
		if l > max {
			max = l
		}
	}
	return max
}

// OperationStatus is the operation-level disposition derived from the
// maximum risk level across all checks.
type OperationStatus string

const (
	StatusNormal    OperationStatus = "normal"
	StatusWatch     OperationStatus = "watch"
	StatusIntercept OperationStatus = "intercept"
)

// OperationStatusFor maps a reduced risk level to the operation-level
// disposition: none→normal, medium→watch, high→intercept.
func OperationStatusFor(l RiskLevel) OperationStatus {
	switch l {
	case RiskHigh:
		return StatusIntercept
	case RiskMedium:
		return StatusWatch
	default:
		return StatusNormal
	}
}

// Label returns the operation-level wire label.
func (s OperationStatus) Label() string {
	switch s {
	case StatusIntercept:
		return "拦截"
	case StatusWatch:
		return "关注"
	default:
		return "正常"
	}
}

// Yes/no flags carried in evidence maps (e.g. is_sanctioned_eez).
const (
	FlagYes = "是"
	FlagNo  = "否"
)
