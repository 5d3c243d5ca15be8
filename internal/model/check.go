package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// CheckResult is the immutable outcome of one check for one subject within
// a screening session. Evidence holds the raw upstream payload the
// classification was made from; Reason carries structured fields such as
// hit lists and flags.
type CheckResult struct {
	CheckID     string          `json:"check_id"`
	Subject     string          `json:"subject"`
	RiskLevel   RiskLevel       `json:"risk_level"`
	ScreenedAt  time.Time       `json:"screened_at"`
	Description string          `json:"description,omitempty"`
	Evidence    json.RawMessage `json:"evidence,omitempty"`
	Reason      map[string]any  `json:"reason,omitempty"`
}

// ErrorEvidence builds the evidence payload recorded when a check's
// upstream source failed. The check still classifies RiskNone; the failure
// is visible only here.
func ErrorEvidence(kind, msg string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{"error": msg, "kind": kind})
	return b
}

// VesselChecks carries the vessel-level check results of a verdict as an
// ordered JSON object keyed by check id. Field order is insertion order;
// the orchestrator inserts in registry order so stored verdicts keep a
// stable shape across revisions.
type VesselChecks struct {
	ids     []string
	results map[string]CheckResult
}

// Set inserts or replaces the result for its check id, preserving first
// insertion order.
func (v *VesselChecks) Set(r CheckResult) {
	if v.results == nil {
		v.results = make(map[string]CheckResult)
	}
	if _, ok := v.results[r.CheckID]; !ok {
		v.ids = append(v.ids, r.CheckID)
	}
	v.results[r.CheckID] = r
}

// Get returns the result for a check id.
func (v *VesselChecks) Get(id string) (CheckResult, bool) {
	r, ok := v.results[id]
	return r, ok
}

// Len returns the number of recorded checks.
func (v *VesselChecks) Len() int { return len(v.ids) }

// All returns results in field order.
func (v *VesselChecks) All() []CheckResult {
	out := make([]CheckResult, 0, len(v.ids))
	for _, id := range v.ids {
		out = append(out, v.results[id])
	}
	return out
}

// Levels returns the risk levels in field order. Convenience for the
// aggregator.
func (v *VesselChecks) Levels() []RiskLevel {
	out := make([]RiskLevel, 0, len(v.ids))
	for _, id := range v.ids {
		out = append(out, v.results[id].RiskLevel)
	}
	return out
}

// MarshalJSON emits one JSON object field per check in insertion order.
func (v VesselChecks) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range v.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, fmt.Errorf("model: vessel checks key: %w", err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(v.results[id])
		if err != nil {
			return nil, fmt.Errorf("model: vessel checks %s: %w", id, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores results preserving the document's field order, so
// replayed verdicts re-serialize byte-compatibly.
func (v *VesselChecks) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("model: vessel checks: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("model: vessel checks: expected object, got %v", tok)
	}
	v.ids = nil
	v.results = make(map[string]CheckResult)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("model: vessel checks key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("model: vessel checks: non-string key %v", keyTok)
		}
		var r CheckResult
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("model: vessel checks %s: %w", key, err)
		}
		if r.CheckID == "" {
			r.CheckID = key
		}
		v.Set(r)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("model: vessel checks close: %w", err)
	}
	return nil
}
