package model

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalRecord is one operator override for one party of one operation.
// A single approval act fans out to one record per affected (role, name).
// Records append to the approval log; they never mutate verdicts directly —
// reconciliation replays them onto the latest verdict.
type ApprovalRecord struct {
	ID            int64     `json:"-"`
	UUID          uuid.UUID `json:"uuid"`
	Role          string    `json:"role"`
	Name          string    `json:"name"`
	OverrideLevel RiskLevel `json:"override_level"`
	Reason        string    `json:"reason,omitempty"`
	ApprovedAt    time.Time `json:"approved_at"`
	Applicant     Operator  `json:"applicant"`
	CreatedAt     time.Time `json:"-"`
}
