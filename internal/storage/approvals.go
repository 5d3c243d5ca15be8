package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harborview/marisk/internal/model"
)

// InsertApprovals appends a batch of approval records in one transaction.
// Approvals are never updated; a later decision on the same stakeholder is
// a new row that wins by approved_at during reconciliation. Retries on
// serialization conflicts with concurrent reconciliations.
func (db *DB) InsertApprovals(ctx context.Context, approvals []model.ApprovalRecord) error {
	if len(approvals) == 0 {
		return nil
	}
	return WithRetry(ctx, 3, 50*time.Millisecond, func() error {
		return db.insertApprovalsTx(ctx, approvals)
	})
}

func (db *DB) insertApprovalsTx(ctx context.Context, approvals []model.ApprovalRecord) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	for _, a := range approvals {
		applicant, err := json.Marshal(a.Applicant)
		if err != nil {
			return fmt.Errorf("storage: marshal applicant: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO approvals (uuid, role, name, name_normalized, override_level,
			 reason, approved_at, applicant, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)`,
			a.UUID, a.Role, a.Name, model.NormalizeName(a.Name), a.OverrideLevel.String(),
			a.Reason, a.ApprovedAt.UTC(), applicant, now,
		); err != nil {
			return fmt.Errorf("storage: insert approval: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit approvals: %w", err)
	}
	return nil
}

// ListApprovals returns every approval recorded for the operation in
// application order: approved_at ascending, insertion order breaking ties
// so the newest decision on a stakeholder applies last.
func (db *DB) ListApprovals(ctx context.Context, id uuid.UUID) ([]model.ApprovalRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, uuid, role, name, override_level, reason, approved_at, applicant, created_at
		 FROM approvals WHERE uuid = $1 ORDER BY approved_at ASC, id ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []model.ApprovalRecord
	for rows.Next() {
		var (
			a         model.ApprovalRecord
			level     string
			applicant []byte
		)
		if err := rows.Scan(&a.ID, &a.UUID, &a.Role, &a.Name, &level, &a.Reason,
			&a.ApprovedAt, &applicant, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan approval: %w", err)
		}
		a.OverrideLevel = model.ParseRiskLevel(level)
		if len(applicant) > 0 {
			if err := json.Unmarshal(applicant, &a.Applicant); err != nil {
				return nil, fmt.Errorf("storage: decode applicant: %w", err)
			}
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}
