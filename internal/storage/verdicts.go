package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/harborview/marisk/internal/model"
)

// Verdict history sources.
const (
	SourceScreening      = "screening"
	SourceReconciliation = "reconciliation"
)

// VerdictRecord is one entry in an operation's verdict history: the full
// verdict document plus which log produced it.
type VerdictRecord struct {
	Verdict       model.OperationVerdict `json:"verdict"`
	Source        string                 `json:"source"`
	ApprovalCount int                    `json:"approval_count,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// InsertVerdict appends a screening verdict to the primary log. The full
// document lands as JSONB; status projections are duplicated into plain
// columns for querying.
func (db *DB) InsertVerdict(ctx context.Context, v model.OperationVerdict) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: marshal verdict: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO operation_verdicts (uuid, vertical, voyage_number, vessel_imo, vessel_name,
		 overall_status, vessel_status, stakeholder_status, verdict, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)`,
		v.UUID, string(v.Vertical), v.VoyageNumber, v.VesselIMO, v.VesselName,
		string(v.OverallStatus), v.VesselStatus.String(), v.StakeholderStatus.String(),
		doc, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage: insert verdict: %w", err)
	}
	return nil
}

// InsertChangeLog appends a reconciled verdict to the change log.
// approvalCount records how many approvals applied during reconciliation.
func (db *DB) InsertChangeLog(ctx context.Context, v model.OperationVerdict, approvalCount int) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: marshal change verdict: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO verdict_changes (uuid, vertical, voyage_number, vessel_imo, vessel_name,
		 overall_status, vessel_status, stakeholder_status, approval_count, verdict, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb, $11)`,
		v.UUID, string(v.Vertical), v.VoyageNumber, v.VesselIMO, v.VesselName,
		string(v.OverallStatus), v.VesselStatus.String(), v.StakeholderStatus.String(),
		approvalCount, doc, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage: insert change log: %w", err)
	}
	return nil
}

// LatestVerdict returns the operation's current verdict: the newest row
// across the primary log and the change log. The change log wins a
// created_at tie since reconciliation always follows the screening that
// fed it. Returns ErrNotFound when the operation was never screened.
func (db *DB) LatestVerdict(ctx context.Context, id uuid.UUID) (model.OperationVerdict, error) {
	var doc []byte
	err := db.pool.QueryRow(ctx,
		`SELECT verdict FROM (
		   SELECT verdict, created_at, 0 AS src FROM operation_verdicts WHERE uuid = $1
		   UNION ALL
		   SELECT verdict, created_at, 1 AS src FROM verdict_changes WHERE uuid = $1
		 ) t ORDER BY created_at DESC, src DESC LIMIT 1`,
		id,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.OperationVerdict{}, ErrNotFound
		}
		return model.OperationVerdict{}, fmt.Errorf("storage: latest verdict: %w", err)
	}
	return decodeVerdict(doc)
}

// LatestChangeLog returns the newest change-log entry for the operation,
// or ErrNotFound when reconciliation never recorded one.
func (db *DB) LatestChangeLog(ctx context.Context, id uuid.UUID) (VerdictRecord, error) {
	var (
		doc []byte
		rec VerdictRecord
	)
	err := db.pool.QueryRow(ctx,
		`SELECT verdict, approval_count, created_at FROM verdict_changes
		 WHERE uuid = $1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		id,
	).Scan(&doc, &rec.ApprovalCount, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VerdictRecord{}, ErrNotFound
		}
		return VerdictRecord{}, fmt.Errorf("storage: latest change log: %w", err)
	}
	rec.Source = SourceReconciliation
	rec.Verdict, err = decodeVerdict(doc)
	return rec, err
}

// VerdictHistory returns every verdict recorded for the operation, both
// screenings and reconciliations, oldest first.
func (db *DB) VerdictHistory(ctx context.Context, id uuid.UUID) ([]VerdictRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT verdict, source, approval_count, created_at FROM (
		   SELECT verdict, '`+SourceScreening+`' AS source, 0 AS approval_count, created_at, 0 AS src
		   FROM operation_verdicts WHERE uuid = $1
		   UNION ALL
		   SELECT verdict, '`+SourceReconciliation+`', approval_count, created_at, 1
		   FROM verdict_changes WHERE uuid = $1
		 ) t ORDER BY created_at ASC, src ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: verdict history: %w", err)
	}
	defer rows.Close()

	var records []VerdictRecord
	for rows.Next() {
		var (
			doc []byte
			rec VerdictRecord
		)
		if err := rows.Scan(&doc, &rec.Source, &rec.ApprovalCount, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan verdict history: %w", err)
		}
		if rec.Verdict, err = decodeVerdict(doc); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func decodeVerdict(doc []byte) (model.OperationVerdict, error) {
	var v model.OperationVerdict
	if err := json.Unmarshal(doc, &v); err != nil {
		return model.OperationVerdict{}, fmt.Errorf("storage: decode verdict: %w", err)
	}
	return v, nil
}
