package screening

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/storage"
)

// fakeStore is an in-memory Store for orchestrator tests. Rows keep an
// insertion sequence so "latest" has the same semantics as the SQL layer.
type fakeStore struct {
	mu  sync.Mutex
	seq int

	verdicts  []fakeRow
	changes   []fakeRow
	approvals []model.ApprovalRecord

	watchlist       map[string]storage.WatchlistVessel
	entities        map[string]storage.SanctionedEntity
	portCountries   map[string]bool
	originCountries map[string]bool

	insertVerdictErr error
	entityLookupErr  error
	entityLookups    int
}

type fakeRow struct {
	verdict       model.OperationVerdict
	approvalCount int
	seq           int
	createdAt     time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		watchlist:       make(map[string]storage.WatchlistVessel),
		entities:        make(map[string]storage.SanctionedEntity),
		portCountries:   make(map[string]bool),
		originCountries: make(map[string]bool),
	}
}

func (f *fakeStore) next() fakeRow {
	f.seq++
	return fakeRow{seq: f.seq, createdAt: time.Now().UTC()}
}

func (f *fakeStore) InsertVerdict(_ context.Context, v model.OperationVerdict) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertVerdictErr != nil {
		return f.insertVerdictErr
	}
	row := f.next()
	row.verdict = v
	f.verdicts = append(f.verdicts, row)
	return nil
}

func (f *fakeStore) InsertChangeLog(_ context.Context, v model.OperationVerdict, approvalCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := f.next()
	row.verdict = v
	row.approvalCount = approvalCount
	f.changes = append(f.changes, row)
	return nil
}

func (f *fakeStore) LatestVerdict(_ context.Context, id uuid.UUID) (model.OperationVerdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *fakeRow
	for _, rows := range [][]fakeRow{f.verdicts, f.changes} {
		for i := range rows {
			row := &rows[i]
			if row.verdict.UUID != id {
				continue
			}
			if latest == nil || row.seq > latest.seq {
				latest = row
			}
		}
	}
	if latest == nil {
		return model.OperationVerdict{}, storage.ErrNotFound
	}
	return latest.verdict, nil
}

func (f *fakeStore) LatestChangeLog(_ context.Context, id uuid.UUID) (storage.VerdictRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *fakeRow
	for i := range f.changes {
		row := &f.changes[i]
		if row.verdict.UUID == id && (latest == nil || row.seq > latest.seq) {
			latest = row
		}
	}
	if latest == nil {
		return storage.VerdictRecord{}, storage.ErrNotFound
	}
	return storage.VerdictRecord{
		Verdict:       latest.verdict,
		Source:        storage.SourceReconciliation,
		ApprovalCount: latest.approvalCount,
		CreatedAt:     latest.createdAt,
	}, nil
}

func (f *fakeStore) VerdictHistory(_ context.Context, id uuid.UUID) ([]storage.VerdictRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var records []storage.VerdictRecord
	for i := range f.verdicts {
		if f.verdicts[i].verdict.UUID == id {
			records = append(records, storage.VerdictRecord{
				Verdict: f.verdicts[i].verdict, Source: storage.SourceScreening,
				CreatedAt: f.verdicts[i].createdAt,
			})
		}
	}
	for i := range f.changes {
		if f.changes[i].verdict.UUID == id {
			records = append(records, storage.VerdictRecord{
				Verdict: f.changes[i].verdict, Source: storage.SourceReconciliation,
				ApprovalCount: f.changes[i].approvalCount, CreatedAt: f.changes[i].createdAt,
			})
		}
	}
	return records, nil
}

func (f *fakeStore) InsertApprovals(_ context.Context, approvals []model.ApprovalRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range approvals {
		a.ID = int64(len(f.approvals) + 1)
		f.approvals = append(f.approvals, a)
	}
	return nil
}

func (f *fakeStore) ListApprovals(_ context.Context, id uuid.UUID) ([]model.ApprovalRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ApprovalRecord
	for _, a := range f.approvals {
		if a.UUID == id {
			out = append(out, a)
		}
	}
	// approved_at ascending, insertion order on ties.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ApprovedAt.Before(out[j-1].ApprovedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (f *fakeStore) LookupWatchlistVessel(_ context.Context, imo string) (storage.WatchlistVessel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.watchlist[imo]
	if !ok {
		return storage.WatchlistVessel{}, storage.ErrNotFound
	}
	return w, nil
}

func (f *fakeStore) LookupSanctionedEntity(_ context.Context, name string) (storage.SanctionedEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entityLookups++
	if f.entityLookupErr != nil {
		return storage.SanctionedEntity{}, f.entityLookupErr
	}
	e, ok := f.entities[model.NormalizeName(name)]
	if !ok {
		return storage.SanctionedEntity{}, storage.ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) IsHighRiskPortCountry(_ context.Context, country string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.portCountries[model.NormalizeName(country)], nil
}

func (f *fakeStore) IsHighRiskOriginCountry(_ context.Context, country string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.originCountries[model.NormalizeName(country)], nil
}
