package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/coachdesk/backend/core"
	"github.com/coachdesk/backend/core/callweek"
)

type callWeekRepository struct {
	db *DB
}

var _ callweek.Repository = (*callWeekRepository)(nil)

func NewCallWeekRepository(db *DB) *callWeekRepository {
	return &callWeekRepository{db: db}
}

func (repo *callWeekRepository) GetWeek(ctx context.Context, mentorID string, start callweek.Date, exec ...core.DBExecutor) (callweek.Week, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.getWeekLocked(mentorID, start)
}

func (repo *callWeekRepository) getWeekLocked(mentorID string, start callweek.Date) (callweek.Week, error) {
	var wk callweek.Week
	var found bool
	for _, w := range repo.db.weeks {
		if w.MentorID == mentorID && w.StartDate.Equal(start.Time) {
			wk, found = w, true
			break
		}
	}
	if !found {
		return callweek.Week{}, callweek.ErrWeekNotFound
	}

	var recs []callweek.Record
	for _, rec := range repo.db.records {
		if rec.WeekID != wk.ID {
			continue
		}
		rec.Calls = nil
		for _, call := range repo.db.calls {
			if call.RecordID == rec.ID {
				rec.Calls = append(rec.Calls, call)
			}
		}
		sort.Slice(rec.Calls, func(i, j int) bool {
			return rec.Calls[i].Date.Before(rec.Calls[j].Date.Time)
		})
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].PersonID < recs[j].PersonID })

	wk.Students = make([]callweek.Record, 0, len(recs))
	wk.Parents = nil
	for _, rec := range recs {
		if rec.Kind == callweek.KindParent {
			wk.Parents = append(wk.Parents, rec)
		} else {
			wk.Students = append(wk.Students, rec)
		}
	}
	return wk, nil
}

func (repo *callWeekRepository) CreateWeek(ctx context.Context, wk callweek.Week, exec ...core.DBExecutor) (callweek.Week, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, w := range repo.db.weeks {
		if w.MentorID == wk.MentorID && w.StartDate.Equal(wk.StartDate.Time) {
			return callweek.Week{}, callweek.ErrWeekExists
		}
	}
	wk.ID = uuid.New().String()
	now := time.Now().UTC()
	wk.CreatedAt, wk.UpdatedAt = now, now
	repo.db.weeks[wk.ID] = wk
	return wk, nil
}

func (repo *callWeekRepository) GetRecord(ctx context.Context, weekID, personID string, kind callweek.Kind, exec ...core.DBExecutor) (callweek.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, rec := range repo.db.records {
		if rec.WeekID == weekID && rec.PersonID == personID && rec.Kind == kind {
			return rec, nil
		}
	}
	return callweek.Record{}, callweek.ErrRecordNotFound
}

func (repo *callWeekRepository) CreateRecord(ctx context.Context, rec callweek.Record, exec ...core.DBExecutor) (callweek.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if rec.Kind == "" {
		rec.Kind = callweek.KindStudent
	}
	for _, r := range repo.db.records {
		if r.WeekID == rec.WeekID && r.PersonID == rec.PersonID && r.Kind == rec.Kind {
			return callweek.Record{}, callweek.ErrRecordExists
		}
	}
	rec.ID = uuid.New().String()
	rec.Calls = nil
	repo.db.records[rec.ID] = rec
	return rec, nil
}

func (repo *callWeekRepository) CreateCall(ctx context.Context, call callweek.Call, exec ...core.DBExecutor) (callweek.Call, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	call.ID = uuid.New().String()
	now := time.Now().UTC()
	call.CreatedAt, call.UpdatedAt = now, now
	repo.db.calls[call.ID] = call
	return call, nil
}

func (repo *callWeekRepository) UpsertCall(ctx context.Context, call callweek.Call, exec ...core.DBExecutor) (callweek.Call, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	now := time.Now().UTC()
	for id, c := range repo.db.calls {
		if c.RecordID == call.RecordID && c.Date.Equal(call.Date.Time) {
			c.Status = call.Status
			c.UpdatedAt = now
			repo.db.calls[id] = c
			return c, nil
		}
	}
	call.ID = uuid.New().String()
	call.CreatedAt, call.UpdatedAt = now, now
	repo.db.calls[call.ID] = call
	return call, nil
}

func (repo *callWeekRepository) DeleteCall(ctx context.Context, recordID string, date callweek.Date, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, c := range repo.db.calls {
		if c.RecordID == recordID && c.Date.Equal(date.Time) {
			delete(repo.db.calls, id)
			return nil
		}
	}
	return nil
}

func (repo *callWeekRepository) QueryPersonCalls(ctx context.Context, personID string, kind callweek.Kind, start, end callweek.Date, exec ...core.DBExecutor) ([]callweek.Call, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	calls := make([]callweek.Call, 0)
	for _, call := range repo.db.calls {
		rec, ok := repo.db.records[call.RecordID]
		if !ok || rec.PersonID != personID || rec.Kind != kind {
			continue
		}
		if call.Date.Before(start.Time) || call.Date.After(end.Time) {
			continue
		}
		calls = append(calls, call)
	}
	sort.Slice(calls, func(i, j int) bool { return calls[i].Date.Before(calls[j].Date.Time) })
	return calls, nil
}

// Atomic has no real transaction to offer; fn runs against the store directly
// and each repo call does its own locking.
func (repo *callWeekRepository) Atomic(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	return fn(nil)
}
