package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/coachdesk/backend/core"
	"github.com/coachdesk/backend/core/callweek"
)

const pqUniqueViolation = "23505"

type callWeekRepository struct {
	db *sqlx.DB
}

var _ callweek.Repository = (*callWeekRepository)(nil) // interface compliance check

func NewCallWeekRepository(db *sqlx.DB) *callWeekRepository {
	return &callWeekRepository{db: db}
}

func (repo callWeekRepository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return repo.db
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

func (repo callWeekRepository) GetWeek(ctx context.Context, mentorID string, start callweek.Date, exec ...core.DBExecutor) (callweek.Week, error) {
	ex := repo.getExec(exec)

	var wk callweek.Week
	err := sqlx.GetContext(ctx, ex, &wk, `
		SELECT id, mentor_id, start_date, end_date, created_at, updated_at
		FROM weeks WHERE mentor_id = $1 AND start_date = $2`, mentorID, start)
	if err != nil {
		if err == sql.ErrNoRows {
			return callweek.Week{}, callweek.ErrWeekNotFound
		}
		return callweek.Week{}, errors.Wrap(err, "getting week")
	}

	var recs []callweek.Record
	err = sqlx.SelectContext(ctx, ex, &recs, `
		SELECT id, week_id, person_id, kind
		FROM call_records WHERE week_id = $1 ORDER BY person_id`, wk.ID)
	if err != nil {
		return callweek.Week{}, errors.Wrap(err, "getting call records")
	}

	recIdx := make(map[string]*callweek.Record, len(recs))
	recIDs := make([]string, 0, len(recs))
	for i := range recs {
		recIdx[recs[i].ID] = &recs[i]
		recIDs = append(recIDs, recs[i].ID)
	}

	if len(recIDs) > 0 {
		var calls []callweek.Call
		err = sqlx.SelectContext(ctx, ex, &calls, `
			SELECT id, record_id, date, day, status, created_at, updated_at
			FROM calls WHERE record_id = ANY($1) ORDER BY date`, pq.Array(recIDs))
		if err != nil {
			return callweek.Week{}, errors.Wrap(err, "getting calls")
		}
		for _, call := range calls {
			rec := recIdx[call.RecordID]
			rec.Calls = append(rec.Calls, call)
		}
	}

	wk.Students = make([]callweek.Record, 0, len(recs))
	for _, rec := range recs {
		if rec.Kind == callweek.KindParent {
			wk.Parents = append(wk.Parents, rec)
		} else {
			wk.Students = append(wk.Students, rec)
		}
	}
	return wk, nil
}

func (repo callWeekRepository) CreateWeek(ctx context.Context, wk callweek.Week, exec ...core.DBExecutor) (callweek.Week, error) {
	wk.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO weeks (id, mentor_id, start_date, end_date)
		VALUES ($1, $2, $3, $4)`, wk.ID, wk.MentorID, wk.StartDate, wk.EndDate)
	if err != nil {
		if isUniqueViolation(err) {
			return callweek.Week{}, callweek.ErrWeekExists
		}
		return callweek.Week{}, errors.Wrap(err, "inserting week")
	}
	return wk, nil
}

func (repo callWeekRepository) GetRecord(ctx context.Context, weekID, personID string, kind callweek.Kind, exec ...core.DBExecutor) (callweek.Record, error) {
	var rec callweek.Record
	err := sqlx.GetContext(ctx, repo.getExec(exec), &rec, `
		SELECT id, week_id, person_id, kind
		FROM call_records WHERE week_id = $1 AND person_id = $2 AND kind = $3`, weekID, personID, kind)
	if err != nil {
		if err == sql.ErrNoRows {
			return callweek.Record{}, callweek.ErrRecordNotFound
		}
		return callweek.Record{}, errors.Wrap(err, "getting call record")
	}
	return rec, nil
}

func (repo callWeekRepository) CreateRecord(ctx context.Context, rec callweek.Record, exec ...core.DBExecutor) (callweek.Record, error) {
	rec.ID = uuid.New().String()
	if rec.Kind == "" {
		rec.Kind = callweek.KindStudent
	}
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO call_records (id, week_id, person_id, kind)
		VALUES ($1, $2, $3, $4)`, rec.ID, rec.WeekID, rec.PersonID, rec.Kind)
	if err != nil {
		if isUniqueViolation(err) {
			return callweek.Record{}, callweek.ErrRecordExists
		}
		return callweek.Record{}, errors.Wrap(err, "inserting call record")
	}
	return rec, nil
}

func (repo callWeekRepository) CreateCall(ctx context.Context, call callweek.Call, exec ...core.DBExecutor) (callweek.Call, error) {
	call.ID = uuid.New().String()
	_, err := repo.getExec(exec).ExecContext(ctx, `
		INSERT INTO calls (id, record_id, date, day, status)
		VALUES ($1, $2, $3, $4, $5)`, call.ID, call.RecordID, call.Date, call.Day, call.Status)
	if err != nil {
		return callweek.Call{}, errors.Wrap(err, "inserting call")
	}
	return call, nil
}

// UpsertCall inserts the call; when one already exists for (record, date) only
// its status is updated. Date and day are immutable once created.
func (repo callWeekRepository) UpsertCall(ctx context.Context, call callweek.Call, exec ...core.DBExecutor) (callweek.Call, error) {
	call.ID = uuid.New().String()
	var u callweek.Call
	err := sqlx.GetContext(ctx, repo.getExec(exec), &u, `
		INSERT INTO calls (id, record_id, date, day, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT calls_record_date_key
		DO UPDATE SET status = EXCLUDED.status, updated_at = now()
		RETURNING id, record_id, date, day, status, created_at, updated_at`,
		call.ID, call.RecordID, call.Date, call.Day, call.Status)
	if err != nil {
		return callweek.Call{}, errors.Wrap(err, "upserting call")
	}
	return u, nil
}

// DeleteCall is a no-op when no call exists for (record, date).
func (repo callWeekRepository) DeleteCall(ctx context.Context, recordID string, date callweek.Date, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx,
		"DELETE FROM calls WHERE record_id = $1 AND date = $2", recordID, date)
	return errors.Wrap(err, "deleting call")
}

func (repo callWeekRepository) QueryPersonCalls(ctx context.Context, personID string, kind callweek.Kind, start, end callweek.Date, exec ...core.DBExecutor) ([]callweek.Call, error) {
	var calls []callweek.Call
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &calls, `
		SELECT c.id, c.record_id, c.date, c.day, c.status, c.created_at, c.updated_at
		FROM calls c
		JOIN call_records r ON r.id = c.record_id
		WHERE r.person_id = $1 AND r.kind = $2 AND c.date BETWEEN $3 AND $4
		ORDER BY c.date`, personID, kind, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "querying person calls")
	}
	return calls, nil
}

// Atomic runs fn within a single transaction; fn's error rolls everything back.
func (repo callWeekRepository) Atomic(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing tx")
}
