package callweek

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/coachdesk/backend/core"
)

var (
	// errors
	ErrWeekNotFound   = errors.New("week not found")
	ErrRecordNotFound = errors.New("call record not found")
	ErrWeekExists     = errors.New("a week for this mentor and start date already exists")
	ErrRecordExists   = errors.New("a call record for this person already exists in this week")

	// ErrNoHistory means the mentor has no week within the lookback bound;
	// callers render an empty grid.
	ErrNoHistory = errors.New("no call history found for mentor")
)

type (
	Repository interface {
		// GetWeek loads the week for (mentor, start) with its full
		// Records->Calls tree, or ErrWeekNotFound.
		GetWeek(ctx context.Context, mentorID string, start Date, exec ...core.DBExecutor) (Week, error)
		// CreateWeek returns ErrWeekExists when (mentor, start) is taken.
		CreateWeek(ctx context.Context, wk Week, exec ...core.DBExecutor) (Week, error)
		GetRecord(ctx context.Context, weekID, personID string, kind Kind, exec ...core.DBExecutor) (Record, error)
		// CreateRecord returns ErrRecordExists when (week, person, kind) is taken.
		CreateRecord(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		CreateCall(ctx context.Context, call Call, exec ...core.DBExecutor) (Call, error)
		// UpsertCall creates the call or, when one exists for (record, date),
		// updates its status only.
		UpsertCall(ctx context.Context, call Call, exec ...core.DBExecutor) (Call, error)
		// DeleteCall is a no-op when no call exists for (record, date).
		DeleteCall(ctx context.Context, recordID string, date Date, exec ...core.DBExecutor) error
		QueryPersonCalls(ctx context.Context, personID string, kind Kind, start, end Date, exec ...core.DBExecutor) ([]Call, error)
		// Atomic runs fn within a single DB transaction.
		Atomic(ctx context.Context, fn func(exec core.DBExecutor) error) error
	}

	ServiceInterface interface {
		ResolveWeek(ctx context.Context, mentorID string, start Date) (Week, error)
		SetStatus(ctx context.Context, mentorID, personID string, kind Kind, date Date, status Status) error
		PersonCalls(ctx context.Context, personID string, kind Kind, start Date) ([]Call, error)
	}

	service struct {
		repo        Repository
		maxLookback int
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, maxLookback ...int) *service {
	svc := &service{repo: repo, maxLookback: 52}
	if len(maxLookback) > 0 {
		svc.maxLookback = maxLookback[0]
	} else if core.Conf != nil && core.Conf.Schedule.MaxLookbackWeeks > 0 {
		svc.maxLookback = core.Conf.Schedule.MaxLookbackWeeks
	}
	return svc
}

// ResolveWeek returns the call grid for the week containing start, cloning the
// nearest prior week's template when that week does not exist yet.
// An existing week is returned unchanged.
func (svc *service) ResolveWeek(ctx context.Context, mentorID string, start Date) (Week, error) {
	start = start.WeekStart()

	wk, err := svc.repo.GetWeek(ctx, mentorID, start)
	if err == nil {
		return wk, nil
	}
	if pkgerrors.Cause(err) != ErrWeekNotFound {
		return Week{}, pkgerrors.Wrap(err, "loading week")
	}

	tmpl, err := svc.findTemplate(ctx, mentorID, start)
	if err != nil {
		return Week{}, err
	}

	if err = svc.cloneWeek(ctx, mentorID, start, tmpl); err != nil {
		// a concurrent caller created the week first; theirs wins
		if pkgerrors.Cause(err) != ErrWeekExists {
			return Week{}, err
		}
	}

	wk, err = svc.repo.GetWeek(ctx, mentorID, start)
	if err != nil {
		return Week{}, pkgerrors.Wrap(err, "re-loading created week")
	}
	return wk, nil
}

// findTemplate walks backward 7 days at a time looking for the nearest
// existing week. The walk is bounded: a mentor with no week within
// maxLookback weeks has no schedule yet (ErrNoHistory).
func (svc *service) findTemplate(ctx context.Context, mentorID string, start Date) (Week, error) {
	probe := start
	for i := 0; i < svc.maxLookback; i++ {
		probe = probe.AddDays(-7)
		wk, err := svc.repo.GetWeek(ctx, mentorID, probe)
		if err == nil {
			return wk, nil
		}
		if pkgerrors.Cause(err) != ErrWeekNotFound {
			return Week{}, pkgerrors.Wrap(err, "searching for template week")
		}
	}
	return Week{}, ErrNoHistory
}

// cloneWeek materializes a new week at start from the template week, in one
// transaction. Every cloned call keeps its weekday, gets its date remapped
// onto the new week and starts over as Scheduled.
func (svc *service) cloneWeek(ctx context.Context, mentorID string, start Date, tmpl Week) error {
	return svc.repo.Atomic(ctx, func(exec core.DBExecutor) error {
		wk, err := svc.repo.CreateWeek(ctx, Week{
			MentorID:  mentorID,
			StartDate: start,
			EndDate:   start.AddDays(6),
		}, exec)
		if err != nil {
			if pkgerrors.Cause(err) == ErrWeekExists {
				return err
			}
			return pkgerrors.Wrap(err, "creating week")
		}

		records := make([]Record, 0, len(tmpl.Students)+len(tmpl.Parents))
		records = append(records, tmpl.Students...)
		records = append(records, tmpl.Parents...)

		for _, rec := range records {
			newRec, err := svc.repo.CreateRecord(ctx, Record{
				WeekID:   wk.ID,
				PersonID: rec.PersonID,
				Kind:     rec.Kind,
			}, exec)
			if err != nil {
				return pkgerrors.Wrap(err, "creating call record")
			}
			for _, call := range rec.Calls {
				date, ok := start.DateOn(call.Day)
				if !ok {
					// stored day drifted from its date; re-derive
					date, _ = start.DateOn(call.Date.DayName())
				}
				if _, err = svc.repo.CreateCall(ctx, Call{
					RecordID: newRec.ID,
					Date:     date,
					Day:      date.DayName(),
					Status:   StatusScheduled,
				}, exec); err != nil {
					return pkgerrors.Wrap(err, "creating call")
				}
			}
		}
		return nil
	})
}

// SetStatus records or clears one call outcome. Writes are idempotent: the
// week, record and call are created as needed, and clearing an absent call is
// a benign no-op.
// The steps run as separate statements, not one transaction: a unique
// violation aborts a Postgres transaction, and the loser of a creation race
// must still be able to re-read the winner's row. Each step recovers from its
// own race; a failure between steps leaves at worst an empty week or record.
func (svc *service) SetStatus(ctx context.Context, mentorID, personID string, kind Kind, date Date, status Status) error {
	start := date.WeekStart()

	if status == StatusNothing {
		return svc.clearStatus(ctx, mentorID, personID, kind, start, date)
	}

	wk, err := svc.getOrCreateWeek(ctx, mentorID, start)
	if err != nil {
		return err
	}
	rec, err := svc.getOrCreateRecord(ctx, wk.ID, personID, kind)
	if err != nil {
		return err
	}
	_, err = svc.repo.UpsertCall(ctx, Call{
		RecordID: rec.ID,
		Date:     date,
		Day:      date.DayName(),
		Status:   status,
	})
	return pkgerrors.Wrap(err, "upserting call")
}

func (svc *service) clearStatus(ctx context.Context, mentorID, personID string, kind Kind, start, date Date) error {
	wk, err := svc.repo.GetWeek(ctx, mentorID, start)
	if err != nil {
		if pkgerrors.Cause(err) == ErrWeekNotFound {
			return nil // nothing to delete
		}
		return pkgerrors.Wrap(err, "loading week")
	}
	rec, err := svc.repo.GetRecord(ctx, wk.ID, personID, kind)
	if err != nil {
		if pkgerrors.Cause(err) == ErrRecordNotFound {
			return nil // nothing to delete
		}
		return pkgerrors.Wrap(err, "loading call record")
	}
	return pkgerrors.Wrap(svc.repo.DeleteCall(ctx, rec.ID, date), "deleting call")
}

func (svc *service) getOrCreateWeek(ctx context.Context, mentorID string, start Date) (Week, error) {
	wk, err := svc.repo.GetWeek(ctx, mentorID, start)
	if err == nil {
		return wk, nil
	}
	if pkgerrors.Cause(err) != ErrWeekNotFound {
		return Week{}, pkgerrors.Wrap(err, "loading week")
	}
	wk, err = svc.repo.CreateWeek(ctx, Week{
		MentorID:  mentorID,
		StartDate: start,
		EndDate:   start.AddDays(6),
	})
	if err == nil {
		return wk, nil
	}
	if pkgerrors.Cause(err) == ErrWeekExists {
		// someone else just created it; use theirs
		return svc.repo.GetWeek(ctx, mentorID, start)
	}
	return Week{}, pkgerrors.Wrap(err, "creating week")
}

func (svc *service) getOrCreateRecord(ctx context.Context, weekID, personID string, kind Kind) (Record, error) {
	rec, err := svc.repo.GetRecord(ctx, weekID, personID, kind)
	if err == nil {
		return rec, nil
	}
	if pkgerrors.Cause(err) != ErrRecordNotFound {
		return Record{}, pkgerrors.Wrap(err, "loading call record")
	}
	rec, err = svc.repo.CreateRecord(ctx, Record{WeekID: weekID, PersonID: personID, Kind: kind})
	if err == nil {
		return rec, nil
	}
	if pkgerrors.Cause(err) == ErrRecordExists {
		return svc.repo.GetRecord(ctx, weekID, personID, kind)
	}
	return Record{}, pkgerrors.Wrap(err, "creating call record")
}

// PersonCalls lists one person's calls within the week containing start.
func (svc *service) PersonCalls(ctx context.Context, personID string, kind Kind, start Date) ([]Call, error) {
	start = start.WeekStart()
	calls, err := svc.repo.QueryPersonCalls(ctx, personID, kind, start, start.AddDays(6))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying person calls")
	}
	return calls, nil
}
