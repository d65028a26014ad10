package callweek

import (
	"database/sql/driver"
	"time"

	"github.com/pkg/errors"

	"github.com/coachdesk/backend/core"
)

// Status is the recorded outcome of a single call.
type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusDone      Status = "Done"
	StatusDNP       Status = "DNP" // did not pick up

	// StatusNothing is a wire-only value: it clears the call entry instead of
	// being stored.
	StatusNothing Status = "Nothing"
)

var AllStatuses = []Status{StatusScheduled, StatusDone, StatusDNP, StatusNothing}

func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Kind discriminates the two parallel record families a senior mentor keeps.
type Kind string

const (
	KindStudent Kind = "student"
	KindParent  Kind = "parent"
)

// wire values of the senior `call_type` field
const (
	CallTypeStudent = "Student"
	CallTypeParent  = "Parent"
)

func KindFromCallType(callType string) Kind {
	if callType == CallTypeParent {
		return KindParent
	}
	return KindStudent
}

const dateLayout = "2006-01-02"

var errBadDate = errors.New("invalid date, want yyyy-MM-dd")

// Date is a calendar day (UTC midnight) rendered as yyyy-MM-dd on the wire.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, errBadDate
	}
	return NewDate(t), nil
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return errBadDate
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) { return d.Time, nil }

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = NewDate(v)
		return nil
	case []byte:
		parsed, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	return errors.Errorf("callweek: cannot scan %T into Date", src)
}

func (d Date) AddDays(n int) Date { return NewDate(d.Time.AddDate(0, 0, n)) }

// WeekStart returns the Monday of the week containing d.
func (d Date) WeekStart() Date {
	return d.AddDays(-((int(d.Weekday()) + 6) % 7))
}

// DayName is the full English weekday name of d; this is the only source of
// truth for Call.Day.
func (d Date) DayName() string { return d.Weekday().String() }

// DayNames are the wire values of the `day` field, Monday first.
var DayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var weekdayOffsets = func() map[string]int {
	m := make(map[string]int, len(DayNames))
	for i, name := range DayNames {
		m[name] = i
	}
	return m
}()

// DateOn maps a weekday name onto the week starting at d (a Monday).
// Rollover uses this instead of a fixed 7-day shift so cloned calls always
// land on the right weekday whatever the gap between weeks.
func (d Date) DateOn(day string) (Date, bool) {
	off, ok := weekdayOffsets[day]
	if !ok {
		return Date{}, false
	}
	return d.AddDays(off), true
}

type (
	// Call is one scheduled/performed call on a specific date.
	// At most one exists per (record, date).
	Call struct {
		ID        string    `json:"id" db:"id"`
		RecordID  string    `json:"-" db:"record_id"`
		Date      Date      `json:"date" db:"date"`
		Day       string    `json:"day" db:"day"`
		Status    Status    `json:"call_status" db:"status"`
		CreatedAt time.Time `json:"-" db:"created_at"`
		UpdatedAt time.Time `json:"-" db:"updated_at"`
	}

	// Record links one person being called to a week.
	// At most one exists per (week, person, kind).
	Record struct {
		ID       string `json:"-" db:"id"`
		WeekID   string `json:"-" db:"week_id"`
		PersonID string `json:"student_id" db:"person_id"`
		Kind     Kind   `json:"-" db:"kind"`
		Calls    []Call `json:"call" db:"-"`
	}

	// Week is one mentor's Monday-aligned 7-day calling template.
	// At most one exists per (mentor, start date).
	Week struct {
		ID        string    `json:"-" db:"id"`
		MentorID  string    `json:"-" db:"mentor_id"`
		StartDate Date      `json:"start_date" db:"start_date"`
		EndDate   Date      `json:"end_date" db:"end_date"`
		CreatedAt time.Time `json:"-" db:"created_at"`
		UpdatedAt time.Time `json:"-" db:"updated_at"`

		Students []Record `json:"students" db:"-"`
		Parents  []Record `json:"parents,omitempty" db:"-"`
	}
)

// Requests

// WeekRequest asks for a mentor's call grid for the week containing StartDay.
type WeekRequest struct {
	StartDay      string `json:"start_day" validate:"required,isodate"`
	GroupMentorID string `json:"group_mentor_id" validate:"omitempty,uuid4"`
}

func (r *WeekRequest) Validate() error {
	r.StartDay = core.CleanString(r.StartDay)
	return core.Validate.Struct(r)
}

// SaveStatusRequest records or clears the outcome of one call on one date.
// Day is accepted for wire compatibility but the stored day is always derived
// from Date.
type SaveStatusRequest struct {
	StudentID string `json:"student_id" validate:"required,uuid4"`
	Date      string `json:"date" validate:"required,isodate"`
	Day       string `json:"day" validate:"omitempty,dayname"`
	Status    string `json:"status" validate:"required,callstatus"`
	CallType  string `json:"call_type" validate:"omitempty,calltype"`
}

func (r *SaveStatusRequest) Validate() error {
	r.StudentID = core.CleanString(r.StudentID, true /* lower */)
	r.Date = core.CleanString(r.Date)
	r.Day = core.CleanString(r.Day)
	return core.Validate.Struct(r)
}

// StudentWeekRequest is the read-only single-student lookup used by the
// profile view.
type StudentWeekRequest struct {
	StudentID string `json:"student_id" validate:"required,uuid4"`
	WeekStart string `json:"week_start" validate:"required,isodate"`
}

func (r *StudentWeekRequest) Validate() error {
	r.StudentID = core.CleanString(r.StudentID, true /* lower */)
	r.WeekStart = core.CleanString(r.WeekStart)
	return core.Validate.Struct(r)
}
