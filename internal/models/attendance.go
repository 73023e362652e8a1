package models

import (
	"fmt"
	"time"
)

// ==============================================
// ATTENDANCE STATE MACHINE
// ==============================================

type AttendanceStatus string

const (
	StatusNone       AttendanceStatus = ""
	StatusCheckedIn  AttendanceStatus = "checked_in"
	StatusOnBreak    AttendanceStatus = "on_break"
	StatusCheckedOut AttendanceStatus = "checked_out"
	StatusAbsent     AttendanceStatus = "absent" // set by the daily absence job only
)

type AttendanceEvent string

const (
	EventCheckIn    AttendanceEvent = "check_in"
	EventStartBreak AttendanceEvent = "start_break"
	EventEndBreak   AttendanceEvent = "end_break"
	EventCheckOut   AttendanceEvent = "check_out"
)

// attendanceTransitions lists the allowed target state per (state, event).
var attendanceTransitions = map[AttendanceStatus]map[AttendanceEvent]AttendanceStatus{
	StatusNone: {
		EventCheckIn: StatusCheckedIn,
	},
	StatusCheckedIn: {
		EventStartBreak: StatusOnBreak,
		EventCheckOut:   StatusCheckedOut,
	},
	StatusOnBreak: {
		EventEndBreak: StatusCheckedIn,
		EventCheckOut: StatusCheckedOut,
	},
	StatusCheckedOut: {},
	StatusAbsent:     {},
}

// Transition returns the state reached by applying event to from, or the
// conflict explaining why the event is rejected.
func Transition(from AttendanceStatus, event AttendanceEvent) (AttendanceStatus, error) {
	if to, ok := attendanceTransitions[from][event]; ok {
		return to, nil
	}
	return from, transitionConflict(from, event)
}

func transitionConflict(from AttendanceStatus, event AttendanceEvent) error {
	switch {
	case from == StatusCheckedOut:
		return ErrAlreadyCheckedOut
	case from == StatusNone || from == StatusAbsent:
		return ErrNotCheckedIn
	case event == EventCheckIn:
		return ErrAlreadyCheckedIn
	case event == EventStartBreak && from == StatusOnBreak:
		return ErrAlreadyOnBreak
	case event == EventEndBreak && from == StatusCheckedIn:
		return ErrNotOnBreak
	}
	return fmt.Errorf("%w: %s not allowed from %q", ErrAttendanceConflict, event, from)
}

// ==============================================
// ATTENDANCE RECORD
// ==============================================

// AttendanceRecord is the single presence row per employee per local day.
type AttendanceRecord struct {
	ID             string           `db:"id"`
	EmployeeID     string           `db:"employee_id"`
	OrganizationID string           `db:"organization_id"`
	Date           string           `db:"date"` // YYYY-MM-DD, organization-local
	CheckInTime    time.Time        `db:"check_in_time"`
	CheckOutTime   *time.Time       `db:"check_out_time"`
	Status         AttendanceStatus `db:"status"`
	IsLate         bool             `db:"is_late"`
	Notes          string           `db:"notes"`
	Location       *GeoPoint        `db:"-"`
	CreatedAt      time.Time        `db:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at"`
}

// CurrentStatus treats a missing record as StatusNone.
func (r *AttendanceRecord) CurrentStatus() AttendanceStatus {
	if r == nil {
		return StatusNone
	}
	if r.CheckOutTime != nil {
		return StatusCheckedOut
	}
	return r.Status
}

type BreakInterval struct {
	ID              string     `db:"id"`
	AttendanceID    string     `db:"attendance_id"`
	StartTime       time.Time  `db:"start_time"`
	EndTime         *time.Time `db:"end_time"`
	DurationMinutes *int       `db:"duration_minutes"`
}

// WholeMinutes is the wall-clock delta truncated to whole minutes.
func WholeMinutes(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from) / time.Minute)
}

// IsLateArrival compares the local check-in clock time against a HH:MM
// work start. An empty or unparsable work start is never late.
func IsLateArrival(localCheckIn time.Time, workStart string) bool {
	if workStart == "" {
		return false
	}
	start, err := time.Parse("15:04", workStart)
	if err != nil {
		return false
	}
	startOfDay := time.Date(localCheckIn.Year(), localCheckIn.Month(), localCheckIn.Day(),
		start.Hour(), start.Minute(), 0, 0, localCheckIn.Location())
	return localCheckIn.After(startOfDay)
}
