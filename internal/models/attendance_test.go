package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_FullDay(t *testing.T) {
	state := StatusNone
	events := []AttendanceEvent{EventCheckIn, EventStartBreak, EventEndBreak, EventCheckOut}
	for _, ev := range events {
		next, err := Transition(state, ev)
		require.NoError(t, err, "event %s from %q", ev, state)
		state = next
	}
	assert.Equal(t, StatusCheckedOut, state)

	_, err := Transition(state, EventCheckIn)
	assert.ErrorIs(t, err, ErrAttendanceConflict)
	assert.ErrorIs(t, err, ErrAlreadyCheckedOut)
}

func TestTransition_Rejections(t *testing.T) {
	tests := []struct {
		from  AttendanceStatus
		event AttendanceEvent
		want  error
	}{
		{StatusNone, EventCheckOut, ErrNotCheckedIn},
		{StatusNone, EventStartBreak, ErrNotCheckedIn},
		{StatusCheckedIn, EventCheckIn, ErrAlreadyCheckedIn},
		{StatusCheckedIn, EventEndBreak, ErrNotOnBreak},
		{StatusOnBreak, EventStartBreak, ErrAlreadyOnBreak},
		{StatusCheckedOut, EventStartBreak, ErrAlreadyCheckedOut},
		{StatusAbsent, EventCheckOut, ErrNotCheckedIn},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := Transition(tt.from, tt.event)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrAttendanceConflict)
			assert.Equal(t, tt.from, got)
		})
	}
}

func TestTransition_CheckOutFromBreak(t *testing.T) {
	next, err := Transition(StatusOnBreak, EventCheckOut)
	require.NoError(t, err)
	assert.Equal(t, StatusCheckedOut, next)
}

func TestCurrentStatus(t *testing.T) {
	var none *AttendanceRecord
	assert.Equal(t, StatusNone, none.CurrentStatus())

	out := time.Now()
	r := &AttendanceRecord{Status: StatusOnBreak, CheckOutTime: &out}
	assert.Equal(t, StatusCheckedOut, r.CurrentStatus())
}

func TestIsLateArrival(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	onTime := time.Date(2025, 1, 15, 9, 0, 0, 0, loc)
	late := time.Date(2025, 1, 15, 9, 1, 0, 0, loc)

	assert.False(t, IsLateArrival(onTime, "09:00"))
	assert.True(t, IsLateArrival(late, "09:00"))
	assert.False(t, IsLateArrival(late, ""))
	assert.False(t, IsLateArrival(late, "nine"))
}

func TestWholeMinutes(t *testing.T) {
	start := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 29, WholeMinutes(start, start.Add(29*time.Minute+59*time.Second)))
	assert.Equal(t, 0, WholeMinutes(start, start.Add(-time.Minute)))
}

func TestComputeEarnings(t *testing.T) {
	loc := time.FixedZone("local", 2*3600)
	in := time.Date(2025, 1, 15, 9, 0, 0, 0, loc)
	out := time.Date(2025, 1, 15, 11, 30, 0, 0, loc)

	amount, minutes := ComputeEarnings(in, out, decimal.NewFromInt(100))
	assert.Equal(t, 150, minutes)
	assert.True(t, amount.Equal(decimal.RequireFromString("250.00")), "got %s", amount)

	amount, _ = ComputeEarnings(in, in.Add(10*time.Minute), decimal.RequireFromString("33.33"))
	assert.Equal(t, "5.56", amount.StringFixed(2))
}

func TestOrganizationLocalDate(t *testing.T) {
	org := &Organization{Timezone: "Asia/Riyadh"}
	instant := time.Date(2025, 1, 15, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-16", org.LocalDate(instant))

	bad := &Organization{Timezone: "Mars/Olympus"}
	_, ok := bad.Location()
	assert.False(t, ok)
	assert.Equal(t, "2025-01-15", bad.LocalDate(instant))
}

func TestInclusiveDays(t *testing.T) {
	start, _ := time.Parse(time.DateOnly, "2025-01-15")
	end, _ := time.Parse(time.DateOnly, "2025-01-17")
	assert.Equal(t, 3, InclusiveDays(start, end))
	assert.Equal(t, -1, InclusiveDays(end, start))
}

func TestOneTimeCodeAttempts(t *testing.T) {
	c := &OneTimeCode{Attempts: 2}
	assert.False(t, c.IsExhausted())
	assert.Equal(t, 1, c.RemainingAttempts())
	c.Attempts = 3
	assert.True(t, c.IsExhausted())
	assert.Equal(t, 0, c.RemainingAttempts())
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeSessionExpired, ErrorCode(ErrSessionExpired))
	assert.Equal(t, ErrCodeSessionInvalid, ErrorCode(ErrSessionInvalid))
	assert.Equal(t, ErrCodeAttendanceConflict, ErrorCode(ErrNotOnBreak))
	assert.Equal(t, ErrCodeInternalError, ErrorCode(assert.AnError))
	assert.True(t, IsBusinessError(ErrOTPMaxAttempts))
}
