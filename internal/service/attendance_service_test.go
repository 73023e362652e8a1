package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendance_Monotonic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.attendance.CheckIn(ctx, h.emp, h.org, &models.GeoPoint{Latitude: 24.7, Longitude: 46.6})
	require.NoError(t, err)

	h.clock.Advance(time.Hour)
	_, err = h.attendance.StartBreak(ctx, h.emp, h.org)
	require.NoError(t, err)

	h.clock.Advance(15 * time.Minute)
	b, err := h.attendance.EndBreak(ctx, h.emp, h.org)
	require.NoError(t, err)
	require.NotNil(t, b.DurationMinutes)
	assert.Equal(t, 15, *b.DurationMinutes)

	h.clock.Advance(time.Hour)
	res, err := h.attendance.CheckOut(ctx, h.emp, h.org)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCheckedOut, res.Record.Status)
	assert.Equal(t, 135, res.WorkedMinutes)

	_, err = h.attendance.CheckIn(ctx, h.emp, h.org, nil)
	assert.ErrorIs(t, err, models.ErrAttendanceConflict)
	assert.ErrorIs(t, err, models.ErrAlreadyCheckedIn)

	_, err = h.attendance.StartBreak(ctx, h.emp, h.org)
	assert.ErrorIs(t, err, models.ErrAlreadyCheckedOut)
	_, err = h.attendance.CheckOut(ctx, h.emp, h.org)
	assert.ErrorIs(t, err, models.ErrAlreadyCheckedOut)
}

func TestAttendance_RejectionsBeforeCheckIn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.attendance.StartBreak(ctx, h.emp, h.org)
	assert.ErrorIs(t, err, models.ErrNotCheckedIn)
	_, err = h.attendance.EndBreak(ctx, h.emp, h.org)
	assert.ErrorIs(t, err, models.ErrNotCheckedIn)
	_, err = h.attendance.CheckOut(ctx, h.emp, h.org)
	assert.ErrorIs(t, err, models.ErrNotCheckedIn)
}

func TestAttendance_BreakToggles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.attendance.CheckIn(ctx, h.emp, h.org, nil)
	require.NoError(t, err)

	_, err = h.attendance.EndBreak(ctx, h.emp, h.org)
	assert.ErrorIs(t, err, models.ErrNotOnBreak)

	_, err = h.attendance.StartBreak(ctx, h.emp, h.org)
	require.NoError(t, err)
	_, err = h.attendance.StartBreak(ctx, h.emp, h.org)
	assert.ErrorIs(t, err, models.ErrAlreadyOnBreak)

	h.clock.Advance(20 * time.Minute)
	summary, err := h.attendance.Status(ctx, h.emp, h.org)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnBreak, summary.Record.CurrentStatus())
	assert.Equal(t, 20, summary.BreakMinutes)

	// checking out while on break closes the open interval
	h.clock.Advance(10 * time.Minute)
	_, err = h.attendance.CheckOut(ctx, h.emp, h.org)
	require.NoError(t, err)

	breaks, err := h.store.ListBreaks(ctx, summary.Record.ID)
	require.NoError(t, err)
	require.Len(t, breaks, 1)
	require.NotNil(t, breaks[0].DurationMinutes)
	assert.Equal(t, 30, *breaks[0].DurationMinutes)
}

func TestAttendance_ConcurrentCheckInSameDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.attendance.CheckIn(ctx, h.emp, h.org, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, models.ErrAlreadyCheckedIn)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, h.store.recordCount())
}

func TestAttendance_OvernightShiftClosesPreviousDay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	// 17:00 UTC is 20:00 in Riyadh.
	h.clock.Advance(11 * time.Hour)
	rec, err := h.attendance.CheckIn(ctx, h.emp, h.org, nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-02", rec.Date)

	h.clock.Advance(6 * time.Hour)
	res, err := h.attendance.CheckOut(ctx, h.emp, h.org)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, res.Record.ID)
	require.NotNil(t, res.Adjustment)
	assert.Equal(t, "600.00", res.Adjustment.Amount.StringFixed(2))
}

func TestAttendance_StatusWithoutRecord(t *testing.T) {
	h := newHarness(t)
	summary, err := h.attendance.Status(context.Background(), h.emp, h.org)
	require.NoError(t, err)
	assert.Nil(t, summary.Record)
}
