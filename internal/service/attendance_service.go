package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/Brownie44l1/attendance/internal/repository"
	"github.com/sirupsen/logrus"
)

// ==============================================
// ATTENDANCE SERVICE
// ==============================================

// AttendanceService applies state machine transitions to the daily record.
// Every transition is checked against models.Transition and then persisted
// with a guarded write, so racing callers observe a conflict.
type AttendanceService struct {
	repo AttendanceRepositoryInterface
	now  Clock
	log  logrus.FieldLogger
}

func NewAttendanceService(repo AttendanceRepositoryInterface, now Clock, log logrus.FieldLogger) *AttendanceService {
	return &AttendanceService{repo: repo, now: now, log: log}
}

type CheckOutResult struct {
	Record        *models.AttendanceRecord
	Adjustment    *models.SalaryAdjustment
	WorkedMinutes int
}

type StatusSummary struct {
	Record       *models.AttendanceRecord
	BreakMinutes int
}

// ==============================================
// CHECK IN
// ==============================================

func (s *AttendanceService) CheckIn(ctx context.Context, emp *models.Employee, org *models.Organization, loc *models.GeoPoint) (*models.AttendanceRecord, error) {
	now := s.now()
	local := org.LocalNow(now)

	rec := &models.AttendanceRecord{
		EmployeeID:     emp.ID,
		OrganizationID: org.ID,
		Date:           local.Format(time.DateOnly),
		CheckInTime:    now,
		Status:         models.StatusCheckedIn,
		IsLate:         models.IsLateArrival(local, emp.WorkStartTime),
		Location:       loc,
	}
	if err := s.repo.CreateCheckIn(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.ErrAlreadyCheckedIn
		}
		return nil, fmt.Errorf("failed to check in: %w", err)
	}

	s.entry(emp, "CheckIn").WithFields(logrus.Fields{
		"date":    rec.Date,
		"is_late": rec.IsLate,
	}).Info("checked in")
	return rec, nil
}

// ==============================================
// BREAKS
// ==============================================

func (s *AttendanceService) StartBreak(ctx context.Context, emp *models.Employee, org *models.Organization) (*models.BreakInterval, error) {
	rec, err := s.transitionTarget(ctx, emp, org, models.EventStartBreak)
	if err != nil {
		return nil, err
	}
	b, err := s.repo.StartBreak(ctx, rec.ID, s.now())
	if err != nil {
		return nil, s.raceOutcome(ctx, emp, org, models.EventStartBreak, err)
	}
	s.entry(emp, "StartBreak").Info("break started")
	return b, nil
}

func (s *AttendanceService) EndBreak(ctx context.Context, emp *models.Employee, org *models.Organization) (*models.BreakInterval, error) {
	rec, err := s.transitionTarget(ctx, emp, org, models.EventEndBreak)
	if err != nil {
		return nil, err
	}
	b, err := s.repo.EndBreak(ctx, rec.ID, s.now())
	if err != nil {
		return nil, s.raceOutcome(ctx, emp, org, models.EventEndBreak, err)
	}
	s.entry(emp, "EndBreak").Info("break ended")
	return b, nil
}

// ==============================================
// CHECK OUT
// ==============================================

// CheckOut closes the newest open record. Hourly employees get an earnings
// adjustment written in the same transaction.
func (s *AttendanceService) CheckOut(ctx context.Context, emp *models.Employee, org *models.Organization) (*CheckOutResult, error) {
	rec, err := s.transitionTarget(ctx, emp, org, models.EventCheckOut)
	if err != nil {
		return nil, err
	}

	at := s.now()
	result := &CheckOutResult{WorkedMinutes: models.WholeMinutes(rec.CheckInTime, at)}
	if emp.EarnsHourly() {
		amount, _ := models.ComputeEarnings(rec.CheckInTime, at, emp.HourlyRate)
		result.Adjustment = &models.SalaryAdjustment{
			EmployeeID:     emp.ID,
			OrganizationID: org.ID,
			AttendanceID:   rec.ID,
			Amount:         amount,
			Reason:         models.AdjustmentReasonFreelanceHours,
			AutoGenerated:  true,
			CreatedAt:      at,
		}
	}

	if err := s.repo.CheckOut(ctx, rec.ID, at, result.Adjustment); err != nil {
		return nil, s.raceOutcome(ctx, emp, org, models.EventCheckOut, err)
	}

	rec.CheckOutTime = &at
	rec.Status = models.StatusCheckedOut
	rec.UpdatedAt = at
	result.Record = rec

	entry := s.entry(emp, "CheckOut").WithField("worked_minutes", result.WorkedMinutes)
	if result.Adjustment != nil {
		entry = entry.WithField("earnings", result.Adjustment.Amount.StringFixed(2))
	}
	entry.Info("checked out")
	return result, nil
}

// ==============================================
// STATUS
// ==============================================

// Status summarises the current record, or returns a nil record when
// nothing has been recorded today.
func (s *AttendanceService) Status(ctx context.Context, emp *models.Employee, org *models.Organization) (*StatusSummary, error) {
	rec, err := s.current(ctx, emp, org)
	if err != nil {
		return nil, err
	}
	summary := &StatusSummary{Record: rec}
	if rec == nil {
		return summary, nil
	}

	breaks, err := s.repo.ListBreaks(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list breaks: %w", err)
	}
	now := s.now()
	for _, b := range breaks {
		switch {
		case b.DurationMinutes != nil:
			summary.BreakMinutes += *b.DurationMinutes
		case b.EndTime == nil:
			summary.BreakMinutes += models.WholeMinutes(b.StartTime, now)
		}
	}
	return summary, nil
}

// ==============================================
// HELPERS
// ==============================================

// current resolves the record transitions apply to: the newest open record
// (so a shift crossing local midnight can still be closed), else today's.
func (s *AttendanceService) current(ctx context.Context, emp *models.Employee, org *models.Organization) (*models.AttendanceRecord, error) {
	rec, err := s.repo.GetLatestOpen(ctx, emp.ID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get open attendance: %w", err)
	}

	rec, err = s.repo.GetByDate(ctx, emp.ID, org.LocalDate(s.now()))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}
	return rec, nil
}

func (s *AttendanceService) transitionTarget(ctx context.Context, emp *models.Employee, org *models.Organization, event models.AttendanceEvent) (*models.AttendanceRecord, error) {
	rec, err := s.current(ctx, emp, org)
	if err != nil {
		return nil, err
	}
	if _, err := models.Transition(rec.CurrentStatus(), event); err != nil {
		return nil, err
	}
	return rec, nil
}

// raceOutcome converts a lost guarded write into the conflict the winner
// caused.
func (s *AttendanceService) raceOutcome(ctx context.Context, emp *models.Employee, org *models.Organization, event models.AttendanceEvent, err error) error {
	if !errors.Is(err, repository.ErrStale) {
		return fmt.Errorf("failed to apply %s: %w", event, err)
	}
	rec, lookupErr := s.current(ctx, emp, org)
	if lookupErr != nil {
		return lookupErr
	}
	if _, terr := models.Transition(rec.CurrentStatus(), event); terr != nil {
		return terr
	}
	return models.ErrAttendanceConflict
}

func (s *AttendanceService) entry(emp *models.Employee, fn string) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{
		"module":      "attendance",
		"func":        fn,
		"employee_id": emp.ID,
	})
}
