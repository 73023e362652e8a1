package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ==============================================
// ATTENDANCE REPOSITORY
// ==============================================

type AttendanceRepository struct {
	db *pgxpool.Pool
}

func NewAttendanceRepository(db *pgxpool.Pool) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `
	id, employee_id, organization_id, date::text, check_in_time, check_out_time,
	status, is_late, notes, latitude, longitude, created_at, updated_at`

func scanAttendance(row pgx.Row) (*models.AttendanceRecord, error) {
	var (
		rec      models.AttendanceRecord
		lat, lng *float64
	)
	err := row.Scan(
		&rec.ID,
		&rec.EmployeeID,
		&rec.OrganizationID,
		&rec.Date,
		&rec.CheckInTime,
		&rec.CheckOutTime,
		&rec.Status,
		&rec.IsLate,
		&rec.Notes,
		&lat,
		&lng,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan attendance: %w", err)
	}
	if lat != nil && lng != nil {
		rec.Location = &models.GeoPoint{Latitude: *lat, Longitude: *lng}
	}
	return &rec, nil
}

// ==============================================
// CHECK IN
// ==============================================

// CreateCheckIn inserts the day's record. A second insert for the same
// employee and date returns ErrDuplicate.
func (r *AttendanceRepository) CreateCheckIn(ctx context.Context, rec *models.AttendanceRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	query := `
		INSERT INTO attendance_records (
			id, employee_id, organization_id, date, check_in_time, status,
			is_late, notes, latitude, longitude, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (employee_id, date) DO NOTHING
		RETURNING created_at
	`
	lat, lng := geoArgs(rec.Location)
	err := r.db.QueryRow(ctx, query,
		rec.ID,
		rec.EmployeeID,
		rec.OrganizationID,
		rec.Date,
		rec.CheckInTime,
		rec.Status,
		rec.IsLate,
		rec.Notes,
		lat,
		lng,
		rec.CheckInTime,
	).Scan(&rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create attendance: %w", err)
	}
	rec.UpdatedAt = rec.CreatedAt
	return nil
}

// ==============================================
// LOOKUPS
// ==============================================

func (r *AttendanceRepository) GetByDate(ctx context.Context, employeeID, date string) (*models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + `
		FROM attendance_records
		WHERE employee_id = $1 AND date = $2::date
	`
	return scanAttendance(r.db.QueryRow(ctx, query, employeeID, date))
}

// GetLatestOpen returns the newest record without a checkout, so a shift
// that crosses local midnight can still be closed.
func (r *AttendanceRepository) GetLatestOpen(ctx context.Context, employeeID string) (*models.AttendanceRecord, error) {
	query := `SELECT ` + attendanceColumns + `
		FROM attendance_records
		WHERE employee_id = $1 AND check_out_time IS NULL AND status IN ('checked_in', 'on_break')
		ORDER BY date DESC
		LIMIT 1
	`
	return scanAttendance(r.db.QueryRow(ctx, query, employeeID))
}

func (r *AttendanceRepository) ListBreaks(ctx context.Context, attendanceID string) ([]models.BreakInterval, error) {
	query := `
		SELECT id, attendance_id, start_time, end_time, duration_minutes
		FROM break_intervals
		WHERE attendance_id = $1
		ORDER BY start_time
	`
	rows, err := r.db.Query(ctx, query, attendanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list breaks: %w", err)
	}
	defer rows.Close()

	var breaks []models.BreakInterval
	for rows.Next() {
		var b models.BreakInterval
		if err := rows.Scan(&b.ID, &b.AttendanceID, &b.StartTime, &b.EndTime, &b.DurationMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan break: %w", err)
		}
		breaks = append(breaks, b)
	}
	return breaks, rows.Err()
}

// ==============================================
// BREAKS
// ==============================================

// StartBreak moves a checked-in record to on_break and opens an interval.
func (r *AttendanceRepository) StartBreak(ctx context.Context, attendanceID string, at time.Time) (*models.BreakInterval, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE attendance_records
		SET status = 'on_break', updated_at = $2
		WHERE id = $1 AND status = 'checked_in' AND check_out_time IS NULL
	`, attendanceID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to start break: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrStale
	}

	b := &models.BreakInterval{
		ID:           uuid.NewString(),
		AttendanceID: attendanceID,
		StartTime:    at,
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO break_intervals (id, attendance_id, start_time)
		VALUES ($1, $2, $3)
	`, b.ID, b.AttendanceID, b.StartTime)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrStale
		}
		return nil, fmt.Errorf("failed to open break: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return b, nil
}

// EndBreak closes the open interval and returns the record to checked_in.
func (r *AttendanceRepository) EndBreak(ctx context.Context, attendanceID string, at time.Time) (*models.BreakInterval, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE attendance_records
		SET status = 'checked_in', updated_at = $2
		WHERE id = $1 AND status = 'on_break' AND check_out_time IS NULL
	`, attendanceID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to end break: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrStale
	}

	b, err := closeOpenBreak(ctx, tx, attendanceID, at)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return b, nil
}

func closeOpenBreak(ctx context.Context, tx pgx.Tx, attendanceID string, at time.Time) (*models.BreakInterval, error) {
	var b models.BreakInterval
	err := tx.QueryRow(ctx, `
		UPDATE break_intervals
		SET end_time = $2,
		    duration_minutes = GREATEST(FLOOR(EXTRACT(EPOCH FROM ($2::timestamptz - start_time)) / 60), 0)::int
		WHERE attendance_id = $1 AND end_time IS NULL
		RETURNING id, attendance_id, start_time, end_time, duration_minutes
	`, attendanceID, at).Scan(&b.ID, &b.AttendanceID, &b.StartTime, &b.EndTime, &b.DurationMinutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to close break: %w", err)
	}
	return &b, nil
}

// ==============================================
// CHECK OUT
// ==============================================

// CheckOut closes the record, ends any open break, and records the optional
// earnings adjustment in one transaction.
func (r *AttendanceRepository) CheckOut(ctx context.Context, attendanceID string, at time.Time, adj *models.SalaryAdjustment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var previous models.AttendanceStatus
	err = tx.QueryRow(ctx, `
		SELECT status FROM attendance_records
		WHERE id = $1 AND check_out_time IS NULL
		FOR UPDATE
	`, attendanceID).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStale
		}
		return fmt.Errorf("failed to lock attendance: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE attendance_records
		SET check_out_time = $2, status = 'checked_out', updated_at = $2
		WHERE id = $1 AND check_out_time IS NULL AND status IN ('checked_in', 'on_break')
	`, attendanceID, at)
	if err != nil {
		return fmt.Errorf("failed to check out: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}

	if previous == models.StatusOnBreak {
		if _, err := closeOpenBreak(ctx, tx, attendanceID, at); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}

	if adj != nil {
		if adj.ID == "" {
			adj.ID = uuid.NewString()
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO salary_adjustments (
				id, employee_id, organization_id, attendance_id, amount, reason, auto_generated, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			adj.ID,
			adj.EmployeeID,
			adj.OrganizationID,
			adj.AttendanceID,
			adj.Amount,
			adj.Reason,
			adj.AutoGenerated,
			adj.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to record salary adjustment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
