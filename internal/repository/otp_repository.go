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
// OTP REPOSITORY
// ==============================================

type OTPRepository struct {
	db *pgxpool.Pool
}

func NewOTPRepository(db *pgxpool.Pool) *OTPRepository {
	return &OTPRepository{db: db}
}

// ==============================================
// CREATE OTP
// ==============================================

func (r *OTPRepository) CreateOTP(ctx context.Context, otp *models.OneTimeCode) error {
	if otp.ID == "" {
		otp.ID = uuid.NewString()
	}
	query := `
		INSERT INTO one_time_codes (
			id, session_token, employee_id, organization_id, request_kind,
			code_hash, created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		otp.ID,
		otp.SessionToken,
		otp.EmployeeID,
		otp.OrganizationID,
		otp.RequestKind,
		otp.CodeHash,
		otp.CreatedAt,
		otp.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create OTP: %w", err)
	}
	return nil
}

// ==============================================
// GET OTP
// ==============================================

// GetLatestUnused returns the newest code for a session that has not been
// consumed. Expired or exhausted codes are still returned so the caller can
// report them precisely.
func (r *OTPRepository) GetLatestUnused(ctx context.Context, sessionToken string) (*models.OneTimeCode, error) {
	query := `
		SELECT id, session_token, employee_id, organization_id, request_kind,
		       code_hash, created_at, expires_at, attempts, used_at
		FROM one_time_codes
		WHERE session_token = $1 AND used_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	var otp models.OneTimeCode
	err := r.db.QueryRow(ctx, query, sessionToken).Scan(
		&otp.ID,
		&otp.SessionToken,
		&otp.EmployeeID,
		&otp.OrganizationID,
		&otp.RequestKind,
		&otp.CodeHash,
		&otp.CreatedAt,
		&otp.ExpiresAt,
		&otp.Attempts,
		&otp.UsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}
	return &otp, nil
}

// ==============================================
// GUARDED MUTATIONS
// ==============================================

// RegisterFailedAttempt bumps the attempt counter unless the code is already
// consumed or out of attempts, and returns the new count.
func (r *OTPRepository) RegisterFailedAttempt(ctx context.Context, id string, maxAttempts int) (int, error) {
	query := `
		UPDATE one_time_codes
		SET attempts = attempts + 1
		WHERE id = $1 AND used_at IS NULL AND attempts < $2
		RETURNING attempts
	`
	var attempts int
	err := r.db.QueryRow(ctx, query, id, maxAttempts).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrStale
		}
		return 0, fmt.Errorf("failed to increment OTP attempts: %w", err)
	}
	return attempts, nil
}

// MarkUsed consumes the code. Only one concurrent caller can succeed.
func (r *OTPRepository) MarkUsed(ctx context.Context, id string, at time.Time, maxAttempts int) error {
	query := `
		UPDATE one_time_codes
		SET used_at = $2
		WHERE id = $1 AND used_at IS NULL AND attempts < $3
	`
	tag, err := r.db.Exec(ctx, query, id, at, maxAttempts)
	if err != nil {
		return fmt.Errorf("failed to mark OTP as used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// ==============================================
// CLEANUP
// ==============================================

func (r *OTPRepository) DeleteExpiredOTPs(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM one_time_codes
		WHERE expires_at < $1
	`
	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired OTPs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *OTPRepository) DeleteUsedOTPs(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM one_time_codes
		WHERE used_at IS NOT NULL AND used_at < $1
	`
	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete used OTPs: %w", err)
	}
	return tag.RowsAffected(), nil
}
