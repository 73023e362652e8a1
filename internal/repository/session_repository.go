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
// SESSION REPOSITORY
// ==============================================

type SessionRepository struct {
	db *pgxpool.Pool
}

func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	token, employee_id, organization_id, purpose, request_kind, chat_id,
	latitude, longitude, required_level, created_at, expires_at,
	biometric_verified_at, completed_at`

func scanSession(row pgx.Row) (*models.VerificationSession, error) {
	var (
		s        models.VerificationSession
		lat, lng *float64
	)
	err := row.Scan(
		&s.Token,
		&s.EmployeeID,
		&s.OrganizationID,
		&s.Purpose,
		&s.RequestKind,
		&s.ChatID,
		&lat,
		&lng,
		&s.RequiredLevel,
		&s.CreatedAt,
		&s.ExpiresAt,
		&s.BiometricVerifiedAt,
		&s.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lat != nil && lng != nil {
		s.Location = &models.GeoPoint{Latitude: *lat, Longitude: *lng}
	}
	return &s, nil
}

func geoArgs(g *models.GeoPoint) (lat, lng *float64) {
	if g == nil {
		return nil, nil
	}
	return &g.Latitude, &g.Longitude
}

// ==============================================
// CREATE
// ==============================================

func (r *SessionRepository) Create(ctx context.Context, s *models.VerificationSession) error {
	query := `
		INSERT INTO verification_sessions (
			token, employee_id, organization_id, purpose, request_kind, chat_id,
			latitude, longitude, required_level, created_at, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	lat, lng := geoArgs(s.Location)
	_, err := r.db.Exec(ctx, query,
		s.Token,
		s.EmployeeID,
		s.OrganizationID,
		s.Purpose,
		s.RequestKind,
		s.ChatID,
		lat,
		lng,
		s.RequiredLevel,
		s.CreatedAt,
		s.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// ==============================================
// LOOKUPS
// ==============================================

// GetLive returns an uncompleted session with the given purpose. Expiry is
// left to the caller so it can be reported distinctly.
func (r *SessionRepository) GetLive(ctx context.Context, token string, purpose models.SessionPurpose) (*models.VerificationSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM verification_sessions
		WHERE token = $1 AND purpose = $2 AND completed_at IS NULL
	`
	s, err := scanSession(r.db.QueryRow(ctx, query, token, purpose))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, err
}

// GetByToken is a diagnostic read that ignores completion and expiry.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*models.VerificationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM verification_sessions WHERE token = $1`
	s, err := scanSession(r.db.QueryRow(ctx, query, token))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, err
}

// ==============================================
// GUARDED MUTATIONS
// ==============================================

func (r *SessionRepository) MarkBiometricVerified(ctx context.Context, token string, at time.Time) error {
	query := `
		UPDATE verification_sessions
		SET biometric_verified_at = $2
		WHERE token = $1 AND completed_at IS NULL AND biometric_verified_at IS NULL
	`
	tag, err := r.db.Exec(ctx, query, token, at)
	if err != nil {
		return fmt.Errorf("failed to mark session verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// MarkCompleted claims the session. Exactly one caller can succeed.
func (r *SessionRepository) MarkCompleted(ctx context.Context, token string, at time.Time) error {
	query := `
		UPDATE verification_sessions
		SET completed_at = $2
		WHERE token = $1 AND completed_at IS NULL
	`
	tag, err := r.db.Exec(ctx, query, token, at)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// CompleteRegistration claims a registration session and stores the device
// credential on the employee in one transaction.
func (r *SessionRepository) CompleteRegistration(ctx context.Context, token, employeeID, credentialID string, at time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE verification_sessions
		SET completed_at = $2
		WHERE token = $1 AND purpose = 'registration' AND completed_at IS NULL
	`, token, at)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}

	tag, err = tx.Exec(ctx, `
		UPDATE employees
		SET credential_id = $2, credential_registered_at = $3
		WHERE id = $1
	`, employeeID, credentialID, at)
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ==============================================
// AUDIT
// ==============================================

func (r *SessionRepository) LogVerification(ctx context.Context, entry *models.VerificationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	query := `
		INSERT INTO verification_logs (id, employee_id, organization_id, session_token, method, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.EmployeeID,
		entry.OrganizationID,
		entry.SessionToken,
		entry.Method,
		entry.Success,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write verification log: %w", err)
	}
	return nil
}
