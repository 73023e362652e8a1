package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ==============================================
// REQUEST REPOSITORY (join / leave)
// ==============================================

type RequestRepository struct {
	db *pgxpool.Pool
}

func NewRequestRepository(db *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{db: db}
}

// CreateJoinRequest stores a pending request. A chat can have only one
// pending request per organization; a second returns ErrDuplicate.
func (r *RequestRepository) CreateJoinRequest(ctx context.Context, jr *models.JoinRequest) error {
	if jr.ID == "" {
		jr.ID = uuid.NewString()
	}
	if jr.Status == "" {
		jr.Status = models.RequestStatusPending
	}
	query := `
		INSERT INTO join_requests (id, organization_id, chat_id, full_name, email, phone, national_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		jr.ID,
		jr.OrganizationID,
		jr.ChatID,
		jr.FullName,
		jr.Email,
		jr.Phone,
		jr.NationalID,
		jr.Status,
		jr.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create join request: %w", err)
	}
	return nil
}

func (r *RequestRepository) GetLatestJoinRequest(ctx context.Context, orgID string, chatID int64) (*models.JoinRequest, error) {
	query := `
		SELECT id, organization_id, chat_id, full_name, email, phone, national_id, status, created_at
		FROM join_requests
		WHERE organization_id = $1 AND chat_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var jr models.JoinRequest
	err := r.db.QueryRow(ctx, query, orgID, chatID).Scan(
		&jr.ID,
		&jr.OrganizationID,
		&jr.ChatID,
		&jr.FullName,
		&jr.Email,
		&jr.Phone,
		&jr.NationalID,
		&jr.Status,
		&jr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get join request: %w", err)
	}
	return &jr, nil
}

func (r *RequestRepository) CreateLeaveRequest(ctx context.Context, lr *models.LeaveRequest) error {
	if lr.ID == "" {
		lr.ID = uuid.NewString()
	}
	if lr.Status == "" {
		lr.Status = models.RequestStatusPending
	}
	query := `
		INSERT INTO leave_requests (id, employee_id, organization_id, type, start_date, end_date, days, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5::date, $6::date, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		lr.ID,
		lr.EmployeeID,
		lr.OrganizationID,
		lr.Type,
		lr.StartDate,
		lr.EndDate,
		lr.Days,
		lr.Reason,
		lr.Status,
		lr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create leave request: %w", err)
	}
	return nil
}
