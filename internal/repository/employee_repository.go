package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ==============================================
// EMPLOYEE REPOSITORY
// ==============================================

type EmployeeRepository struct {
	db *pgxpool.Pool
}

func NewEmployeeRepository(db *pgxpool.Pool) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = `
	id, organization_id, full_name, phone, telegram_chat_id, work_start_time,
	is_freelancer, hourly_rate, credential_id, credential_registered_at, is_active`

func scanEmployee(row pgx.Row) (*models.Employee, error) {
	var e models.Employee
	err := row.Scan(
		&e.ID,
		&e.OrganizationID,
		&e.FullName,
		&e.Phone,
		&e.ChatID,
		&e.WorkStartTime,
		&e.IsFreelancer,
		&e.HourlyRate,
		&e.CredentialID,
		&e.CredentialRegisteredAt,
		&e.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan employee: %w", err)
	}
	return &e, nil
}

// ==============================================
// EMPLOYEE LOOKUPS
// ==============================================

func (r *EmployeeRepository) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE id = $1`
	return scanEmployee(r.db.QueryRow(ctx, query, id))
}

// GetByChatID finds the active employee bound to a chat in an organization.
func (r *EmployeeRepository) GetByChatID(ctx context.Context, orgID string, chatID int64) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + `
		FROM employees
		WHERE organization_id = $1 AND telegram_chat_id = $2 AND is_active
		LIMIT 1
	`
	return scanEmployee(r.db.QueryRow(ctx, query, orgID, chatID))
}

// BindChatByPhone links a chat to the unbound active employee with the
// given phone number.
func (r *EmployeeRepository) BindChatByPhone(ctx context.Context, orgID, phone string, chatID int64) (*models.Employee, error) {
	query := `
		UPDATE employees
		SET telegram_chat_id = $3
		WHERE id = (
			SELECT id FROM employees
			WHERE organization_id = $1 AND phone = $2 AND is_active
			  AND (telegram_chat_id IS NULL OR telegram_chat_id = $3)
			LIMIT 1
		)
		RETURNING ` + employeeColumns
	return scanEmployee(r.db.QueryRow(ctx, query, orgID, phone, chatID))
}

// ==============================================
// ORGANIZATIONS
// ==============================================

func (r *EmployeeRepository) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	query := `
		SELECT id, name, timezone, bot_token, language
		FROM organizations
		WHERE id = $1
	`
	var o models.Organization
	err := r.db.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.Name,
		&o.Timezone,
		&o.BotToken,
		&o.Language,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &o, nil
}
