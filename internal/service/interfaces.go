package service

import (
	"context"
	"time"

	"github.com/Brownie44l1/attendance/internal/models"
)

// ==============================================
// REPOSITORY INTERFACES (for testing)
// ==============================================

type SessionRepositoryInterface interface {
	Create(ctx context.Context, s *models.VerificationSession) error
	GetLive(ctx context.Context, token string, purpose models.SessionPurpose) (*models.VerificationSession, error)
	MarkBiometricVerified(ctx context.Context, token string, at time.Time) error
	MarkCompleted(ctx context.Context, token string, at time.Time) error
	CompleteRegistration(ctx context.Context, token, employeeID, credentialID string, at time.Time) error
	LogVerification(ctx context.Context, entry *models.VerificationLog) error
}

type OTPRepositoryInterface interface {
	CreateOTP(ctx context.Context, otp *models.OneTimeCode) error
	GetLatestUnused(ctx context.Context, sessionToken string) (*models.OneTimeCode, error)
	RegisterFailedAttempt(ctx context.Context, id string, maxAttempts int) (int, error)
	MarkUsed(ctx context.Context, id string, at time.Time, maxAttempts int) error
}

type EmployeeRepositoryInterface interface {
	GetEmployee(ctx context.Context, id string) (*models.Employee, error)
	GetByChatID(ctx context.Context, orgID string, chatID int64) (*models.Employee, error)
	BindChatByPhone(ctx context.Context, orgID, phone string, chatID int64) (*models.Employee, error)
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
}

type AttendanceRepositoryInterface interface {
	CreateCheckIn(ctx context.Context, rec *models.AttendanceRecord) error
	GetByDate(ctx context.Context, employeeID, date string) (*models.AttendanceRecord, error)
	GetLatestOpen(ctx context.Context, employeeID string) (*models.AttendanceRecord, error)
	ListBreaks(ctx context.Context, attendanceID string) ([]models.BreakInterval, error)
	StartBreak(ctx context.Context, attendanceID string, at time.Time) (*models.BreakInterval, error)
	EndBreak(ctx context.Context, attendanceID string, at time.Time) (*models.BreakInterval, error)
	CheckOut(ctx context.Context, attendanceID string, at time.Time, adj *models.SalaryAdjustment) error
}

type RequestRepositoryInterface interface {
	CreateJoinRequest(ctx context.Context, jr *models.JoinRequest) error
	GetLatestJoinRequest(ctx context.Context, orgID string, chatID int64) (*models.JoinRequest, error)
	CreateLeaveRequest(ctx context.Context, lr *models.LeaveRequest) error
}

// Clock returns the current instant. Services take one so tests can pin time.
type Clock func() time.Time
