package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Brownie44l1/attendance/internal/auth"
	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/Brownie44l1/attendance/internal/repository"
	"github.com/sirupsen/logrus"
)

// ==============================================
// SESSION SERVICE
// ==============================================

type SessionService struct {
	sessions  SessionRepositoryInterface
	employees EmployeeRepositoryInterface
	now       Clock
	log       logrus.FieldLogger
}

func NewSessionService(sessions SessionRepositoryInterface, employees EmployeeRepositoryInterface, now Clock, log logrus.FieldLogger) *SessionService {
	return &SessionService{sessions: sessions, employees: employees, now: now, log: log}
}

type CreateSessionParams struct {
	Purpose        models.SessionPurpose
	EmployeeID     string
	OrganizationID string
	RequestKind    models.RequestKind
	ChatID         int64
	Location       *models.GeoPoint
	RequiredLevel  int
}

// Create persists a new session with a random token and purpose-specific
// expiry.
func (s *SessionService) Create(ctx context.Context, p CreateSessionParams) (*models.VerificationSession, error) {
	if !p.Purpose.Valid() {
		return nil, models.ErrInvalidPurpose
	}
	if p.RequiredLevel == 0 {
		p.RequiredLevel = models.MinVerificationLevel
	}
	if !models.ValidLevel(p.RequiredLevel) {
		return nil, models.ErrInvalidLevel
	}
	switch p.Purpose {
	case models.PurposeAuthentication:
		if !p.RequestKind.Valid() {
			return nil, models.ErrInvalidRequestKind
		}
	case models.PurposeRegistration:
		// registration is always single-step
		p.RequestKind = ""
		p.RequiredLevel = models.MinVerificationLevel
	}

	token, err := auth.NewSessionToken(models.SessionTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.now()
	session := &models.VerificationSession{
		Token:          token,
		EmployeeID:     p.EmployeeID,
		OrganizationID: p.OrganizationID,
		Purpose:        p.Purpose,
		RequestKind:    p.RequestKind,
		ChatID:         p.ChatID,
		Location:       p.Location,
		RequiredLevel:  p.RequiredLevel,
		CreatedAt:      now,
		ExpiresAt:      now.Add(models.SessionTTL(p.Purpose)),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"module":      "session",
		"purpose":     session.Purpose,
		"employee_id": session.EmployeeID,
		"level":       session.RequiredLevel,
	}).Info("session created")
	return session, nil
}

// Initiate creates a session on behalf of an organization administrator.
// The employee must belong to orgID and have a bound chat.
func (s *SessionService) Initiate(ctx context.Context, orgID string, p CreateSessionParams) (*models.VerificationSession, error) {
	emp, err := s.employees.GetEmployee(ctx, p.EmployeeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	if emp.OrganizationID != orgID || !emp.IsActive {
		return nil, models.ErrEmployeeNotFound
	}
	if emp.ChatID == nil {
		return nil, models.ErrEmployeeNotBound
	}

	p.OrganizationID = orgID
	p.ChatID = *emp.ChatID
	return s.Create(ctx, p)
}

// LookupLive returns an uncompleted session of the given purpose.
// Unknown, completed or wrong-purpose tokens yield ErrSessionInvalid;
// expired ones yield ErrSessionExpired.
func (s *SessionService) LookupLive(ctx context.Context, token string, purpose models.SessionPurpose) (*models.VerificationSession, error) {
	if token == "" {
		return nil, models.ErrSessionInvalid
	}
	session, err := s.sessions.GetLive(ctx, token, purpose)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.ErrSessionInvalid
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if session.IsExpiredAt(s.now()) {
		return nil, models.ErrSessionExpired
	}
	return session, nil
}

// MarkBiometricVerified records the first verification step.
func (s *SessionService) MarkBiometricVerified(ctx context.Context, token string) error {
	return guardSession(s.sessions.MarkBiometricVerified(ctx, token, s.now()))
}

// MarkCompleted claims the session. A second claim yields ErrSessionInvalid.
func (s *SessionService) MarkCompleted(ctx context.Context, token string) error {
	return guardSession(s.sessions.MarkCompleted(ctx, token, s.now()))
}

func guardSession(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrStale) || errors.Is(err, repository.ErrNotFound) {
		return models.ErrSessionInvalid
	}
	return err
}

// loadParties fetches the employee and organization a session refers to.
func loadParties(ctx context.Context, employees EmployeeRepositoryInterface, employeeID, orgID string) (*models.Employee, *models.Organization, error) {
	emp, err := employees.GetEmployee(ctx, employeeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, models.ErrEmployeeNotFound
		}
		return nil, nil, fmt.Errorf("failed to get employee: %w", err)
	}
	org, err := employees.GetOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, models.ErrOrganizationMissing
		}
		return nil, nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return emp, org, nil
}
