package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/Brownie44l1/attendance/internal/repository"
	"github.com/sirupsen/logrus"
)

// ==============================================
// REGISTRATION SERVICE
// ==============================================

type RegistrationService struct {
	sessions  *SessionService
	repo      SessionRepositoryInterface
	employees EmployeeRepositoryInterface
	notifier  *Notifier
	now       Clock
	log       logrus.FieldLogger
}

func NewRegistrationService(
	sessions *SessionService,
	repo SessionRepositoryInterface,
	employees EmployeeRepositoryInterface,
	notifier *Notifier,
	now Clock,
	log logrus.FieldLogger,
) *RegistrationService {
	return &RegistrationService{
		sessions:  sessions,
		repo:      repo,
		employees: employees,
		notifier:  notifier,
		now:       now,
		log:       log,
	}
}

type RegistrationInfo struct {
	EmployeeID     string
	EmployeeName   string
	OrganizationID string
	ExpiresAt      time.Time
}

// Begin opens a registration session for a device credential.
func (s *RegistrationService) Begin(ctx context.Context, employeeID, orgID string, chatID int64) (*models.VerificationSession, error) {
	return s.sessions.Create(ctx, CreateSessionParams{
		Purpose:        models.PurposeRegistration,
		EmployeeID:     employeeID,
		OrganizationID: orgID,
		ChatID:         chatID,
	})
}

// Validate is the read-only check the registration page runs before asking
// the device for a credential.
func (s *RegistrationService) Validate(ctx context.Context, token string) (*RegistrationInfo, error) {
	session, err := s.sessions.LookupLive(ctx, token, models.PurposeRegistration)
	if err != nil {
		return nil, err
	}
	emp, err := s.employees.GetEmployee(ctx, session.EmployeeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &RegistrationInfo{
		EmployeeID:     emp.ID,
		EmployeeName:   emp.FullName,
		OrganizationID: session.OrganizationID,
		ExpiresAt:      session.ExpiresAt,
	}, nil
}

// Complete stores the credential and consumes the session. A replay yields
// ErrSessionInvalid.
func (s *RegistrationService) Complete(ctx context.Context, token, credentialID string) error {
	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		return models.ErrCredentialMissing
	}

	session, err := s.sessions.LookupLive(ctx, token, models.PurposeRegistration)
	if err != nil {
		return err
	}

	err = s.repo.CompleteRegistration(ctx, session.Token, session.EmployeeID, credentialID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrStale) {
			return models.ErrSessionInvalid
		}
		if errors.Is(err, repository.ErrNotFound) {
			return models.ErrEmployeeNotFound
		}
		return fmt.Errorf("failed to complete registration: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"module":      "registration",
		"employee_id": session.EmployeeID,
	}).Info("device credential registered")

	org, err := s.employees.GetOrganization(ctx, session.OrganizationID)
	if err != nil {
		s.log.WithError(err).Warn("registration confirmation skipped")
		return nil
	}
	s.notifier.Notify(ctx, org, session.ChatID, "registration_complete", nil)
	return nil
}
