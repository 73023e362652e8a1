package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Brownie44l1/attendance/internal/i18n"
	"github.com/Brownie44l1/attendance/internal/logger"
	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/sirupsen/logrus"
)

// ==============================================
// NEXT STEP STRATEGY
// ==============================================

// NextStepDescriber tells the user what remains for verification levels
// above the first.
type NextStepDescriber interface {
	DescribeNextStep(lang string, level int) string
}

// TranslatedNextSteps looks up "next_step_level_<n>" in the message catalog.
type TranslatedNextSteps struct {
	tr *i18n.Translator
}

func NewTranslatedNextSteps(tr *i18n.Translator) *TranslatedNextSteps {
	return &TranslatedNextSteps{tr: tr}
}

func (d *TranslatedNextSteps) DescribeNextStep(lang string, level int) string {
	return d.tr.T(lang, fmt.Sprintf("next_step_level_%d", level))
}

// ==============================================
// COMPLETION ENGINE
// ==============================================

type CompletionOutcome string

const (
	OutcomeCheckedIn        CompletionOutcome = "checked_in"
	OutcomeAlreadyCheckedIn CompletionOutcome = "already_checked_in"
	OutcomeCheckedOut       CompletionOutcome = "checked_out"
	OutcomeNotCheckedIn     CompletionOutcome = "not_checked_in"
	OutcomeAlreadyDone      CompletionOutcome = "already_checked_out"
	OutcomeVerified         CompletionOutcome = "verified"
	OutcomeAwaitingNextStep CompletionOutcome = "awaiting_next_step"
)

type CompletionResult struct {
	Outcome    CompletionOutcome
	Record     *models.AttendanceRecord
	Adjustment *models.SalaryAdjustment
	NextLevel  int
}

// CompletionService is the single path from a confirmed identity to an
// attendance side effect.
type CompletionService struct {
	sessions   *SessionService
	repo       SessionRepositoryInterface
	employees  EmployeeRepositoryInterface
	attendance *AttendanceService
	notifier   *Notifier
	nextSteps  NextStepDescriber
	now        Clock
	log        logrus.FieldLogger
}

func NewCompletionService(
	sessions *SessionService,
	repo SessionRepositoryInterface,
	employees EmployeeRepositoryInterface,
	attendance *AttendanceService,
	notifier *Notifier,
	nextSteps NextStepDescriber,
	now Clock,
	log logrus.FieldLogger,
) *CompletionService {
	return &CompletionService{
		sessions:   sessions,
		repo:       repo,
		employees:  employees,
		attendance: attendance,
		notifier:   notifier,
		nextSteps:  nextSteps,
		now:        now,
		log:        log,
	}
}

// Validate is the read-only check for the authentication page.
func (e *CompletionService) Validate(ctx context.Context, token string) (*models.VerificationSession, *models.Employee, error) {
	session, err := e.sessions.LookupLive(ctx, token, models.PurposeAuthentication)
	if err != nil {
		return nil, nil, err
	}
	emp, _, err := loadParties(ctx, e.employees, session.EmployeeID, session.OrganizationID)
	if err != nil {
		return nil, nil, err
	}
	return session, emp, nil
}

// CompleteBiometric checks the presented credential against the employee's
// registered device before completing with method biometric.
func (e *CompletionService) CompleteBiometric(ctx context.Context, token, credentialID string) (*CompletionResult, error) {
	if credentialID == "" {
		return nil, models.ErrCredentialMissing
	}
	session, emp, err := e.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !emp.HasCredential() || *emp.CredentialID != credentialID {
		e.audit(ctx, session, models.MethodBiometric, false)
		return nil, models.ErrCredentialMismatch
	}
	return e.Complete(ctx, token, models.MethodBiometric)
}

// Complete finishes a verified authentication session. Once it returns the
// token can never trigger another side effect.
func (e *CompletionService) Complete(ctx context.Context, token string, method models.VerificationMethod) (*CompletionResult, error) {
	session, err := e.sessions.LookupLive(ctx, token, models.PurposeAuthentication)
	if err != nil {
		return nil, err
	}

	e.audit(ctx, session, method, true)

	emp, org, err := loadParties(ctx, e.employees, session.EmployeeID, session.OrganizationID)
	if err != nil {
		return nil, err
	}

	if !session.IsFinalStep() {
		return e.advance(ctx, session, org)
	}

	if err := e.sessions.MarkCompleted(ctx, session.Token); err != nil {
		return nil, err
	}

	switch session.RequestKind {
	case models.RequestCheckIn:
		return e.checkIn(ctx, session, emp, org)
	case models.RequestCheckOut:
		return e.checkOut(ctx, session, emp, org)
	}
	return &CompletionResult{Outcome: OutcomeVerified}, nil
}

// advance handles levels above one. No automated continuation exists, so
// the session is consumed and the user is told the next manual step.
func (e *CompletionService) advance(ctx context.Context, session *models.VerificationSession, org *models.Organization) (*CompletionResult, error) {
	if err := e.sessions.MarkBiometricVerified(ctx, session.Token); err != nil {
		return nil, err
	}
	if err := e.sessions.MarkCompleted(ctx, session.Token); err != nil {
		return nil, err
	}

	next := session.RequiredLevel
	text := e.nextSteps.DescribeNextStep(org.Language, next)
	e.notifier.Send(ctx, org, session.ChatID, text, nil)

	e.log.WithFields(logrus.Fields{
		"module":     "completion",
		"token":      shortToken(session.Token),
		"next_level": next,
	}).Info("intermediate verification step completed")
	return &CompletionResult{Outcome: OutcomeAwaitingNextStep, NextLevel: next}, nil
}

func (e *CompletionService) checkIn(ctx context.Context, session *models.VerificationSession, emp *models.Employee, org *models.Organization) (*CompletionResult, error) {
	rec, err := e.attendance.CheckIn(ctx, emp, org, session.Location)
	if err != nil {
		if errors.Is(err, models.ErrAlreadyCheckedIn) {
			e.notifier.Notify(ctx, org, session.ChatID, "already_checked_in", nil)
			return &CompletionResult{Outcome: OutcomeAlreadyCheckedIn}, nil
		}
		return nil, err
	}
	e.notifier.Send(ctx, org, session.ChatID, checkInReply(e.notifier, org, emp, rec), nil)
	return &CompletionResult{Outcome: OutcomeCheckedIn, Record: rec}, nil
}

func (e *CompletionService) checkOut(ctx context.Context, session *models.VerificationSession, emp *models.Employee, org *models.Organization) (*CompletionResult, error) {
	res, err := e.attendance.CheckOut(ctx, emp, org)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotCheckedIn):
			e.notifier.Notify(ctx, org, session.ChatID, "not_checked_in", nil)
			return &CompletionResult{Outcome: OutcomeNotCheckedIn}, nil
		case errors.Is(err, models.ErrAlreadyCheckedOut):
			e.notifier.Notify(ctx, org, session.ChatID, "already_checked_out", nil)
			return &CompletionResult{Outcome: OutcomeAlreadyDone}, nil
		}
		return nil, err
	}
	e.notifier.Send(ctx, org, session.ChatID, checkOutReply(e.notifier, org, res), nil)
	return &CompletionResult{Outcome: OutcomeCheckedOut, Record: res.Record, Adjustment: res.Adjustment}, nil
}

// audit appends to the verification log. A failed write is logged only.
func (e *CompletionService) audit(ctx context.Context, session *models.VerificationSession, method models.VerificationMethod, success bool) {
	entry := &models.VerificationLog{
		EmployeeID:     session.EmployeeID,
		OrganizationID: session.OrganizationID,
		SessionToken:   session.Token,
		Method:         method,
		Success:        success,
		CreatedAt:      e.now(),
	}
	if err := e.repo.LogVerification(ctx, entry); err != nil {
		logger.LogError(e.log, "completion", "audit", "write verification log", entry.Method, err)
	}
}

func shortToken(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
