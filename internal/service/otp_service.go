package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Brownie44l1/attendance/internal/auth"
	"github.com/Brownie44l1/attendance/internal/messaging"
	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/Brownie44l1/attendance/internal/repository"
	"github.com/sirupsen/logrus"
)

// ==============================================
// OTP SERVICE
// ==============================================

// OTPMismatchError reports a wrong code and how many guesses remain.
type OTPMismatchError struct {
	Remaining int
}

func (e *OTPMismatchError) Error() string {
	return fmt.Sprintf("%s (%d attempts remaining)", models.ErrOTPInvalid, e.Remaining)
}

func (e *OTPMismatchError) Unwrap() error {
	return models.ErrOTPInvalid
}

type OTPService struct {
	sessions   *SessionService
	otps       OTPRepositoryInterface
	employees  EmployeeRepositoryInterface
	completion *CompletionService
	provider   messaging.Provider
	notifier   *Notifier
	throttle   Throttle
	cooldown   time.Duration
	now        Clock
	log        logrus.FieldLogger
}

func NewOTPService(
	sessions *SessionService,
	otps OTPRepositoryInterface,
	employees EmployeeRepositoryInterface,
	completion *CompletionService,
	provider messaging.Provider,
	notifier *Notifier,
	throttle Throttle,
	cooldown time.Duration,
	now Clock,
	log logrus.FieldLogger,
) *OTPService {
	if throttle == nil {
		throttle = NoThrottle{}
	}
	return &OTPService{
		sessions:   sessions,
		otps:       otps,
		employees:  employees,
		completion: completion,
		provider:   provider,
		notifier:   notifier,
		throttle:   throttle,
		cooldown:   cooldown,
		now:        now,
		log:        log,
	}
}

// ==============================================
// ISSUE
// ==============================================

// Issue generates a fresh code for a live authentication session and sends
// it to the session's chat.
func (s *OTPService) Issue(ctx context.Context, token string) (time.Time, error) {
	session, err := s.sessions.LookupLive(ctx, token, models.PurposeAuthentication)
	if err != nil {
		return time.Time{}, err
	}
	org, err := s.employees.GetOrganization(ctx, session.OrganizationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return time.Time{}, models.ErrOrganizationMissing
		}
		return time.Time{}, fmt.Errorf("failed to get organization: %w", err)
	}
	gw, err := s.provider.ForOrganization(org)
	if err != nil {
		return time.Time{}, err
	}

	if s.cooldown > 0 {
		ok, err := s.throttle.Allow(ctx, session.Token, s.cooldown)
		if err != nil {
			s.log.WithError(err).Warn("otp throttle unavailable")
		} else if !ok {
			return time.Time{}, models.ErrOTPResendCooldown
		}
	}

	code, err := auth.GenerateOTP()
	if err != nil {
		return time.Time{}, err
	}
	hash, err := auth.HashOTP(code)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to hash OTP: %w", err)
	}

	now := s.now()
	otp := &models.OneTimeCode{
		SessionToken:   session.Token,
		EmployeeID:     session.EmployeeID,
		OrganizationID: session.OrganizationID,
		RequestKind:    session.RequestKind,
		CodeHash:       hash,
		CreatedAt:      now,
		ExpiresAt:      now.Add(models.OTPExpiry),
	}
	if err := s.otps.CreateOTP(ctx, otp); err != nil {
		return time.Time{}, fmt.Errorf("failed to create OTP: %w", err)
	}

	text := s.notifier.T(org, "otp_message", map[string]any{
		"Code":    code,
		"Minutes": int(models.OTPExpiry / time.Minute),
	})
	if err := gw.SendMessage(ctx, session.ChatID, text, nil); err != nil {
		return time.Time{}, fmt.Errorf("failed to deliver OTP: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"module":      "otp",
		"employee_id": session.EmployeeID,
		"token":       shortToken(session.Token),
	}).Info("otp issued")
	return otp.ExpiresAt, nil
}

// ==============================================
// VERIFY
// ==============================================

// Verify checks a submitted code against the newest unused code for the
// session and, on success, runs the completion engine with method otp.
func (s *OTPService) Verify(ctx context.Context, token, submitted string) (*CompletionResult, error) {
	session, err := s.sessions.LookupLive(ctx, token, models.PurposeAuthentication)
	if err != nil {
		return nil, err
	}

	otp, err := s.otps.GetLatestUnused(ctx, session.Token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, models.ErrOTPNotFound
		}
		return nil, fmt.Errorf("failed to get OTP: %w", err)
	}

	if otp.IsExhausted() {
		return nil, models.ErrOTPMaxAttempts
	}
	if otp.IsExpiredAt(s.now()) {
		return nil, models.ErrOTPExpired
	}

	if !auth.CheckOTP(submitted, otp.CodeHash) {
		s.completion.audit(ctx, session, models.MethodOTP, false)
		attempts, err := s.otps.RegisterFailedAttempt(ctx, otp.ID, models.OTPMaxAttempts)
		if err != nil {
			if errors.Is(err, repository.ErrStale) {
				return nil, models.ErrOTPMaxAttempts
			}
			return nil, fmt.Errorf("failed to record OTP attempt: %w", err)
		}
		remaining := models.OTPMaxAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		return nil, &OTPMismatchError{Remaining: remaining}
	}

	if err := s.otps.MarkUsed(ctx, otp.ID, s.now(), models.OTPMaxAttempts); err != nil {
		if errors.Is(err, repository.ErrStale) {
			return nil, s.lostClaim(ctx, session.Token, otp.ID)
		}
		return nil, fmt.Errorf("failed to mark OTP used: %w", err)
	}

	return s.completion.Complete(ctx, session.Token, models.MethodOTP)
}

// lostClaim explains why a matching code could not be marked used: either
// concurrent wrong guesses exhausted it or another request consumed it.
func (s *OTPService) lostClaim(ctx context.Context, token, otpID string) error {
	current, err := s.otps.GetLatestUnused(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.ErrSessionInvalid
		}
		return fmt.Errorf("failed to get OTP: %w", err)
	}
	if current.ID == otpID && current.IsExhausted() {
		return models.ErrOTPMaxAttempts
	}
	return models.ErrSessionInvalid
}
