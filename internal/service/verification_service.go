package service

import (
	"context"
	"time"

	"github.com/Brownie44l1/attendance/internal/models"
)

// VerificationService groups the operations behind the web verification
// endpoint.
type VerificationService struct {
	registration *RegistrationService
	completion   *CompletionService
	otp          *OTPService
}

func NewVerificationService(registration *RegistrationService, completion *CompletionService, otp *OTPService) *VerificationService {
	return &VerificationService{registration: registration, completion: completion, otp: otp}
}

func (v *VerificationService) ValidateRegistration(ctx context.Context, token string) (*RegistrationInfo, error) {
	return v.registration.Validate(ctx, token)
}

func (v *VerificationService) CompleteRegistration(ctx context.Context, token, credentialID string) error {
	return v.registration.Complete(ctx, token, credentialID)
}

func (v *VerificationService) ValidateAuthentication(ctx context.Context, token string) (*models.VerificationSession, *models.Employee, error) {
	return v.completion.Validate(ctx, token)
}

func (v *VerificationService) CompleteAuthentication(ctx context.Context, token, credentialID string) (*CompletionResult, error) {
	return v.completion.CompleteBiometric(ctx, token, credentialID)
}

func (v *VerificationService) SendOTP(ctx context.Context, token string) (time.Time, error) {
	return v.otp.Issue(ctx, token)
}

func (v *VerificationService) VerifyOTP(ctx context.Context, token, code string) (*CompletionResult, error) {
	return v.otp.Verify(ctx, token, code)
}
