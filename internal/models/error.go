package models

import (
	"errors"
	"fmt"
)

// ==============================================
// CUSTOM ERROR TYPES
// ==============================================

// AppError represents a structured application error
type AppError struct {
	Code    string // Error code for client
	Message string // Human-readable message
	Err     error  // Underlying error (for logging)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ==============================================
// PREDEFINED ERRORS
// ==============================================

// Session Errors
var (
	ErrSessionInvalid      = errors.New("session invalid or already used")
	ErrSessionExpired      = errors.New("session expired")
	ErrInvalidLevel        = errors.New("verification level out of range")
	ErrInvalidPurpose      = errors.New("invalid session purpose")
	ErrInvalidRequestKind  = errors.New("invalid request kind")
	ErrCredentialMismatch  = errors.New("credential does not match registered device")
	ErrCredentialMissing   = errors.New("credential id is required")
	ErrEmployeeNotFound    = errors.New("employee not found")
	ErrEmployeeNotBound    = errors.New("employee has no messaging chat bound")
	ErrOrganizationMissing = errors.New("organization not found")
)

// OTP Errors
var (
	ErrOTPInvalid        = errors.New("invalid OTP")
	ErrOTPExpired        = errors.New("OTP has expired")
	ErrOTPMaxAttempts    = errors.New("maximum OTP attempts exceeded")
	ErrOTPNotFound       = errors.New("OTP not found")
	ErrOTPResendCooldown = errors.New("please wait before requesting another OTP")
)

// Attendance Errors. Every specific conflict wraps ErrAttendanceConflict.
var (
	ErrAttendanceConflict = errors.New("attendance conflict")
	ErrAlreadyCheckedIn   = fmt.Errorf("%w: already checked in", ErrAttendanceConflict)
	ErrNotCheckedIn       = fmt.Errorf("%w: not checked in", ErrAttendanceConflict)
	ErrAlreadyCheckedOut  = fmt.Errorf("%w: already checked out", ErrAttendanceConflict)
	ErrAlreadyOnBreak     = fmt.Errorf("%w: already on break", ErrAttendanceConflict)
	ErrNotOnBreak         = fmt.Errorf("%w: not on break", ErrAttendanceConflict)
)

// Channel and command errors
var (
	ErrChannelUnavailable = errors.New("no messaging channel configured for organization")
	ErrMalformedCommand   = errors.New("malformed command")
	ErrJoinPending        = errors.New("join request already pending")
)

// ==============================================
// ERROR CODES (for API responses)
// ==============================================
const (
	ErrCodeSessionInvalid     = "SESSION_INVALID"
	ErrCodeSessionExpired     = "SESSION_EXPIRED"
	ErrCodeCredentialMismatch = "CREDENTIAL_MISMATCH"
	ErrCodeChannelUnavailable = "CHANNEL_UNAVAILABLE"

	ErrCodeOTPExpired     = "OTP_EXPIRED"
	ErrCodeOTPInvalid     = "OTP_INVALID"
	ErrCodeOTPMaxAttempts = "OTP_MAX_ATTEMPTS"
	ErrCodeOTPCooldown    = "OTP_COOLDOWN"

	ErrCodeAttendanceConflict = "ATTENDANCE_CONFLICT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
)

// ==============================================
// HELPER FUNCTIONS
// ==============================================

// ErrorCode maps a domain error onto its API error code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrSessionExpired):
		return ErrCodeSessionExpired
	case errors.Is(err, ErrSessionInvalid):
		return ErrCodeSessionInvalid
	case errors.Is(err, ErrCredentialMismatch):
		return ErrCodeCredentialMismatch
	case errors.Is(err, ErrChannelUnavailable):
		return ErrCodeChannelUnavailable
	case errors.Is(err, ErrOTPExpired):
		return ErrCodeOTPExpired
	case errors.Is(err, ErrOTPMaxAttempts):
		return ErrCodeOTPMaxAttempts
	case errors.Is(err, ErrOTPInvalid), errors.Is(err, ErrOTPNotFound):
		return ErrCodeOTPInvalid
	case errors.Is(err, ErrOTPResendCooldown):
		return ErrCodeOTPCooldown
	case errors.Is(err, ErrAttendanceConflict):
		return ErrCodeAttendanceConflict
	case errors.Is(err, ErrEmployeeNotFound), errors.Is(err, ErrOrganizationMissing):
		return ErrCodeNotFound
	case IsValidationError(err):
		return ErrCodeValidationFailed
	default:
		return ErrCodeInternalError
	}
}

// IsValidationError checks if error is validation-related
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidLevel) ||
		errors.Is(err, ErrInvalidPurpose) ||
		errors.Is(err, ErrInvalidRequestKind) ||
		errors.Is(err, ErrCredentialMissing) ||
		errors.Is(err, ErrEmployeeNotBound) ||
		errors.Is(err, ErrMalformedCommand)
}

// IsBusinessError reports whether err is a handled outcome rather than an
// infrastructure failure.
func IsBusinessError(err error) bool {
	return ErrorCode(err) != ErrCodeInternalError
}
