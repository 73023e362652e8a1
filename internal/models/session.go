package models

import (
	"time"
)

// ==============================================
// VERIFICATION SESSION MODEL
// ==============================================

type SessionPurpose string

const (
	PurposeAuthentication SessionPurpose = "authentication"
	PurposeRegistration   SessionPurpose = "registration"
)

func (p SessionPurpose) Valid() bool {
	return p == PurposeAuthentication || p == PurposeRegistration
}

type RequestKind string

const (
	RequestCheckIn  RequestKind = "check_in"
	RequestCheckOut RequestKind = "check_out"
	RequestOther    RequestKind = "other"
)

func (k RequestKind) Valid() bool {
	switch k {
	case RequestCheckIn, RequestCheckOut, RequestOther:
		return true
	}
	return false
}

// VerificationMethod tags how an identity confirmation was obtained.
type VerificationMethod string

const (
	MethodBiometric VerificationMethod = "biometric"
	MethodOTP       VerificationMethod = "otp"
)

// GeoPoint is an optional lat/lng pair.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type VerificationSession struct {
	Token               string         `db:"token"`
	EmployeeID          string         `db:"employee_id"`
	OrganizationID      string         `db:"organization_id"`
	Purpose             SessionPurpose `db:"purpose"`
	RequestKind         RequestKind    `db:"request_kind"`
	ChatID              int64          `db:"chat_id"`
	Location            *GeoPoint      `db:"-"`
	RequiredLevel       int            `db:"required_level"`
	CreatedAt           time.Time      `db:"created_at"`
	ExpiresAt           time.Time      `db:"expires_at"`
	BiometricVerifiedAt *time.Time     `db:"biometric_verified_at"`
	CompletedAt         *time.Time     `db:"completed_at"`
}

func (s *VerificationSession) IsExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s *VerificationSession) IsCompleted() bool {
	return s.CompletedAt != nil
}

// IsFinalStep reports whether one more verification satisfies the session.
func (s *VerificationSession) IsFinalStep() bool {
	return s.RequiredLevel <= 1
}

// ==============================================
// SESSION CONFIGURATION
// ==============================================
const (
	AuthenticationSessionTTL = 10 * time.Minute
	RegistrationSessionTTL   = 30 * time.Minute
	MinVerificationLevel     = 1
	MaxVerificationLevel     = 3
	SessionTokenBytes        = 32
)

// SessionTTL returns the lifetime of a session with the given purpose.
func SessionTTL(p SessionPurpose) time.Duration {
	if p == PurposeRegistration {
		return RegistrationSessionTTL
	}
	return AuthenticationSessionTTL
}

// ValidLevel reports whether level is an allowed verification level.
func ValidLevel(level int) bool {
	return level >= MinVerificationLevel && level <= MaxVerificationLevel
}
