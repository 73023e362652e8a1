package models

import (
	"time"
)

// ==============================================
// ONE-TIME CODE MODEL
// ==============================================

// OneTimeCode is bound to a verification session. Only the hash of the
// code is persisted.
type OneTimeCode struct {
	ID             string      `db:"id"`
	SessionToken   string      `db:"session_token"`
	EmployeeID     string      `db:"employee_id"`
	OrganizationID string      `db:"organization_id"`
	RequestKind    RequestKind `db:"request_kind"`
	CodeHash       string      `db:"code_hash"`
	CreatedAt      time.Time   `db:"created_at"`
	ExpiresAt      time.Time   `db:"expires_at"`
	Attempts       int         `db:"attempts"`
	UsedAt         *time.Time  `db:"used_at"`
}

func (c *OneTimeCode) IsExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

func (c *OneTimeCode) IsUsed() bool {
	return c.UsedAt != nil
}

func (c *OneTimeCode) IsExhausted() bool {
	return c.Attempts >= OTPMaxAttempts
}

// RemainingAttempts is how many more wrong guesses are tolerated.
func (c *OneTimeCode) RemainingAttempts() int {
	if r := OTPMaxAttempts - c.Attempts; r > 0 {
		return r
	}
	return 0
}

// ==============================================
// OTP CONFIGURATION
// ==============================================
const (
	OTPLength         = 6
	OTPExpiry         = 5 * time.Minute
	OTPMaxAttempts    = 3
	OTPResendCooldown = 60 * time.Second
)
