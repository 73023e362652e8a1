package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VerificationLog is an append-only audit entry.
type VerificationLog struct {
	ID             string             `db:"id"`
	EmployeeID     string             `db:"employee_id"`
	OrganizationID string             `db:"organization_id"`
	SessionToken   string             `db:"session_token"`
	Method         VerificationMethod `db:"method"`
	Success        bool               `db:"success"`
	CreatedAt      time.Time          `db:"created_at"`
}

const AdjustmentReasonFreelanceHours = "freelance_hours"

// SalaryAdjustment credits pay for a checked-out freelance shift.
type SalaryAdjustment struct {
	ID             string          `db:"id"`
	EmployeeID     string          `db:"employee_id"`
	OrganizationID string          `db:"organization_id"`
	AttendanceID   string          `db:"attendance_id"`
	Amount         decimal.Decimal `db:"amount"`
	Reason         string          `db:"reason"`
	AutoGenerated  bool            `db:"auto_generated"`
	CreatedAt      time.Time       `db:"created_at"`
}

// ComputeEarnings derives (minutes/60) * hourlyRate rounded to 2 decimals.
func ComputeEarnings(checkIn, checkOut time.Time, hourlyRate decimal.Decimal) (decimal.Decimal, int) {
	minutes := WholeMinutes(checkIn, checkOut)
	amount := decimal.NewFromInt(int64(minutes)).
		Mul(hourlyRate).
		Div(decimal.NewFromInt(60)).
		Round(2)
	return amount, minutes
}
