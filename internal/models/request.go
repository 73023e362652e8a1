package models

import (
	"time"
)

// ==============================================
// JOIN / LEAVE REQUESTS
// ==============================================

const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

type JoinRequest struct {
	ID             string    `db:"id"`
	OrganizationID string    `db:"organization_id"`
	ChatID         int64     `db:"chat_id"`
	FullName       string    `db:"full_name"`
	Email          string    `db:"email"`
	Phone          string    `db:"phone"`
	NationalID     string    `db:"national_id"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
}

type LeaveType string

const (
	LeaveVacation LeaveType = "vacation"
	LeaveSick     LeaveType = "sick"
	LeavePersonal LeaveType = "personal"
)

// ParseLeaveType accepts only the fixed leave enum.
func ParseLeaveType(s string) (LeaveType, bool) {
	switch t := LeaveType(s); t {
	case LeaveVacation, LeaveSick, LeavePersonal:
		return t, true
	}
	return "", false
}

type LeaveRequest struct {
	ID             string    `db:"id"`
	EmployeeID     string    `db:"employee_id"`
	OrganizationID string    `db:"organization_id"`
	Type           LeaveType `db:"type"`
	StartDate      string    `db:"start_date"`
	EndDate        string    `db:"end_date"`
	Days           int       `db:"days"`
	Reason         string    `db:"reason"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
}

// InclusiveDays counts calendar days from start to end, both included.
func InclusiveDays(start, end time.Time) int {
	return int(end.Sub(start).Hours()/24) + 1
}
