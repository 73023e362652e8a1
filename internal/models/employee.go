package models

import (
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
)

// ==============================================
// ORGANIZATION
// ==============================================

type Organization struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	Timezone string `db:"timezone"`
	BotToken string `db:"bot_token"`
	Language string `db:"language"`
}

// HasMessagingChannel reports whether a bot is configured.
func (o *Organization) HasMessagingChannel() bool {
	return o != nil && o.BotToken != ""
}

// Location resolves the organization's IANA timezone. The boolean is false
// when the zone is unknown and UTC was substituted.
func (o *Organization) Location() (*time.Location, bool) {
	if o == nil || o.Timezone == "" {
		return time.UTC, false
	}
	loc, err := time.LoadLocation(o.Timezone)
	if err != nil {
		return time.UTC, false
	}
	return loc, true
}

// LocalNow converts an instant into the organization's wall clock.
func (o *Organization) LocalNow(now time.Time) time.Time {
	loc, _ := o.Location()
	return now.In(loc)
}

// LocalDate is the organization-local calendar day of now.
func (o *Organization) LocalDate(now time.Time) string {
	return o.LocalNow(now).Format(time.DateOnly)
}

// ==============================================
// EMPLOYEE (identity)
// ==============================================

type Employee struct {
	ID                     string          `db:"id"`
	OrganizationID         string          `db:"organization_id"`
	FullName               string          `db:"full_name"`
	Phone                  string          `db:"phone"`
	ChatID                 *int64          `db:"telegram_chat_id"`
	WorkStartTime          string          `db:"work_start_time"` // HH:MM
	IsFreelancer           bool            `db:"is_freelancer"`
	HourlyRate             decimal.Decimal `db:"hourly_rate"`
	CredentialID           *string         `db:"credential_id"`
	CredentialRegisteredAt *time.Time      `db:"credential_registered_at"`
	IsActive               bool            `db:"is_active"`
}

func (e *Employee) HasCredential() bool {
	return e.CredentialID != nil && *e.CredentialID != ""
}

// EarnsHourly reports whether checkout produces an earnings adjustment.
func (e *Employee) EarnsHourly() bool {
	return e.IsFreelancer && e.HourlyRate.IsPositive()
}
