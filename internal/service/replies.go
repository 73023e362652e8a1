package service

import (
	"errors"

	"github.com/Brownie44l1/attendance/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const clockFormat = "15:04"

// escapeHTML prepares stored text for HTML-mode chat messages.
func escapeHTML(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}

// conflictMessage maps an attendance conflict to its chat reply id.
func conflictMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, models.ErrAlreadyCheckedIn):
		return "already_checked_in", true
	case errors.Is(err, models.ErrNotCheckedIn):
		return "not_checked_in", true
	case errors.Is(err, models.ErrAlreadyCheckedOut):
		return "already_checked_out", true
	case errors.Is(err, models.ErrAlreadyOnBreak):
		return "already_on_break", true
	case errors.Is(err, models.ErrNotOnBreak):
		return "not_on_break", true
	case errors.Is(err, models.ErrAttendanceConflict):
		return "generic_error", true
	}
	return "", false
}

func checkInReply(n *Notifier, org *models.Organization, emp *models.Employee, rec *models.AttendanceRecord) string {
	data := map[string]any{
		"Time":      org.LocalNow(rec.CheckInTime).Format(clockFormat),
		"WorkStart": escapeHTML(emp.WorkStartTime),
	}
	if rec.IsLate {
		return n.T(org, "checkin_success_late", data)
	}
	return n.T(org, "checkin_success", data)
}

func checkOutReply(n *Notifier, org *models.Organization, res *CheckOutResult) string {
	text := n.T(org, "checkout_success", map[string]any{
		"Time":    org.LocalNow(*res.Record.CheckOutTime).Format(clockFormat),
		"Hours":   res.WorkedMinutes / 60,
		"Minutes": res.WorkedMinutes % 60,
	})
	if res.Adjustment != nil {
		text += "\n" + n.T(org, "checkout_earnings", map[string]any{
			"Amount": res.Adjustment.Amount.StringFixed(2),
		})
	}
	return text
}

func statusReply(n *Notifier, org *models.Organization, summary *StatusSummary) string {
	rec := summary.Record
	if rec == nil {
		return n.T(org, "status_none")
	}
	checkOut := "-"
	if rec.CheckOutTime != nil {
		checkOut = org.LocalNow(*rec.CheckOutTime).Format(clockFormat)
	}
	return n.T(org, "status_summary", map[string]any{
		"Status":       n.T(org, "status_"+string(rec.CurrentStatus())),
		"CheckIn":      org.LocalNow(rec.CheckInTime).Format(clockFormat),
		"CheckOut":     checkOut,
		"BreakMinutes": summary.BreakMinutes,
	})
}
