package service

import (
	"strings"
	"time"

	"github.com/Brownie44l1/attendance/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ==============================================
// INTENTS
// ==============================================

type IntentKind string

const (
	IntentIgnore         IntentKind = "ignore"
	IntentShowMenu       IntentKind = "show_menu"
	IntentCheckIn        IntentKind = "check_in"
	IntentCheckOut       IntentKind = "check_out"
	IntentStartBreak     IntentKind = "start_break"
	IntentEndBreak       IntentKind = "end_break"
	IntentRequestLeave   IntentKind = "request_leave"
	IntentMyStatus       IntentKind = "my_status"
	IntentJoinRequest    IntentKind = "join_request"
	IntentCheckStatus    IntentKind = "check_status"
	IntentJoin           IntentKind = "join"
	IntentLeave          IntentKind = "leave"
	IntentRegister       IntentKind = "register"
	IntentShareContact   IntentKind = "share_contact"
	IntentForeignContact IntentKind = "foreign_contact"
)

// callbackIntents is the closed set of button payloads.
var callbackIntents = map[string]IntentKind{
	string(IntentCheckIn):      IntentCheckIn,
	string(IntentCheckOut):     IntentCheckOut,
	string(IntentStartBreak):   IntentStartBreak,
	string(IntentEndBreak):     IntentEndBreak,
	string(IntentRequestLeave): IntentRequestLeave,
	string(IntentMyStatus):     IntentMyStatus,
	string(IntentJoinRequest):  IntentJoinRequest,
	string(IntentCheckStatus):  IntentCheckStatus,
}

var commandIntents = map[string]IntentKind{
	"/start":    IntentShowMenu,
	"/menu":     IntentShowMenu,
	"/join":     IntentJoin,
	"/leave":    IntentLeave,
	"/register": IntentRegister,
	"/status":   IntentMyStatus,
}

type Intent struct {
	Kind       IntentKind
	ChatID     int64
	CallbackID string
	Args       string
	Phone      string
}

// ParseUpdate decodes an inbound update. Unknown callback data and free
// text map to the menu.
func ParseUpdate(u tgbotapi.Update) Intent {
	if cq := u.CallbackQuery; cq != nil {
		in := Intent{Kind: IntentShowMenu, CallbackID: cq.ID}
		switch {
		case cq.Message != nil && cq.Message.Chat != nil:
			in.ChatID = cq.Message.Chat.ID
		case cq.From != nil:
			in.ChatID = cq.From.ID
		}
		if kind, ok := callbackIntents[strings.TrimSpace(cq.Data)]; ok {
			in.Kind = kind
		}
		return in
	}

	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return Intent{Kind: IntentIgnore}
	}
	in := Intent{Kind: IntentShowMenu, ChatID: msg.Chat.ID}

	if msg.Contact != nil {
		// only the sender's own card proves ownership of the phone
		if msg.From == nil || msg.Contact.UserID == 0 || msg.Contact.UserID != msg.From.ID {
			in.Kind = IntentForeignContact
			return in
		}
		in.Kind = IntentShareContact
		in.Phone = normalizePhone(msg.Contact.PhoneNumber)
		return in
	}

	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return in
	}
	cmd, args, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(cmd, '@'); at > 0 {
		cmd = cmd[:at]
	}
	if kind, ok := commandIntents[strings.ToLower(cmd)]; ok {
		in.Kind = kind
		in.Args = strings.TrimSpace(args)
	}
	return in
}

func normalizePhone(p string) string {
	p = strings.TrimSpace(p)
	if p != "" && !strings.HasPrefix(p, "+") {
		p = "+" + p
	}
	return p
}

// ==============================================
// COMMAND ARGUMENTS
// ==============================================

func splitArgs(args string) []string {
	if strings.TrimSpace(args) == "" {
		return nil
	}
	parts := strings.Split(args, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// ParseJoinArgs parses "name|email|phone[|national_id]".
func ParseJoinArgs(args string) (*models.JoinRequest, error) {
	parts := splitArgs(args)
	if len(parts) < 3 {
		return nil, models.ErrMalformedCommand
	}
	for _, p := range parts[:3] {
		if p == "" {
			return nil, models.ErrMalformedCommand
		}
	}
	jr := &models.JoinRequest{
		FullName: parts[0],
		Email:    parts[1],
		Phone:    parts[2],
		Status:   models.RequestStatusPending,
	}
	if len(parts) > 3 {
		jr.NationalID = parts[3]
	}
	return jr, nil
}

// ParseLeaveArgs parses "type|start|end[|reason]" with YYYY-MM-DD dates.
// The day count is inclusive and must be positive.
func ParseLeaveArgs(args string) (*models.LeaveRequest, error) {
	parts := splitArgs(args)
	if len(parts) < 3 {
		return nil, models.ErrMalformedCommand
	}
	leaveType, ok := models.ParseLeaveType(strings.ToLower(parts[0]))
	if !ok {
		return nil, models.ErrMalformedCommand
	}
	start, err := time.Parse(time.DateOnly, parts[1])
	if err != nil {
		return nil, models.ErrMalformedCommand
	}
	end, err := time.Parse(time.DateOnly, parts[2])
	if err != nil {
		return nil, models.ErrMalformedCommand
	}
	days := models.InclusiveDays(start, end)
	if days <= 0 {
		return nil, models.ErrMalformedCommand
	}

	lr := &models.LeaveRequest{
		Type:      leaveType,
		StartDate: parts[1],
		EndDate:   parts[2],
		Days:      days,
		Status:    models.RequestStatusPending,
	}
	if len(parts) > 3 {
		lr.Reason = strings.Join(parts[3:], "|")
	}
	return lr, nil
}
