package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/Brownie44l1/attendance/internal/logger"
	"github.com/Brownie44l1/attendance/internal/messaging"
	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/Brownie44l1/attendance/internal/repository"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// ==============================================
// BOT SERVICE
// ==============================================

// BotService routes chat updates. Bound chats act directly on the attendance
// state machine; unbound chats only reach the join flow.
type BotService struct {
	employees    EmployeeRepositoryInterface
	requests     RequestRepositoryInterface
	attendance   *AttendanceService
	registration *RegistrationService
	provider     messaging.Provider
	notifier     *Notifier
	publicURL    string
	now          Clock
	log          logrus.FieldLogger
}

func NewBotService(
	employees EmployeeRepositoryInterface,
	requests RequestRepositoryInterface,
	attendance *AttendanceService,
	registration *RegistrationService,
	provider messaging.Provider,
	notifier *Notifier,
	publicURL string,
	now Clock,
	log logrus.FieldLogger,
) *BotService {
	return &BotService{
		employees:    employees,
		requests:     requests,
		attendance:   attendance,
		registration: registration,
		provider:     provider,
		notifier:     notifier,
		publicURL:    publicURL,
		now:          now,
		log:          log,
	}
}

// conversation carries what a single update needs for its reply.
type conversation struct {
	org    *models.Organization
	gw     messaging.Gateway
	intent Intent
}

// HandleUpdate processes one update for an organization. Business outcomes
// are answered in chat; the returned error is for logging only.
func (b *BotService) HandleUpdate(ctx context.Context, orgID string, update tgbotapi.Update) error {
	org, err := b.employees.GetOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.ErrOrganizationMissing
		}
		return fmt.Errorf("failed to get organization: %w", err)
	}
	gw, err := b.provider.ForOrganization(org)
	if err != nil {
		return err
	}

	c := &conversation{org: org, gw: gw, intent: ParseUpdate(update)}
	if c.intent.CallbackID != "" {
		defer b.answer(ctx, c)
	}
	if c.intent.Kind == IntentIgnore || c.intent.ChatID == 0 {
		return nil
	}

	err = b.dispatch(ctx, c)
	if err != nil {
		b.reply(ctx, c, b.notifier.T(org, "generic_error"), nil)
	}
	return err
}

func (b *BotService) dispatch(ctx context.Context, c *conversation) error {
	switch c.intent.Kind {
	case IntentShareContact:
		return b.bindContact(ctx, c)
	case IntentForeignContact:
		b.say(ctx, c, "contact_not_own", nil)
		return nil
	case IntentJoin:
		return b.submitJoin(ctx, c)
	case IntentJoinRequest:
		b.say(ctx, c, "join_prompt", nil)
		return nil
	case IntentCheckStatus:
		return b.joinStatus(ctx, c)
	}

	emp, err := b.employees.GetByChatID(ctx, c.org.ID, c.intent.ChatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			b.reply(ctx, c, b.notifier.T(c.org, "unbound_welcome", map[string]any{"Organization": escapeHTML(c.org.Name)}), b.joinMenu(c.org))
			return nil
		}
		return fmt.Errorf("failed to get employee by chat: %w", err)
	}

	switch c.intent.Kind {
	case IntentCheckIn:
		rec, err := b.attendance.CheckIn(ctx, emp, c.org, nil)
		if err != nil {
			return b.conflictOrError(ctx, c, err)
		}
		b.reply(ctx, c, checkInReply(b.notifier, c.org, emp, rec), nil)
	case IntentCheckOut:
		res, err := b.attendance.CheckOut(ctx, emp, c.org)
		if err != nil {
			return b.conflictOrError(ctx, c, err)
		}
		b.reply(ctx, c, checkOutReply(b.notifier, c.org, res), nil)
	case IntentStartBreak:
		br, err := b.attendance.StartBreak(ctx, emp, c.org)
		if err != nil {
			return b.conflictOrError(ctx, c, err)
		}
		b.say(ctx, c, "break_started", map[string]any{"Time": c.org.LocalNow(br.StartTime).Format(clockFormat)})
	case IntentEndBreak:
		br, err := b.attendance.EndBreak(ctx, emp, c.org)
		if err != nil {
			return b.conflictOrError(ctx, c, err)
		}
		minutes := 0
		if br.DurationMinutes != nil {
			minutes = *br.DurationMinutes
		}
		b.say(ctx, c, "break_ended", map[string]any{"Minutes": minutes})
	case IntentMyStatus:
		summary, err := b.attendance.Status(ctx, emp, c.org)
		if err != nil {
			return err
		}
		b.reply(ctx, c, statusReply(b.notifier, c.org, summary), nil)
	case IntentRequestLeave:
		b.say(ctx, c, "leave_prompt", nil)
	case IntentLeave:
		return b.submitLeave(ctx, c, emp)
	case IntentRegister:
		return b.sendRegistrationLink(ctx, c, emp)
	default:
		b.reply(ctx, c, b.notifier.T(c.org, "menu_title"), b.mainMenu(c.org))
	}
	return nil
}

// ==============================================
// JOIN / LEAVE
// ==============================================

func (b *BotService) submitJoin(ctx context.Context, c *conversation) error {
	jr, err := ParseJoinArgs(c.intent.Args)
	if err != nil {
		b.say(ctx, c, "join_usage", nil)
		return nil
	}

	latest, err := b.requests.GetLatestJoinRequest(ctx, c.org.ID, c.intent.ChatID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("failed to get join request: %w", err)
	}
	if latest != nil && latest.Status == models.RequestStatusPending {
		b.say(ctx, c, "join_pending", nil)
		return nil
	}

	jr.OrganizationID = c.org.ID
	jr.ChatID = c.intent.ChatID
	jr.CreatedAt = b.now()
	if err := b.requests.CreateJoinRequest(ctx, jr); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			b.say(ctx, c, "join_pending", nil)
			return nil
		}
		return fmt.Errorf("failed to create join request: %w", err)
	}
	b.say(ctx, c, "join_submitted", nil)
	return nil
}

func (b *BotService) joinStatus(ctx context.Context, c *conversation) error {
	latest, err := b.requests.GetLatestJoinRequest(ctx, c.org.ID, c.intent.ChatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			b.say(ctx, c, "join_status_none", nil)
			return nil
		}
		return fmt.Errorf("failed to get join request: %w", err)
	}
	b.say(ctx, c, "join_status", map[string]any{"Status": escapeHTML(latest.Status)})
	return nil
}

func (b *BotService) submitLeave(ctx context.Context, c *conversation, emp *models.Employee) error {
	lr, err := ParseLeaveArgs(c.intent.Args)
	if err != nil {
		b.say(ctx, c, "leave_usage", nil)
		return nil
	}
	lr.EmployeeID = emp.ID
	lr.OrganizationID = c.org.ID
	lr.CreatedAt = b.now()
	if err := b.requests.CreateLeaveRequest(ctx, lr); err != nil {
		return fmt.Errorf("failed to create leave request: %w", err)
	}
	b.say(ctx, c, "leave_submitted", map[string]any{"Days": lr.Days})
	return nil
}

// ==============================================
// IDENTITY
// ==============================================

func (b *BotService) bindContact(ctx context.Context, c *conversation) error {
	emp, err := b.employees.BindChatByPhone(ctx, c.org.ID, c.intent.Phone, c.intent.ChatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			b.say(ctx, c, "contact_unknown", nil)
			return nil
		}
		return fmt.Errorf("failed to bind chat: %w", err)
	}
	b.reply(ctx, c, b.notifier.T(c.org, "contact_bound", map[string]any{"Name": escapeHTML(emp.FullName)}), b.mainMenu(c.org))
	return nil
}

func (b *BotService) sendRegistrationLink(ctx context.Context, c *conversation, emp *models.Employee) error {
	session, err := b.registration.Begin(ctx, emp.ID, c.org.ID, c.intent.ChatID)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/register?token=%s", b.publicURL, url.QueryEscape(session.Token))
	text := b.notifier.T(c.org, "registration_link", map[string]any{
		"Minutes": int(models.RegistrationSessionTTL / time.Minute),
	})
	b.reply(ctx, c, text, messaging.Keyboard(
		[]messaging.Button{{Label: b.notifier.T(c.org, "btn_register"), URL: link}},
	))
	return nil
}

// ==============================================
// REPLIES
// ==============================================

func (b *BotService) conflictOrError(ctx context.Context, c *conversation, err error) error {
	if id, ok := conflictMessage(err); ok {
		b.say(ctx, c, id, nil)
		return nil
	}
	return err
}

func (b *BotService) say(ctx context.Context, c *conversation, id string, data map[string]any) {
	b.reply(ctx, c, b.notifier.T(c.org, id, data), nil)
}

func (b *BotService) reply(ctx context.Context, c *conversation, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if err := c.gw.SendMessage(ctx, c.intent.ChatID, text, kb); err != nil {
		b.log.WithFields(logrus.Fields{
			"module":  "bot",
			"org_id":  c.org.ID,
			"chat_id": c.intent.ChatID,
			"intent":  c.intent.Kind,
		}).WithError(err).Warn("reply failed")
	}
}

func (b *BotService) answer(ctx context.Context, c *conversation) {
	if err := c.gw.AnswerCallback(ctx, c.intent.CallbackID, ""); err != nil {
		logger.LogError(b.log, "bot", "answer", "answer callback", c.intent.CallbackID, err)
	}
}

func (b *BotService) mainMenu(org *models.Organization) *tgbotapi.InlineKeyboardMarkup {
	btn := func(kind IntentKind) messaging.Button {
		return messaging.Button{Label: b.notifier.T(org, "btn_"+string(kind)), Data: string(kind)}
	}
	return messaging.Keyboard(
		[]messaging.Button{btn(IntentCheckIn), btn(IntentCheckOut)},
		[]messaging.Button{btn(IntentStartBreak), btn(IntentEndBreak)},
		[]messaging.Button{btn(IntentRequestLeave), btn(IntentMyStatus)},
	)
}

func (b *BotService) joinMenu(org *models.Organization) *tgbotapi.InlineKeyboardMarkup {
	return messaging.Keyboard([]messaging.Button{
		{Label: b.notifier.T(org, "btn_join_request"), Data: string(IntentJoinRequest)},
		{Label: b.notifier.T(org, "btn_check_status"), Data: string(IntentCheckStatus)},
	})
}
