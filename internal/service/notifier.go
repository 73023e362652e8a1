package service

import (
	"context"

	"github.com/Brownie44l1/attendance/internal/i18n"
	"github.com/Brownie44l1/attendance/internal/messaging"
	"github.com/Brownie44l1/attendance/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// ==============================================
// NOTIFIER
// ==============================================

// Notifier delivers chat messages after state has been committed. Delivery
// failures are logged and never returned.
type Notifier struct {
	provider messaging.Provider
	tr       *i18n.Translator
	log      logrus.FieldLogger
}

func NewNotifier(provider messaging.Provider, tr *i18n.Translator, log logrus.FieldLogger) *Notifier {
	return &Notifier{provider: provider, tr: tr, log: log}
}

// T renders a message in the organization's language.
func (n *Notifier) T(org *models.Organization, id string, data ...map[string]any) string {
	lang := ""
	if org != nil {
		lang = org.Language
	}
	return n.tr.T(lang, id, data...)
}

// Notify sends a translated message.
func (n *Notifier) Notify(ctx context.Context, org *models.Organization, chatID int64, id string, data map[string]any) {
	n.Send(ctx, org, chatID, n.T(org, id, data), nil)
}

// Send delivers text as-is with an optional keyboard.
func (n *Notifier) Send(ctx context.Context, org *models.Organization, chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	entry := n.log.WithFields(logrus.Fields{"module": "notifier", "chat_id": chatID})
	if org != nil {
		entry = entry.WithField("org_id", org.ID)
	}

	gw, err := n.provider.ForOrganization(org)
	if err != nil {
		entry.WithError(err).Warn("notification skipped")
		return
	}
	if err := gw.SendMessage(ctx, chatID, text, kb); err != nil {
		entry.WithError(err).Warn("notification failed")
	}
}
