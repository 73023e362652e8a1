package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Brownie44l1/attendance/internal/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// ==============================================
// GATEWAY
// ==============================================

// Gateway is the outbound side of a chat bot.
type Gateway interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	SetWebhook(ctx context.Context, url, secret string) error
}

// Provider resolves the gateway configured for an organization.
type Provider interface {
	ForOrganization(org *models.Organization) (Gateway, error)
}

// ==============================================
// TELEGRAM CLIENT
// ==============================================

const DefaultAPIURL = "https://api.telegram.org"

type TelegramClient struct {
	baseURL string
	client  *http.Client
	log     logrus.FieldLogger
}

func NewTelegramClient(apiURL, botToken string, client *http.Client, log logrus.FieldLogger) *TelegramClient {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &TelegramClient{
		baseURL: fmt.Sprintf("%s/bot%s", strings.TrimRight(apiURL, "/"), botToken),
		client:  client,
		log:     log,
	}
}

func (t *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	if chatID == 0 {
		return models.ErrEmployeeNotBound
	}
	body := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"parse_mode":               tgbotapi.ModeHTML,
		"disable_web_page_preview": true,
	}
	if keyboard != nil {
		body["reply_markup"] = keyboard
	}
	_, err := t.call(ctx, "sendMessage", body)
	return err
}

func (t *TelegramClient) AnswerCallback(ctx context.Context, callbackID, text string) error {
	body := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		body["text"] = text
	}
	_, err := t.call(ctx, "answerCallbackQuery", body)
	return err
}

func (t *TelegramClient) SetWebhook(ctx context.Context, url, secret string) error {
	body := map[string]any{
		"url":             url,
		"allowed_updates": []string{"message", "callback_query"},
	}
	if secret != "" {
		body["secret_token"] = secret
	}
	_, err := t.call(ctx, "setWebhook", body)
	return err
}

func (t *TelegramClient) call(ctx context.Context, method string, body map[string]any) (*tgbotapi.APIResponse, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: encode: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/"+method, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: read body: %w", method, err)
	}

	var api tgbotapi.APIResponse
	_ = json.Unmarshal(raw, &api)
	t.log.WithFields(logrus.Fields{
		"method":      method,
		"http_status": resp.StatusCode,
		"ok":          api.Ok,
	}).Debug("telegram call")

	if resp.StatusCode != http.StatusOK || !api.Ok {
		return &api, fmt.Errorf("telegram %s failed: status=%d ok=%v desc=%s", method, resp.StatusCode, api.Ok, api.Description)
	}
	return &api, nil
}

// ==============================================
// PROVIDER
// ==============================================

type TelegramProvider struct {
	apiURL string
	client *http.Client
	log    logrus.FieldLogger
}

func NewTelegramProvider(apiURL string, log logrus.FieldLogger) *TelegramProvider {
	return &TelegramProvider{
		apiURL: apiURL,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// ForOrganization returns ErrChannelUnavailable when the organization has
// no bot token.
func (p *TelegramProvider) ForOrganization(org *models.Organization) (Gateway, error) {
	if !org.HasMessagingChannel() {
		return nil, models.ErrChannelUnavailable
	}
	return NewTelegramClient(p.apiURL, org.BotToken, p.client, p.log.WithField("org_id", org.ID)), nil
}
