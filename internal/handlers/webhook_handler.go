package handlers

import (
	"context"
	"net/http"

	"github.com/Brownie44l1/attendance/internal/api/dto"
	"github.com/Brownie44l1/attendance/internal/logger"
	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// SecretHeader carries the secret registered through setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, orgID string, update tgbotapi.Update) error
}

// WebhookHandler receives bot updates. It always acknowledges with 200 so
// the messaging platform never redelivers.
type WebhookHandler struct {
	bot    UpdateHandler
	secret string
	log    logrus.FieldLogger
}

func NewWebhookHandler(bot UpdateHandler, secret string, log logrus.FieldLogger) *WebhookHandler {
	return &WebhookHandler{bot: bot, secret: secret, log: log}
}

// Receive handles POST /api/v1/telegram/webhook/:org_id
func (h *WebhookHandler) Receive(c *gin.Context) {
	orgID := c.Param("org_id")
	defer func() {
		if r := recover(); r != nil {
			h.log.WithFields(logrus.Fields{
				"module": "webhook",
				"org_id": orgID,
				"panic":  r,
			}).Error("panic while handling update")
			if !c.Writer.Written() {
				c.JSON(http.StatusOK, dto.WebhookAck{OK: true})
			}
		}
	}()

	if h.secret != "" && c.GetHeader(SecretHeader) != h.secret {
		h.log.WithField("org_id", orgID).Warn("webhook secret mismatch, update dropped")
		c.JSON(http.StatusOK, dto.WebhookAck{OK: true})
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		h.log.WithField("org_id", orgID).WithError(err).Warn("malformed update")
		c.JSON(http.StatusOK, dto.WebhookAck{OK: true})
		return
	}

	if err := h.bot.HandleUpdate(c.Request.Context(), orgID, update); err != nil {
		if models.IsBusinessError(err) {
			h.log.WithFields(logrus.Fields{"org_id": orgID, "update_id": update.UpdateID}).WithError(err).Info("update not handled")
		} else {
			logger.LogError(h.log, "webhook", "Receive", orgID, update.UpdateID, err)
		}
	}

	c.JSON(http.StatusOK, dto.WebhookAck{OK: true})
}

func (h *WebhookHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/telegram/webhook/:org_id", h.Receive)
	}
}
