package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/Brownie44l1/attendance/internal/api/dto"
	"github.com/Brownie44l1/attendance/internal/logger"
	"github.com/Brownie44l1/attendance/internal/middleware"
	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/Brownie44l1/attendance/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type SessionInitiator interface {
	Initiate(ctx context.Context, orgID string, p service.CreateSessionParams) (*models.VerificationSession, error)
}

// SessionHandler lets an authenticated back office open verification
// sessions for its own employees.
type SessionHandler struct {
	sessions  SessionInitiator
	publicURL string
	log       logrus.FieldLogger
}

func NewSessionHandler(sessions SessionInitiator, publicURL string, log logrus.FieldLogger) *SessionHandler {
	return &SessionHandler{sessions: sessions, publicURL: strings.TrimRight(publicURL, "/"), log: log}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok || claims.OrganizationID == "" {
		respondError(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, errors.New("organization claim missing"))
		return
	}

	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeValidationFailed, err)
		return
	}

	params := service.CreateSessionParams{
		Purpose:       models.SessionPurpose(req.Purpose),
		EmployeeID:    req.EmployeeID,
		RequestKind:   models.RequestKind(req.RequestKind),
		RequiredLevel: req.RequiredLevel,
	}
	if req.Latitude != nil && req.Longitude != nil {
		params.Location = &models.GeoPoint{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	session, err := h.sessions.Initiate(c.Request.Context(), claims.OrganizationID, params)
	if err != nil {
		if !models.IsBusinessError(err) {
			logger.LogError(h.log, "session", "Create", claims.OrganizationID, req.EmployeeID, err)
		}
		respondServiceError(c, err)
		return
	}

	respondSuccess(c, http.StatusCreated, dto.CreateSessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		URL:       h.pageURL(session),
	})
}

func (h *SessionHandler) pageURL(session *models.VerificationSession) string {
	page := "/verify"
	if session.Purpose == models.PurposeRegistration {
		page = "/register"
	}
	return h.publicURL + page + "?token=" + url.QueryEscape(session.Token)
}

func (h *SessionHandler) RegisterRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	v1 := router.Group("/api/v1")
	v1.Use(auth)
	{
		v1.POST("/sessions", h.Create)
	}
}
