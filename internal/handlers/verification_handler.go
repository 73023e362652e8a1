package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Brownie44l1/attendance/internal/api/dto"
	"github.com/Brownie44l1/attendance/internal/logger"
	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/Brownie44l1/attendance/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ==============================================
// SERVICE INTERFACE (for testing)
// ==============================================

type VerificationService interface {
	ValidateRegistration(ctx context.Context, token string) (*service.RegistrationInfo, error)
	CompleteRegistration(ctx context.Context, token, credentialID string) error
	ValidateAuthentication(ctx context.Context, token string) (*models.VerificationSession, *models.Employee, error)
	CompleteAuthentication(ctx context.Context, token, credentialID string) (*service.CompletionResult, error)
	SendOTP(ctx context.Context, token string) (time.Time, error)
	VerifyOTP(ctx context.Context, token, code string) (*service.CompletionResult, error)
}

// ==============================================
// HANDLER (HTTP Layer ONLY)
// ==============================================

type VerificationHandler struct {
	service VerificationService
	log     logrus.FieldLogger
}

func NewVerificationHandler(service VerificationService, log logrus.FieldLogger) *VerificationHandler {
	return &VerificationHandler{service: service, log: log}
}

// Handle handles POST /api/v1/biometric-verification
func (h *VerificationHandler) Handle(c *gin.Context) {
	var req dto.VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, models.ErrCodeValidationFailed, err)
		return
	}

	ctx := c.Request.Context()
	switch req.Action {
	case dto.ActionValidateRegistration:
		h.validateRegistration(c, ctx, req)
	case dto.ActionCompleteRegistration:
		if err := h.service.CompleteRegistration(ctx, req.Token, req.CredentialID); err != nil {
			h.fail(c, req.Action, err)
			return
		}
		respondSuccess(c, http.StatusOK, dto.SuccessResponse{Success: true})
	case dto.ActionValidateAuthentication:
		h.validateAuthentication(c, ctx, req)
	case dto.ActionCompleteAuthentication:
		res, err := h.service.CompleteAuthentication(ctx, req.Token, req.CredentialID)
		if err != nil {
			h.fail(c, req.Action, err)
			return
		}
		respondSuccess(c, http.StatusOK, completionResponse(res))
	case dto.ActionSendOTP:
		expiresAt, err := h.service.SendOTP(ctx, req.Token)
		if err != nil {
			h.fail(c, req.Action, err)
			return
		}
		respondSuccess(c, http.StatusOK, dto.SendOTPResponse{Success: true, ExpiresAt: expiresAt})
	case dto.ActionVerifyOTP:
		if req.Code == "" {
			respondError(c, http.StatusBadRequest, models.ErrCodeValidationFailed, errors.New("code is required"))
			return
		}
		res, err := h.service.VerifyOTP(ctx, req.Token, req.Code)
		if err != nil {
			h.fail(c, req.Action, err)
			return
		}
		respondSuccess(c, http.StatusOK, completionResponse(res))
	default:
		respondError(c, http.StatusBadRequest, models.ErrCodeValidationFailed, fmt.Errorf("unknown action %q", req.Action))
	}
}

func (h *VerificationHandler) validateRegistration(c *gin.Context, ctx context.Context, req dto.VerificationRequest) {
	info, err := h.service.ValidateRegistration(ctx, req.Token)
	if err != nil {
		h.invalid(c, req.Action, err)
		return
	}
	expiresAt := info.ExpiresAt
	respondSuccess(c, http.StatusOK, dto.ValidateResponse{
		Valid:        true,
		EmployeeID:   info.EmployeeID,
		EmployeeName: info.EmployeeName,
		CompanyID:    info.OrganizationID,
		ExpiresAt:    &expiresAt,
	})
}

func (h *VerificationHandler) validateAuthentication(c *gin.Context, ctx context.Context, req dto.VerificationRequest) {
	session, emp, err := h.service.ValidateAuthentication(ctx, req.Token)
	if err != nil {
		h.invalid(c, req.Action, err)
		return
	}
	expiresAt := session.ExpiresAt
	respondSuccess(c, http.StatusOK, dto.ValidateResponse{
		Valid:         true,
		EmployeeID:    emp.ID,
		EmployeeName:  emp.FullName,
		CompanyID:     session.OrganizationID,
		ExpiresAt:     &expiresAt,
		RequestKind:   string(session.RequestKind),
		RequiredLevel: session.RequiredLevel,
	})
}

// invalid answers validate-* actions: session problems are a normal
// {valid:false} reply, everything else is an error.
func (h *VerificationHandler) invalid(c *gin.Context, action string, err error) {
	switch {
	case errors.Is(err, models.ErrSessionExpired):
		respondSuccess(c, http.StatusOK, dto.ValidateResponse{Valid: false, Expired: true})
	case errors.Is(err, models.ErrSessionInvalid):
		respondSuccess(c, http.StatusOK, dto.ValidateResponse{Valid: false})
	default:
		h.fail(c, action, err)
	}
}

func (h *VerificationHandler) fail(c *gin.Context, action string, err error) {
	if !models.IsBusinessError(err) {
		logger.LogError(h.log, "verification", "Handle", action, nil, err)
	}
	respondServiceError(c, err)
}

func completionResponse(res *service.CompletionResult) dto.CompletionResponse {
	return dto.CompletionResponse{
		Success:   true,
		Outcome:   string(res.Outcome),
		NextLevel: res.NextLevel,
	}
}

// ==============================================
// ROUTE REGISTRATION
// ==============================================

func (h *VerificationHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.POST("/biometric-verification", h.Handle)
	}
}
