package handlers

import (
	"errors"
	"net/http"

	"github.com/Brownie44l1/attendance/internal/api/dto"
	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/Brownie44l1/attendance/internal/service"
	"github.com/gin-gonic/gin"
)

// ==============================================
// HELPER FUNCTIONS
// ==============================================

// respondSuccess sends a successful JSON response
func respondSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// respondError sends an error JSON response
func respondError(c *gin.Context, statusCode int, code string, err error) {
	c.JSON(statusCode, dto.ErrorResponse{
		Success: false,
		Error:   code,
		Message: err.Error(),
	})
}

// respondServiceError maps service errors to HTTP status codes and responses
func respondServiceError(c *gin.Context, err error) {
	code := models.ErrorCode(err)
	resp := dto.ErrorResponse{
		Success: false,
		Error:   code,
		Message: err.Error(),
	}
	var mismatch *service.OTPMismatchError
	if errors.As(err, &mismatch) {
		remaining := mismatch.Remaining
		resp.RemainingAttempts = &remaining
	}
	if code == models.ErrCodeInternalError {
		resp.Message = "Internal server error"
	}
	c.JSON(statusForCode(code), resp)
}

// statusForCode maps API error codes to HTTP status codes
func statusForCode(code string) int {
	switch code {
	// Validation errors (400 Bad Request)
	case models.ErrCodeValidationFailed, models.ErrCodeOTPInvalid:
		return http.StatusBadRequest

	// Credential errors (403 Forbidden)
	case models.ErrCodeCredentialMismatch:
		return http.StatusForbidden

	// Not found errors (404 Not Found)
	case models.ErrCodeSessionInvalid, models.ErrCodeNotFound:
		return http.StatusNotFound

	// Expired (410 Gone)
	case models.ErrCodeSessionExpired, models.ErrCodeOTPExpired:
		return http.StatusGone

	// Business logic errors
	case models.ErrCodeAttendanceConflict:
		return http.StatusConflict
	case models.ErrCodeOTPMaxAttempts, models.ErrCodeOTPCooldown:
		return http.StatusTooManyRequests
	case models.ErrCodeChannelUnavailable:
		return http.StatusUnprocessableEntity

	// Default (500 Internal Server Error)
	default:
		return http.StatusInternalServerError
	}
}
