package dto

import "time"

// ==============================================
// VERIFICATION REQUEST DTOs
// ==============================================

const (
	ActionValidateRegistration   = "validate-registration"
	ActionCompleteRegistration   = "complete-registration"
	ActionValidateAuthentication = "validate-authentication"
	ActionCompleteAuthentication = "complete-authentication"
	ActionSendOTP                = "send-otp"
	ActionVerifyOTP              = "verify-otp"
)

// VerificationRequest is the single body shape of the web endpoint.
type VerificationRequest struct {
	Action       string `json:"action" binding:"required"`
	Token        string `json:"token" binding:"required"`
	CredentialID string `json:"credentialId"`
	Code         string `json:"code"`
}

// ==============================================
// VERIFICATION RESPONSE DTOs
// ==============================================

// ValidateResponse answers validate-registration and validate-authentication.
type ValidateResponse struct {
	Valid         bool       `json:"valid"`
	Expired       bool       `json:"expired,omitempty"`
	EmployeeID    string     `json:"employeeId,omitempty"`
	EmployeeName  string     `json:"employeeName,omitempty"`
	CompanyID     string     `json:"companyId,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	RequestKind   string     `json:"requestKind,omitempty"`
	RequiredLevel int        `json:"requiredLevel,omitempty"`
}

type SendOTPResponse struct {
	Success   bool      `json:"success"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type CompletionResponse struct {
	Success   bool   `json:"success"`
	Outcome   string `json:"outcome"`
	NextLevel int    `json:"nextLevel,omitempty"`
}

// ==============================================
// SESSION ADMIN DTOs
// ==============================================

type CreateSessionRequest struct {
	Purpose       string   `json:"purpose" binding:"required,oneof=authentication registration"`
	EmployeeID    string   `json:"employee_id" binding:"required"`
	RequestKind   string   `json:"request_kind" binding:"omitempty,oneof=check_in check_out other"`
	RequiredLevel int      `json:"required_level" binding:"omitempty,min=1,max=3"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
}

type CreateSessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	URL       string    `json:"url"`
}
