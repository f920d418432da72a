package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/otpgate/otpgate/internal/auth"
	"github.com/otpgate/otpgate/internal/models"
	"github.com/otpgate/otpgate/internal/services"
	pkghttp "github.com/otpgate/otpgate/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, input services.RegisterInput, ip string) (*services.ChallengeResult, error)
	VerifyRegistration(ctx context.Context, email, code string) (*services.SessionResult, error)
	RequestLoginOTP(ctx context.Context, email, ip string) (*services.ChallengeResult, error)
	VerifyLoginOTP(ctx context.Context, email, code string) (*services.SessionResult, error)
	ResendOTP(ctx context.Context, email, purpose, ip string) (*services.ChallengeResult, error)
	GetProfile(ctx context.Context, accountID string) (*services.Profile, error)
}

// AuthHandler handles the OTP authentication endpoints
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

// VerifyOTPRequest represents the request body for OTP verification
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// LoginRequest represents the request body for requesting a login OTP
type LoginRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResendOTPRequest represents the request body for resending an OTP
type ResendOTPRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Purpose string `json:"purpose" validate:"required,oneof=registration login"`
}

// Response DTOs

// ChallengeResponse reports an issued OTP challenge
type ChallengeResponse struct {
	Message             string `json:"message"`
	Email               string `json:"email"`
	OTPExpiresInSeconds int    `json:"otpExpiresInSeconds"`
}

// SessionResponse reports a successful verification
type SessionResponse struct {
	Message     string     `json:"message"`
	Token       string     `json:"token"`
	AccountID   string     `json:"accountId"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// ProfileResponse is the caller-visible account view
type ProfileResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Verified    bool       `json:"verified"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Register handles new account registration and issues the first OTP challenge
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.service.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}, ip)
	if err != nil {
		h.writeChallengeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ChallengeResponse{
		Message:             "Registration successful. Check your email for the verification code.",
		Email:               result.Email,
		OTPExpiresInSeconds: int(result.ExpiresIn.Seconds()),
	})
}

// VerifyRegistration checks the registration code and activates the account
func (h *AuthHandler) VerifyRegistration(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.VerifyRegistration(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.writeVerifyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Message:   "Account verified successfully.",
		Token:     result.Token,
		AccountID: result.AccountID,
	})
}

// Login issues a login OTP challenge for the given email
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.service.RequestLoginOTP(r.Context(), req.Email, ip)
	if err != nil {
		h.writeChallengeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChallengeResponse{
		Message:             "Check your email for the sign-in code.",
		Email:               result.Email,
		OTPExpiresInSeconds: int(result.ExpiresIn.Seconds()),
	})
}

// VerifyLogin checks the login code and issues a session token
func (h *AuthHandler) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.VerifyLoginOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.writeVerifyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Message:     "Login successful.",
		Token:       result.Token,
		AccountID:   result.AccountID,
		LastLoginAt: result.LastLoginAt,
	})
}

// ResendOTP replaces a pending challenge with a fresh code
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ip := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.service.ResendOTP(r.Context(), req.Email, req.Purpose, ip)
	if err != nil {
		h.writeChallengeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChallengeResponse{
		Message:             "A new code has been sent to your email.",
		Email:               result.Email,
		OTPExpiresInSeconds: int(result.ExpiresIn.Seconds()),
	})
}

// GetProfile returns the authenticated account's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetAccountFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	profile, err := h.service.GetProfile(r.Context(), claims.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ProfileResponse{
		ID:          profile.ID,
		Email:       profile.Email,
		Name:        profile.Name,
		Verified:    profile.Verified,
		LastLoginAt: profile.LastLoginAt,
		CreatedAt:   profile.CreatedAt,
	})
}

// VerifyToken confirms the presented session token is valid
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetAccountFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":     true,
		"accountId": claims.AccountID,
		"email":     claims.Email,
	})
}

// writeChallengeError maps challenge-issuing failures (register, resend)
func (h *AuthHandler) writeChallengeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrAlreadyExists):
		pkghttp.WriteConflict(w, "An account with this email already exists")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Account not found")
	case errors.Is(err, models.ErrAlreadyVerified):
		pkghttp.WriteConflict(w, "Account is already verified")
	case errors.Is(err, models.ErrNotVerified):
		pkghttp.WriteForbidden(w, "Account is not verified. Complete registration first.")
	case errors.Is(err, models.ErrDeactivated):
		pkghttp.WriteForbidden(w, "Account is deactivated")
	case errors.Is(err, models.ErrLocked):
		pkghttp.WriteLocked(w, "Account is temporarily locked. Try again later.")
	case errors.Is(err, models.ErrRateLimited):
		writeRateLimited(w, err)
	case errors.Is(err, models.ErrNotificationFailed):
		pkghttp.WriteBadGateway(w, "Failed to send the verification code. Try resending.")
	case errors.Is(err, models.ErrStoreUnavailable):
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable. Try again shortly.")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

// writeVerifyError maps verification failures
func (h *AuthHandler) writeVerifyError(w http.ResponseWriter, err error) {
	var invalidErr *models.InvalidOTPError

	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Account not found")
	case errors.Is(err, models.ErrAlreadyVerified):
		pkghttp.WriteConflict(w, "Account is already verified")
	case errors.Is(err, models.ErrNotVerified):
		pkghttp.WriteForbidden(w, "Account is not verified. Complete registration first.")
	case errors.Is(err, models.ErrDeactivated):
		pkghttp.WriteForbidden(w, "Account is deactivated")
	case errors.Is(err, models.ErrLocked):
		pkghttp.WriteLocked(w, "Account is temporarily locked. Try again later.")
	case errors.Is(err, models.ErrAttemptsExceeded):
		pkghttp.WriteError(w, http.StatusBadRequest, "otp_attempts_exceeded", "Maximum attempts exceeded. Request a new code.")
	case errors.Is(err, models.ErrExpired):
		pkghttp.WriteError(w, http.StatusBadRequest, "otp_expired", "The code has expired. Request a new one.")
	case errors.As(err, &invalidErr):
		pkghttp.WriteErrorWithDetails(w, http.StatusUnauthorized, "invalid_otp",
			"Invalid code", attemptsRemainingDetail(invalidErr.AttemptsRemaining))
	case errors.Is(err, models.ErrRateLimited):
		writeRateLimited(w, err)
	case errors.Is(err, models.ErrStoreUnavailable):
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable. Try again shortly.")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func attemptsRemainingDetail(remaining int) string {
	if remaining == 1 {
		return "1 attempt remaining"
	}
	return fmt.Sprintf("%d attempts remaining", remaining)
}

func writeRateLimited(w http.ResponseWriter, err error) {
	var rateErr *models.RateLimitedError
	retryAfter := time.Minute
	if errors.As(err, &rateErr) {
		retryAfter = rateErr.RetryAfter
	}
	pkghttp.WriteRateLimited(w, "Too many requests. Try again later.", retryAfter)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
