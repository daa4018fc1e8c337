package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/services"
	pkghttp "github.com/opsdesk/opsdesk/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password, ip string) (*services.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service      AuthServiceInterface
	ipConfig     *pkghttp.IPConfig
	cookieConfig auth.CookieConfig
	cookieMaxAge int // seconds
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig, cookieConfig auth.CookieConfig, cookieMaxAge time.Duration) *AuthHandler {
	return &AuthHandler{
		service:      service,
		ipConfig:     ipConfig,
		cookieConfig: cookieConfig,
		cookieMaxAge: int(cookieMaxAge.Seconds()),
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a successful login
type LoginResponse struct {
	Success   bool               `json:"success"`
	User      *models.PublicUser `json:"user"`
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
}

// LoginErrorResponse carries the stable rejection code plus optional
// attempt hints. Only ever sent for expected policy rejections.
type LoginErrorResponse struct {
	Error               string `json:"error"`
	Message             string `json:"message"`
	RemainingAttempts   *int   `json:"remaining_attempts,omitempty"`
	RemainingIPAttempts *int   `json:"remaining_ip_attempts,omitempty"`
	RetryAfter          int    `json:"retry_after,omitempty"`
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} LoginErrorResponse
// @Failure 403 {object} LoginErrorResponse
// @Failure 429 {object} LoginErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
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

	// Case folding happens in the user store; only whitespace is
	// normalized here.
	req.Username = strings.TrimSpace(req.Username)

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.service.Login(r.Context(), req.Username, req.Password, ipAddress)
	if err != nil {
		if rej, ok := err.(*services.LoginRejection); ok {
			writeLoginRejection(w, rej)
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	auth.SetSessionCookie(w, result.Token, h.cookieMaxAge, h.cookieConfig)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LoginResponse{
		Success:   true,
		User:      result.User,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	})
}

// Logout revokes the current session and clears the cookie. Safe to
// call with a missing or already-dead token.
// @Summary User logout
// @Produce json
// @Success 204
// @Failure 500 {object} ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.GetTokenFromContext(r)
	if token == "" {
		token = auth.ExtractToken(r)
	}

	if token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			pkghttp.WriteInternalError(w, "Internal server error")
			return
		}
	}

	auth.ClearSessionCookie(w, h.cookieConfig)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user for the current session.
// @Summary Current user
// @Produce json
// @Success 200 {object} models.PublicUser
// @Failure 401 {object} ErrorResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r)
	if user == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(user)
}

// writeLoginRejection maps a policy rejection to its HTTP status. The
// code in the body is the stable contract; the status is advisory.
func writeLoginRejection(w http.ResponseWriter, rej *services.LoginRejection) {
	var status int
	switch rej.Code {
	case models.CodeIPBlocked, models.CodeAccountLocked:
		status = http.StatusForbidden
	case models.CodeRateLimited:
		status = http.StatusTooManyRequests
		if rej.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(rej.RetryAfter))
		}
	default:
		status = http.StatusUnauthorized
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(LoginErrorResponse{
		Error:               rej.Code,
		Message:             rej.Message,
		RemainingAttempts:   rej.RemainingAttempts,
		RemainingIPAttempts: rej.RemainingIPAttempts,
		RetryAfter:          rej.RetryAfter,
	})
}
