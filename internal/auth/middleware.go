package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/opsdesk/opsdesk/internal/models"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing the authenticated user in context
	UserContextKey contextKey = "user"
	// TokenContextKey is the key for storing the raw session token in context
	TokenContextKey contextKey = "session_token"
)

// SessionValidator checks a session token against the durable store and
// slides its expiry. A nil user with a nil error means the token is
// unknown, expired, or revoked.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*models.PublicUser, error)
}

// SessionMiddleware validates the session token and injects the user
// into the request context. Store failures deny access; an unreachable
// session store never lets a request through.
func SessionMiddleware(sessions SessionValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				http.Error(w, "missing session token", http.StatusUnauthorized)
				return
			}

			user, err := sessions.Validate(r.Context(), token)
			if err != nil {
				http.Error(w, "unable to verify session", http.StatusServiceUnavailable)
				return
			}
			if user == nil {
				http.Error(w, "invalid or expired session", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			ctx = context.WithValue(ctx, TokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole creates a middleware that enforces role-based access
// control. Must run after SessionMiddleware.
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r)
			if user == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if user.Role != role {
				http.Error(w, "forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ExtractToken pulls the session token from the request: the session
// cookie first, then a Bearer Authorization header for API clients.
func ExtractToken(r *http.Request) string {
	if token, err := GetSessionCookie(r); err == nil && token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// GetUserFromContext extracts the authenticated user from request context
func GetUserFromContext(r *http.Request) *models.PublicUser {
	user, ok := r.Context().Value(UserContextKey).(*models.PublicUser)
	if !ok {
		return nil
	}
	return user
}

// GetTokenFromContext extracts the raw session token from request context
func GetTokenFromContext(r *http.Request) string {
	token, ok := r.Context().Value(TokenContextKey).(string)
	if !ok {
		return ""
	}
	return token
}
