package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	user *models.PublicUser
	err  error

	seenToken string
}

func (s *stubValidator) Validate(ctx context.Context, token string) (*models.PublicUser, error) {
	s.seenToken = token
	return s.user, s.err
}

func okHandler(captured **models.PublicUser) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = GetUserFromContext(r)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionMiddleware_ValidCookie(t *testing.T) {
	validator := &stubValidator{user: &models.PublicUser{ID: "user_1", Username: "alice", Role: "admin"}}

	var seen *models.PublicUser
	handler := SessionMiddleware(validator)(okHandler(&seen))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok123"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok123", validator.seenToken)
	require.NotNil(t, seen)
	assert.Equal(t, "alice", seen.Username)
}

func TestSessionMiddleware_BearerFallback(t *testing.T) {
	validator := &stubValidator{user: &models.PublicUser{ID: "user_1", Username: "alice", Role: "user"}}
	handler := SessionMiddleware(validator)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer tok456")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok456", validator.seenToken)
}

func TestSessionMiddleware_MissingToken(t *testing.T) {
	validator := &stubValidator{}
	handler := SessionMiddleware(validator)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, validator.seenToken, "validator is not consulted without a token")
}

func TestSessionMiddleware_InvalidToken(t *testing.T) {
	validator := &stubValidator{user: nil}
	handler := SessionMiddleware(validator)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "expired"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionMiddleware_StoreFailureDeniesAccess(t *testing.T) {
	validator := &stubValidator{err: models.ErrInternalServer}
	handler := SessionMiddleware(validator)(okHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		user     *models.PublicUser
		wantCode int
	}{
		{"admin passes", &models.PublicUser{ID: "u1", Role: "admin"}, http.StatusOK},
		{"regular user forbidden", &models.PublicUser{ID: "u2", Role: "user"}, http.StatusForbidden},
		{"no user unauthorized", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireRole("admin")(okHandler(nil))

			req := httptest.NewRequest(http.MethodGet, "/admin/blocked-ips", nil)
			if tt.user != nil {
				req = req.WithContext(context.WithValue(req.Context(), UserContextKey, tt.user))
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestExtractToken_PrefersCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "from-cookie"})
	req.Header.Set("Authorization", "Bearer from-header")

	assert.Equal(t, "from-cookie", ExtractToken(req))
}

func TestExtractToken_MalformedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc123")

	assert.Empty(t, ExtractToken(req))
}
