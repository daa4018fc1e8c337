package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/services"
	pkghttp "github.com/opsdesk/opsdesk/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds an authenticated user and session token to the
// request context, as SessionMiddleware would.
func WithAuthContext(req *http.Request, user *models.PublicUser, token string) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserContextKey, user)
	ctx = context.WithValue(ctx, auth.TokenContextKey, token)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc  func(ctx context.Context, username, password, ip string) (*services.LoginResult, error)
	LogoutFunc func(ctx context.Context, token string) error
}

func (m *MockAuthService) Login(ctx context.Context, username, password, ip string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrUnauthorized
	}
	return m.LoginFunc(ctx, username, password, ip)
}

func (m *MockAuthService) Logout(ctx context.Context, token string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, token)
}

// MockIPBlockAdmin implements IPBlockServiceInterface for testing
type MockIPBlockAdmin struct {
	ListFunc        func(ctx context.Context) ([]*services.BlockedIPResponse, error)
	UnblockFunc     func(ctx context.Context, ip string) (bool, error)
	UnblockByIDFunc func(ctx context.Context, id string) (bool, error)
}

func (m *MockIPBlockAdmin) List(ctx context.Context) ([]*services.BlockedIPResponse, error) {
	if m.ListFunc == nil {
		return []*services.BlockedIPResponse{}, nil
	}
	return m.ListFunc(ctx)
}

func (m *MockIPBlockAdmin) Unblock(ctx context.Context, ip string) (bool, error) {
	if m.UnblockFunc == nil {
		return false, nil
	}
	return m.UnblockFunc(ctx, ip)
}

func (m *MockIPBlockAdmin) UnblockByID(ctx context.Context, id string) (bool, error) {
	if m.UnblockByIDFunc == nil {
		return false, nil
	}
	return m.UnblockByIDFunc(ctx, id)
}

// MockLockoutAdmin implements LockoutServiceInterface for testing
type MockLockoutAdmin struct {
	LockFunc   func(ctx context.Context, userID string) (bool, error)
	UnlockFunc func(ctx context.Context, userID string) (bool, error)
}

func (m *MockLockoutAdmin) Lock(ctx context.Context, userID string) (bool, error) {
	if m.LockFunc == nil {
		return true, nil
	}
	return m.LockFunc(ctx, userID)
}

func (m *MockLockoutAdmin) Unlock(ctx context.Context, userID string) (bool, error) {
	if m.UnlockFunc == nil {
		return true, nil
	}
	return m.UnlockFunc(ctx, userID)
}

// MockSessionRevoker implements SessionRevoker for testing
type MockSessionRevoker struct {
	DestroyForUserFunc func(ctx context.Context, userID string) error
}

func (m *MockSessionRevoker) DestroyForUser(ctx context.Context, userID string) error {
	if m.DestroyForUserFunc == nil {
		return nil
	}
	return m.DestroyForUserFunc(ctx, userID)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func testLoginResult() *services.LoginResult {
	return &services.LoginResult{
		User:      &models.PublicUser{ID: "user_1", Username: "alice", Role: "user"},
		Token:     "tok123",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}
}
