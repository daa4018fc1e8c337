package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opsdesk/opsdesk/internal/models"
	pkgauth "github.com/opsdesk/opsdesk/pkg/auth"
)

// SessionRepository defines the durable-store operations for sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) (*models.Session, error)
	Slide(ctx context.Context, token string, newExpiresAt time.Time) (*models.PublicUser, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type cachedSession struct {
	user      *models.PublicUser
	expiresAt time.Time
}

// SessionService issues and validates sliding-window sessions. The
// durable store is authoritative; a process-local cache mirrors live
// sessions so collaborators can peek without a round trip. Every
// successful validation slides the expiry to now + TTL, so a session
// lives indefinitely under continuous activity and dies exactly one TTL
// after the last validated request.
type SessionService struct {
	repo   SessionRepository
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]cachedSession
}

func NewSessionService(repo SessionRepository, ttl time.Duration, logger *slog.Logger) *SessionService {
	return &SessionService{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
		cache:  make(map[string]cachedSession),
	}
}

// Create mints a session for userID and returns its opaque token.
func (s *SessionService) Create(ctx context.Context, user *models.PublicUser) (*models.Session, error) {
	token, err := pkgauth.GenerateSessionToken()
	if err != nil {
		s.logger.Error("failed to generate session token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	session := &models.Session{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(s.ttl),
	}

	created, err := s.repo.Create(ctx, session)
	if err != nil {
		s.logger.Error("failed to persist session", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.cachePut(token, user, created.ExpiresAt)

	return created, nil
}

// Validate checks a token against the durable store and slides the
// expiry forward. The durable store is always consulted so the slide is
// authoritative; the cache is only refreshed from its result. Returns
// (nil, nil) for unknown, expired, or revoked tokens — callers must not
// be able to tell those apart.
func (s *SessionService) Validate(ctx context.Context, token string) (*models.PublicUser, error) {
	if token == "" {
		return nil, nil
	}

	newExpiry := time.Now().Add(s.ttl)

	user, err := s.repo.Slide(ctx, token, newExpiry)
	if err != nil {
		s.logger.Error("failed to validate session", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user == nil {
		s.cacheDelete(token)
		return nil, nil
	}

	s.cachePut(token, user, newExpiry)

	return user, nil
}

// Destroy revokes a session. Idempotent: destroying a missing or already
// expired session succeeds.
func (s *SessionService) Destroy(ctx context.Context, token string) error {
	if err := s.repo.DeleteByToken(ctx, token); err != nil {
		s.logger.Error("failed to delete session", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.cacheDelete(token)

	return nil
}

// DestroyForUser revokes every session a user holds. Used when an admin
// locks an account.
func (s *SessionService) DestroyForUser(ctx context.Context, userID string) error {
	deleted, err := s.repo.DeleteByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to delete user sessions", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.mu.Lock()
	for token, entry := range s.cache {
		if entry.user.ID == userID {
			delete(s.cache, token)
		}
	}
	s.mu.Unlock()

	if deleted > 0 {
		s.logger.Info("revoked user sessions", slog.String("user_id", userID), slog.Int64("count", deleted))
	}

	return nil
}

// SweepExpired purges sessions past their deadline from the durable
// store and the cache. Expiry is also checked lazily on every Validate,
// so the sweep only bounds storage growth.
func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	now := time.Now()

	s.mu.Lock()
	for token, entry := range s.cache {
		if now.After(entry.expiresAt) {
			delete(s.cache, token)
		}
	}
	s.mu.Unlock()

	deleted, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("failed to sweep expired sessions", slog.Any("error", err))
		return 0, models.ErrInternalServer
	}

	return deleted, nil
}

// Peek returns the cached user for a token without consulting the
// durable store or sliding the expiry. Non-authoritative: a cache miss
// says nothing about validity. Intended for collaborators (event fan-out,
// dashboards) that tolerate staleness.
func (s *SessionService) Peek(token string) (*models.PublicUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[token]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}

	return entry.user, true
}

func (s *SessionService) cachePut(token string, user *models.PublicUser, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[token] = cachedSession{user: user, expiresAt: expiresAt}
}

func (s *SessionService) cacheDelete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, token)
}
