package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/opsdesk/opsdesk/internal/models"
	pkgauth "github.com/opsdesk/opsdesk/pkg/auth"
	pkglogger "github.com/opsdesk/opsdesk/pkg/logger"
)

// UserRepository defines the user-store operations the login procedure
// needs.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// IPBlocker is the per-address brute-force defense consumed by the
// orchestrator.
type IPBlocker interface {
	IsBlocked(ctx context.Context, ip string) (bool, error)
	RecordFailedAttempt(ctx context.Context, ip string) (bool, error)
	RemainingAttempts(ip string) int
	ResetAttempts(ip string)
}

// AccountLocker is the per-account brute-force defense consumed by the
// orchestrator.
type AccountLocker interface {
	RecordFailedAttempt(ctx context.Context, userID string) (*LockoutResult, error)
	ResetAttempts(ctx context.Context, userID string) error
}

// SessionCreator mints sessions for authenticated users.
type SessionCreator interface {
	Create(ctx context.Context, user *models.PublicUser) (*models.Session, error)
	Destroy(ctx context.Context, token string) error
}

// LoginLimiter gates raw request volume per key, independent of the
// failure-driven defenses.
type LoginLimiter interface {
	Allow(limit int, key string) bool
}

// AuthConfig holds the orchestrator's rate-limit knobs.
type AuthConfig struct {
	LoginRateLimit    int
	LoginRateInterval time.Duration
	WarnThreshold     int // include remaining-attempt hints at or below this
}

// LoginRejection is an expected, user-facing policy rejection. It is an
// error so it travels the call stack like one, but it is mapped to a
// stable code at the boundary and never logged as an application error.
type LoginRejection struct {
	Code                string
	Message             string
	RemainingAttempts   *int
	RemainingIPAttempts *int
	RetryAfter          int // seconds; only set for rate limiting
}

func (e *LoginRejection) Error() string {
	return e.Message
}

// Unwrap maps the rejection to its sentinel so callers can use
// errors.Is without inspecting the code.
func (e *LoginRejection) Unwrap() error {
	switch e.Code {
	case models.CodeIPBlocked:
		return models.ErrIPBlocked
	case models.CodeRateLimited:
		return models.ErrRateLimited
	case models.CodeAccountLocked:
		return models.ErrAccountLocked
	default:
		return models.ErrUnauthorized
	}
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	User      *models.PublicUser
	Token     string
	ExpiresAt time.Time
}

// AuthService composes the IP block store, rate limiter, credential
// check, account lockout, and session manager into the single login
// decision procedure.
type AuthService struct {
	users       UserRepository
	ipBlocks    IPBlocker
	lockouts    AccountLocker
	sessions    SessionCreator
	limiter     LoginLimiter
	config      AuthConfig
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewAuthService(
	users UserRepository,
	ipBlocks IPBlocker,
	lockouts AccountLocker,
	sessions SessionCreator,
	limiter LoginLimiter,
	config AuthConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	if config.WarnThreshold == 0 {
		config.WarnThreshold = 3
	}
	return &AuthService{
		users:       users,
		ipBlocks:    ipBlocks,
		lockouts:    lockouts,
		sessions:    sessions,
		limiter:     limiter,
		config:      config,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Login runs the ordered login decision procedure. The check order is
// load-bearing: blocked IPs and rate-limited clients are turned away
// before any store lookup or bcrypt work. Store failures reject the
// attempt (fail closed), never bypass a check.
func (s *AuthService) Login(ctx context.Context, username, password, ip string) (*LoginResult, error) {
	// 1. IP block check, before anything else.
	blocked, err := s.ipBlocks.IsBlocked(ctx, ip)
	if err != nil {
		return nil, models.ErrInternalServer
	}
	if blocked {
		s.audit("login_failed", "", ip, "ip_blocked")
		return nil, &LoginRejection{
			Code:    models.CodeIPBlocked,
			Message: "Too many failed attempts from this address. Try again later.",
		}
	}

	// 2. Raw request throttle, independent of the failure counters.
	if !s.limiter.Allow(s.config.LoginRateLimit, "login:"+ip) {
		s.audit("login_failed", "", ip, "rate_limited")
		return nil, &LoginRejection{
			Code:       models.CodeRateLimited,
			Message:    "Too many login attempts. Slow down.",
			RetryAfter: int(s.config.LoginRateInterval.Seconds()),
		}
	}

	// 3. Credential lookup. Unknown usernames feed the IP counter but the
	// response stays generic; user existence is never revealed.
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			if _, recErr := s.ipBlocks.RecordFailedAttempt(ctx, ip); recErr != nil {
				return nil, models.ErrInternalServer
			}
			s.logger.Warn("login attempt for unknown username",
				slog.String("username", pkglogger.SanitizedUsername(username)),
				slog.String("ip_address", ip))
			s.audit("login_failed", "", ip, "unknown_username")
			return nil, s.invalidCredentials(nil, nil)
		}
		s.logger.Error("failed to look up user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// 4. Locked accounts fail regardless of password. This branch does
	// NOT feed the IP counter: a real-but-locked account is not treated
	// as probing, unlike an unknown username. Asymmetry is deliberate and
	// pending product sign-off.
	if user.IsLocked {
		s.audit("login_failed", user.ID, ip, "account_locked")
		return nil, &LoginRejection{
			Code:    models.CodeAccountLocked,
			Message: "Account is locked. Contact an administrator.",
		}
	}

	// 5. Password check. Timing between the unknown-user return above and
	// a bcrypt mismatch here is not equalized; known enumeration side
	// channel, flagged for hardening review.
	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, s.handlePasswordFailure(ctx, user, ip)
	}

	// 6. Success: clear both failure counters before minting the session.
	s.ipBlocks.ResetAttempts(ip)
	if err := s.lockouts.ResetAttempts(ctx, user.ID); err != nil {
		return nil, models.ErrInternalServer
	}

	session, err := s.sessions.Create(ctx, user.Public())
	if err != nil {
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.audit("login_success", user.ID, ip, "")

	return &LoginResult{
		User:      user.Public(),
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// handlePasswordFailure records the failure against both the IP and the
// account, then composes the rejection. Both counters are updated before
// the response exists, so a crash mid-way cannot leave attempts
// unrecorded; either recording failure fails the whole request.
func (s *AuthService) handlePasswordFailure(ctx context.Context, user *models.User, ip string) error {
	var (
		wg        sync.WaitGroup
		ipBlocked bool
		ipErr     error
		lockRes   *LockoutResult
		lockErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		ipBlocked, ipErr = s.ipBlocks.RecordFailedAttempt(ctx, ip)
	}()
	go func() {
		defer wg.Done()
		lockRes, lockErr = s.lockouts.RecordFailedAttempt(ctx, user.ID)
	}()
	wg.Wait()

	if ipErr != nil || lockErr != nil {
		return models.ErrInternalServer
	}

	// An IP block overrides account-lock messaging.
	if ipBlocked {
		s.audit("login_failed", user.ID, ip, "ip_blocked")
		return &LoginRejection{
			Code:    models.CodeIPBlocked,
			Message: "Too many failed attempts from this address. Try again later.",
		}
	}

	if lockRes.Locked {
		s.audit("login_failed", user.ID, ip, "account_locked")
		return &LoginRejection{
			Code:    models.CodeAccountLocked,
			Message: "Account locked after too many failed attempts. Contact an administrator.",
		}
	}

	s.audit("login_failed", user.ID, ip, "invalid_credentials")

	var remaining, remainingIP *int
	if lockRes.RemainingAttempts <= s.config.WarnThreshold {
		remaining = &lockRes.RemainingAttempts
	}
	if left := s.ipBlocks.RemainingAttempts(ip); left <= s.config.WarnThreshold {
		remainingIP = &left
	}

	return s.invalidCredentials(remaining, remainingIP)
}

func (s *AuthService) invalidCredentials(remaining, remainingIP *int) *LoginRejection {
	return &LoginRejection{
		Code:                models.CodeInvalidCredentials,
		Message:             "Invalid username or password.",
		RemainingAttempts:   remaining,
		RemainingIPAttempts: remainingIP,
	}
}

// Logout revokes a session. Idempotent.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

func (s *AuthService) audit(eventType, userID, ip, reason string) {
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     eventType,
		UserID:        userID,
		IPAddress:     ip,
		Success:       eventType == "login_success",
		FailureReason: reason,
	})
}
