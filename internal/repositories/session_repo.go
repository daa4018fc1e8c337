package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/internal/models"
)

// SessionRepository handles database operations for server-side sessions.
type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	session.ID = uuid.New().String()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO sessions (id, user_id, token, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, token, created_at, expires_at
	`

	var created models.Session
	err := r.db.Pool.QueryRow(ctx, query,
		session.ID, session.UserID, session.Token, session.CreatedAt, session.ExpiresAt,
	).Scan(&created.ID, &created.UserID, &created.Token, &created.CreatedAt, &created.ExpiresAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &created, nil
}

// Slide extends a live session to the new expiry and returns the
// session's user in the same statement. Expiry check and slide are one
// atomic UPDATE, so the durable store stays authoritative under
// concurrent validations. Returns nil for unknown or expired tokens.
func (r *SessionRepository) Slide(ctx context.Context, token string, newExpiresAt time.Time) (*models.PublicUser, error) {
	query := `
		UPDATE sessions s
		SET expires_at = $2
		FROM users u
		WHERE s.token = $1
		  AND s.expires_at > CURRENT_TIMESTAMP
		  AND u.id = s.user_id
		RETURNING u.id, u.username, u.role
	`

	var user models.PublicUser
	err := r.db.Pool.QueryRow(ctx, query, token, newExpiresAt).Scan(&user.ID, &user.Username, &user.Role)
	if err != nil {
		err = database.MapPostgresError(err)
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

// GetByToken fetches a session row regardless of expiry. Used by tests
// and the sweeper; callers that care about validity go through Slide.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	query := `SELECT id, user_id, token, created_at, expires_at FROM sessions WHERE token = $1`

	var s models.Session
	err := r.db.Pool.QueryRow(ctx, query, token).Scan(&s.ID, &s.UserID, &s.Token, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &s, nil
}

// DeleteByToken removes a session. Idempotent; deleting a missing row is
// not an error.
func (r *SessionRepository) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// DeleteByUserID removes every session for a user (used when an account
// is locked by an admin).
func (r *SessionRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// DeleteExpired removes sessions past their sliding deadline and returns
// how many were purged.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}
