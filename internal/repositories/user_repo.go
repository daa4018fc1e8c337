package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// rowScanner interface for scanning user rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var lockedAt *time.Time

	err := scanner.Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.Role,
		&user.IsLocked, &lockedAt, &user.FailedAttempts,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	user.LockedAt = lockedAt

	return &user, nil
}

const userColumns = `id, username, password_hash, role, is_locked, locked_at, failed_attempts, created_at, updated_at`

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByUsername looks a user up by case-insensitive exact match.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(username) = LOWER($1)`

	return scanUserRow(r.db.Pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Role == "" {
		user.Role = "user"
	}

	query := `
		INSERT INTO users (id, username, password_hash, role, is_locked, locked_at, failed_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userColumns

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Username, user.PasswordHash, user.Role,
		user.IsLocked, user.LockedAt, user.FailedAttempts,
		user.CreatedAt, user.UpdatedAt,
	))
}

// RecordFailedAttempt bumps failed_attempts and locks the account in the
// same statement once the threshold is reached. Increment and compare
// happen inside one UPDATE so concurrent failures cannot slip past the
// threshold unlocked.
func (r *UserRepository) RecordFailedAttempt(ctx context.Context, id string, lockThreshold int) (failedAttempts int, locked bool, err error) {
	query := `
		UPDATE users
		SET failed_attempts = failed_attempts + 1,
		    is_locked = is_locked OR (failed_attempts + 1 >= $2),
		    locked_at = CASE
		        WHEN NOT is_locked AND failed_attempts + 1 >= $2 THEN CURRENT_TIMESTAMP
		        ELSE locked_at
		    END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING failed_attempts, is_locked
	`

	err = r.db.Pool.QueryRow(ctx, query, id, lockThreshold).Scan(&failedAttempts, &locked)
	if err != nil {
		return 0, false, database.MapPostgresError(err)
	}

	return failedAttempts, locked, nil
}

// ResetFailedAttempts zeroes the failure counter, called after a
// successful login. Does not touch is_locked.
func (r *UserRepository) ResetFailedAttempts(ctx context.Context, id string) error {
	query := `UPDATE users SET failed_attempts = 0, updated_at = CURRENT_TIMESTAMP WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// Lock marks the account locked without requiring a threshold breach
// (admin override).
func (r *UserRepository) Lock(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE users
		SET is_locked = TRUE, locked_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() > 0, nil
}

// Unlock clears the lock and the failure counter in a single statement,
// so no intermediate state is observable.
func (r *UserRepository) Unlock(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE users
		SET is_locked = FALSE, locked_at = NULL, failed_attempts = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}
