package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/internal/models"
)

// BlockedIPRepository handles database operations for blocked IP rows.
type BlockedIPRepository struct {
	db *database.DB
}

func NewBlockedIPRepository(db *database.DB) *BlockedIPRepository {
	return &BlockedIPRepository{db: db}
}

const blockedIPColumns = `id, ip_address, reason, failed_count, blocked_at, expires_at`

func scanBlockedIP(scanner rowScanner) (*models.BlockedIP, error) {
	var b models.BlockedIP
	err := scanner.Scan(&b.ID, &b.IPAddress, &b.Reason, &b.FailedCount, &b.BlockedAt, &b.ExpiresAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &b, nil
}

// Upsert creates or refreshes the block row for an address. The unique
// index on ip_address guarantees at most one row per address.
func (r *BlockedIPRepository) Upsert(ctx context.Context, block *models.BlockedIP) (*models.BlockedIP, error) {
	if block.ID == "" {
		block.ID = uuid.New().String()
	}
	if block.BlockedAt.IsZero() {
		block.BlockedAt = time.Now()
	}

	query := `
		INSERT INTO blocked_ips (id, ip_address, reason, failed_count, blocked_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ip_address) DO UPDATE
		SET reason = EXCLUDED.reason,
		    failed_count = EXCLUDED.failed_count,
		    blocked_at = EXCLUDED.blocked_at,
		    expires_at = EXCLUDED.expires_at
		RETURNING ` + blockedIPColumns

	return scanBlockedIP(r.db.Pool.QueryRow(ctx, query,
		block.ID, block.IPAddress, block.Reason, block.FailedCount, block.BlockedAt, block.ExpiresAt,
	))
}

// GetActiveByIP returns the unexpired block row for an address, or nil
// when there is none. Expired rows are treated as absent; they are
// removed later by DeleteExpired.
func (r *BlockedIPRepository) GetActiveByIP(ctx context.Context, ip string) (*models.BlockedIP, error) {
	query := `SELECT ` + blockedIPColumns + ` FROM blocked_ips WHERE ip_address = $1 AND expires_at > CURRENT_TIMESTAMP`

	block, err := scanBlockedIP(r.db.Pool.QueryRow(ctx, query, ip))
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return block, nil
}

// DeleteByIP removes the block row for an address. Returns false when no
// row existed; deleting nothing is not an error.
func (r *BlockedIPRepository) DeleteByIP(ctx context.Context, ip string) (bool, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM blocked_ips WHERE ip_address = $1`, ip)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() > 0, nil
}

// DeleteByID removes a block row by id (admin UI convenience).
func (r *BlockedIPRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM blocked_ips WHERE id = $1`, id)
	if err != nil {
		return false, database.MapPostgresError(err)
	}

	return result.RowsAffected() > 0, nil
}

// DeleteExpired removes rows whose block has lapsed and returns how many
// were purged.
func (r *BlockedIPRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM blocked_ips WHERE expires_at < CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return result.RowsAffected(), nil
}

// ListAll returns every block row, newest first.
func (r *BlockedIPRepository) ListAll(ctx context.Context) ([]*models.BlockedIP, error) {
	query := `SELECT ` + blockedIPColumns + ` FROM blocked_ips ORDER BY blocked_at DESC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocked ips: %w", err)
	}

	return scanBlockedIPRows(rows)
}

func scanBlockedIPRows(rows pgx.Rows) ([]*models.BlockedIP, error) {
	defer rows.Close()

	blocks := make([]*models.BlockedIP, 0)
	for rows.Next() {
		block, err := scanBlockedIP(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan blocked ip: %w", err)
		}
		blocks = append(blocks, block)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return blocks, nil
}
