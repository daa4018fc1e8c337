package models

import "time"

// BlockedIP is a temporarily banned source address. At most one active
// row exists per address; expired rows are purged lazily on read or by
// the background sweep.
type BlockedIP struct {
	ID          string    `db:"id"`
	IPAddress   string    `db:"ip_address"`
	Reason      string    `db:"reason"`
	FailedCount int       `db:"failed_count"`
	BlockedAt   time.Time `db:"blocked_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

// IsExpired reports whether the block has lapsed.
func (b *BlockedIP) IsExpired() bool {
	return time.Now().After(b.ExpiresAt)
}

// SecondsRemaining returns the whole seconds until the block lapses,
// floored at 0 for already-expired rows awaiting cleanup.
func (b *BlockedIP) SecondsRemaining() int {
	left := time.Until(b.ExpiresAt)
	if left <= 0 {
		return 0
	}
	return int(left.Seconds())
}
