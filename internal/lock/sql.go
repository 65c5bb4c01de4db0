package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/order-assistant/pkg/clock"
)

// SQLGuard keeps locks in the order_locks table so several processes share them.
type SQLGuard struct {
	db    *sqlx.DB
	ttl   time.Duration
	clock clock.Clock
}

func NewSQLGuard(db *sqlx.DB, ttl time.Duration, c clock.Clock) *SQLGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if c == nil {
		c = clock.System{}
	}
	return &SQLGuard{
		db:    db,
		ttl:   ttl,
		clock: c,
	}
}

// Acquire stores a fresh token as the row owner.
func (g *SQLGuard) Acquire(ctx context.Context, orderID string) (string, bool, error) {
	now := g.clock.Now().UTC()

	if _, err := g.db.ExecContext(ctx,
		`DELETE FROM order_locks WHERE order_id = $1 AND created_at < $2`,
		orderID, now.Add(-g.ttl),
	); err != nil {
		return "", false, fmt.Errorf("purge expired lock for %s: %w", orderID, err)
	}

	token := uuid.NewString()
	res, err := g.db.ExecContext(ctx,
		`INSERT INTO order_locks (order_id, owner, created_at) VALUES ($1, $2, $3) ON CONFLICT (order_id) DO NOTHING`,
		orderID, token, now,
	)
	if err != nil {
		return "", false, fmt.Errorf("insert lock for %s: %w", orderID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("read lock insert result: %w", err)
	}
	if n != 1 {
		return "", false, nil
	}
	return token, true, nil
}

// Release only removes the row written by the acquisition that returned token.
func (g *SQLGuard) Release(ctx context.Context, orderID, token string) error {
	if _, err := g.db.ExecContext(ctx,
		`DELETE FROM order_locks WHERE order_id = $1 AND owner = $2`,
		orderID, token,
	); err != nil {
		return fmt.Errorf("release lock for %s: %w", orderID, err)
	}
	return nil
}
