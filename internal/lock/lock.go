// Package lock provides the per-order advisory lock that serializes finalization paths.
//
// Locks expire after their TTL so a crashed holder cannot block an order forever.
// The price is that a holder running longer than the TTL may overlap with the next one.
package lock

import (
	"context"
	"time"

	errors "github.com/frahmantamala/order-assistant/internal"
)

const DefaultTTL = 60 * time.Second

type Guard interface {
	// Acquire reports false when a live lock already exists for orderID.
	// The returned token identifies this acquisition and is required to release it.
	Acquire(ctx context.Context, orderID string) (token string, ok bool, err error)
	// Release is a no-op once the lock expired and another holder took it.
	Release(ctx context.Context, orderID, token string) error
}

// WithLock runs fn while holding the lock for orderID.
// Contention returns internal.ErrOrderLocked; callers should retry later.
func WithLock(ctx context.Context, g Guard, orderID string, fn func(ctx context.Context) error) error {
	token, ok, err := g.Acquire(ctx, orderID)
	if err != nil {
		return errors.NewInternalError("failed to acquire order lock", err)
	}
	if !ok {
		return errors.ErrOrderLocked
	}
	defer func() {
		// release even when the caller's context was cancelled mid-operation
		_ = g.Release(context.WithoutCancel(ctx), orderID, token)
	}()

	return fn(ctx)
}
