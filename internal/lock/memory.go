package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/order-assistant/pkg/clock"
)

type memoryLock struct {
	token     string
	createdAt time.Time
}

type MemoryGuard struct {
	mu    sync.Mutex
	held  map[string]memoryLock
	ttl   time.Duration
	clock clock.Clock
}

func NewMemoryGuard(ttl time.Duration, c clock.Clock) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if c == nil {
		c = clock.System{}
	}
	return &MemoryGuard{
		held:  make(map[string]memoryLock),
		ttl:   ttl,
		clock: c,
	}
}

func (g *MemoryGuard) Acquire(_ context.Context, orderID string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if l, ok := g.held[orderID]; ok && now.Sub(l.createdAt) < g.ttl {
		return "", false, nil
	}
	token := uuid.NewString()
	g.held[orderID] = memoryLock{token: token, createdAt: now}
	return token, true, nil
}

func (g *MemoryGuard) Release(_ context.Context, orderID, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if l, ok := g.held[orderID]; ok && l.token == token {
		delete(g.held, orderID)
	}
	return nil
}
