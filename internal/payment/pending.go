package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/pkg/clock"
)

const DefaultPendingTTL = time.Hour

// PendingConfirmation holds a suspicious payment until a human answers YES or NO.
type PendingConfirmation struct {
	ActorID         string    `json:"actor_id"`
	OrderID         string    `json:"order_id"`
	ExpectedAmount  int64     `json:"expected_amount"`
	CandidateAmount int64     `json:"candidate_amount"`
	AmountInput     int64     `json:"amount_input"`
	ProofReference  string    `json:"proof_reference,omitempty"`
	Method          Method    `json:"method"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type PendingStore interface {
	Put(ctx context.Context, p PendingConfirmation) error
	// Get returns internal.ErrPendingNotFound for missing or expired entries.
	Get(ctx context.Context, actorID, orderID string) (*PendingConfirmation, error)
	// Latest returns the newest live entry for the actor, for replies that omit the order.
	Latest(ctx context.Context, actorID string) (*PendingConfirmation, error)
	Delete(ctx context.Context, actorID, orderID string) error
}

func pendingKey(actorID, orderID string) string {
	return actorID + "|" + orderID
}

type MemoryPendingStore struct {
	mu      sync.Mutex
	entries map[string]PendingConfirmation
	clock   clock.Clock
}

func NewMemoryPendingStore(c clock.Clock) *MemoryPendingStore {
	if c == nil {
		c = clock.System{}
	}
	return &MemoryPendingStore{
		entries: make(map[string]PendingConfirmation),
		clock:   c,
	}
}

func (s *MemoryPendingStore) Put(_ context.Context, p PendingConfirmation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[pendingKey(p.ActorID, p.OrderID)] = p
	return nil
}

func (s *MemoryPendingStore) Get(_ context.Context, actorID, orderID string) (*PendingConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pendingKey(actorID, orderID)
	p, ok := s.entries[key]
	if !ok {
		return nil, apperrors.ErrPendingNotFound
	}
	if !s.clock.Now().Before(p.ExpiresAt) {
		delete(s.entries, key)
		return nil, apperrors.ErrPendingNotFound
	}
	return &p, nil
}

func (s *MemoryPendingStore) Latest(_ context.Context, actorID string) (*PendingConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var latest *PendingConfirmation
	for key, p := range s.entries {
		if !now.Before(p.ExpiresAt) {
			delete(s.entries, key)
			continue
		}
		if p.ActorID != actorID {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			p := p
			latest = &p
		}
	}
	if latest == nil {
		return nil, apperrors.ErrPendingNotFound
	}
	return latest, nil
}

func (s *MemoryPendingStore) Delete(_ context.Context, actorID, orderID string) error {
	s.mu.Lock()
	delete(s.entries, pendingKey(actorID, orderID))
	s.mu.Unlock()
	return nil
}

const (
	redisPendingPrefix = "pending-payment:"
	redisLatestPrefix  = "pending-payment-latest:"
)

// RedisPendingStore lets every API replica see confirmations created by the others.
type RedisPendingStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisPendingStore(client redis.UniversalClient, ttl time.Duration) *RedisPendingStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &RedisPendingStore{client: client, ttl: ttl}
}

func (s *RedisPendingStore) Put(ctx context.Context, p PendingConfirmation) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pending confirmation: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisPendingPrefix+pendingKey(p.ActorID, p.OrderID), data, s.ttl)
	pipe.Set(ctx, redisLatestPrefix+p.ActorID, p.OrderID, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store pending confirmation: %w", err)
	}
	return nil
}

func (s *RedisPendingStore) Get(ctx context.Context, actorID, orderID string) (*PendingConfirmation, error) {
	data, err := s.client.Get(ctx, redisPendingPrefix+pendingKey(actorID, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrPendingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load pending confirmation: %w", err)
	}

	var p PendingConfirmation
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode pending confirmation: %w", err)
	}
	return &p, nil
}

func (s *RedisPendingStore) Latest(ctx context.Context, actorID string) (*PendingConfirmation, error) {
	orderID, err := s.client.Get(ctx, redisLatestPrefix+actorID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrPendingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load latest pending confirmation: %w", err)
	}
	return s.Get(ctx, actorID, orderID)
}

func (s *RedisPendingStore) Delete(ctx context.Context, actorID, orderID string) error {
	if err := s.client.Del(ctx, redisPendingPrefix+pendingKey(actorID, orderID)).Err(); err != nil {
		return fmt.Errorf("delete pending confirmation: %w", err)
	}
	return nil
}
