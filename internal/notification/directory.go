package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/frahmantamala/order-assistant/pkg/clock"
)

// Directory lists the chat ids of staff who receive reminders and alerts.
type Directory interface {
	ListActiveAdmins(ctx context.Context) ([]string, error)
}

// RecipientSource is the authoritative roster, usually the user table.
type RecipientSource interface {
	ListReminderRecipients(ctx context.Context) ([]string, error)
}

var ErrNoRecipients = errors.New("no reminder recipients available")

// CachedDirectory refreshes the roster at most once per TTL. Concurrent refreshes share one
// lookup, and a failed refresh serves the last good roster, then the static fallback.
type CachedDirectory struct {
	source   RecipientSource
	ttl      time.Duration
	clock    clock.Clock
	fallback []string
	logger   *slog.Logger

	group     singleflight.Group
	mu        sync.RWMutex
	cached    []string
	fetchedAt time.Time
}

func NewCachedDirectory(source RecipientSource, ttl time.Duration, clk clock.Clock, fallback []string, logger *slog.Logger) *CachedDirectory {
	return &CachedDirectory{
		source:   source,
		ttl:      ttl,
		clock:    clk,
		fallback: fallback,
		logger:   logger,
	}
}

func (d *CachedDirectory) ListActiveAdmins(ctx context.Context) ([]string, error) {
	if ids, ok := d.fresh(); ok {
		return ids, nil
	}

	v, err, _ := d.group.Do("recipients", func() (interface{}, error) {
		ids, err := d.source.ListReminderRecipients(ctx)
		if err != nil {
			return nil, err
		}
		d.mu.Lock()
		d.cached = ids
		d.fetchedAt = d.clock.Now()
		d.mu.Unlock()
		return ids, nil
	})
	if err == nil {
		return d.orFallback(v.([]string))
	}

	d.logger.Warn("recipient directory refresh failed", "error", err)
	d.mu.RLock()
	stale := d.cached
	d.mu.RUnlock()
	if len(stale) > 0 {
		return copyIDs(stale), nil
	}
	return d.orFallback(nil)
}

func (d *CachedDirectory) fresh() ([]string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.fetchedAt.IsZero() || d.clock.Now().Sub(d.fetchedAt) >= d.ttl {
		return nil, false
	}
	if len(d.cached) == 0 {
		return copyIDs(d.fallback), len(d.fallback) > 0
	}
	return copyIDs(d.cached), true
}

func (d *CachedDirectory) orFallback(ids []string) ([]string, error) {
	if len(ids) > 0 {
		return copyIDs(ids), nil
	}
	if len(d.fallback) > 0 {
		return copyIDs(d.fallback), nil
	}
	return nil, ErrNoRecipients
}

func copyIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// StaticDirectory always returns the configured ids.
type StaticDirectory []string

func (s StaticDirectory) ListActiveAdmins(context.Context) ([]string, error) {
	if len(s) == 0 {
		return nil, ErrNoRecipients
	}
	return copyIDs(s), nil
}
