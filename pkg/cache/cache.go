// Package cache provides a two-tier key-value cache: an in-process
// ristretto cache in front of a persistent repository tier.
package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

const defaultTTL = time.Hour

// Manager layers a fast in-process cache over the repository's cache
// table. Values read from the persistent tier are promoted into the
// in-process tier. Expired persistent entries are deleted lazily on read.
type Manager struct {
	agentID types.UserID
	local   *ristretto.Cache
	repo    interfaces.CacheRepository
	ttl     time.Duration
	now     func() time.Time
}

type Option func(*Manager)

// WithTTL sets the default expiry applied by Set.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a cache manager scoped to an agent. repo may be nil, in
// which case only the in-process tier is used.
func New(agentID types.UserID, repo interfaces.CacheRepository, opts ...Option) (*Manager, error) {
	local, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e6,
		MaxCost:     64 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create in-process cache")
	}

	m := &Manager{
		agentID: agentID,
		local:   local,
		repo:    repo,
		ttl:     defaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Get returns the cached value for key, or (nil, nil) on a miss. A hit
// in the persistent tier is promoted into the in-process tier with the
// remaining lifetime.
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := m.local.Get(key); ok {
		if data, ok := v.([]byte); ok {
			return data, nil
		}
	}

	if m.repo == nil {
		return nil, nil
	}

	entry, err := m.repo.Get(ctx, m.agentID, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read cache entry", goerr.V("key", key))
	}
	if entry == nil {
		return nil, nil
	}

	if !entry.ExpiresAt.IsZero() && !m.now().Before(entry.ExpiresAt) {
		// Stale entry: drop it and report a miss
		if err := m.repo.Delete(ctx, m.agentID, key); err != nil {
			return nil, goerr.Wrap(err, "failed to delete expired cache entry", goerr.V("key", key))
		}
		return nil, nil
	}

	remaining := entry.ExpiresAt.Sub(m.now())
	m.local.SetWithTTL(key, entry.Value, int64(len(entry.Value)), remaining)
	return entry.Value, nil
}

// Set stores value under key in both tiers with the default TTL.
func (m *Manager) Set(ctx context.Context, key string, value []byte) error {
	return m.SetWithTTL(ctx, key, value, m.ttl)
}

// SetWithTTL stores value under key in both tiers with an explicit TTL.
func (m *Manager) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.ttl
	}
	expiresAt := m.now().Add(ttl)

	m.local.SetWithTTL(key, value, int64(len(value)), ttl)

	if m.repo == nil {
		return nil
	}

	entry := &interfaces.CacheEntry{
		AgentID:   m.agentID,
		Key:       key,
		Value:     value,
		ExpiresAt: expiresAt,
	}
	if err := m.repo.Set(ctx, entry); err != nil {
		return goerr.Wrap(err, "failed to persist cache entry", goerr.V("key", key))
	}
	return nil
}

// Delete removes key from both tiers. Deleting an absent key is not an
// error.
func (m *Manager) Delete(ctx context.Context, key string) error {
	m.local.Del(key)

	if m.repo == nil {
		return nil
	}
	if err := m.repo.Delete(ctx, m.agentID, key); err != nil {
		return goerr.Wrap(err, "failed to delete cache entry", goerr.V("key", key))
	}
	return nil
}

// Close releases the in-process tier.
func (m *Manager) Close() {
	m.local.Close()
}
