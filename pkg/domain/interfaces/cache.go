package interfaces

import (
	"context"
	"time"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

// CacheEntry is one persisted cache row, keyed by (agentID, key).
type CacheEntry struct {
	AgentID   types.UserID
	Key       string
	Value     []byte
	ExpiresAt time.Time
}

// CacheRepository is the persistent tier behind the cache layer.
// Expiry is enforced by the cache layer, not here.
type CacheRepository interface {
	// Get returns nil without error when the entry does not exist.
	Get(ctx context.Context, agentID types.UserID, key string) (*CacheEntry, error)

	Set(ctx context.Context, entry *CacheEntry) error

	Delete(ctx context.Context, agentID types.UserID, key string) error
}
