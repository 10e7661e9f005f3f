package memory

import (
	"context"
	"sync"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

type cacheKey struct {
	agentID types.UserID
	key     string
}

type cacheRepository struct {
	mu      sync.RWMutex
	entries map[cacheKey]*interfaces.CacheEntry
}

func newCacheRepository() *cacheRepository {
	return &cacheRepository{
		entries: make(map[cacheKey]*interfaces.CacheEntry),
	}
}

func (r *cacheRepository) Get(ctx context.Context, agentID types.UserID, key string) (*interfaces.CacheEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[cacheKey{agentID: agentID, key: key}]
	if !ok {
		return nil, nil
	}
	copied := *entry
	copied.Value = append([]byte(nil), entry.Value...)
	return &copied, nil
}

func (r *cacheRepository) Set(ctx context.Context, entry *interfaces.CacheEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *entry
	copied.Value = append([]byte(nil), entry.Value...)
	r.entries[cacheKey{agentID: entry.AgentID, key: entry.Key}] = &copied
	return nil
}

func (r *cacheRepository) Delete(ctx context.Context, agentID types.UserID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, cacheKey{agentID: agentID, key: key})
	return nil
}

type logStore struct {
	mu      sync.RWMutex
	entries []*model.LogEntry
}

func newLogStore() *logStore {
	return &logStore{}
}

func (s *logStore) append(entry *model.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *entry
	s.entries = append(s.entries, &copied)
	return nil
}

func (s *logStore) all() []*model.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*model.LogEntry, len(s.entries))
	copy(result, s.entries)
	return result
}
