package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

type cacheRepository struct {
	db *sql.DB
}

func (r *cacheRepository) Get(ctx context.Context, agentID types.UserID, key string) (*interfaces.CacheEntry, error) {
	entry := &interfaces.CacheEntry{AgentID: agentID, Key: key}
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache WHERE agent_id = ? AND key = ?`,
		agentID, key).Scan(&entry.Value, &expiresAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, wrapStorage(err, "failed to get cache entry", goerr.V("key", key))
	}
	if expiresAt.Valid {
		entry.ExpiresAt = expiresAt.Time
	}
	return entry, nil
}

func (r *cacheRepository) Set(ctx context.Context, entry *interfaces.CacheEntry) error {
	var expiresAt any
	if !entry.ExpiresAt.IsZero() {
		expiresAt = entry.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache (agent_id, key, value, expires_at) VALUES (?, ?, ?, ?)`,
		entry.AgentID, entry.Key, entry.Value, expiresAt)
	if err != nil {
		return wrapStorage(err, "failed to set cache entry", goerr.V("key", entry.Key))
	}
	return nil
}

func (r *cacheRepository) Delete(ctx context.Context, agentID types.UserID, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cache WHERE agent_id = ? AND key = ?`, agentID, key)
	if err != nil {
		return wrapStorage(err, "failed to delete cache entry", goerr.V("key", key))
	}
	return nil
}
