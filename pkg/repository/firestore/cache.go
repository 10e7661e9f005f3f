package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

type cacheDoc struct {
	AgentID   types.UserID `firestore:"AgentID"`
	Key       string       `firestore:"Key"`
	Value     []byte       `firestore:"Value"`
	ExpiresAt time.Time    `firestore:"ExpiresAt"`
}

type cacheRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newCacheRepository(client *firestore.Client) *cacheRepository {
	return &cacheRepository{client: client}
}

func (r *cacheRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "cache")
}

// cacheDocID hashes the key so arbitrary key strings stay valid document
// names.
func cacheDocID(agentID types.UserID, key string) string {
	return types.DeterministicID(string(agentID) + "/" + key)
}

func (r *cacheRepository) Get(ctx context.Context, agentID types.UserID, key string) (*interfaces.CacheEntry, error) {
	doc, err := r.collection().Doc(cacheDocID(agentID, key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, wrapStorage(err, "failed to get cache entry", goerr.V("key", key))
	}

	var d cacheDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, wrapStorage(err, "failed to unmarshal cache entry", goerr.V("key", key))
	}
	return &interfaces.CacheEntry{
		AgentID:   d.AgentID,
		Key:       d.Key,
		Value:     d.Value,
		ExpiresAt: d.ExpiresAt,
	}, nil
}

func (r *cacheRepository) Set(ctx context.Context, entry *interfaces.CacheEntry) error {
	doc := &cacheDoc{
		AgentID:   entry.AgentID,
		Key:       entry.Key,
		Value:     entry.Value,
		ExpiresAt: entry.ExpiresAt,
	}
	if _, err := r.collection().Doc(cacheDocID(entry.AgentID, entry.Key)).Set(ctx, doc); err != nil {
		return wrapStorage(err, "failed to set cache entry", goerr.V("key", entry.Key))
	}
	return nil
}

func (r *cacheRepository) Delete(ctx context.Context, agentID types.UserID, key string) error {
	if _, err := r.collection().Doc(cacheDocID(agentID, key)).Delete(ctx); err != nil {
		return wrapStorage(err, "failed to delete cache entry", goerr.V("key", key))
	}
	return nil
}

type logDoc struct {
	Body      map[string]any `firestore:"Body"`
	UserID    types.UserID   `firestore:"UserID"`
	RoomID    types.RoomID   `firestore:"RoomID"`
	Kind      string         `firestore:"Kind"`
	CreatedAt time.Time      `firestore:"CreatedAt"`
}

type logRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newLogRepository(client *firestore.Client) *logRepository {
	return &logRepository{client: client}
}

func (r *logRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "logs")
}

func (r *logRepository) append(ctx context.Context, entry *model.LogEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	doc := &logDoc{
		Body:      entry.Body,
		UserID:    entry.UserID,
		RoomID:    entry.RoomID,
		Kind:      entry.Kind,
		CreatedAt: createdAt,
	}
	if _, _, err := r.collection().Add(ctx, doc); err != nil {
		return wrapStorage(err, "failed to append log entry", goerr.V("kind", entry.Kind))
	}
	return nil
}
