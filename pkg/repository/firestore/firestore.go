// Package firestore implements the Repository interface on Google Cloud
// Firestore. Memories live in a dimension-qualified collection so that
// deployments with different embedding widths never mix vectors.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

// wrapStorage tags a backend fault with types.ErrStorage so callers can
// classify it with errors.Is. The original error is carried as a value.
func wrapStorage(err error, msg string, vals ...goerr.Option) error {
	return goerr.Wrap(types.ErrStorage, msg, append(vals, goerr.V("cause", err.Error()))...)
}

type Firestore struct {
	client       *firestore.Client
	memory       *memoryRepository
	room         *roomRepository
	account      *accountRepository
	relationship *relationshipRepository
	goal         *goalRepository
	cache        *cacheRepository
	logs         *logRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces all collections, for shared projects.
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.memory.collectionPrefix = prefix
		f.room.collectionPrefix = prefix
		f.account.collectionPrefix = prefix
		f.relationship.collectionPrefix = prefix
		f.goal.collectionPrefix = prefix
		f.cache.collectionPrefix = prefix
		f.logs.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, dimension int, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID != "" && databaseID != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, wrapStorage(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID),
		)
	}

	roomRepo := newRoomRepository(client)
	accountRepo := newAccountRepository(client)
	roomRepo.accounts = accountRepo

	f := &Firestore{
		client:       client,
		memory:       newMemoryRepository(client, dimension),
		room:         roomRepo,
		account:      accountRepo,
		relationship: newRelationshipRepository(client, roomRepo),
		goal:         newGoalRepository(client),
		cache:        newCacheRepository(client),
		logs:         newLogRepository(client),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// MemoriesCollectionName returns the dimension-qualified collection name
// used for memory documents. The migrate command needs it to build the
// vector index.
func MemoriesCollectionName(prefix string, dimension int) string {
	return fmt.Sprintf("%smemories_%d", prefix, dimension)
}

func (f *Firestore) Memory() interfaces.MemoryRepository {
	return f.memory
}

func (f *Firestore) Room() interfaces.RoomRepository {
	return f.room
}

func (f *Firestore) Account() interfaces.AccountRepository {
	return f.account
}

func (f *Firestore) Relationship() interfaces.RelationshipRepository {
	return f.relationship
}

func (f *Firestore) Goal() interfaces.GoalRepository {
	return f.goal
}

func (f *Firestore) Cache() interfaces.CacheRepository {
	return f.cache
}

func (f *Firestore) Log(ctx context.Context, entry *model.LogEntry) error {
	return f.logs.append(ctx, entry)
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
