// Package memory provides an in-memory Repository implementation for
// tests and local development.
package memory

import (
	"context"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
)

// Repository is the in-memory aggregate. All entity stores share no
// state except the relationship store, which needs the room store to
// place new friends into a shared room.
type Repository struct {
	memory       *memoryRepository
	room         *roomRepository
	account      *accountRepository
	relationship *relationshipRepository
	goal         *goalRepository
	cache        *cacheRepository
	logs         *logStore
}

var _ interfaces.Repository = &Repository{}

// New creates an empty repository. dimension is the embedding width the
// memory store accepts; zero disables dimension validation.
func New(dimension int) *Repository {
	roomRepo := newRoomRepository()
	accountRepo := newAccountRepository()
	roomRepo.accounts = accountRepo

	return &Repository{
		memory:       newMemoryRepository(dimension),
		room:         roomRepo,
		account:      accountRepo,
		relationship: newRelationshipRepository(roomRepo),
		goal:         newGoalRepository(),
		cache:        newCacheRepository(),
		logs:         newLogStore(),
	}
}

func (r *Repository) Memory() interfaces.MemoryRepository {
	return r.memory
}

func (r *Repository) Room() interfaces.RoomRepository {
	return r.room
}

func (r *Repository) Account() interfaces.AccountRepository {
	return r.account
}

func (r *Repository) Relationship() interfaces.RelationshipRepository {
	return r.relationship
}

func (r *Repository) Goal() interfaces.GoalRepository {
	return r.goal
}

func (r *Repository) Cache() interfaces.CacheRepository {
	return r.cache
}

func (r *Repository) Log(ctx context.Context, entry *model.LogEntry) error {
	return r.logs.append(entry)
}

// Logs returns all appended audit records. Intended for tests.
func (r *Repository) Logs() []*model.LogEntry {
	return r.logs.all()
}

func (r *Repository) Close() error {
	return nil
}
