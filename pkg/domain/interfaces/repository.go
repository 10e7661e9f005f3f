package interfaces

import (
	"context"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
)

// Repository defines the interface for data persistence. Concrete
// implementations: firestore (document store), sqlite (SQL), memory
// (tests and development).
type Repository interface {
	Memory() MemoryRepository
	Room() RoomRepository
	Account() AccountRepository
	Relationship() RelationshipRepository
	Goal() GoalRepository
	Cache() CacheRepository

	// Log appends an audit record of a runtime decision.
	Log(ctx context.Context, entry *model.LogEntry) error

	Close() error
}
