package interfaces

import (
	"context"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

// MemoryQuery selects recent memories for a room, newest first.
type MemoryQuery struct {
	RoomID  types.RoomID
	AgentID types.UserID     // optional; restricts to one agent's scope
	Kind    types.MemoryKind // defaults to messages
	Count   int              // defaults to 10
	Unique  bool             // restrict to unique=true rows
}

// SearchQuery parameterizes vector similarity search.
type SearchQuery struct {
	RoomID         types.RoomID
	AgentID        types.UserID
	Kind           types.MemoryKind
	MatchThreshold float64 // minimum cosine similarity
	MatchCount     int
	Unique         bool
}

// MemoryRepository defines persistence for Memory entries. Storage routes
// by a dimension-qualified table/collection name; one repository instance
// serves exactly one embedding dimension.
//
// Read operations map "no data yet" (missing table, unknown kind, absent
// row) to empty results. Only genuine backend faults return errors.
type MemoryRepository interface {
	// Create persists a memory. Fails with types.ErrValidation when the
	// content text is blank or the embedding dimension does not match the
	// deployment's configured dimension.
	Create(ctx context.Context, memory *model.Memory) error

	// GetByID returns nil without error when the memory does not exist.
	GetByID(ctx context.Context, id types.MemoryID) (*model.Memory, error)

	GetMemories(ctx context.Context, q MemoryQuery) ([]*model.Memory, error)

	// SearchByEmbedding returns memories whose cosine similarity against
	// the query embedding meets the threshold. An empty embedding yields
	// an empty result; similarity search is never attempted on a null
	// vector.
	SearchByEmbedding(ctx context.Context, embedding []float32, q SearchQuery) ([]*model.Memory, error)

	Count(ctx context.Context, roomID types.RoomID, unique bool, kind types.MemoryKind) (int, error)

	Remove(ctx context.Context, id types.MemoryID) error

	RemoveAll(ctx context.Context, roomID types.RoomID, kind types.MemoryKind) error

	// GetCachedEmbeddings finds embeddings stored for content whose text
	// is within threshold edit distance of the input, cheapest matches
	// first. Used to skip recomputing embeddings for near-identical
	// strings; the score is lexical, not semantic.
	GetCachedEmbeddings(ctx context.Context, kind types.MemoryKind, input string, count, threshold int) ([]model.EmbeddingMatch, error)
}
