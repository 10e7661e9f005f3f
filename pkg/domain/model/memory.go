package model

import (
	"strings"
	"time"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

// Memory represents a persisted unit of conversational content, owned by
// a (room, agent) pair. Immutable once written except for deletion.
// Unique=false marks a near-duplicate of an earlier memory in the same
// scope; such entries are retained for audit but excluded from result
// sets used for prompting.
type Memory struct {
	ID        types.MemoryID
	AgentID   types.UserID
	RoomID    types.RoomID
	UserID    types.UserID
	Content   Content
	Embedding []float32
	Unique    bool
	Kind      types.MemoryKind
	CreatedAt time.Time
}

// HasText reports whether the memory carries non-blank content.
// Memories without text are never persisted.
func (m *Memory) HasText() bool {
	return strings.TrimSpace(m.Content.Text) != ""
}

// EmbeddingMatch is one result of the text-keyed embedding cache lookup.
// Score is an edit distance against the query text, not a semantic
// similarity.
type EmbeddingMatch struct {
	Embedding []float32
	Score     int
}
