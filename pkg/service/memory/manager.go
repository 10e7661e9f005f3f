// Package memory provides the memory manager: embedding lifecycle and
// insert-time deduplication on top of the memory repository.
package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"golang.org/x/sync/singleflight"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/breaker"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/logging"
)

const (
	// Insert-time deduplication: a new memory whose nearest neighbor in
	// the same scope scores at or above this similarity is marked
	// non-unique.
	dedupThreshold  = 0.95
	dedupMatchCount = 1

	// Lexical embedding reuse: skip the provider call when stored content
	// is within this edit distance of the input.
	embeddingCacheThreshold = 2
	embeddingCacheCount     = 10
)

// Manager owns one memory kind for one agent. It fills embeddings,
// deduplicates on insert and answers retrieval queries.
type Manager struct {
	repo      interfaces.MemoryRepository
	llm       gollem.LLMClient
	brk       *breaker.Breaker
	kind      types.MemoryKind
	dimension int
	group     singleflight.Group
}

type Option func(*Manager)

// WithBreaker shares a circuit breaker with other provider callers.
func WithBreaker(b *breaker.Breaker) Option {
	return func(m *Manager) {
		m.brk = b
	}
}

func New(repo interfaces.MemoryRepository, llm gollem.LLMClient, kind types.MemoryKind, dimension int, opts ...Option) *Manager {
	if kind == "" {
		kind = types.KindMessages
	}
	m := &Manager{
		repo:      repo,
		llm:       llm,
		kind:      kind,
		dimension: dimension,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.brk == nil {
		m.brk = breaker.New()
	}
	return m
}

// Kind returns the memory kind this manager serves.
func (m *Manager) Kind() types.MemoryKind {
	return m.kind
}

// AddEmbedding fills memory.Embedding when it is empty. Stored
// embeddings for near-identical text are reused before calling the
// provider; concurrent requests for the same text share one call.
func (m *Manager) AddEmbedding(ctx context.Context, memory *model.Memory) error {
	if len(memory.Embedding) > 0 {
		return nil
	}
	if !memory.HasText() {
		return goerr.Wrap(types.ErrValidation, "cannot embed memory without text", goerr.V("memoryID", memory.ID))
	}

	embedding, err := m.Embed(ctx, memory.Content.Text)
	if err != nil {
		return err
	}
	memory.Embedding = embedding
	return nil
}

// Embed returns an embedding for text, from the lexical cache when
// possible, otherwise from the provider under the circuit breaker.
func (m *Manager) Embed(ctx context.Context, text string) ([]float32, error) {
	cached, err := m.repo.GetCachedEmbeddings(ctx, m.kind, text, embeddingCacheCount, embeddingCacheThreshold)
	if err != nil {
		logging.From(ctx).Warn("embedding cache lookup failed, calling provider", "error", err)
	} else if len(cached) > 0 {
		return cached[0].Embedding, nil
	}

	v, err, _ := m.group.Do(text, func() (any, error) {
		var embedding []float32
		genErr := m.brk.Do(ctx, func(ctx context.Context) error {
			embeddings, err := m.llm.GenerateEmbedding(ctx, m.dimension, []string{text})
			if err != nil {
				return goerr.Wrap(types.ErrProvider, "failed to generate embedding", goerr.V("cause", err.Error()))
			}
			if len(embeddings) == 0 || len(embeddings[0]) == 0 {
				return goerr.Wrap(types.ErrProvider, "provider returned empty embedding")
			}
			embedding = make([]float32, len(embeddings[0]))
			for i, f := range embeddings[0] {
				embedding[i] = float32(f)
			}
			return nil
		})
		return embedding, genErr
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Create persists a memory, deciding its uniqueness first. unique=true
// is advisory: the memory is trusted to be novel and the similarity
// probe is skipped. Creating an already-stored ID is a no-op.
func (m *Manager) Create(ctx context.Context, memory *model.Memory, unique bool) error {
	if memory.ID != "" {
		existing, err := m.repo.GetByID(ctx, memory.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
	}

	memory.Kind = m.kind
	if unique || len(memory.Embedding) == 0 {
		memory.Unique = true
	} else {
		similar, err := m.repo.SearchByEmbedding(ctx, memory.Embedding, interfaces.SearchQuery{
			RoomID:         memory.RoomID,
			AgentID:        memory.AgentID,
			Kind:           m.kind,
			MatchThreshold: dedupThreshold,
			MatchCount:     dedupMatchCount,
			Unique:         true,
		})
		if err != nil {
			return err
		}
		memory.Unique = len(similar) == 0
	}

	return m.repo.Create(ctx, memory)
}

// GetRecent returns the newest memories for a room, newest first.
func (m *Manager) GetRecent(ctx context.Context, roomID types.RoomID, agentID types.UserID, count int) ([]*model.Memory, error) {
	return m.repo.GetMemories(ctx, interfaces.MemoryQuery{
		RoomID:  roomID,
		AgentID: agentID,
		Kind:    m.kind,
		Count:   count,
	})
}

// Search embeds the query text and runs similarity search in the given
// room scope.
func (m *Manager) Search(ctx context.Context, text string, q interfaces.SearchQuery) ([]*model.Memory, error) {
	embedding, err := m.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	q.Kind = m.kind
	return m.repo.SearchByEmbedding(ctx, embedding, q)
}

func (m *Manager) GetByID(ctx context.Context, id types.MemoryID) (*model.Memory, error) {
	return m.repo.GetByID(ctx, id)
}

func (m *Manager) Count(ctx context.Context, roomID types.RoomID, unique bool) (int, error) {
	return m.repo.Count(ctx, roomID, unique, m.kind)
}

func (m *Manager) RemoveAll(ctx context.Context, roomID types.RoomID) error {
	return m.repo.RemoveAll(ctx, roomID, m.kind)
}
