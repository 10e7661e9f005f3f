package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/m-mizutani/goerr/v2"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

const defaultMemoryCount = 10

type memoryRepository struct {
	mu        sync.RWMutex
	dimension int
	// tables maps a memory kind to its rows, mirroring the per-kind
	// table routing of the persistent backends.
	tables map[types.MemoryKind]map[types.MemoryID]*model.Memory
}

func newMemoryRepository(dimension int) *memoryRepository {
	return &memoryRepository{
		dimension: dimension,
		tables:    make(map[types.MemoryKind]map[types.MemoryID]*model.Memory),
	}
}

func normalizeKind(kind types.MemoryKind) types.MemoryKind {
	if kind == "" {
		return types.KindMessages
	}
	return kind
}

func copyMemory(m *model.Memory) *model.Memory {
	copied := *m
	if m.Embedding != nil {
		copied.Embedding = make([]float32, len(m.Embedding))
		copy(copied.Embedding, m.Embedding)
	}
	if m.Content.Attachments != nil {
		copied.Content.Attachments = make([]model.Attachment, len(m.Content.Attachments))
		copy(copied.Content.Attachments, m.Content.Attachments)
	}
	if m.Content.Metadata != nil {
		copied.Content.Metadata = make(map[string]any, len(m.Content.Metadata))
		for k, v := range m.Content.Metadata {
			copied.Content.Metadata[k] = v
		}
	}
	return &copied
}

func (r *memoryRepository) Create(ctx context.Context, memory *model.Memory) error {
	if strings.TrimSpace(memory.Content.Text) == "" {
		return goerr.Wrap(types.ErrValidation, "memory content text is empty", goerr.V("memoryID", memory.ID))
	}
	if r.dimension > 0 && len(memory.Embedding) > 0 && len(memory.Embedding) != r.dimension {
		return goerr.Wrap(types.ErrValidation, "embedding dimension mismatch",
			goerr.V("want", r.dimension),
			goerr.V("got", len(memory.Embedding)),
		)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kind := normalizeKind(memory.Kind)
	if _, ok := r.tables[kind]; !ok {
		r.tables[kind] = make(map[types.MemoryID]*model.Memory)
	}

	created := copyMemory(memory)
	if created.ID == "" {
		created.ID = types.NewMemoryID()
	}
	created.Kind = kind
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}

	r.tables[kind][created.ID] = created
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id types.MemoryID) (*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, table := range r.tables {
		if m, ok := table[id]; ok {
			return copyMemory(m), nil
		}
	}
	return nil, nil
}

func matchQuery(m *model.Memory, roomID types.RoomID, agentID types.UserID, unique bool) bool {
	if m.RoomID != roomID {
		return false
	}
	if agentID != "" && m.AgentID != agentID {
		return false
	}
	if unique && !m.Unique {
		return false
	}
	return true
}

func (r *memoryRepository) GetMemories(ctx context.Context, q interfaces.MemoryQuery) ([]*model.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table, ok := r.tables[normalizeKind(q.Kind)]
	if !ok {
		return []*model.Memory{}, nil
	}

	result := make([]*model.Memory, 0)
	for _, m := range table {
		if matchQuery(m, q.RoomID, q.AgentID, q.Unique) {
			result = append(result, copyMemory(m))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	count := q.Count
	if count <= 0 {
		count = defaultMemoryCount
	}
	if count < len(result) {
		result = result[:count]
	}
	return result, nil
}

func (r *memoryRepository) SearchByEmbedding(ctx context.Context, embedding []float32, q interfaces.SearchQuery) ([]*model.Memory, error) {
	if len(embedding) == 0 {
		return []*model.Memory{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	table, ok := r.tables[normalizeKind(q.Kind)]
	if !ok {
		return []*model.Memory{}, nil
	}

	type scored struct {
		memory *model.Memory
		score  float64
	}

	var candidates []scored
	for _, m := range table {
		if !matchQuery(m, q.RoomID, q.AgentID, q.Unique) {
			continue
		}
		if len(m.Embedding) == 0 {
			continue
		}
		s := cosineSimilarity(embedding, m.Embedding)
		if s < q.MatchThreshold {
			continue
		}
		candidates = append(candidates, scored{memory: copyMemory(m), score: s})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	limit := q.MatchCount
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	result := make([]*model.Memory, limit)
	for i := 0; i < limit; i++ {
		result[i] = candidates[i].memory
	}
	return result, nil
}

func (r *memoryRepository) Count(ctx context.Context, roomID types.RoomID, unique bool, kind types.MemoryKind) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table, ok := r.tables[normalizeKind(kind)]
	if !ok {
		return 0, nil
	}

	count := 0
	for _, m := range table {
		if matchQuery(m, roomID, "", unique) {
			count++
		}
	}
	return count, nil
}

func (r *memoryRepository) Remove(ctx context.Context, id types.MemoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, table := range r.tables {
		delete(table, id)
	}
	return nil
}

func (r *memoryRepository) RemoveAll(ctx context.Context, roomID types.RoomID, kind types.MemoryKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, ok := r.tables[normalizeKind(kind)]
	if !ok {
		return nil
	}
	for id, m := range table {
		if m.RoomID == roomID {
			delete(table, id)
		}
	}
	return nil
}

func (r *memoryRepository) GetCachedEmbeddings(ctx context.Context, kind types.MemoryKind, input string, count, threshold int) ([]model.EmbeddingMatch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table, ok := r.tables[normalizeKind(kind)]
	if !ok {
		return []model.EmbeddingMatch{}, nil
	}

	var matches []model.EmbeddingMatch
	for _, m := range table {
		if len(m.Embedding) == 0 || m.Content.Text == "" {
			continue
		}
		dist := levenshtein.ComputeDistance(input, m.Content.Text)
		if dist > threshold {
			continue
		}
		emb := make([]float32, len(m.Embedding))
		copy(emb, m.Embedding)
		matches = append(matches, model.EmbeddingMatch{Embedding: emb, Score: dist})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score < matches[j].Score
	})

	if count > 0 && count < len(matches) {
		matches = matches[:count]
	}
	return matches, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
