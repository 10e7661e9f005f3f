package firestore

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/agnivade/levenshtein"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

const (
	defaultMemoryCount = 10
	// embeddingScanLimit bounds the candidate scan for lexical embedding
	// reuse. The collection is ordered newest first, so recent content
	// is preferred.
	embeddingScanLimit = 500
)

// memoryDoc is the Firestore document representation of model.Memory.
// Embedding is stored as firestore.Vector32 for FindNearest vector search.
type memoryDoc struct {
	ID        types.MemoryID     `firestore:"ID"`
	AgentID   types.UserID       `firestore:"AgentID"`
	RoomID    types.RoomID       `firestore:"RoomID"`
	UserID    types.UserID       `firestore:"UserID"`
	Text      string             `firestore:"Text"`
	Action      string             `firestore:"Action,omitempty"`
	InReplyTo   types.MemoryID     `firestore:"InReplyTo,omitempty"`
	Attachments []model.Attachment `firestore:"Attachments,omitempty"`
	Metadata    map[string]any     `firestore:"Metadata,omitempty"`
	Embedding   firestore.Vector32 `firestore:"Embedding,omitempty"`
	Unique    bool               `firestore:"Unique"`
	Kind      types.MemoryKind   `firestore:"Kind"`
	CreatedAt time.Time          `firestore:"CreatedAt"`
}

func toMemoryDoc(m *model.Memory) *memoryDoc {
	doc := &memoryDoc{
		ID:        m.ID,
		AgentID:   m.AgentID,
		RoomID:    m.RoomID,
		UserID:    m.UserID,
		Text:        m.Content.Text,
		Action:      m.Content.Action,
		InReplyTo:   m.Content.InReplyTo,
		Attachments: m.Content.Attachments,
		Metadata:    m.Content.Metadata,
		Unique:      m.Unique,
		Kind:        m.Kind,
		CreatedAt:   m.CreatedAt,
	}
	if len(m.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(m.Embedding)
	}
	return doc
}

func fromMemoryDoc(d *memoryDoc) *model.Memory {
	m := &model.Memory{
		ID:      d.ID,
		AgentID: d.AgentID,
		RoomID:  d.RoomID,
		UserID:  d.UserID,
		Content: model.Content{
			Text:        d.Text,
			Action:      d.Action,
			InReplyTo:   d.InReplyTo,
			Attachments: d.Attachments,
			Metadata:    d.Metadata,
		},
		Unique:    d.Unique,
		Kind:      d.Kind,
		CreatedAt: d.CreatedAt,
	}
	if len(d.Embedding) > 0 {
		m.Embedding = []float32(d.Embedding)
	}
	return m
}

type memoryRepository struct {
	client           *firestore.Client
	dimension        int
	collectionPrefix string
}

func newMemoryRepository(client *firestore.Client, dimension int) *memoryRepository {
	return &memoryRepository{client: client, dimension: dimension}
}

func (r *memoryRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(MemoriesCollectionName(r.collectionPrefix, r.dimension))
}

func normalizeKind(kind types.MemoryKind) types.MemoryKind {
	if kind == "" {
		return types.KindMessages
	}
	return kind
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

	m := *memory
	if m.ID == "" {
		m.ID = types.NewMemoryID()
	}
	m.Kind = normalizeKind(m.Kind)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	if _, err := r.collection().Doc(string(m.ID)).Set(ctx, toMemoryDoc(&m)); err != nil {
		return wrapStorage(err, "failed to create memory", goerr.V("memoryID", m.ID))
	}
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id types.MemoryID) (*model.Memory, error) {
	doc, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, wrapStorage(err, "failed to get memory", goerr.V("memoryID", id))
	}

	var d memoryDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, wrapStorage(err, "failed to unmarshal memory", goerr.V("memoryID", id))
	}
	return fromMemoryDoc(&d), nil
}

func (r *memoryRepository) GetMemories(ctx context.Context, q interfaces.MemoryQuery) ([]*model.Memory, error) {
	count := q.Count
	if count <= 0 {
		count = defaultMemoryCount
	}

	query := r.collection().
		Where("RoomID", "==", q.RoomID).
		Where("Kind", "==", normalizeKind(q.Kind))
	if q.AgentID != "" {
		query = query.Where("AgentID", "==", q.AgentID)
	}
	if q.Unique {
		query = query.Where("Unique", "==", true)
	}
	query = query.OrderBy("CreatedAt", firestore.Desc).Limit(count)

	return r.collect(query.Documents(ctx))
}

func (r *memoryRepository) SearchByEmbedding(ctx context.Context, embedding []float32, q interfaces.SearchQuery) ([]*model.Memory, error) {
	if len(embedding) == 0 {
		return []*model.Memory{}, nil
	}

	limit := q.MatchCount
	if limit <= 0 {
		limit = defaultMemoryCount
	}

	query := r.collection().
		Where("RoomID", "==", q.RoomID).
		Where("Kind", "==", normalizeKind(q.Kind))
	if q.AgentID != "" {
		query = query.Where("AgentID", "==", q.AgentID)
	}
	if q.Unique {
		query = query.Where("Unique", "==", true)
	}

	vq := query.FindNearest("Embedding", firestore.Vector32(embedding), limit, firestore.DistanceMeasureCosine, nil)

	candidates, err := r.collect(vq.Documents(ctx))
	if err != nil {
		return nil, wrapStorage(err, "failed to run memory vector search")
	}

	// FindNearest has no server-side threshold, so filter here
	result := make([]*model.Memory, 0, len(candidates))
	for _, m := range candidates {
		if cosineSimilarity(embedding, m.Embedding) >= q.MatchThreshold {
			result = append(result, m)
		}
	}
	return result, nil
}

func (r *memoryRepository) Count(ctx context.Context, roomID types.RoomID, unique bool, kind types.MemoryKind) (int, error) {
	query := r.collection().
		Where("RoomID", "==", roomID).
		Where("Kind", "==", normalizeKind(kind))
	if unique {
		query = query.Where("Unique", "==", true)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		_, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, wrapStorage(err, "failed to count memories", goerr.V("roomID", roomID))
		}
		count++
	}
	return count, nil
}

func (r *memoryRepository) Remove(ctx context.Context, id types.MemoryID) error {
	if _, err := r.collection().Doc(string(id)).Delete(ctx); err != nil {
		return wrapStorage(err, "failed to delete memory", goerr.V("memoryID", id))
	}
	return nil
}

func (r *memoryRepository) RemoveAll(ctx context.Context, roomID types.RoomID, kind types.MemoryKind) error {
	iter := r.collection().
		Where("RoomID", "==", roomID).
		Where("Kind", "==", normalizeKind(kind)).
		Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return wrapStorage(err, "failed to iterate memories for removal", goerr.V("roomID", roomID))
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return wrapStorage(err, "failed to delete memory", goerr.V("memoryID", doc.Ref.ID))
		}
	}
	return nil
}

func (r *memoryRepository) GetCachedEmbeddings(ctx context.Context, kind types.MemoryKind, input string, count, threshold int) ([]model.EmbeddingMatch, error) {
	iter := r.collection().
		Where("Kind", "==", normalizeKind(kind)).
		OrderBy("CreatedAt", firestore.Desc).
		Limit(embeddingScanLimit).
		Documents(ctx)
	defer iter.Stop()

	var matches []model.EmbeddingMatch
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, wrapStorage(err, "failed to scan memories for cached embeddings")
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, wrapStorage(err, "failed to unmarshal memory for cached embeddings")
		}
		if len(d.Embedding) == 0 || d.Text == "" {
			continue
		}

		dist := levenshtein.ComputeDistance(input, d.Text)
		if dist > threshold {
			continue
		}
		matches = append(matches, model.EmbeddingMatch{
			Embedding: append([]float32(nil), d.Embedding...),
			Score:     dist,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score < matches[j].Score
	})
	if count > 0 && count < len(matches) {
		matches = matches[:count]
	}
	return matches, nil
}

func (r *memoryRepository) collect(iter *firestore.DocumentIterator) ([]*model.Memory, error) {
	defer iter.Stop()

	memories := make([]*model.Memory, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			// A missing index or collection means no data yet
			if status.Code(err) == codes.NotFound {
				return memories, nil
			}
			return nil, wrapStorage(err, "failed to iterate memories")
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, wrapStorage(err, "failed to unmarshal memory")
		}
		memories = append(memories, fromMemoryDoc(&d))
	}
	return memories, nil
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
