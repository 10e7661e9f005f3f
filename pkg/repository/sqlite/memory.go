package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/m-mizutani/goerr/v2"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

const (
	defaultMemoryCount = 10
	embeddingScanLimit = 500
)

type memoryRepository struct {
	db        *sql.DB
	dimension int
}

func normalizeKind(kind types.MemoryKind) types.MemoryKind {
	if kind == "" {
		return types.KindMessages
	}
	return kind
}

func marshalJSON(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func marshalEmbedding(embedding []float32) string {
	if len(embedding) == 0 {
		return ""
	}
	return marshalJSON(embedding)
}

func unmarshalEmbedding(raw string) []float32 {
	if raw == "" {
		return nil
	}
	var embedding []float32
	if err := json.Unmarshal([]byte(raw), &embedding); err != nil {
		return nil
	}
	return embedding
}

func (r *memoryRepository) table() string {
	return MemoriesTableName(r.dimension)
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

	id := memory.ID
	if id == "" {
		id = types.NewMemoryID()
	}
	createdAt := memory.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var attachments string
	if len(memory.Content.Attachments) > 0 {
		attachments = marshalJSON(memory.Content.Attachments)
	}
	var metadata string
	if len(memory.Content.Metadata) > 0 {
		metadata = marshalJSON(memory.Content.Metadata)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO `+r.table()+
			` (id, agent_id, room_id, user_id, text, action, in_reply_to, attachments, metadata, embedding, is_unique, kind, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, memory.AgentID, memory.RoomID, memory.UserID,
		memory.Content.Text, memory.Content.Action, memory.Content.InReplyTo,
		attachments, metadata,
		marshalEmbedding(memory.Embedding), boolToInt(memory.Unique),
		normalizeKind(memory.Kind), createdAt)
	if err != nil {
		return wrapStorage(err, "failed to insert memory", goerr.V("memoryID", id))
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const memoryColumns = `id, agent_id, room_id, user_id, text, action, in_reply_to, attachments, metadata, embedding, is_unique, kind, created_at`

func scanMemory(row interface{ Scan(...any) error }) (*model.Memory, error) {
	var m model.Memory
	var attachments, metadata, embedding string
	var isUnique int
	if err := row.Scan(&m.ID, &m.AgentID, &m.RoomID, &m.UserID,
		&m.Content.Text, &m.Content.Action, &m.Content.InReplyTo,
		&attachments, &metadata,
		&embedding, &isUnique, &m.Kind, &m.CreatedAt); err != nil {
		return nil, err
	}
	if attachments != "" {
		if err := json.Unmarshal([]byte(attachments), &m.Content.Attachments); err != nil {
			return nil, err
		}
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &m.Content.Metadata); err != nil {
			return nil, err
		}
	}
	m.Embedding = unmarshalEmbedding(embedding)
	m.Unique = isUnique != 0
	return &m, nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id types.MemoryID) (*model.Memory, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+memoryColumns+` FROM `+r.table()+` WHERE id = ?`, id)

	m, err := scanMemory(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, wrapStorage(err, "failed to get memory", goerr.V("memoryID", id))
	}
	return m, nil
}

func (r *memoryRepository) query(ctx context.Context, where string, args []any, limit int) ([]*model.Memory, error) {
	q := `SELECT ` + memoryColumns + ` FROM ` + r.table() + ` WHERE ` + where + ` ORDER BY created_at DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrapStorage(err, "failed to query memories")
	}
	defer rows.Close()

	memories := make([]*model.Memory, 0)
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, wrapStorage(err, "failed to scan memory row")
		}
		memories = append(memories, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage(err, "failed to iterate memory rows")
	}
	return memories, nil
}

func (r *memoryRepository) GetMemories(ctx context.Context, q interfaces.MemoryQuery) ([]*model.Memory, error) {
	count := q.Count
	if count <= 0 {
		count = defaultMemoryCount
	}

	where := `room_id = ? AND kind = ?`
	args := []any{q.RoomID, normalizeKind(q.Kind)}
	if q.AgentID != "" {
		where += ` AND agent_id = ?`
		args = append(args, q.AgentID)
	}
	if q.Unique {
		where += ` AND is_unique = 1`
	}
	return r.query(ctx, where, args, count)
}

func (r *memoryRepository) SearchByEmbedding(ctx context.Context, embedding []float32, q interfaces.SearchQuery) ([]*model.Memory, error) {
	if len(embedding) == 0 {
		return []*model.Memory{}, nil
	}

	where := `room_id = ? AND kind = ? AND embedding != ''`
	args := []any{q.RoomID, normalizeKind(q.Kind)}
	if q.AgentID != "" {
		where += ` AND agent_id = ?`
		args = append(args, q.AgentID)
	}
	if q.Unique {
		where += ` AND is_unique = 1`
	}

	candidates, err := r.query(ctx, where, args, 0)
	if err != nil {
		return nil, err
	}

	type scored struct {
		memory *model.Memory
		score  float64
	}
	var matched []scored
	for _, m := range candidates {
		s := cosineSimilarity(embedding, m.Embedding)
		if s < q.MatchThreshold {
			continue
		}
		matched = append(matched, scored{memory: m, score: s})
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].score > matched[j].score
	})

	limit := q.MatchCount
	if limit <= 0 || limit > len(matched) {
		limit = len(matched)
	}
	result := make([]*model.Memory, limit)
	for i := 0; i < limit; i++ {
		result[i] = matched[i].memory
	}
	return result, nil
}

func (r *memoryRepository) Count(ctx context.Context, roomID types.RoomID, unique bool, kind types.MemoryKind) (int, error) {
	q := `SELECT COUNT(*) FROM ` + r.table() + ` WHERE room_id = ? AND kind = ?`
	args := []any{roomID, normalizeKind(kind)}
	if unique {
		q += ` AND is_unique = 1`
	}

	var count int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&count); err != nil {
		return 0, wrapStorage(err, "failed to count memories", goerr.V("roomID", roomID))
	}
	return count, nil
}

func (r *memoryRepository) Remove(ctx context.Context, id types.MemoryID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+r.table()+` WHERE id = ?`, id); err != nil {
		return wrapStorage(err, "failed to delete memory", goerr.V("memoryID", id))
	}
	return nil
}

func (r *memoryRepository) RemoveAll(ctx context.Context, roomID types.RoomID, kind types.MemoryKind) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM `+r.table()+` WHERE room_id = ? AND kind = ?`,
		roomID, normalizeKind(kind))
	if err != nil {
		return wrapStorage(err, "failed to delete memories", goerr.V("roomID", roomID))
	}
	return nil
}

func (r *memoryRepository) GetCachedEmbeddings(ctx context.Context, kind types.MemoryKind, input string, count, threshold int) ([]model.EmbeddingMatch, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT text, embedding FROM `+r.table()+
			` WHERE kind = ? AND embedding != '' ORDER BY created_at DESC LIMIT ?`,
		normalizeKind(kind), embeddingScanLimit)
	if err != nil {
		return nil, wrapStorage(err, "failed to scan memories for cached embeddings")
	}
	defer rows.Close()

	var matches []model.EmbeddingMatch
	for rows.Next() {
		var text, raw string
		if err := rows.Scan(&text, &raw); err != nil {
			return nil, wrapStorage(err, "failed to scan embedding row")
		}
		if text == "" {
			continue
		}
		dist := levenshtein.ComputeDistance(input, text)
		if dist > threshold {
			continue
		}
		embedding := unmarshalEmbedding(raw)
		if len(embedding) == 0 {
			continue
		}
		matches = append(matches, model.EmbeddingMatch{Embedding: embedding, Score: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage(err, "failed to iterate embedding rows")
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
