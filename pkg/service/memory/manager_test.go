package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
	memrepo "github.com/0xhatsume/tg-agentic-rag-dash/pkg/repository/memory"
	svcmemory "github.com/0xhatsume/tg-agentic-rag-dash/pkg/service/memory"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/breaker"
)

// mockLLMClient is a mock gollem LLMClient for testing
type mockLLMClient struct {
	generateEmbeddingFn func(ctx context.Context, dimension int, input []string) ([][]float64, error)
	embeddingCalls      int
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return nil, errors.New("not implemented")
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	c.embeddingCalls++
	if c.generateEmbeddingFn != nil {
		return c.generateEmbeddingFn(ctx, dimension, input)
	}
	embedding := make([]float64, dimension)
	embedding[0] = 1
	return [][]float64{embedding}, nil
}

func TestAddEmbedding(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New(3)
	llm := &mockLLMClient{}
	mgr := svcmemory.New(repo.Memory(), llm, types.KindMessages, 3)

	mem := &model.Memory{
		RoomID:  types.NewRoomID(),
		Content: model.Content{Text: "hello there"},
	}
	gt.NoError(t, mgr.AddEmbedding(ctx, mem))
	gt.Value(t, len(mem.Embedding)).Equal(3)
	gt.Value(t, llm.embeddingCalls).Equal(1)

	// A memory that already has an embedding is left alone
	gt.NoError(t, mgr.AddEmbedding(ctx, mem))
	gt.Value(t, llm.embeddingCalls).Equal(1)
}

func TestAddEmbeddingReusesStoredVector(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New(3)
	llm := &mockLLMClient{}
	mgr := svcmemory.New(repo.Memory(), llm, types.KindMessages, 3)

	stored := &model.Memory{
		RoomID:    types.NewRoomID(),
		Content:   model.Content{Text: "hello there"},
		Embedding: []float32{0.5, 0.5, 0},
	}
	gt.NoError(t, repo.Memory().Create(ctx, stored))

	// Near-identical text reuses the stored embedding without a provider
	// call
	mem := &model.Memory{
		RoomID:  types.NewRoomID(),
		Content: model.Content{Text: "hello thera"},
	}
	gt.NoError(t, mgr.AddEmbedding(ctx, mem))
	gt.Value(t, mem.Embedding).Equal([]float32{0.5, 0.5, 0})
	gt.Value(t, llm.embeddingCalls).Equal(0)
}

func TestAddEmbeddingRequiresText(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New(3)
	mgr := svcmemory.New(repo.Memory(), &mockLLMClient{}, types.KindMessages, 3)

	err := mgr.AddEmbedding(ctx, &model.Memory{RoomID: types.NewRoomID()})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrValidation))
}

func TestEmbedProviderFailure(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New(3)
	llm := &mockLLMClient{
		generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
			return nil, errors.New("provider down")
		},
	}
	mgr := svcmemory.New(repo.Memory(), llm, types.KindMessages, 3,
		svcmemory.WithBreaker(breaker.New(breaker.WithFailureThreshold(1))))

	_, err := mgr.Embed(ctx, "text one")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrProvider))

	// The breaker is now open and rejects without calling the provider
	calls := llm.embeddingCalls
	_, err = mgr.Embed(ctx, "text two")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrCircuitOpen))
	gt.Value(t, llm.embeddingCalls).Equal(calls)
}

func TestCreateMarksDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New(3)
	mgr := svcmemory.New(repo.Memory(), &mockLLMClient{}, types.KindMessages, 3)
	roomID := types.NewRoomID()
	agentID := types.NewUserID()

	first := &model.Memory{
		AgentID:   agentID,
		RoomID:    roomID,
		Content:   model.Content{Text: "the sky is blue"},
		Embedding: []float32{1, 0, 0},
	}
	gt.NoError(t, mgr.Create(ctx, first, false))
	gt.True(t, first.Unique)

	// Nearly identical vector in the same scope is marked non-unique
	duplicate := &model.Memory{
		AgentID:   agentID,
		RoomID:    roomID,
		Content:   model.Content{Text: "the sky is blue today"},
		Embedding: []float32{0.99, 0.01, 0},
	}
	gt.NoError(t, mgr.Create(ctx, duplicate, false))
	gt.False(t, duplicate.Unique)

	// The same vector in a different room stays unique
	elsewhere := &model.Memory{
		AgentID:   agentID,
		RoomID:    types.NewRoomID(),
		Content:   model.Content{Text: "the sky is blue"},
		Embedding: []float32{1, 0, 0},
	}
	gt.NoError(t, mgr.Create(ctx, elsewhere, false))
	gt.True(t, elsewhere.Unique)

	// The advisory flag skips the probe entirely
	trusted := &model.Memory{
		AgentID:   agentID,
		RoomID:    roomID,
		Content:   model.Content{Text: "the sky is blue!"},
		Embedding: []float32{1, 0, 0},
	}
	gt.NoError(t, mgr.Create(ctx, trusted, true))
	gt.True(t, trusted.Unique)
}

func TestCreateExistingIDIsNoop(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New(0)
	mgr := svcmemory.New(repo.Memory(), &mockLLMClient{}, types.KindMessages, 0)
	roomID := types.NewRoomID()

	mem := &model.Memory{
		ID:      types.NewMemoryID(),
		RoomID:  roomID,
		Content: model.Content{Text: "original"},
	}
	gt.NoError(t, mgr.Create(ctx, mem, true))

	again := &model.Memory{
		ID:      mem.ID,
		RoomID:  roomID,
		Content: model.Content{Text: "changed"},
	}
	gt.NoError(t, mgr.Create(ctx, again, true))

	got, err := mgr.GetByID(ctx, mem.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Content.Text).Equal("original")
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New(3)
	llm := &mockLLMClient{
		generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
			return [][]float64{{1, 0, 0}}, nil
		},
	}
	mgr := svcmemory.New(repo.Memory(), llm, types.KindMessages, 3)
	roomID := types.NewRoomID()
	agentID := types.NewUserID()

	gt.NoError(t, mgr.Create(ctx, &model.Memory{
		AgentID:   agentID,
		RoomID:    roomID,
		Content:   model.Content{Text: "vectors are fun"},
		Embedding: []float32{1, 0, 0},
	}, false))

	found, err := mgr.Search(ctx, "completely novel query", interfaces.SearchQuery{
		RoomID:         roomID,
		AgentID:        agentID,
		MatchThreshold: 0.9,
		MatchCount:     5,
	})
	gt.NoError(t, err)
	gt.Value(t, len(found)).Equal(1)
	gt.Value(t, found[0].Content.Text).Equal("vectors are fun")
}
