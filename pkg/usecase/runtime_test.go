package usecase_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/cache"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/repository/memory"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/usecase"
)

type mockLLMSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockLLMSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
}

func (s *mockLLMSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return s.GenerateStream(ctx, input...)
}

func (s *mockLLMSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.generateContentFn != nil {
		return s.generateContentFn(ctx, input...)
	}
	return &gollem.Response{Texts: []string{"ok"}}, nil
}

func (s *mockLLMSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockLLMSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockLLMSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockLLMSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

type mockLLMClient struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
	generations       atomic.Int32
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return &mockLLMSession{
		generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			c.generations.Add(1)
			if c.generateContentFn != nil {
				return c.generateContentFn(ctx, input...)
			}
			return &gollem.Response{Texts: []string{"ok"}}, nil
		},
	}, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	out := make([][]float64, len(input))
	for i := range input {
		out[i] = []float64{0.1, 0.2, 0.3}
	}
	return out, nil
}

func promptText(input ...gollem.Input) string {
	if len(input) == 0 {
		return ""
	}
	if text, ok := input[0].(gollem.Text); ok {
		return string(text)
	}
	return ""
}

// scriptedLLM answers the should-respond gate with decision and the
// message handler with a fixed JSON reply.
func scriptedLLM(decision, replyText string) *mockLLMClient {
	return &mockLLMClient{
		generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			p := promptText(input...)
			switch {
			case strings.Contains(p, "The available options are [RESPOND]"):
				return &gollem.Response{Texts: []string{decision}}, nil
			case strings.Contains(p, "Respond with only a YES or a NO."):
				return &gollem.Response{Texts: []string{"NO"}}, nil
			default:
				return &gollem.Response{Texts: []string{
					"```json\n{\"user\": \"tester\", \"text\": \"" + replyText + "\", \"action\": \"NONE\"}\n```",
				}}, nil
			}
		},
	}
}

func newTestRuntime(t *testing.T, llm gollem.LLMClient, opts ...usecase.Option) (*usecase.Runtime, *memory.Repository) {
	t.Helper()
	repo := memory.New(3)
	character := &model.Character{
		ID:   "agent-1",
		Name: "Thera",
		Bio:  []string{"a helpful research assistant"},
	}
	rt, err := usecase.New(repo, llm, character, 3, opts...)
	gt.NoError(t, err).Required()
	return rt, repo
}

func inbound(id, text string) *model.Memory {
	return &model.Memory{
		ID:      types.MemoryID(id),
		RoomID:  "room-1",
		UserID:  "user-1",
		Content: model.Content{Text: text},
	}
}

// waitForMessages polls until the room holds want message rows; outbound
// persistence is asynchronous.
func waitForMessages(t *testing.T, repo *memory.Repository, want int) []*model.Memory {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		memories, err := repo.Memory().GetMemories(context.Background(), interfaces.MemoryQuery{
			RoomID: "room-1",
			Count:  100,
		})
		gt.NoError(t, err)
		if len(memories) >= want {
			return memories
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d messages, got %d", want, len(memories))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandleMessageRespond(t *testing.T) {
	ctx := context.Background()
	llm := scriptedLLM("[RESPOND]", "happy to help with that")
	rt, repo := newTestRuntime(t, llm)

	msg := inbound("msg-1", "can you summarize yesterday's discussion")
	content, err := rt.HandleMessage(ctx, msg)
	gt.NoError(t, err).Required()
	gt.Value(t, content).NotNil()
	gt.Value(t, content.Text).Equal("happy to help with that")
	gt.Value(t, content.InReplyTo).Equal(msg.ID)

	// inbound + outbound both end up in the room
	memories := waitForMessages(t, repo, 2)
	var agentTexts []string
	for _, m := range memories {
		if m.UserID == rt.AgentID() {
			agentTexts = append(agentTexts, m.Content.Text)
		}
	}
	gt.Value(t, agentTexts).Equal([]string{"happy to help with that"})

	// connection rows exist
	actors, err := repo.Room().ActorsForRoom(ctx, "room-1")
	gt.NoError(t, err)
	gt.Value(t, len(actors)).Equal(2)

	rel, err := repo.Relationship().Get(ctx, "user-1", rt.AgentID())
	gt.NoError(t, err)
	gt.Value(t, rel).NotNil()
}

func TestHandleMessageIgnore(t *testing.T) {
	ctx := context.Background()
	llm := scriptedLLM("[IGNORE]", "should never be generated")
	rt, repo := newTestRuntime(t, llm)

	content, err := rt.HandleMessage(ctx, inbound("msg-1", "ok bye"))
	gt.NoError(t, err)
	gt.Nil(t, content)

	// The inbound message is still recorded
	memories := waitForMessages(t, repo, 1)
	gt.Value(t, memories[0].Content.Text).Equal("ok bye")
}

func TestHandleMessageStopMutes(t *testing.T) {
	ctx := context.Background()
	llm := scriptedLLM("[STOP]", "should never be generated")
	rt, repo := newTestRuntime(t, llm)

	content, err := rt.HandleMessage(ctx, inbound("msg-1", "stop responding in this chat"))
	gt.NoError(t, err)
	gt.Nil(t, content)

	st, err := repo.Room().ParticipantUserState(ctx, "room-1", rt.AgentID())
	gt.NoError(t, err)
	gt.Value(t, st).Equal(types.UserStateMuted)

	// Muted: the next message is stored but never even gated
	before := llm.generations.Load()
	content, err = rt.HandleMessage(ctx, inbound("msg-2", "hello?"))
	gt.NoError(t, err)
	gt.Nil(t, content)
	gt.Value(t, llm.generations.Load()).Equal(before)
}

func TestHandleMessageBlankInput(t *testing.T) {
	ctx := context.Background()
	rt, _ := newTestRuntime(t, scriptedLLM("[RESPOND]", "hi"))

	content, err := rt.HandleMessage(ctx, inbound("msg-1", "   "))
	gt.NoError(t, err)
	gt.Nil(t, content)

	content, err = rt.HandleMessage(ctx, nil)
	gt.NoError(t, err)
	gt.Nil(t, content)
}

func TestHandleMessageDegradedReply(t *testing.T) {
	ctx := context.Background()
	llm := &mockLLMClient{
		generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			p := promptText(input...)
			if strings.Contains(p, "The available options are [RESPOND]") {
				return &gollem.Response{Texts: []string{"[RESPOND]"}}, nil
			}
			return nil, goerr.New("model exploded")
		},
	}
	rt, _ := newTestRuntime(t, llm)

	content, err := rt.HandleMessage(ctx, inbound("msg-1", "tell me something"))
	gt.NoError(t, err)
	gt.Value(t, content).NotNil()
	gt.True(t, strings.Contains(content.Text, "having trouble"))
}

func TestHandleMessageDuplicateDelivery(t *testing.T) {
	ctx := context.Background()
	llm := scriptedLLM("[RESPOND]", "only once")
	repo := memory.New(3)
	cm, err := cache.New("agent-1", repo.Cache())
	gt.NoError(t, err).Required()
	t.Cleanup(cm.Close)

	character := &model.Character{ID: "agent-1", Name: "Thera"}
	rt, err := usecase.New(repo, llm, character, 3, usecase.WithCache(cm))
	gt.NoError(t, err).Required()

	content, err := rt.HandleMessage(ctx, inbound("msg-1", "hello there"))
	gt.NoError(t, err)
	gt.Value(t, content).NotNil()
	after := llm.generations.Load()

	// Same delivery again: dropped before any model call
	content, err = rt.HandleMessage(ctx, inbound("msg-1", "hello there"))
	gt.NoError(t, err)
	gt.Nil(t, content)
	gt.Value(t, llm.generations.Load()).Equal(after)
}

func TestHandleMessageSerializesPerRoom(t *testing.T) {
	ctx := context.Background()

	var inFlight atomic.Int32
	llm := &mockLLMClient{
		generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			if !inFlight.CompareAndSwap(0, 1) {
				t.Error("concurrent generation in the same room")
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Store(0)

			p := promptText(input...)
			if strings.Contains(p, "The available options are [RESPOND]") {
				return &gollem.Response{Texts: []string{"[RESPOND]"}}, nil
			}
			return &gollem.Response{Texts: []string{`{"user": "t", "text": "serial", "action": "NONE"}`}}, nil
		},
	}
	rt, _ := newTestRuntime(t, llm)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := rt.HandleMessage(ctx, inbound(types.DeterministicID(string(rune('a'+n))), "message"))
			gt.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

func TestComposeStateSections(t *testing.T) {
	ctx := context.Background()
	rt, repo := newTestRuntime(t, scriptedLLM("[RESPOND]", "hi"))

	gt.NoError(t, repo.Account().Create(ctx, &model.Account{ID: "user-1", Name: "Ada"}))
	roomID, err := repo.Room().Create(ctx, "room-1")
	gt.NoError(t, err)
	gt.NoError(t, repo.Room().AddParticipant(ctx, "user-1", roomID))
	gt.NoError(t, repo.Goal().Create(ctx, &model.Goal{
		RoomID: roomID,
		Name:   "index the archive",
		Objectives: []model.Objective{
			{Description: "collect documents", Completed: true},
			{Description: "build embeddings"},
		},
	}))

	state, err := rt.ComposeState(ctx, inbound("msg-1", "how is the archive going"))
	gt.NoError(t, err).Required()
	gt.Value(t, state.AgentName).Equal("Thera")
	gt.Value(t, state.SenderName).Equal("Ada")
	gt.True(t, strings.Contains(state.Goals, "index the archive"))
	gt.True(t, strings.Contains(state.Goals, "[x] collect documents"))
	gt.True(t, strings.Contains(state.ActionNames, "CONTINUE"))
	gt.True(t, strings.Contains(state.Actions, "- IGNORE:"))
	gt.False(t, strings.Contains(state.ActionExamples, "{{user1}}"))
}

func TestComposeStateProviders(t *testing.T) {
	ctx := context.Background()
	provider := interfaces.ProviderFunc(func(ctx context.Context, message *model.Memory, state *model.State) (string, error) {
		return "It is currently 14:00 UTC.", nil
	})
	failing := interfaces.ProviderFunc(func(ctx context.Context, message *model.Memory, state *model.State) (string, error) {
		return "", goerr.New("provider offline")
	})
	rt, _ := newTestRuntime(t, scriptedLLM("[RESPOND]", "hi"), usecase.WithProviders(provider, failing))

	state, err := rt.ComposeState(ctx, inbound("msg-1", "what time is it"))
	gt.NoError(t, err).Required()
	gt.Value(t, state.Providers).Equal("It is currently 14:00 UTC.")
}
