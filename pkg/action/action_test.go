package action_test

import (
	"context"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/action"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

type mockRuntime struct {
	agentID   types.UserID
	character *model.Character
	recent    []*model.Memory
	recentErr error

	generateFn    func(renderedPrompt string, class types.ModelClass) (string, error)
	generateCalls []types.ModelClass

	composedState *model.State
}

func (m *mockRuntime) AgentID() types.UserID {
	return m.agentID
}

func (m *mockRuntime) Character() *model.Character {
	if m.character != nil {
		return m.character
	}
	return &model.Character{Name: "tester"}
}

func (m *mockRuntime) RecentMessages(ctx context.Context, roomID types.RoomID, count int) ([]*model.Memory, error) {
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	return m.recent, nil
}

func (m *mockRuntime) ComposeState(ctx context.Context, message *model.Memory) (*model.State, error) {
	if m.composedState != nil {
		return m.composedState, nil
	}
	return &model.State{AgentName: "tester"}, nil
}

func (m *mockRuntime) Generate(ctx context.Context, renderedPrompt string, class types.ModelClass) (string, error) {
	m.generateCalls = append(m.generateCalls, class)
	if m.generateFn != nil {
		return m.generateFn(renderedPrompt, class)
	}
	return "", nil
}

func agentMsg(agentID types.UserID, text, actionName string) *model.Memory {
	return &model.Memory{
		ID:      types.MemoryID(types.DeterministicID(text + actionName)),
		RoomID:  "room-1",
		UserID:  agentID,
		AgentID: agentID,
		Content: model.Content{Text: text, Action: actionName},
	}
}

func TestRegistryResolve(t *testing.T) {
	reg := action.NewRegistry(action.NewContinue(), action.NewIgnore(), action.NewNone())

	gt.Value(t, reg.Resolve("CONTINUE").Name()).Equal(action.NameContinue)
	gt.Value(t, reg.Resolve("continue").Name()).Equal(action.NameContinue)
	gt.Value(t, reg.Resolve("elaborate").Name()).Equal(action.NameContinue)
	gt.Value(t, reg.Resolve("STOP_TALKING").Name()).Equal(action.NameIgnore)
	gt.Value(t, reg.Resolve("NO_ACTION").Name()).Equal(action.NameNone)
	gt.Value(t, reg.Resolve("").Name()).Equal(action.NameNone)
	gt.Nil(t, reg.Resolve("LAUNCH_MISSILES"))
}

func TestRegistryNamesAndDescribe(t *testing.T) {
	reg := action.NewRegistry(action.NewNone(), action.NewIgnore())

	gt.Value(t, reg.Names()).Equal([]string{"NONE", "IGNORE"})

	desc := reg.Describe()
	gt.True(t, strings.HasPrefix(desc, "- NONE:"))
	gt.True(t, strings.Contains(desc, "- IGNORE:"))
}

func TestRegistryExamplesText(t *testing.T) {
	reg := action.NewRegistry(action.NewContinue(), action.NewIgnore(), action.NewNone())

	text := reg.ExamplesText(3)
	gt.False(t, text == "")
	// Placeholder tokens must be replaced with concrete names
	gt.False(t, strings.Contains(text, "{{user1}}"))
	gt.False(t, strings.Contains(text, "{{user2}}"))
}

func TestContinueValidate(t *testing.T) {
	ctx := context.Background()
	agentID := types.UserID("agent-1")
	userID := types.UserID("user-1")
	cont := action.NewContinue()
	inbound := agentMsg(agentID, "hey", "")
	inbound.UserID = userID

	t.Run("allows fresh conversation", func(t *testing.T) {
		rt := &mockRuntime{agentID: agentID, recent: []*model.Memory{
			agentMsg(agentID, "sure", action.NameContinue),
			agentMsg(userID, "tell me more", ""),
		}}
		ok, err := cont.Validate(ctx, rt, inbound)
		gt.NoError(t, err)
		gt.True(t, ok)
	})

	t.Run("blocks after consecutive continues", func(t *testing.T) {
		rt := &mockRuntime{agentID: agentID, recent: []*model.Memory{
			agentMsg(agentID, "and another thing", action.NameContinue),
			agentMsg(agentID, "also", action.NameContinue),
			agentMsg(agentID, "one more", action.NameContinue),
			agentMsg(userID, "ok", ""),
		}}
		ok, err := cont.Validate(ctx, rt, inbound)
		gt.NoError(t, err)
		gt.False(t, ok)
	})

	t.Run("user message breaks the run", func(t *testing.T) {
		rt := &mockRuntime{agentID: agentID, recent: []*model.Memory{
			agentMsg(agentID, "and another thing", action.NameContinue),
			agentMsg(agentID, "also", action.NameContinue),
			agentMsg(agentID, "first reply", ""),
		}}
		ok, err := cont.Validate(ctx, rt, inbound)
		gt.NoError(t, err)
		gt.True(t, ok)
	})
}

func TestContinueHandleEarlyReturn(t *testing.T) {
	ctx := context.Background()
	agentID := types.UserID("agent-1")
	cont := action.NewContinue()

	for _, text := range []string{"what do you think?", "no way!"} {
		rt := &mockRuntime{agentID: agentID}
		msg := agentMsg(agentID, text, "")

		var delivered []*model.Content
		err := cont.Handle(ctx, rt, msg, &model.State{}, func(ctx context.Context, c *model.Content) error {
			delivered = append(delivered, c)
			return nil
		})
		gt.NoError(t, err)
		gt.Value(t, len(delivered)).Equal(0)
		gt.Value(t, len(rt.generateCalls)).Equal(0)
	}
}

func TestContinueHandleGateDeclines(t *testing.T) {
	ctx := context.Background()
	agentID := types.UserID("agent-1")
	cont := action.NewContinue()

	rt := &mockRuntime{
		agentID: agentID,
		generateFn: func(renderedPrompt string, class types.ModelClass) (string, error) {
			return "NO", nil
		},
	}
	msg := agentMsg(agentID, "thinking about the trip", "")

	var delivered []*model.Content
	err := cont.Handle(ctx, rt, msg, &model.State{}, func(ctx context.Context, c *model.Content) error {
		delivered = append(delivered, c)
		return nil
	})
	gt.NoError(t, err)
	gt.Value(t, len(delivered)).Equal(0)
	gt.Value(t, rt.generateCalls).Equal([]types.ModelClass{types.ModelClassSmall})
}

func TestContinueHandleGenerates(t *testing.T) {
	ctx := context.Background()
	agentID := types.UserID("agent-1")
	cont := action.NewContinue()

	rt := &mockRuntime{
		agentID: agentID,
		generateFn: func(renderedPrompt string, class types.ModelClass) (string, error) {
			if class == types.ModelClassSmall {
				return "YES", nil
			}
			return "```json\n{\"user\": \"tester\", \"text\": \"and the trails there are incredible\", \"action\": \"NONE\"}\n```", nil
		},
	}
	msg := agentMsg(agentID, "i went hiking last weekend", "")

	var delivered []*model.Content
	err := cont.Handle(ctx, rt, msg, &model.State{}, func(ctx context.Context, c *model.Content) error {
		delivered = append(delivered, c)
		return nil
	})
	gt.NoError(t, err)
	gt.Value(t, len(delivered)).Equal(1)
	gt.Value(t, delivered[0].Text).Equal("and the trails there are incredible")
	gt.Value(t, delivered[0].InReplyTo).Equal(msg.ID)
	gt.Value(t, rt.generateCalls).Equal([]types.ModelClass{types.ModelClassSmall, types.ModelClassLarge})
}

func TestContinueHandleClearsChainedAction(t *testing.T) {
	ctx := context.Background()
	agentID := types.UserID("agent-1")
	cont := action.NewContinue()

	rt := &mockRuntime{
		agentID: agentID,
		generateFn: func(renderedPrompt string, class types.ModelClass) (string, error) {
			if class == types.ModelClassSmall {
				return "YES", nil
			}
			return `{"user": "tester", "text": "more", "action": "CONTINUE"}`, nil
		},
	}
	msg := agentMsg(agentID, "still going", "")
	state := &model.State{RecentMemories: []*model.Memory{
		agentMsg(agentID, "third", action.NameContinue),
		agentMsg(agentID, "second", action.NameContinue),
		agentMsg(agentID, "first", action.NameContinue),
	}}

	var delivered []*model.Content
	err := cont.Handle(ctx, rt, msg, state, func(ctx context.Context, c *model.Content) error {
		delivered = append(delivered, c)
		return nil
	})
	gt.NoError(t, err)
	gt.Value(t, len(delivered)).Equal(1)
	gt.Value(t, delivered[0].Action).Equal("")
}

func TestIgnoreAndNoneAreInert(t *testing.T) {
	ctx := context.Background()
	rt := &mockRuntime{agentID: "agent-1"}
	msg := agentMsg("user-1", "shut up bot", "")

	for _, a := range []action.Action{action.NewIgnore(), action.NewNone()} {
		ok, err := a.Validate(ctx, rt, msg)
		gt.NoError(t, err)
		gt.True(t, ok)

		err = a.Handle(ctx, rt, msg, nil, func(ctx context.Context, c *model.Content) error {
			t.Fatalf("callback must not fire for %s", a.Name())
			return nil
		})
		gt.NoError(t, err)
	}
}
