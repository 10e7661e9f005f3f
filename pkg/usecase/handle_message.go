package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/action"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/prompt"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/async"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/errutil"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/logging"
)

// degradedReply is sent when generation fails after the gate decided to
// respond. The failure itself is logged with full context.
const degradedReply = "Sorry, I'm having trouble putting a response together right now. Please try again in a bit."

// HandleMessage runs the full loop for one inbound message and returns
// the agent's reply content. A nil content with nil error means the
// agent deliberately stays silent (muted room, IGNORE decision, blank or
// duplicate input).
func (rt *Runtime) HandleMessage(ctx context.Context, message *model.Memory) (*model.Content, error) {
	if message == nil || !message.HasText() {
		return nil, nil
	}
	if message.RoomID == "" || message.UserID == "" {
		return nil, goerr.Wrap(types.ErrValidation, "message needs a room and a sender")
	}

	mu := rt.roomLock(message.RoomID)
	mu.Lock()
	defer mu.Unlock()

	if rt.seenBefore(ctx, message) {
		return nil, nil
	}

	message.AgentID = rt.AgentID()
	if message.ID == "" {
		message.ID = types.NewMemoryID()
	}

	if err := rt.ensureConnection(ctx, message); err != nil {
		return nil, err
	}

	// A STOP decision mutes the agent's own participant row; everything
	// after that is stored but never answered until unmuted.
	muted, err := rt.agentMuted(ctx, message.RoomID)
	if err != nil {
		return nil, err
	}

	if err := rt.persistInbound(ctx, message); err != nil {
		return nil, err
	}

	if muted {
		logging.From(ctx).Debug("agent muted in room, staying silent", "roomID", message.RoomID)
		return nil, nil
	}

	state, err := rt.ComposeState(ctx, message)
	if err != nil {
		errutil.Handle(ctx, err, "state composition failed")
		return rt.degraded(ctx, message), nil
	}

	decision, err := rt.shouldRespond(ctx, state)
	if err != nil {
		errutil.Handle(ctx, err, "should-respond gate failed")
		return nil, nil
	}
	switch decision {
	case types.DecisionRespond:
	case types.DecisionStop:
		if err := rt.repo.Room().SetParticipantUserState(ctx, message.RoomID, rt.AgentID(), types.UserStateMuted); err != nil {
			errutil.Handle(ctx, err, "failed to mute agent in room")
		}
		return nil, nil
	default:
		return nil, nil
	}

	content, err := rt.generateReply(ctx, state)
	if err != nil {
		errutil.Handle(ctx, err, "reply generation failed")
		return rt.degraded(ctx, message), nil
	}
	content.InReplyTo = message.ID

	responses := []*model.Content{content}
	collect := func(ctx context.Context, extra *model.Content) error {
		extra.InReplyTo = message.ID
		responses = append(responses, extra)
		return nil
	}

	if err := rt.runAction(ctx, message, state, content, collect); err != nil {
		errutil.Handle(ctx, err, "action execution failed")
	}

	rt.persistOutbound(ctx, message, responses)
	rt.auditLog(ctx, message, state, content)

	return content, nil
}

// seenBefore deduplicates redelivered messages by ID when a cache is
// configured. Transports like webhooks redeliver on slow acks.
func (rt *Runtime) seenBefore(ctx context.Context, message *model.Memory) bool {
	if rt.cache == nil || message.ID == "" {
		return false
	}
	key := "seen:" + string(message.ID)
	if v, err := rt.cache.Get(ctx, key); err == nil && v != nil {
		logging.From(ctx).Debug("duplicate delivery dropped", "memoryID", message.ID)
		return true
	}
	if err := rt.cache.Set(ctx, key, []byte("1")); err != nil {
		errutil.Handle(ctx, err, "failed to record message delivery")
	}
	return false
}

// ensureConnection upserts the accounts, room and participant rows the
// message implies, and lazily records the sender/agent relationship.
func (rt *Runtime) ensureConnection(ctx context.Context, message *model.Memory) error {
	if err := rt.repo.Account().Create(ctx, &model.Account{ID: rt.AgentID(), Name: rt.character.Name, Username: rt.character.Username}); err != nil {
		return err
	}
	if err := rt.repo.Account().Create(ctx, &model.Account{ID: message.UserID, Name: senderName(message)}); err != nil {
		return err
	}

	if _, err := rt.repo.Room().Create(ctx, message.RoomID); err != nil {
		return err
	}
	if err := rt.repo.Room().AddParticipant(ctx, message.UserID, message.RoomID); err != nil {
		return err
	}
	if err := rt.repo.Room().AddParticipant(ctx, rt.AgentID(), message.RoomID); err != nil {
		return err
	}

	rel, err := rt.repo.Relationship().Get(ctx, message.UserID, rt.AgentID())
	if err != nil {
		return err
	}
	if rel == nil {
		if err := rt.repo.Relationship().Create(ctx, message.UserID, rt.AgentID()); err != nil {
			return err
		}
	}
	return nil
}

func senderName(message *model.Memory) string {
	if name, ok := message.Content.Metadata["senderName"].(string); ok && name != "" {
		return name
	}
	return string(message.UserID)
}

func (rt *Runtime) agentMuted(ctx context.Context, roomID types.RoomID) (bool, error) {
	st, err := rt.repo.Room().ParticipantUserState(ctx, roomID, rt.AgentID())
	if err != nil {
		return false, err
	}
	return st == types.UserStateMuted, nil
}

func (rt *Runtime) persistInbound(ctx context.Context, message *model.Memory) error {
	if err := rt.messages.AddEmbedding(ctx, message); err != nil {
		// Inbound text is still worth keeping without a vector
		errutil.Handle(ctx, err, "inbound embedding failed, storing without")
		message.Embedding = nil
	}
	return rt.messages.Create(ctx, message, false)
}

func (rt *Runtime) shouldRespond(ctx context.Context, state *model.State) (types.RespondDecision, error) {
	tmpl := prompt.ShouldRespondTemplate(rt.character.Templates.ShouldRespond)
	out, err := rt.Generate(ctx, prompt.Compose(tmpl, state.Map()), types.ModelClassSmall)
	if err != nil {
		return types.DecisionUnknown, err
	}
	return prompt.ParseShouldRespond(out), nil
}

func (rt *Runtime) generateReply(ctx context.Context, state *model.State) (*model.Content, error) {
	tmpl := prompt.MessageHandlerTemplate(rt.character.Templates.MessageHandler)
	raw, err := rt.Generate(ctx, prompt.Compose(tmpl, state.Map()), types.ModelClassLarge)
	if err != nil {
		return nil, err
	}
	return prompt.ParseContent(raw)
}

// runAction resolves and executes the action named in the reply. Unknown
// names degrade to no action; the text still goes out.
func (rt *Runtime) runAction(ctx context.Context, message *model.Memory, state *model.State, content *model.Content, callback action.Callback) error {
	name := strings.TrimSpace(content.Action)
	act := rt.registry.Resolve(name)
	if act == nil {
		content.Action = action.NameNone
		return goerr.Wrap(action.ErrUnknownAction, "dropping requested action", goerr.V("action", name))
	}

	ok, err := act.Validate(ctx, rt, message)
	if err != nil {
		return err
	}
	if !ok {
		logging.From(ctx).Debug("action validation declined", "action", act.Name())
		return nil
	}

	return act.Handle(ctx, rt, message, state, callback)
}

// persistOutbound stores the reply and any follow-ups after the caller
// already has them. Failures only lose history, so they are logged and
// swallowed.
func (rt *Runtime) persistOutbound(ctx context.Context, message *model.Memory, responses []*model.Content) {
	agentID := rt.AgentID()
	roomID := message.RoomID

	for _, content := range responses {
		c := *content
		async.Dispatch(ctx, func(ctx context.Context) error {
			memory := &model.Memory{
				ID:        types.NewMemoryID(),
				AgentID:   agentID,
				RoomID:    roomID,
				UserID:    agentID,
				Content:   c,
				CreatedAt: time.Now(),
			}
			if err := rt.messages.AddEmbedding(ctx, memory); err != nil {
				errutil.Handle(ctx, err, "outbound embedding failed, storing without")
				memory.Embedding = nil
			}
			if err := rt.messages.Create(ctx, memory, false); err != nil {
				return goerr.Wrap(err, "failed to persist outbound memory")
			}
			return nil
		})
	}
}

func (rt *Runtime) auditLog(ctx context.Context, message *model.Memory, state *model.State, content *model.Content) {
	entry := &model.LogEntry{
		Body: map[string]any{
			"message":  message.Content.Text,
			"context":  state.RecentMessages,
			"response": content,
		},
		UserID:    message.UserID,
		RoomID:    message.RoomID,
		Kind:      "response",
		CreatedAt: time.Now(),
	}
	async.Dispatch(ctx, func(ctx context.Context) error {
		return rt.repo.Log(ctx, entry)
	})
}

func (rt *Runtime) degraded(ctx context.Context, message *model.Memory) *model.Content {
	content := &model.Content{
		Text:      degradedReply,
		Action:    action.NameNone,
		InReplyTo: message.ID,
	}
	rt.persistOutbound(ctx, message, []*model.Content{content})
	return content
}
