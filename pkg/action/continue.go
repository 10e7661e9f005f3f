package action

import (
	"context"
	"strings"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/prompt"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/logging"
)

const (
	NameContinue = "CONTINUE"

	// maxContinuesInARow limits unprompted follow-ups: once the agent's
	// latest messages are all CONTINUE, the action stops validating
	// until a user speaks.
	maxContinuesInARow = 3

	recentWindow = 10
)

type continueAction struct{}

// NewContinue returns the CONTINUE action: elaborate on the previous
// reply without waiting for user input.
func NewContinue() Action {
	return &continueAction{}
}

func (a *continueAction) Name() string {
	return NameContinue
}

func (a *continueAction) Similes() []string {
	return []string{"ELABORATE", "KEEP_TALKING"}
}

func (a *continueAction) Description() string {
	return "ONLY use this action when the message necessitates a follow up. Do not use this action when the conversation is finished or the user does not wish to speak (use IGNORE instead). If the last message action was CONTINUE, and the user has not responded. Use sparingly."
}

func (a *continueAction) Validate(ctx context.Context, rt Runtime, message *model.Memory) (bool, error) {
	recent, err := rt.RecentMessages(ctx, message.RoomID, recentWindow)
	if err != nil {
		return false, err
	}

	var agentMessages []*model.Memory
	for _, m := range recent {
		if m.UserID == rt.AgentID() {
			agentMessages = append(agentMessages, m)
		}
	}

	if len(agentMessages) >= maxContinuesInARow {
		allContinues := true
		for _, m := range agentMessages[:maxContinuesInARow] {
			if m.Content.Action != NameContinue {
				allContinues = false
				break
			}
		}
		if allContinues {
			return false, nil
		}
	}
	return true, nil
}

func (a *continueAction) Handle(ctx context.Context, rt Runtime, message *model.Memory, state *model.State, callback Callback) error {
	// A question or exclamation hands the turn to the user
	text := strings.TrimSpace(message.Content.Text)
	if strings.HasSuffix(text, "?") || strings.HasSuffix(text, "!") {
		return nil
	}

	if state == nil {
		composed, err := rt.ComposeState(ctx, message)
		if err != nil {
			return err
		}
		state = composed
	}

	character := rt.Character()

	gateTmpl := prompt.ShouldContinueTemplate(character.Templates.ContinueHandler)
	gateOut, err := rt.Generate(ctx, prompt.Compose(gateTmpl, state.Map()), types.ModelClassSmall)
	if err != nil {
		return err
	}
	shouldContinue, ok := prompt.ParseBoolean(gateOut)
	if !ok || !shouldContinue {
		logging.From(ctx).Debug("not elaborating", "roomID", message.RoomID)
		return nil
	}

	handlerTmpl := prompt.MessageHandlerTemplate(character.Templates.MessageHandler)
	raw, err := rt.Generate(ctx, prompt.Compose(handlerTmpl, state.Map()), types.ModelClassLarge)
	if err != nil {
		return err
	}
	content, err := prompt.ParseContent(raw)
	if err != nil {
		return err
	}
	content.InReplyTo = message.ID

	// Drop a chained CONTINUE once the run limit is reached
	if content.Action == NameContinue {
		continues := 0
		for _, m := range state.RecentMemories {
			if m.UserID != rt.AgentID() {
				continue
			}
			if m.Content.Action != NameContinue {
				break
			}
			continues++
		}
		if continues >= maxContinuesInARow {
			content.Action = ""
		}
	}

	return callback(ctx, content)
}

func (a *continueAction) Examples() [][]model.ActionExample {
	return [][]model.ActionExample{
		{
			{User: "{{user1}}", Content: model.Content{Text: "we're planning a solo backpacking trip soon"}},
			{User: "{{user2}}", Content: model.Content{Text: "oh sick", Action: NameContinue}},
			{User: "{{user2}}", Content: model.Content{Text: "where are you going"}},
		},
		{
			{User: "{{user1}}", Content: model.Content{Text: "i just got a guitar and started learning last month"}},
			{User: "{{user2}}", Content: model.Content{Text: "maybe we can start a band soon haha"}},
			{User: "{{user1}}", Content: model.Content{Text: "i'm not very good yet, but i've been playing until my fingers hurt", Action: NameContinue}},
			{User: "{{user1}}", Content: model.Content{Text: "seriously it hurts to type"}},
		},
		{
			{User: "{{user1}}", Content: model.Content{Text: "i found some incredible art today"}},
			{User: "{{user2}}", Content: model.Content{Text: "real art or digital art"}},
			{User: "{{user1}}", Content: model.Content{Text: "real art", Action: NameContinue}},
			{User: "{{user1}}", Content: model.Content{Text: "the pieces are just so insane looking, one sec, let me grab a link"}},
		},
		{
			{User: "{{user1}}", Content: model.Content{Text: "i'm thinking of adopting a pet soon"}},
			{User: "{{user2}}", Content: model.Content{Text: "what kind of pet"}},
			{User: "{{user1}}", Content: model.Content{Text: "i'm leaning towards a cat", Action: NameContinue}},
			{User: "{{user1}}", Content: model.Content{Text: "it'd be hard to take care of a dog in the city"}},
		},
	}
}
