package action

import (
	"context"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
)

const NameIgnore = "IGNORE"

type ignoreAction struct{}

// NewIgnore returns the IGNORE action: deliberately disengage from the
// conversation without replying.
func NewIgnore() Action {
	return &ignoreAction{}
}

func (a *ignoreAction) Name() string {
	return NameIgnore
}

func (a *ignoreAction) Similes() []string {
	return []string{"STOP_TALKING", "STOP_CHATTING", "STOP_CONVERSATION"}
}

func (a *ignoreAction) Description() string {
	return "Call this action if ignoring the user. If the user is aggressive, creepy or is finished with the conversation, use this action. Or, if both you and the user have already said goodbye, use this action instead of saying bye again. Use IGNORE any time the conversation has naturally ended. Do not use IGNORE if the user has engaged directly, or if something went wrong an you need to tell them. Only ignore if the user should be ignored."
}

func (a *ignoreAction) Validate(ctx context.Context, rt Runtime, message *model.Memory) (bool, error) {
	return true, nil
}

func (a *ignoreAction) Handle(ctx context.Context, rt Runtime, message *model.Memory, state *model.State, callback Callback) error {
	return nil
}

func (a *ignoreAction) Examples() [][]model.ActionExample {
	return [][]model.ActionExample{
		{
			{User: "{{user1}}", Content: model.Content{Text: "Go screw yourself"}},
			{User: "{{user2}}", Content: model.Content{Text: "", Action: NameIgnore}},
		},
		{
			{User: "{{user1}}", Content: model.Content{Text: "Shut up, bot"}},
			{User: "{{user2}}", Content: model.Content{Text: "", Action: NameIgnore}},
		},
		{
			{User: "{{user1}}", Content: model.Content{Text: "Got any investment advice"}},
			{User: "{{user2}}", Content: model.Content{Text: "Uh, don't let the volatility sway your long-term strategy"}},
			{User: "{{user1}}", Content: model.Content{Text: "Wise advice I suppose"}},
			{User: "{{user1}}", Content: model.Content{Text: "Are you a bot"}},
			{User: "{{user2}}", Content: model.Content{Text: "", Action: NameIgnore}},
		},
		{
			{User: "{{user1}}", Content: model.Content{Text: "Gotta run, talk to you later"}},
			{User: "{{user2}}", Content: model.Content{Text: "Okay, talk to you later"}},
			{User: "{{user1}}", Content: model.Content{Text: "Cya"}},
			{User: "{{user2}}", Content: model.Content{Text: "", Action: NameIgnore}},
		},
		{
			{User: "{{user1}}", Content: model.Content{Text: "u there"}},
			{User: "{{user2}}", Content: model.Content{Text: "yes how can I help"}},
			{User: "{{user1}}", Content: model.Content{Text: "k nvm figured it out"}},
			{User: "{{user2}}", Content: model.Content{Text: "", Action: NameIgnore}},
		},
	}
}
