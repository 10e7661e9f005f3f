package action

import (
	"context"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
)

const NameNone = "NONE"

type noneAction struct{}

// NewNone returns the NONE action: respond conversationally with no
// additional behavior attached.
func NewNone() Action {
	return &noneAction{}
}

func (a *noneAction) Name() string {
	return NameNone
}

func (a *noneAction) Similes() []string {
	return []string{"NO_ACTION", "NO_RESPONSE", "NO_REACTION", "RESPONSE", "REPLY", "DEFAULT"}
}

func (a *noneAction) Description() string {
	return "Respond but perform no additional action. This is the default if the agent is speaking and not doing anything additional."
}

func (a *noneAction) Validate(ctx context.Context, rt Runtime, message *model.Memory) (bool, error) {
	return true, nil
}

func (a *noneAction) Handle(ctx context.Context, rt Runtime, message *model.Memory, state *model.State, callback Callback) error {
	return nil
}

func (a *noneAction) Examples() [][]model.ActionExample {
	return [][]model.ActionExample{
		{
			{User: "{{user1}}", Content: model.Content{Text: "Hey whats up"}},
			{User: "{{user2}}", Content: model.Content{Text: "oh hey", Action: NameNone}},
			{User: "{{user1}}", Content: model.Content{Text: "did u see some faster whisper just came out"}},
			{User: "{{user2}}", Content: model.Content{Text: "yeah but its a pain to get into node.js", Action: NameNone}},
		},
		{
			{User: "{{user1}}", Content: model.Content{Text: "u think aliens are real"}},
			{User: "{{user2}}", Content: model.Content{Text: "ya obviously", Action: NameNone}},
		},
		{
			{User: "{{user1}}", Content: model.Content{Text: "drop a joke on me"}},
			{User: "{{user2}}", Content: model.Content{Text: "why dont scientists trust atoms because they make up everything lmao", Action: NameNone}},
			{User: "{{user1}}", Content: model.Content{Text: "haha good one"}},
		},
		{
			{User: "{{user1}}", Content: model.Content{Text: "hows the weather where ur at"}},
			{User: "{{user2}}", Content: model.Content{Text: "beautiful all week", Action: NameNone}},
		},
	}
}
