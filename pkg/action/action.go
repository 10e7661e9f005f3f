// Package action defines the action registry: named behaviors the model
// can request in its reply, validated and executed by the runtime.
package action

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/prompt"
)

// Callback delivers an additional outbound message produced by an action
// handler.
type Callback func(ctx context.Context, content *model.Content) error

// Runtime is the slice of the agent runtime that action handlers may
// touch.
type Runtime interface {
	AgentID() types.UserID
	Character() *model.Character
	RecentMessages(ctx context.Context, roomID types.RoomID, count int) ([]*model.Memory, error)
	ComposeState(ctx context.Context, message *model.Memory) (*model.State, error)
	Generate(ctx context.Context, renderedPrompt string, class types.ModelClass) (string, error)
}

// Action is a named behavior the model can select in its response.
type Action interface {
	Name() string
	Similes() []string
	Description() string
	Examples() [][]model.ActionExample

	// Validate reports whether the action may run for this message.
	Validate(ctx context.Context, rt Runtime, message *model.Memory) (bool, error)

	// Handle executes the action. state is the composed state the reply
	// was generated from; callback emits follow-up messages.
	Handle(ctx context.Context, rt Runtime, message *model.Memory, state *model.State, callback Callback) error
}

// Registry holds the registered actions and resolves model-chosen action
// names, including similes, case-insensitively.
type Registry struct {
	actions []Action
	byName  map[string]Action
}

func NewRegistry(actions ...Action) *Registry {
	r := &Registry{byName: make(map[string]Action)}
	for _, a := range actions {
		r.Register(a)
	}
	return r
}

// Register adds an action. Later registrations win on name collision.
func (r *Registry) Register(a Action) {
	r.actions = append(r.actions, a)
	r.byName[strings.ToUpper(a.Name())] = a
	for _, simile := range a.Similes() {
		r.byName[strings.ToUpper(simile)] = a
	}
}

// Resolve returns the action for name, or nil when unknown. An empty
// name resolves to NONE when registered.
func (r *Registry) Resolve(name string) Action {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		name = NameNone
	}
	return r.byName[name]
}

// Names returns the registered action names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for _, a := range r.actions {
		names = append(names, a.Name())
	}
	return names
}

// Describe renders one line per action for the prompt.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, a := range r.actions {
		fmt.Fprintf(&b, "- %s: %s\n", a.Name(), a.Description())
	}
	return strings.TrimRight(b.String(), "\n")
}

// ExamplesText samples up to count example conversations across all
// registered actions, with placeholder user names randomized.
func (r *Registry) ExamplesText(count int) string {
	var all [][]model.ActionExample
	for _, a := range r.actions {
		all = append(all, a.Examples()...)
	}
	if len(all) == 0 {
		return ""
	}

	perm := rand.Perm(len(all))
	if count <= 0 || count > len(all) {
		count = len(all)
	}

	var b strings.Builder
	for i := 0; i < count; i++ {
		conversation := all[perm[i]]
		var lines []string
		for _, ex := range conversation {
			line := fmt.Sprintf("%s: %s", ex.User, ex.Content.Text)
			if ex.Content.Action != "" && ex.Content.Action != NameNone {
				line += fmt.Sprintf(" (%s)", ex.Content.Action)
			}
			lines = append(lines, line)
		}
		b.WriteString(prompt.ComposeRandomUser(strings.Join(lines, "\n")))
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// ErrUnknownAction is returned when the model requests an action that is
// not registered.
var ErrUnknownAction = goerr.New("unknown action")
