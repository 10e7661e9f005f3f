// Package usecase hosts the agent runtime: the message handling loop
// that persists conversation memory, composes prompt state, calls the
// model and executes the chosen action.
package usecase

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/action"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/cache"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
	memsvc "github.com/0xhatsume/tg-agentic-rag-dash/pkg/service/memory"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/breaker"
)

// Runtime drives one agent character against one repository and model
// provider. Safe for concurrent use; messages in the same room are
// handled one at a time.
type Runtime struct {
	repo      interfaces.Repository
	llm       gollem.LLMClient
	smallLLM  gollem.LLMClient
	character *model.Character
	registry  *action.Registry
	messages  *memsvc.Manager
	facts     *memsvc.Manager
	cache     *cache.Manager
	brk       *breaker.Breaker
	providers []interfaces.Provider

	roomLocks sync.Map // types.RoomID -> *sync.Mutex
}

type Option func(*Runtime)

// WithRegistry replaces the default action set.
func WithRegistry(r *action.Registry) Option {
	return func(rt *Runtime) {
		rt.registry = r
	}
}

// WithProviders appends context providers consulted during state
// composition.
func WithProviders(providers ...interfaces.Provider) Option {
	return func(rt *Runtime) {
		rt.providers = append(rt.providers, providers...)
	}
}

// WithBreaker shares a circuit breaker across the runtime's model calls.
func WithBreaker(b *breaker.Breaker) Option {
	return func(rt *Runtime) {
		rt.brk = b
	}
}

// WithCache enables inbound message idempotency tracking.
func WithCache(c *cache.Manager) Option {
	return func(rt *Runtime) {
		rt.cache = c
	}
}

// WithSmallModel routes small-class generations (gates, classifiers) to a
// cheaper client. Without it every class uses the main client.
func WithSmallModel(llm gollem.LLMClient) Option {
	return func(rt *Runtime) {
		rt.smallLLM = llm
	}
}

// New builds a runtime for the character. dimension is the embedding
// dimension the repository was opened with.
func New(repo interfaces.Repository, llm gollem.LLMClient, character *model.Character, dimension int, opts ...Option) (*Runtime, error) {
	if repo == nil || llm == nil {
		return nil, goerr.Wrap(types.ErrValidation, "repository and LLM client are required")
	}
	if character == nil {
		return nil, goerr.Wrap(types.ErrValidation, "character is required")
	}
	if err := character.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{
		repo:      repo,
		llm:       llm,
		character: character,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.brk == nil {
		rt.brk = breaker.New()
	}
	if rt.registry == nil {
		rt.registry = action.NewRegistry(action.NewContinue(), action.NewIgnore(), action.NewNone())
	}
	rt.messages = memsvc.New(repo.Memory(), llm, types.KindMessages, dimension, memsvc.WithBreaker(rt.brk))
	rt.facts = memsvc.New(repo.Memory(), llm, types.KindFacts, dimension, memsvc.WithBreaker(rt.brk))
	return rt, nil
}

func (rt *Runtime) AgentID() types.UserID {
	return rt.character.ID
}

func (rt *Runtime) Character() *model.Character {
	return rt.character
}

// Messages exposes the message memory manager, for collaborators that
// ingest history out of band.
func (rt *Runtime) Messages() *memsvc.Manager {
	return rt.messages
}

// Facts exposes the fact memory manager used for knowledge retrieval.
func (rt *Runtime) Facts() *memsvc.Manager {
	return rt.facts
}

// RecentMessages returns the newest messages of the room, newest first.
func (rt *Runtime) RecentMessages(ctx context.Context, roomID types.RoomID, count int) ([]*model.Memory, error) {
	return rt.messages.GetRecent(ctx, roomID, rt.AgentID(), count)
}

// Generate renders one completion through the circuit breaker. The class
// selects the client: small-class calls go to the small model when one is
// configured.
func (rt *Runtime) Generate(ctx context.Context, renderedPrompt string, class types.ModelClass) (string, error) {
	client := rt.llm
	if class == types.ModelClassSmall && rt.smallLLM != nil {
		client = rt.smallLLM
	}

	var out string
	err := rt.brk.Do(ctx, func(ctx context.Context) error {
		session, err := client.NewSession(ctx)
		if err != nil {
			return goerr.Wrap(types.ErrProvider, "failed to create session", goerr.V("cause", err.Error()))
		}
		resp, err := session.GenerateContent(ctx, gollem.Text(renderedPrompt))
		if err != nil {
			return goerr.Wrap(types.ErrProvider, "generation failed", goerr.V("cause", err.Error()))
		}
		if resp == nil || len(resp.Texts) == 0 {
			return goerr.Wrap(types.ErrProvider, "generation returned no text")
		}
		out = resp.Texts[0]
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// roomLock returns the mutex serializing message handling for a room.
func (rt *Runtime) roomLock(roomID types.RoomID) *sync.Mutex {
	mu, _ := rt.roomLocks.LoadOrStore(roomID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Close releases runtime resources. The repository is owned by the
// caller and stays open.
func (rt *Runtime) Close() {
	if rt.cache != nil {
		rt.cache.Close()
	}
}
