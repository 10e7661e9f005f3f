package interfaces

import (
	"context"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
)

// Provider contributes deployment-specific context to the state composed
// for each message. Returned text is merged into the prompt verbatim; an
// empty string contributes nothing.
type Provider interface {
	Provide(ctx context.Context, message *model.Memory, state *model.State) (string, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context, message *model.Memory, state *model.State) (string, error)

func (f ProviderFunc) Provide(ctx context.Context, message *model.Memory, state *model.State) (string, error) {
	return f(ctx, message, state)
}
