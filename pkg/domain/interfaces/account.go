package interfaces

import (
	"context"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

// AccountRepository manages actor accounts.
type AccountRepository interface {
	// GetByID returns nil without error when the account does not exist.
	GetByID(ctx context.Context, userID types.UserID) (*model.Account, error)

	// Create upserts an account, generating an ID when none is given.
	Create(ctx context.Context, account *model.Account) error
}

// RelationshipRepository manages symmetric edges between accounts.
type RelationshipRepository interface {
	// Create records a FRIENDS edge between two accounts, placing both in
	// a shared room (reusing an existing one when possible).
	Create(ctx context.Context, userA, userB types.UserID) error

	// Get returns nil without error when no edge exists in either
	// direction.
	Get(ctx context.Context, userA, userB types.UserID) (*model.Relationship, error)

	ListForUser(ctx context.Context, userID types.UserID) ([]*model.Relationship, error)
}
