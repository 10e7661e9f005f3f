package interfaces

import (
	"context"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

// GoalQuery filters goal listing.
type GoalQuery struct {
	RoomID         types.RoomID
	UserID         types.UserID // optional
	OnlyInProgress bool
	Count          int // 0 means no limit
}

// GoalRepository manages per-room goals.
type GoalRepository interface {
	List(ctx context.Context, q GoalQuery) ([]*model.Goal, error)

	Create(ctx context.Context, goal *model.Goal) error

	// Update replaces a goal. Returns types.ErrNotFound when absent.
	Update(ctx context.Context, goal *model.Goal) error

	// UpdateStatus changes only the status. Returns types.ErrNotFound
	// when absent.
	UpdateStatus(ctx context.Context, id types.GoalID, status types.GoalStatus) error

	Remove(ctx context.Context, id types.GoalID) error

	RemoveAllForRoom(ctx context.Context, roomID types.RoomID) error
}
