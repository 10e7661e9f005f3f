package interfaces

import (
	"context"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

// RoomRepository manages rooms and their participants.
type RoomRepository interface {
	// Create makes a room, generating an ID when none is given, and
	// returns the effective ID. Creating an existing room is a no-op.
	Create(ctx context.Context, roomID types.RoomID) (types.RoomID, error)

	Exists(ctx context.Context, roomID types.RoomID) (bool, error)

	// Remove deletes the room and its participant rows.
	Remove(ctx context.Context, roomID types.RoomID) error

	// AddParticipant joins an account to a room. Idempotent.
	AddParticipant(ctx context.Context, userID types.UserID, roomID types.RoomID) error

	RemoveParticipant(ctx context.Context, userID types.UserID, roomID types.RoomID) error

	ParticipantsForRoom(ctx context.Context, roomID types.RoomID) ([]types.UserID, error)

	RoomsForParticipant(ctx context.Context, userID types.UserID) ([]types.RoomID, error)

	// RoomsForParticipants returns the union of rooms any given account
	// belongs to, deduplicated.
	RoomsForParticipants(ctx context.Context, userIDs []types.UserID) ([]types.RoomID, error)

	// ParticipantUserState returns the empty state when the participant
	// row is absent.
	ParticipantUserState(ctx context.Context, roomID types.RoomID, userID types.UserID) (types.UserState, error)

	SetParticipantUserState(ctx context.Context, roomID types.RoomID, userID types.UserID, state types.UserState) error

	// ActorsForRoom joins participants with their accounts for state
	// composition. Accounts missing a row are skipped.
	ActorsForRoom(ctx context.Context, roomID types.RoomID) ([]*model.Account, error)
}
