package model

import (
	"time"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

// Account is an actor, human or agent.
type Account struct {
	ID       types.UserID
	Name     string
	Username string
	Details  map[string]any
}

// Room is a conversation scope joining multiple participants.
type Room struct {
	ID        types.RoomID
	CreatedAt time.Time
}

// Participant joins an Account to a Room. UserState gates autonomous
// behavior in that room.
type Participant struct {
	ID        types.ParticipantID
	UserID    types.UserID
	RoomID    types.RoomID
	UserState types.UserState
	CreatedAt time.Time
}

// Relationship is a symmetric edge between two accounts, created lazily
// the first time they share a room.
type Relationship struct {
	UserA  types.UserID
	UserB  types.UserID
	UserID types.UserID
	Status types.RelationStatus
}
