package types

import "github.com/google/uuid"

// UserID identifies an account, human or agent.
type UserID string

// NewUserID generates a new UUID v4 UserID
func NewUserID() UserID {
	return UserID(uuid.New().String())
}

// RoomID identifies a conversation scope.
type RoomID string

// NewRoomID generates a new UUID v4 RoomID
func NewRoomID() RoomID {
	return RoomID(uuid.New().String())
}

// MemoryID is a UUID-based identifier for Memory
type MemoryID string

// NewMemoryID generates a new UUID v4 MemoryID
func NewMemoryID() MemoryID {
	return MemoryID(uuid.New().String())
}

// ParticipantID identifies a participant row (account joined to a room)
type ParticipantID string

// NewParticipantID generates a new UUID v4 ParticipantID
func NewParticipantID() ParticipantID {
	return ParticipantID(uuid.New().String())
}

// GoalID identifies a tracked goal
type GoalID string

// NewGoalID generates a new UUID v4 GoalID
func NewGoalID() GoalID {
	return GoalID(uuid.New().String())
}

// DeterministicID derives a stable UUID v5 from an arbitrary string.
// Used to map external identifiers (e.g. transport chat IDs) to stable
// room and account IDs.
func DeterministicID(seed string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}
