package types

// MemoryKind is the logical table a memory belongs to. Reads against an
// unknown kind return no rows instead of failing, so new kinds can be
// introduced without migrations.
type MemoryKind string

const (
	KindMessages  MemoryKind = "messages"
	KindFacts     MemoryKind = "facts"
	KindFragments MemoryKind = "fragments"
)

// UserState gates whether the runtime acts autonomously for a participant
// in a room. The empty value means no explicit preference.
type UserState string

const (
	UserStateNone     UserState = ""
	UserStateFollowed UserState = "FOLLOWED"
	UserStateMuted    UserState = "MUTED"
)

// Valid reports whether the state is one of the known values.
func (s UserState) Valid() bool {
	switch s {
	case UserStateNone, UserStateFollowed, UserStateMuted:
		return true
	}
	return false
}

// GoalStatus tracks the lifecycle of a Goal.
type GoalStatus string

const (
	GoalInProgress GoalStatus = "IN_PROGRESS"
	GoalDone       GoalStatus = "DONE"
	GoalFailed     GoalStatus = "FAILED"
)

// RelationStatus describes a relationship edge between two accounts.
type RelationStatus string

const (
	RelationFriends RelationStatus = "FRIENDS"
)

// ModelClass selects the size/cost tier of a model call. The provider
// decides which concrete model backs each class.
type ModelClass string

const (
	ModelClassSmall     ModelClass = "small"
	ModelClassLarge     ModelClass = "large"
	ModelClassEmbedding ModelClass = "embedding"
)

// RespondDecision is the outcome of the should-respond gate.
type RespondDecision string

const (
	DecisionRespond RespondDecision = "RESPOND"
	DecisionIgnore  RespondDecision = "IGNORE"
	DecisionStop    RespondDecision = "STOP"
	DecisionUnknown RespondDecision = ""
)
