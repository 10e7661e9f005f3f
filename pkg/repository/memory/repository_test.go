package memory_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/repository/memory"
)

func newMemory(roomID types.RoomID, agentID types.UserID, text string, embedding []float32) *model.Memory {
	return &model.Memory{
		ID:        types.NewMemoryID(),
		AgentID:   agentID,
		RoomID:    roomID,
		UserID:    types.NewUserID(),
		Content:   model.Content{Text: text},
		Embedding: embedding,
	}
}

func TestMemoryCreateValidation(t *testing.T) {
	ctx := context.Background()
	repo := memory.New(3)
	roomID := types.NewRoomID()
	agentID := types.NewUserID()

	// Blank text is rejected
	err := repo.Memory().Create(ctx, newMemory(roomID, agentID, "   ", nil))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrValidation))

	// Wrong embedding dimension is rejected
	err = repo.Memory().Create(ctx, newMemory(roomID, agentID, "hello", []float32{1, 2}))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrValidation))

	// Correct dimension passes
	gt.NoError(t, repo.Memory().Create(ctx, newMemory(roomID, agentID, "hello", []float32{1, 2, 3})))

	// Memories without embeddings are allowed
	gt.NoError(t, repo.Memory().Create(ctx, newMemory(roomID, agentID, "no vector", nil)))
}

func TestMemoryCopyOnRead(t *testing.T) {
	ctx := context.Background()
	repo := memory.New(3)
	roomID := types.NewRoomID()
	agentID := types.NewUserID()

	mem := newMemory(roomID, agentID, "with payload", []float32{1, 0, 0})
	mem.Content.Attachments = []model.Attachment{{ID: "a1", URL: "https://example.com/a.png"}}
	mem.Content.Metadata = map[string]any{"senderName": "Ada"}
	gt.NoError(t, repo.Memory().Create(ctx, mem))

	got, err := repo.Memory().GetByID(ctx, mem.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.Content.Attachments).Equal(mem.Content.Attachments)
	gt.Value(t, got.Content.Metadata).Equal(mem.Content.Metadata)

	// Mutating a returned memory must not leak back into the store
	got.Content.Metadata["senderName"] = "Mallory"
	got.Content.Attachments[0].URL = "https://example.com/b.png"
	got.Embedding[0] = 9

	again, err := repo.Memory().GetByID(ctx, mem.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, again.Content.Metadata["senderName"]).Equal("Ada")
	gt.Value(t, again.Content.Attachments[0].URL).Equal("https://example.com/a.png")
	gt.Value(t, again.Embedding[0]).Equal(float32(1))
}

func TestMemoryGetByIDAbsent(t *testing.T) {
	ctx := context.Background()
	repo := memory.New(0)

	got, err := repo.Memory().GetByID(ctx, types.NewMemoryID())
	gt.NoError(t, err)
	gt.Nil(t, got)
}

func TestMemoryGetMemoriesNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := memory.New(0)
	roomID := types.NewRoomID()
	agentID := types.NewUserID()

	base := time.Now().UTC()
	for i := 0; i < 15; i++ {
		m := newMemory(roomID, agentID, fmt.Sprintf("message %d", i), nil)
		m.CreatedAt = base.Add(time.Duration(i) * time.Second)
		gt.NoError(t, repo.Memory().Create(ctx, m))
	}

	// Default count is 10, newest first
	got, err := repo.Memory().GetMemories(ctx, interfaces.MemoryQuery{RoomID: roomID})
	gt.NoError(t, err)
	gt.Value(t, len(got)).Equal(10)
	gt.Value(t, got[0].Content.Text).Equal("message 14")
	gt.Value(t, got[9].Content.Text).Equal("message 5")

	// Unknown kind returns empty, not an error
	got, err = repo.Memory().GetMemories(ctx, interfaces.MemoryQuery{RoomID: roomID, Kind: "unknown"})
	gt.NoError(t, err)
	gt.Value(t, len(got)).Equal(0)
}

func TestMemorySearchByEmbedding(t *testing.T) {
	ctx := context.Background()
	repo := memory.New(2)
	roomID := types.NewRoomID()
	agentID := types.NewUserID()

	gt.NoError(t, repo.Memory().Create(ctx, newMemory(roomID, agentID, "east", []float32{1, 0})))
	gt.NoError(t, repo.Memory().Create(ctx, newMemory(roomID, agentID, "north", []float32{0, 1})))
	gt.NoError(t, repo.Memory().Create(ctx, newMemory(roomID, agentID, "northeast", []float32{1, 1})))

	got, err := repo.Memory().SearchByEmbedding(ctx, []float32{1, 0}, interfaces.SearchQuery{
		RoomID:         roomID,
		AgentID:        agentID,
		MatchThreshold: 0.5,
		MatchCount:     10,
	})
	gt.NoError(t, err)
	gt.Value(t, len(got)).Equal(2)
	gt.Value(t, got[0].Content.Text).Equal("east")
	gt.Value(t, got[1].Content.Text).Equal("northeast")

	// Empty query embedding yields no matches
	got, err = repo.Memory().SearchByEmbedding(ctx, nil, interfaces.SearchQuery{RoomID: roomID})
	gt.NoError(t, err)
	gt.Value(t, len(got)).Equal(0)
}

func TestMemoryCountAndRemoveAll(t *testing.T) {
	ctx := context.Background()
	repo := memory.New(0)
	roomID := types.NewRoomID()
	agentID := types.NewUserID()

	m1 := newMemory(roomID, agentID, "first", nil)
	m1.Unique = true
	gt.NoError(t, repo.Memory().Create(ctx, m1))
	gt.NoError(t, repo.Memory().Create(ctx, newMemory(roomID, agentID, "second", nil)))

	count, err := repo.Memory().Count(ctx, roomID, false, types.KindMessages)
	gt.NoError(t, err)
	gt.Value(t, count).Equal(2)

	count, err = repo.Memory().Count(ctx, roomID, true, types.KindMessages)
	gt.NoError(t, err)
	gt.Value(t, count).Equal(1)

	gt.NoError(t, repo.Memory().RemoveAll(ctx, roomID, types.KindMessages))
	count, err = repo.Memory().Count(ctx, roomID, false, types.KindMessages)
	gt.NoError(t, err)
	gt.Value(t, count).Equal(0)
}

func TestMemoryCachedEmbeddings(t *testing.T) {
	ctx := context.Background()
	repo := memory.New(2)
	roomID := types.NewRoomID()
	agentID := types.NewUserID()

	gt.NoError(t, repo.Memory().Create(ctx, newMemory(roomID, agentID, "hello world", []float32{1, 0})))
	gt.NoError(t, repo.Memory().Create(ctx, newMemory(roomID, agentID, "hello worlds", []float32{0, 1})))
	gt.NoError(t, repo.Memory().Create(ctx, newMemory(roomID, agentID, "completely different", []float32{1, 1})))

	matches, err := repo.Memory().GetCachedEmbeddings(ctx, types.KindMessages, "hello world", 5, 3)
	gt.NoError(t, err)
	gt.Value(t, len(matches)).Equal(2)
	// Exact match scores 0 and sorts first
	gt.Value(t, matches[0].Score).Equal(0)
	gt.Value(t, matches[1].Score).Equal(1)
}

func TestRoomParticipants(t *testing.T) {
	ctx := context.Background()
	repo := memory.New(0)

	roomID, err := repo.Room().Create(ctx, "")
	gt.NoError(t, err)
	gt.Value(t, roomID != "").Equal(true)

	exists, err := repo.Room().Exists(ctx, roomID)
	gt.NoError(t, err)
	gt.True(t, exists)

	userID := types.NewUserID()
	gt.NoError(t, repo.Room().AddParticipant(ctx, userID, roomID))
	// Adding twice is a no-op
	gt.NoError(t, repo.Room().AddParticipant(ctx, userID, roomID))

	ids, err := repo.Room().ParticipantsForRoom(ctx, roomID)
	gt.NoError(t, err)
	gt.Value(t, len(ids)).Equal(1)

	rooms, err := repo.Room().RoomsForParticipant(ctx, userID)
	gt.NoError(t, err)
	gt.Value(t, rooms).Equal([]types.RoomID{roomID})

	gt.NoError(t, repo.Room().RemoveParticipant(ctx, userID, roomID))
	ids, err = repo.Room().ParticipantsForRoom(ctx, roomID)
	gt.NoError(t, err)
	gt.Value(t, len(ids)).Equal(0)
}

func TestRoomParticipantUserState(t *testing.T) {
	ctx := context.Background()
	repo := memory.New(0)

	roomID, err := repo.Room().Create(ctx, "")
	gt.NoError(t, err)
	userID := types.NewUserID()

	// Absent participant row reports the empty state
	state, err := repo.Room().ParticipantUserState(ctx, roomID, userID)
	gt.NoError(t, err)
	gt.Value(t, state).Equal(types.UserStateNone)

	gt.NoError(t, repo.Room().SetParticipantUserState(ctx, roomID, userID, types.UserStateMuted))
	state, err = repo.Room().ParticipantUserState(ctx, roomID, userID)
	gt.NoError(t, err)
	gt.Value(t, state).Equal(types.UserStateMuted)
}

func TestRoomActors(t *testing.T) {
	ctx := context.Background()
	repo := memory.New(0)

	roomID, err := repo.Room().Create(ctx, "")
	gt.NoError(t, err)

	account := &model.Account{ID: types.NewUserID(), Name: "Alice", Username: "alice"}
	gt.NoError(t, repo.Account().Create(ctx, account))
	gt.NoError(t, repo.Room().AddParticipant(ctx, account.ID, roomID))

	// A participant with no account row is skipped
	gt.NoError(t, repo.Room().AddParticipant(ctx, types.NewUserID(), roomID))

	actors, err := repo.Room().ActorsForRoom(ctx, roomID)
	gt.NoError(t, err)
	gt.Value(t, len(actors)).Equal(1)
	gt.Value(t, actors[0].Name).Equal("Alice")
}

func TestRelationshipSharedRoom(t *testing.T) {
	ctx := context.Background()
	repo := memory.New(0)

	userA := types.NewUserID()
	userB := types.NewUserID()

	gt.NoError(t, repo.Relationship().Create(ctx, userA, userB))

	rel, err := repo.Relationship().Get(ctx, userB, userA)
	gt.NoError(t, err)
	gt.Value(t, rel != nil).Equal(true)
	gt.Value(t, rel.Status).Equal(types.RelationFriends)

	// Both users were placed into a shared room
	roomsA, err := repo.Room().RoomsForParticipant(ctx, userA)
	gt.NoError(t, err)
	roomsB, err := repo.Room().RoomsForParticipant(ctx, userB)
	gt.NoError(t, err)
	gt.Value(t, roomsA).Equal(roomsB)
	gt.Value(t, len(roomsA)).Equal(1)

	// Creating the same edge twice is a no-op
	gt.NoError(t, repo.Relationship().Create(ctx, userB, userA))
	rels, err := repo.Relationship().ListForUser(ctx, userA)
	gt.NoError(t, err)
	gt.Value(t, len(rels)).Equal(1)
}

func TestGoalLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := memory.New(0)
	roomID := types.NewRoomID()
	userID := types.NewUserID()

	goal := &model.Goal{
		RoomID: roomID,
		UserID: userID,
		Name:   "answer questions",
		Objectives: []model.Objective{
			{Description: "greet the user"},
		},
	}
	gt.NoError(t, repo.Goal().Create(ctx, goal))

	goals, err := repo.Goal().List(ctx, interfaces.GoalQuery{RoomID: roomID, OnlyInProgress: true})
	gt.NoError(t, err)
	gt.Value(t, len(goals)).Equal(1)
	gt.Value(t, goals[0].Status).Equal(types.GoalInProgress)

	gt.NoError(t, repo.Goal().UpdateStatus(ctx, goals[0].ID, types.GoalDone))
	goals, err = repo.Goal().List(ctx, interfaces.GoalQuery{RoomID: roomID, OnlyInProgress: true})
	gt.NoError(t, err)
	gt.Value(t, len(goals)).Equal(0)

	// Updating an absent goal fails
	err = repo.Goal().UpdateStatus(ctx, types.NewGoalID(), types.GoalDone)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrNotFound))
}

func TestCacheRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.New(0)
	agentID := types.NewUserID()

	entry, err := repo.Cache().Get(ctx, agentID, "absent")
	gt.NoError(t, err)
	gt.Nil(t, entry)

	gt.NoError(t, repo.Cache().Set(ctx, &interfaces.CacheEntry{
		AgentID:   agentID,
		Key:       "k",
		Value:     []byte("v"),
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	entry, err = repo.Cache().Get(ctx, agentID, "k")
	gt.NoError(t, err)
	gt.Value(t, string(entry.Value)).Equal("v")

	gt.NoError(t, repo.Cache().Delete(ctx, agentID, "k"))
	entry, err = repo.Cache().Get(ctx, agentID, "k")
	gt.NoError(t, err)
	gt.Nil(t, entry)
}
