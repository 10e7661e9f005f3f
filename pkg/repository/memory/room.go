package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

type participantKey struct {
	roomID types.RoomID
	userID types.UserID
}

type roomRepository struct {
	mu           sync.RWMutex
	rooms        map[types.RoomID]*model.Room
	participants map[participantKey]*model.Participant
	accounts     *accountRepository
}

func newRoomRepository() *roomRepository {
	return &roomRepository{
		rooms:        make(map[types.RoomID]*model.Room),
		participants: make(map[participantKey]*model.Participant),
	}
}

func (r *roomRepository) Create(ctx context.Context, roomID types.RoomID) (types.RoomID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if roomID == "" {
		roomID = types.NewRoomID()
	}
	if _, ok := r.rooms[roomID]; !ok {
		r.rooms[roomID] = &model.Room{ID: roomID, CreatedAt: time.Now().UTC()}
	}
	return roomID, nil
}

func (r *roomRepository) Exists(ctx context.Context, roomID types.RoomID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[roomID]
	return ok, nil
}

func (r *roomRepository) Remove(ctx context.Context, roomID types.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms, roomID)
	for key := range r.participants {
		if key.roomID == roomID {
			delete(r.participants, key)
		}
	}
	return nil
}

func (r *roomRepository) AddParticipant(ctx context.Context, userID types.UserID, roomID types.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := participantKey{roomID: roomID, userID: userID}
	if _, ok := r.participants[key]; ok {
		return nil
	}
	r.participants[key] = &model.Participant{
		ID:        types.NewParticipantID(),
		UserID:    userID,
		RoomID:    roomID,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (r *roomRepository) RemoveParticipant(ctx context.Context, userID types.UserID, roomID types.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.participants, participantKey{roomID: roomID, userID: userID})
	return nil
}

func (r *roomRepository) ParticipantsForRoom(ctx context.Context, roomID types.RoomID) ([]types.UserID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []types.UserID
	for key := range r.participants {
		if key.roomID == roomID {
			ids = append(ids, key.userID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *roomRepository) RoomsForParticipant(ctx context.Context, userID types.UserID) ([]types.RoomID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []types.RoomID
	for key := range r.participants {
		if key.userID == userID {
			ids = append(ids, key.roomID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *roomRepository) RoomsForParticipants(ctx context.Context, userIDs []types.UserID) ([]types.RoomID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[types.RoomID]bool)
	members := make(map[types.UserID]bool, len(userIDs))
	for _, id := range userIDs {
		members[id] = true
	}

	var ids []types.RoomID
	for key := range r.participants {
		if members[key.userID] && !seen[key.roomID] {
			seen[key.roomID] = true
			ids = append(ids, key.roomID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *roomRepository) ParticipantUserState(ctx context.Context, roomID types.RoomID, userID types.UserID) (types.UserState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.participants[participantKey{roomID: roomID, userID: userID}]
	if !ok {
		return types.UserStateNone, nil
	}
	return p.UserState, nil
}

func (r *roomRepository) SetParticipantUserState(ctx context.Context, roomID types.RoomID, userID types.UserID, state types.UserState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := participantKey{roomID: roomID, userID: userID}
	p, ok := r.participants[key]
	if !ok {
		p = &model.Participant{
			ID:        types.NewParticipantID(),
			UserID:    userID,
			RoomID:    roomID,
			CreatedAt: time.Now().UTC(),
		}
		r.participants[key] = p
	}
	p.UserState = state
	return nil
}

func (r *roomRepository) ActorsForRoom(ctx context.Context, roomID types.RoomID) ([]*model.Account, error) {
	userIDs, err := r.ParticipantsForRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if r.accounts == nil {
		return []*model.Account{}, nil
	}

	actors := make([]*model.Account, 0, len(userIDs))
	for _, id := range userIDs {
		account, err := r.accounts.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if account != nil {
			actors = append(actors, account)
		}
	}
	return actors, nil
}
