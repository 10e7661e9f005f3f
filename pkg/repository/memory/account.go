package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

type accountRepository struct {
	mu       sync.RWMutex
	accounts map[types.UserID]*model.Account
}

func newAccountRepository() *accountRepository {
	return &accountRepository{
		accounts: make(map[types.UserID]*model.Account),
	}
}

func copyAccount(a *model.Account) *model.Account {
	copied := *a
	if a.Details != nil {
		copied.Details = make(map[string]any, len(a.Details))
		for k, v := range a.Details {
			copied.Details[k] = v
		}
	}
	return &copied
}

func (r *accountRepository) GetByID(ctx context.Context, userID types.UserID) (*model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[userID]
	if !ok {
		return nil, nil
	}
	return copyAccount(a), nil
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyAccount(account)
	if created.ID == "" {
		created.ID = types.NewUserID()
	}
	r.accounts[created.ID] = created
	return nil
}

type relationshipRepository struct {
	mu    sync.RWMutex
	edges []*model.Relationship
	rooms *roomRepository
}

func newRelationshipRepository(rooms *roomRepository) *relationshipRepository {
	return &relationshipRepository{rooms: rooms}
}

func (r *relationshipRepository) Create(ctx context.Context, userA, userB types.UserID) error {
	existing, err := r.Get(ctx, userA, userB)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	// Friends share a room so their conversations have somewhere to live
	roomID, err := r.rooms.Create(ctx, "")
	if err != nil {
		return err
	}
	if err := r.rooms.AddParticipant(ctx, userA, roomID); err != nil {
		return err
	}
	if err := r.rooms.AddParticipant(ctx, userB, roomID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.edges = append(r.edges, &model.Relationship{
		UserA:  userA,
		UserB:  userB,
		UserID: userA,
		Status: types.RelationFriends,
	})
	return nil
}

func (r *relationshipRepository) Get(ctx context.Context, userA, userB types.UserID) (*model.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.edges {
		if (e.UserA == userA && e.UserB == userB) || (e.UserA == userB && e.UserB == userA) {
			copied := *e
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *relationshipRepository) ListForUser(ctx context.Context, userID types.UserID) ([]*model.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Relationship
	for _, e := range r.edges {
		if e.UserA == userID || e.UserB == userID {
			copied := *e
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UserA < result[j].UserA
	})
	return result, nil
}
