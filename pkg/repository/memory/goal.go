package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

type goalRepository struct {
	mu    sync.RWMutex
	goals map[types.GoalID]*model.Goal
}

func newGoalRepository() *goalRepository {
	return &goalRepository{
		goals: make(map[types.GoalID]*model.Goal),
	}
}

func copyGoal(g *model.Goal) *model.Goal {
	copied := *g
	if g.Objectives != nil {
		copied.Objectives = make([]model.Objective, len(g.Objectives))
		copy(copied.Objectives, g.Objectives)
	}
	return &copied
}

func (r *goalRepository) List(ctx context.Context, q interfaces.GoalQuery) ([]*model.Goal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*model.Goal
	for _, g := range r.goals {
		if g.RoomID != q.RoomID {
			continue
		}
		if q.UserID != "" && g.UserID != q.UserID {
			continue
		}
		if q.OnlyInProgress && g.Status != types.GoalInProgress {
			continue
		}
		result = append(result, copyGoal(g))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if q.Count > 0 && q.Count < len(result) {
		result = result[:q.Count]
	}
	return result, nil
}

func (r *goalRepository) Create(ctx context.Context, goal *model.Goal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	created := copyGoal(goal)
	if created.ID == "" {
		created.ID = types.NewGoalID()
	}
	if created.Status == "" {
		created.Status = types.GoalInProgress
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now().UTC()
	}
	r.goals[created.ID] = created
	return nil
}

func (r *goalRepository) Update(ctx context.Context, goal *model.Goal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.goals[goal.ID]; !ok {
		return goerr.Wrap(types.ErrNotFound, "goal not found", goerr.V("goalID", goal.ID))
	}
	r.goals[goal.ID] = copyGoal(goal)
	return nil
}

func (r *goalRepository) UpdateStatus(ctx context.Context, id types.GoalID, status types.GoalStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.goals[id]
	if !ok {
		return goerr.Wrap(types.ErrNotFound, "goal not found", goerr.V("goalID", id))
	}
	g.Status = status
	return nil
}

func (r *goalRepository) Remove(ctx context.Context, id types.GoalID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.goals, id)
	return nil
}

func (r *goalRepository) RemoveAllForRoom(ctx context.Context, roomID types.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, g := range r.goals {
		if g.RoomID == roomID {
			delete(r.goals, id)
		}
	}
	return nil
}
