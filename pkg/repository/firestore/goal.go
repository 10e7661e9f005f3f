package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

type objectiveDoc struct {
	ID          string `firestore:"ID,omitempty"`
	Description string `firestore:"Description"`
	Completed   bool   `firestore:"Completed"`
}

type goalDoc struct {
	ID         types.GoalID     `firestore:"ID"`
	RoomID     types.RoomID     `firestore:"RoomID"`
	UserID     types.UserID     `firestore:"UserID"`
	Name       string           `firestore:"Name"`
	Status     types.GoalStatus `firestore:"Status"`
	Objectives []objectiveDoc   `firestore:"Objectives,omitempty"`
	CreatedAt  time.Time        `firestore:"CreatedAt"`
}

func toGoalDoc(g *model.Goal) *goalDoc {
	doc := &goalDoc{
		ID:        g.ID,
		RoomID:    g.RoomID,
		UserID:    g.UserID,
		Name:      g.Name,
		Status:    g.Status,
		CreatedAt: g.CreatedAt,
	}
	for _, o := range g.Objectives {
		doc.Objectives = append(doc.Objectives, objectiveDoc{
			ID:          o.ID,
			Description: o.Description,
			Completed:   o.Completed,
		})
	}
	return doc
}

func fromGoalDoc(d *goalDoc) *model.Goal {
	g := &model.Goal{
		ID:        d.ID,
		RoomID:    d.RoomID,
		UserID:    d.UserID,
		Name:      d.Name,
		Status:    d.Status,
		CreatedAt: d.CreatedAt,
	}
	for _, o := range d.Objectives {
		g.Objectives = append(g.Objectives, model.Objective{
			ID:          o.ID,
			Description: o.Description,
			Completed:   o.Completed,
		})
	}
	return g
}

type goalRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newGoalRepository(client *firestore.Client) *goalRepository {
	return &goalRepository{client: client}
}

func (r *goalRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(r.collectionPrefix + "goals")
}

func (r *goalRepository) List(ctx context.Context, q interfaces.GoalQuery) ([]*model.Goal, error) {
	query := r.collection().Where("RoomID", "==", q.RoomID)
	if q.UserID != "" {
		query = query.Where("UserID", "==", q.UserID)
	}
	if q.OnlyInProgress {
		query = query.Where("Status", "==", types.GoalInProgress)
	}
	query = query.OrderBy("CreatedAt", firestore.Desc)
	if q.Count > 0 {
		query = query.Limit(q.Count)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	goals := make([]*model.Goal, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goals, nil
			}
			return nil, wrapStorage(err, "failed to iterate goals", goerr.V("roomID", q.RoomID))
		}
		var d goalDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, wrapStorage(err, "failed to unmarshal goal", goerr.V("roomID", q.RoomID))
		}
		goals = append(goals, fromGoalDoc(&d))
	}
	return goals, nil
}

func (r *goalRepository) Create(ctx context.Context, goal *model.Goal) error {
	g := *goal
	if g.ID == "" {
		g.ID = types.NewGoalID()
	}
	if g.Status == "" {
		g.Status = types.GoalInProgress
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}

	if _, err := r.collection().Doc(string(g.ID)).Set(ctx, toGoalDoc(&g)); err != nil {
		return wrapStorage(err, "failed to create goal", goerr.V("goalID", g.ID))
	}
	return nil
}

func (r *goalRepository) Update(ctx context.Context, goal *model.Goal) error {
	docRef := r.collection().Doc(string(goal.ID))
	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(types.ErrNotFound, "goal not found", goerr.V("goalID", goal.ID))
		}
		return wrapStorage(err, "failed to get goal", goerr.V("goalID", goal.ID))
	}

	if _, err := docRef.Set(ctx, toGoalDoc(goal)); err != nil {
		return wrapStorage(err, "failed to update goal", goerr.V("goalID", goal.ID))
	}
	return nil
}

func (r *goalRepository) UpdateStatus(ctx context.Context, id types.GoalID, newStatus types.GoalStatus) error {
	docRef := r.collection().Doc(string(id))
	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(types.ErrNotFound, "goal not found", goerr.V("goalID", id))
		}
		return wrapStorage(err, "failed to get goal", goerr.V("goalID", id))
	}

	if _, err := docRef.Update(ctx, []firestore.Update{
		{Path: "Status", Value: newStatus},
	}); err != nil {
		return wrapStorage(err, "failed to update goal status", goerr.V("goalID", id))
	}
	return nil
}

func (r *goalRepository) Remove(ctx context.Context, id types.GoalID) error {
	if _, err := r.collection().Doc(string(id)).Delete(ctx); err != nil {
		return wrapStorage(err, "failed to delete goal", goerr.V("goalID", id))
	}
	return nil
}

func (r *goalRepository) RemoveAllForRoom(ctx context.Context, roomID types.RoomID) error {
	iter := r.collection().Where("RoomID", "==", roomID).Documents(ctx)
	defer iter.Stop()

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return wrapStorage(err, "failed to iterate goals for removal", goerr.V("roomID", roomID))
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return wrapStorage(err, "failed to delete goal", goerr.V("goalID", doc.Ref.ID))
		}
	}
	return nil
}
