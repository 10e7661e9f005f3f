package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

type goalRepository struct {
	db *sql.DB
}

func marshalObjectives(objectives []model.Objective) string {
	if len(objectives) == 0 {
		return "[]"
	}
	return marshalJSON(objectives)
}

func unmarshalObjectives(raw string) []model.Objective {
	if raw == "" || raw == "[]" {
		return nil
	}
	var objectives []model.Objective
	if err := json.Unmarshal([]byte(raw), &objectives); err != nil {
		return nil
	}
	return objectives
}

func (r *goalRepository) List(ctx context.Context, q interfaces.GoalQuery) ([]*model.Goal, error) {
	query := `SELECT id, room_id, user_id, name, status, objectives, created_at FROM goals WHERE room_id = ?`
	args := []any{q.RoomID}
	if q.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, q.UserID)
	}
	if q.OnlyInProgress {
		query += ` AND status = ?`
		args = append(args, types.GoalInProgress)
	}
	query += ` ORDER BY created_at DESC`
	if q.Count > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Count)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorage(err, "failed to query goals", goerr.V("roomID", q.RoomID))
	}
	defer rows.Close()

	goals := make([]*model.Goal, 0)
	for rows.Next() {
		var g model.Goal
		var objectives string
		if err := rows.Scan(&g.ID, &g.RoomID, &g.UserID, &g.Name, &g.Status, &objectives, &g.CreatedAt); err != nil {
			return nil, wrapStorage(err, "failed to scan goal row")
		}
		g.Objectives = unmarshalObjectives(objectives)
		goals = append(goals, &g)
	}
	return goals, rows.Err()
}

func (r *goalRepository) Create(ctx context.Context, goal *model.Goal) error {
	id := goal.ID
	if id == "" {
		id = types.NewGoalID()
	}
	status := goal.Status
	if status == "" {
		status = types.GoalInProgress
	}
	createdAt := goal.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO goals (id, room_id, user_id, name, status, objectives, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, goal.RoomID, goal.UserID, goal.Name, status, marshalObjectives(goal.Objectives), createdAt)
	if err != nil {
		return wrapStorage(err, "failed to create goal", goerr.V("goalID", id))
	}
	return nil
}

func (r *goalRepository) Update(ctx context.Context, goal *model.Goal) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goals SET room_id = ?, user_id = ?, name = ?, status = ?, objectives = ? WHERE id = ?`,
		goal.RoomID, goal.UserID, goal.Name, goal.Status, marshalObjectives(goal.Objectives), goal.ID)
	if err != nil {
		return wrapStorage(err, "failed to update goal", goerr.V("goalID", goal.ID))
	}
	return requireAffected(res, goal.ID)
}

func (r *goalRepository) UpdateStatus(ctx context.Context, id types.GoalID, status types.GoalStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE goals SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return wrapStorage(err, "failed to update goal status", goerr.V("goalID", id))
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id types.GoalID) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapStorage(err, "failed to read update result", goerr.V("goalID", id))
	}
	if affected == 0 {
		return goerr.Wrap(types.ErrNotFound, "goal not found", goerr.V("goalID", id))
	}
	return nil
}

func (r *goalRepository) Remove(ctx context.Context, id types.GoalID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id); err != nil {
		return wrapStorage(err, "failed to delete goal", goerr.V("goalID", id))
	}
	return nil
}

func (r *goalRepository) RemoveAllForRoom(ctx context.Context, roomID types.RoomID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE room_id = ?`, roomID); err != nil {
		return wrapStorage(err, "failed to delete goals", goerr.V("roomID", roomID))
	}
	return nil
}
