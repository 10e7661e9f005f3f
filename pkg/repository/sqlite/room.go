package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

type roomRepository struct {
	db       *sql.DB
	accounts *accountRepository
}

func (r *roomRepository) Create(ctx context.Context, roomID types.RoomID) (types.RoomID, error) {
	if roomID == "" {
		roomID = types.NewRoomID()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO rooms (id, created_at) VALUES (?, ?)`,
		roomID, time.Now().UTC())
	if err != nil {
		return "", wrapStorage(err, "failed to create room", goerr.V("roomID", roomID))
	}
	return roomID, nil
}

func (r *roomRepository) Exists(ctx context.Context, roomID types.RoomID) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = ?`, roomID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, wrapStorage(err, "failed to check room", goerr.V("roomID", roomID))
	}
	return true, nil
}

func (r *roomRepository) Remove(ctx context.Context, roomID types.RoomID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM participants WHERE room_id = ?`, roomID); err != nil {
		return wrapStorage(err, "failed to delete participants", goerr.V("roomID", roomID))
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, roomID); err != nil {
		return wrapStorage(err, "failed to delete room", goerr.V("roomID", roomID))
	}
	return nil
}

func (r *roomRepository) AddParticipant(ctx context.Context, userID types.UserID, roomID types.RoomID) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO participants (id, user_id, room_id, created_at) VALUES (?, ?, ?, ?)`,
		types.NewParticipantID(), userID, roomID, time.Now().UTC())
	if err != nil {
		return wrapStorage(err, "failed to add participant",
			goerr.V("roomID", roomID), goerr.V("userID", userID))
	}
	return nil
}

func (r *roomRepository) RemoveParticipant(ctx context.Context, userID types.UserID, roomID types.RoomID) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM participants WHERE room_id = ? AND user_id = ?`, roomID, userID)
	if err != nil {
		return wrapStorage(err, "failed to remove participant",
			goerr.V("roomID", roomID), goerr.V("userID", userID))
	}
	return nil
}

func (r *roomRepository) ParticipantsForRoom(ctx context.Context, roomID types.RoomID) ([]types.UserID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM participants WHERE room_id = ? ORDER BY user_id`, roomID)
	if err != nil {
		return nil, wrapStorage(err, "failed to query participants", goerr.V("roomID", roomID))
	}
	defer rows.Close()

	var ids []types.UserID
	for rows.Next() {
		var id types.UserID
		if err := rows.Scan(&id); err != nil {
			return nil, wrapStorage(err, "failed to scan participant row")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *roomRepository) RoomsForParticipant(ctx context.Context, userID types.UserID) ([]types.RoomID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT room_id FROM participants WHERE user_id = ? ORDER BY room_id`, userID)
	if err != nil {
		return nil, wrapStorage(err, "failed to query rooms", goerr.V("userID", userID))
	}
	defer rows.Close()

	var ids []types.RoomID
	for rows.Next() {
		var id types.RoomID
		if err := rows.Scan(&id); err != nil {
			return nil, wrapStorage(err, "failed to scan room row")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *roomRepository) RoomsForParticipants(ctx context.Context, userIDs []types.UserID) ([]types.RoomID, error) {
	if len(userIDs) == 0 {
		return []types.RoomID{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(userIDs)), ",")
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT room_id FROM participants WHERE user_id IN (`+placeholders+`) ORDER BY room_id`,
		args...)
	if err != nil {
		return nil, wrapStorage(err, "failed to query rooms for participants")
	}
	defer rows.Close()

	var ids []types.RoomID
	for rows.Next() {
		var id types.RoomID
		if err := rows.Scan(&id); err != nil {
			return nil, wrapStorage(err, "failed to scan room row")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *roomRepository) ParticipantUserState(ctx context.Context, roomID types.RoomID, userID types.UserID) (types.UserState, error) {
	var state types.UserState
	err := r.db.QueryRowContext(ctx,
		`SELECT user_state FROM participants WHERE room_id = ? AND user_id = ?`,
		roomID, userID).Scan(&state)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.UserStateNone, nil
		}
		return types.UserStateNone, wrapStorage(err, "failed to get participant state",
			goerr.V("roomID", roomID), goerr.V("userID", userID))
	}
	return state, nil
}

func (r *roomRepository) SetParticipantUserState(ctx context.Context, roomID types.RoomID, userID types.UserID, state types.UserState) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE participants SET user_state = ? WHERE room_id = ? AND user_id = ?`,
		state, roomID, userID)
	if err != nil {
		return wrapStorage(err, "failed to update participant state",
			goerr.V("roomID", roomID), goerr.V("userID", userID))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return wrapStorage(err, "failed to read update result")
	}
	if affected == 0 {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO participants (id, user_id, room_id, user_state, created_at) VALUES (?, ?, ?, ?, ?)`,
			types.NewParticipantID(), userID, roomID, state, time.Now().UTC())
		if err != nil {
			return wrapStorage(err, "failed to create participant",
				goerr.V("roomID", roomID), goerr.V("userID", userID))
		}
	}
	return nil
}

func (r *roomRepository) ActorsForRoom(ctx context.Context, roomID types.RoomID) ([]*model.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.name, a.username, a.details
		 FROM participants p JOIN accounts a ON a.id = p.user_id
		 WHERE p.room_id = ? ORDER BY a.name`, roomID)
	if err != nil {
		return nil, wrapStorage(err, "failed to query actors", goerr.V("roomID", roomID))
	}
	defer rows.Close()

	actors := make([]*model.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, wrapStorage(err, "failed to scan actor row")
		}
		actors = append(actors, account)
	}
	return actors, rows.Err()
}
