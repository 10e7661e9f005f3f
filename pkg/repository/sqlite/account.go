package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

type accountRepository struct {
	db *sql.DB
}

func scanAccount(row interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	var details string
	if err := row.Scan(&a.ID, &a.Name, &a.Username, &details); err != nil {
		return nil, err
	}
	if details != "" && details != "{}" {
		if err := json.Unmarshal([]byte(details), &a.Details); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

func (r *accountRepository) GetByID(ctx context.Context, userID types.UserID) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, username, details FROM accounts WHERE id = ?`, userID)

	account, err := scanAccount(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, wrapStorage(err, "failed to get account", goerr.V("userID", userID))
	}
	return account, nil
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	id := account.ID
	if id == "" {
		id = types.NewUserID()
	}

	details := "{}"
	if account.Details != nil {
		details = marshalJSON(account.Details)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO accounts (id, name, username, details) VALUES (?, ?, ?, ?)`,
		id, account.Name, account.Username, details)
	if err != nil {
		return wrapStorage(err, "failed to create account", goerr.V("userID", id))
	}
	return nil
}

type relationshipRepository struct {
	db    *sql.DB
	rooms *roomRepository
}

// relationshipPair orders the edge so it is stored once regardless of
// argument order.
func relationshipPair(userA, userB types.UserID) (types.UserID, types.UserID) {
	if userB < userA {
		return userB, userA
	}
	return userA, userB
}

func (r *relationshipRepository) Create(ctx context.Context, userA, userB types.UserID) error {
	existing, err := r.Get(ctx, userA, userB)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

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

	first, second := relationshipPair(userA, userB)
	_, err = r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO relationships (user_a, user_b, user_id, status) VALUES (?, ?, ?, ?)`,
		first, second, userA, types.RelationFriends)
	if err != nil {
		return wrapStorage(err, "failed to create relationship",
			goerr.V("userA", userA), goerr.V("userB", userB))
	}
	return nil
}

func (r *relationshipRepository) Get(ctx context.Context, userA, userB types.UserID) (*model.Relationship, error) {
	first, second := relationshipPair(userA, userB)

	var rel model.Relationship
	err := r.db.QueryRowContext(ctx,
		`SELECT user_a, user_b, user_id, status FROM relationships WHERE user_a = ? AND user_b = ?`,
		first, second).Scan(&rel.UserA, &rel.UserB, &rel.UserID, &rel.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, wrapStorage(err, "failed to get relationship",
			goerr.V("userA", userA), goerr.V("userB", userB))
	}
	return &rel, nil
}

func (r *relationshipRepository) ListForUser(ctx context.Context, userID types.UserID) ([]*model.Relationship, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_a, user_b, user_id, status FROM relationships WHERE user_a = ? OR user_b = ?`,
		userID, userID)
	if err != nil {
		return nil, wrapStorage(err, "failed to list relationships", goerr.V("userID", userID))
	}
	defer rows.Close()

	var result []*model.Relationship
	for rows.Next() {
		var rel model.Relationship
		if err := rows.Scan(&rel.UserA, &rel.UserB, &rel.UserID, &rel.Status); err != nil {
			return nil, wrapStorage(err, "failed to scan relationship row")
		}
		result = append(result, &rel)
	}
	return result, rows.Err()
}
