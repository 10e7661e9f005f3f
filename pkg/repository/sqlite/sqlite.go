// Package sqlite implements the Repository interface on SQLite via the
// pure-Go modernc.org/sqlite driver. Embeddings are stored as JSON and
// similarity is computed in process, which is fine at single-agent scale.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/interfaces"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

// wrapStorage tags a backend fault with types.ErrStorage so callers can
// classify it with errors.Is. The original error is carried as a value.
func wrapStorage(err error, msg string, vals ...goerr.Option) error {
	return goerr.Wrap(types.ErrStorage, msg, append(vals, goerr.V("cause", err.Error()))...)
}

type SQLite struct {
	db           *sql.DB
	memory       *memoryRepository
	room         *roomRepository
	account      *accountRepository
	relationship *relationshipRepository
	goal         *goalRepository
	cache        *cacheRepository
}

var _ interfaces.Repository = &SQLite{}

// New opens or creates a SQLite database at path and prepares the
// schema. dimension selects the memories table; zero disables dimension
// validation but still routes to memories_0.
func New(path string, dimension int) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapStorage(err, "failed to open sqlite database", goerr.V("path", path))
	}
	// WAL allows concurrent readers while the runtime writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, wrapStorage(err, "failed to enable WAL mode", goerr.V("path", path))
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, wrapStorage(err, "failed to enable foreign keys", goerr.V("path", path))
	}

	s := &SQLite{db: db}
	if err := s.init(dimension); err != nil {
		db.Close()
		return nil, err
	}

	roomRepo := &roomRepository{db: db}
	accountRepo := &accountRepository{db: db}
	roomRepo.accounts = accountRepo

	s.memory = &memoryRepository{db: db, dimension: dimension}
	s.room = roomRepo
	s.account = accountRepo
	s.relationship = &relationshipRepository{db: db, rooms: roomRepo}
	s.goal = &goalRepository{db: db}
	s.cache = &cacheRepository{db: db}

	return s, nil
}

// MemoriesTableName returns the dimension-qualified table name for
// memory rows.
func MemoriesTableName(dimension int) string {
	return fmt.Sprintf("memories_%d", dimension)
}

func (s *SQLite) init(dimension int) error {
	memTable := MemoriesTableName(dimension)
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id          TEXT PRIMARY KEY,
		agent_id    TEXT NOT NULL DEFAULT '',
		room_id     TEXT NOT NULL,
		user_id     TEXT NOT NULL DEFAULT '',
		text        TEXT NOT NULL,
		action      TEXT NOT NULL DEFAULT '',
		in_reply_to TEXT NOT NULL DEFAULT '',
		attachments TEXT NOT NULL DEFAULT '',
		metadata    TEXT NOT NULL DEFAULT '',
		embedding   TEXT NOT NULL DEFAULT '',
		is_unique   INTEGER NOT NULL DEFAULT 0,
		kind        TEXT NOT NULL DEFAULT 'messages',
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id         TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS participants (
		id         TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		room_id    TEXT NOT NULL,
		user_state TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (room_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS accounts (
		id       TEXT PRIMARY KEY,
		name     TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		details  TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS relationships (
		user_a  TEXT NOT NULL,
		user_b  TEXT NOT NULL,
		user_id TEXT NOT NULL,
		status  TEXT NOT NULL DEFAULT 'FRIENDS',
		PRIMARY KEY (user_a, user_b)
	);

	CREATE TABLE IF NOT EXISTS goals (
		id         TEXT PRIMARY KEY,
		room_id    TEXT NOT NULL,
		user_id    TEXT NOT NULL DEFAULT '',
		name       TEXT NOT NULL DEFAULT '',
		status     TEXT NOT NULL DEFAULT 'IN_PROGRESS',
		objectives TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS cache (
		agent_id   TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      BLOB NOT NULL,
		expires_at DATETIME,
		PRIMARY KEY (agent_id, key)
	);

	CREATE TABLE IF NOT EXISTS logs (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		body       TEXT NOT NULL DEFAULT '{}',
		user_id    TEXT NOT NULL DEFAULT '',
		room_id    TEXT NOT NULL DEFAULT '',
		kind       TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_%s_room ON %s(room_id, kind, created_at);
	CREATE INDEX IF NOT EXISTS idx_participants_user ON participants(user_id);
	CREATE INDEX IF NOT EXISTS idx_goals_room ON goals(room_id);
	`, memTable, memTable, memTable)

	if _, err := s.db.Exec(schema); err != nil {
		return wrapStorage(err, "failed to initialize schema")
	}
	return nil
}

func (s *SQLite) Memory() interfaces.MemoryRepository {
	return s.memory
}

func (s *SQLite) Room() interfaces.RoomRepository {
	return s.room
}

func (s *SQLite) Account() interfaces.AccountRepository {
	return s.account
}

func (s *SQLite) Relationship() interfaces.RelationshipRepository {
	return s.relationship
}

func (s *SQLite) Goal() interfaces.GoalRepository {
	return s.goal
}

func (s *SQLite) Cache() interfaces.CacheRepository {
	return s.cache
}

func (s *SQLite) Log(ctx context.Context, entry *model.LogEntry) error {
	body := marshalJSON(entry.Body)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logs (body, user_id, room_id, kind) VALUES (?, ?, ?, ?)`,
		body, entry.UserID, entry.RoomID, entry.Kind)
	if err != nil {
		return wrapStorage(err, "failed to append log entry", goerr.V("kind", entry.Kind))
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
