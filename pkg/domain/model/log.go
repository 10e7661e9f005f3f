package model

import (
	"time"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

// LogEntry is an audit record of a runtime decision: the inbound message,
// the composed context and the generated response.
type LogEntry struct {
	Body      map[string]any
	UserID    types.UserID
	RoomID    types.RoomID
	Kind      string
	CreatedAt time.Time
}
