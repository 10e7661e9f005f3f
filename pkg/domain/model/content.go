package model

import (
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
)

// Attachment is a reference to media carried alongside a message.
type Attachment struct {
	ID          string `json:"id,omitempty"`
	URL         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Content is the payload of a memory or response. Text is required for
// persistence; Action names the behavior the agent attached to the reply.
type Content struct {
	Text        string         `json:"text"`
	Action      string         `json:"action,omitempty"`
	InReplyTo   types.MemoryID `json:"inReplyTo,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ActionExample is a single turn of few-shot dialogue bundled with an
// action definition. Never persisted or executed; only rendered into
// prompts.
type ActionExample struct {
	User    string  `json:"user"`
	Content Content `json:"content"`
}
