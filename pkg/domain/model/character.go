package model

import (
	"strings"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// CharacterTemplates lets a deployment override the built-in prompt
// templates. An empty field falls back to the default.
type CharacterTemplates struct {
	MessageHandler  string `toml:"message_handler"`
	ShouldRespond   string `toml:"should_respond"`
	ContinueHandler string `toml:"continue_handler"`
}

// Character is the persona the runtime speaks as.
type Character struct {
	ID              types.UserID       `toml:"id"`
	Name            string             `toml:"name"`
	Username        string             `toml:"username"`
	System          string             `toml:"system"`
	Bio             []string           `toml:"bio"`
	Lore            []string           `toml:"lore"`
	Knowledge       []string           `toml:"knowledge"`
	MessageExamples []string           `toml:"message_examples"`
	Templates       CharacterTemplates `toml:"templates"`
}

// Validate checks required fields and derives a deterministic ID from the
// name when none is configured.
func (c *Character) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return goerr.Wrap(types.ErrValidation, "character name is required")
	}
	if c.ID == "" {
		c.ID = types.UserID(types.DeterministicID(c.Name))
	}
	return nil
}

// BioText joins the bio lines for prompt rendering.
func (c *Character) BioText() string {
	return strings.Join(c.Bio, "\n")
}

// LoreText joins the lore lines for prompt rendering.
func (c *Character) LoreText() string {
	return strings.Join(c.Lore, "\n")
}

// KnowledgeText joins the knowledge lines for prompt rendering.
func (c *Character) KnowledgeText() string {
	return strings.Join(c.Knowledge, "\n")
}
