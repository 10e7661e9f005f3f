package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/domain/model"
)

// Character holds the flag pointing at the persona definition file.
type Character struct {
	path string
}

// Flags returns CLI flags for character configuration
func (c *Character) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "character",
			Usage:       "Path to the character TOML file",
			Sources:     cli.EnvVars("TGRAG_CHARACTER"),
			Destination: &c.path,
		},
	}
}

// Configure loads and validates the character. Without a file a minimal
// default persona is returned.
func (c *Character) Configure() (*model.Character, error) {
	if c.path == "" {
		character := &model.Character{
			Name: "Agent",
			Bio:  []string{"a general purpose conversational assistant"},
		}
		if err := character.Validate(); err != nil {
			return nil, err
		}
		return character, nil
	}

	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read character file", goerr.V("path", c.path))
	}

	var character model.Character
	if err := toml.Unmarshal(data, &character); err != nil {
		return nil, goerr.Wrap(err, "failed to parse character TOML", goerr.V("path", c.path))
	}
	if err := character.Validate(); err != nil {
		return nil, goerr.Wrap(err, "character validation failed", goerr.V("path", c.path))
	}

	return &character, nil
}
