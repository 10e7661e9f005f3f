// Package cli wires flags, configuration and commands for the agent
// binary.
package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/cli/config"
	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/logging"
)

func Run(ctx context.Context, args []string, version string) error {
	var loggerCfg config.Logger

	app := &cli.Command{
		Name:    "tgrag",
		Usage:   "Conversational agent runtime with retrieval-augmented memory",
		Version: version,
		Flags:   loggerCfg.Flags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := loggerCfg.Configure(); err != nil {
				return ctx, err
			}
			logging.Default().Info("Starting tgrag", "logger", loggerCfg)
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmdServe(),
			cmdChat(),
			cmdMigrate(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		logging.Default().Error("failed to run app", "error", err)
		return err
	}

	return nil
}
