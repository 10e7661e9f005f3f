package config

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/logging"
)

// Logger holds CLI flags for log output configuration
type Logger struct {
	level  string
	format string
}

// Flags returns CLI flags for logger configuration
func (l *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("TGRAG_LOG_LEVEL"),
			Destination: &l.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console or json)",
			Value:       "console",
			Sources:     cli.EnvVars("TGRAG_LOG_FORMAT"),
			Destination: &l.format,
		},
	}
}

// Configure installs the default logger per the flags.
func (l *Logger) Configure() error {
	logging.SetDefault(logging.New(l.level, l.format, os.Stderr))
	return nil
}

// LogValue summarizes the configuration for startup logging.
func (l *Logger) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("level", l.level),
		slog.String("format", l.format),
	)
}
