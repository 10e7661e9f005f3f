package config

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/0xhatsume/tg-agentic-rag-dash/pkg/utils/breaker"
)

// Runtime holds tuning flags shared by the serve and chat commands.
type Runtime struct {
	dimension            int64
	breakerThreshold     int64
	breakerReset         time.Duration
	breakerHalfOpenCount int64
	cacheTTL             time.Duration
}

// Flags returns CLI flags for runtime tuning
func (r *Runtime) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "embedding-dimension",
			Usage:       "Embedding vector dimension; must match the repository's tables",
			Value:       768,
			Sources:     cli.EnvVars("TGRAG_EMBEDDING_DIMENSION"),
			Destination: &r.dimension,
		},
		&cli.Int64Flag{
			Name:        "breaker-threshold",
			Usage:       "Consecutive provider failures before the circuit opens",
			Value:       5,
			Sources:     cli.EnvVars("TGRAG_BREAKER_THRESHOLD"),
			Destination: &r.breakerThreshold,
		},
		&cli.DurationFlag{
			Name:        "breaker-reset",
			Usage:       "Cooldown before an open circuit probes again",
			Value:       60 * time.Second,
			Sources:     cli.EnvVars("TGRAG_BREAKER_RESET"),
			Destination: &r.breakerReset,
		},
		&cli.Int64Flag{
			Name:        "breaker-half-open-attempts",
			Usage:       "Consecutive successful probes before a half-open circuit closes",
			Value:       3,
			Sources:     cli.EnvVars("TGRAG_BREAKER_HALF_OPEN_ATTEMPTS"),
			Destination: &r.breakerHalfOpenCount,
		},
		&cli.DurationFlag{
			Name:        "cache-ttl",
			Usage:       "Default TTL for cached values",
			Value:       time.Hour,
			Sources:     cli.EnvVars("TGRAG_CACHE_TTL"),
			Destination: &r.cacheTTL,
		},
	}
}

// Dimension returns the configured embedding dimension.
func (r *Runtime) Dimension() int {
	return int(r.dimension)
}

// CacheTTL returns the configured default cache TTL.
func (r *Runtime) CacheTTL() time.Duration {
	return r.cacheTTL
}

// Breaker builds a circuit breaker from the tuning flags.
func (r *Runtime) Breaker() *breaker.Breaker {
	return breaker.New(
		breaker.WithFailureThreshold(int(r.breakerThreshold)),
		breaker.WithResetTimeout(r.breakerReset),
		breaker.WithHalfOpenMaxAttempts(int(r.breakerHalfOpenCount)),
	)
}
