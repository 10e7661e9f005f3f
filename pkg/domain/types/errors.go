package types

import "github.com/m-mizutani/goerr/v2"

// Error taxonomy shared across layers. Callers classify with errors.Is.
var (
	// ErrValidation marks malformed or empty input. Dropped silently by
	// callers, never retried.
	ErrValidation = goerr.New("validation failed")

	// ErrNotFound marks an absent row or document where presence was
	// required (updates, deletes). Plain reads map absence to nil/empty
	// results instead.
	ErrNotFound = goerr.New("not found")

	// ErrStorage marks a genuine backend fault. Logged and propagated;
	// the caller decides the fallback.
	ErrStorage = goerr.New("storage failure")

	// ErrCircuitOpen is returned without attempting the wrapped operation
	// while a circuit breaker is open.
	ErrCircuitOpen = goerr.New("circuit breaker is open")

	// ErrProvider marks a failed model-provider call. Counted toward the
	// circuit breaker.
	ErrProvider = goerr.New("model provider failure")
)
