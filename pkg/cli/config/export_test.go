package config

import "time"

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, projectID, databaseID, sqlitePath string) *Repository {
	return &Repository{
		backend:    backend,
		projectID:  projectID,
		databaseID: databaseID,
		sqlitePath: sqlitePath,
	}
}

// NewLLMForTest creates an LLM config for testing purposes
func NewLLMForTest(provider, geminiProject, geminiLocation, anthropicAPIKey string) *LLM {
	return &LLM{
		provider:        provider,
		geminiProject:   geminiProject,
		geminiLocation:  geminiLocation,
		anthropicAPIKey: anthropicAPIKey,
	}
}

// NewCharacterForTest creates a Character config for testing purposes
func NewCharacterForTest(path string) *Character {
	return &Character{path: path}
}

// NewRuntimeForTest creates a Runtime config for testing purposes
func NewRuntimeForTest(dimension, breakerThreshold int64, breakerReset time.Duration, breakerHalfOpenCount int64, cacheTTL time.Duration) *Runtime {
	return &Runtime{
		dimension:            dimension,
		breakerThreshold:     breakerThreshold,
		breakerReset:         breakerReset,
		breakerHalfOpenCount: breakerHalfOpenCount,
		cacheTTL:             cacheTTL,
	}
}
