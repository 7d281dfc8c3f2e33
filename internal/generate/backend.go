// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate sends role-tagged prompts to a generative model and
// returns the completion text with usage accounting.
package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// ErrEmptyCompletion is returned when the model answers with no text.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// ErrNoAPIKey is returned when a backend is built without credentials.
var ErrNoAPIKey = errors.New("generation API key not configured")

// Request is one prompt. Turns are ordered; a leading system turn carries
// the instruction.
type Request struct {
	Turns       []types.Turn
	Temperature float64
	MaxTokens   int
}

// Completion is the model's answer.
type Completion struct {
	Text       string
	Model      string
	TokensUsed int
}

// Backend generates one completion per call. Implementations make a single
// attempt.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (Completion, error)
}

// New builds the backend selected by cfg.Provider. An empty provider selects
// OpenAI. The client timeout is cfg.Timeout, not httpCfg.Timeout, which is
// sized for index lookups; from httpCfg only the User-Agent is used.
func New(ctx context.Context, cfg types.GenerationConfig, httpCfg types.HTTPConfig, logger *zap.Logger) (Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	client := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case types.ProviderOpenAI, "":
		return &OpenAIBackend{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   cfg.BaseURL,
			UserAgent: httpCfg.UserAgent,
			Client:    client,
			Logger:    logger,
		}, nil
	case types.ProviderGemini:
		return NewGeminiBackend(ctx, cfg, client, logger)
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

// splitSystem separates leading system turns from the conversation turns.
// Multiple system turns are joined with a blank line.
func splitSystem(turns []types.Turn) (system string, rest []types.Turn) {
	i := 0
	for ; i < len(turns) && turns[i].Role == types.RoleSystem; i++ {
		if system != "" {
			system += "\n\n"
		}
		system += turns[i].Content
	}
	return system, turns[i:]
}
