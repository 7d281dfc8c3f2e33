// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// DefaultGeminiModel is used when the config leaves the model empty or names
// an OpenAI model.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiBackend calls the Gemini API through the genai SDK.
type GeminiBackend struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiBackend builds a genai client for the Gemini API. cfg.BaseURL,
// when set, replaces the API endpoint.
func NewGeminiBackend(ctx context.Context, cfg types.GenerationConfig, httpClient *http.Client, logger *zap.Logger) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = DefaultGeminiModel
	}
	return &GeminiBackend{client: client, model: model, logger: logger}, nil
}

// Name returns "gemini".
func (b *GeminiBackend) Name() string { return "gemini" }

// Generate sends one GenerateContent call. System turns become the
// SystemInstruction; assistant turns use the model role.
func (b *GeminiBackend) Generate(ctx context.Context, req Request) (Completion, error) {
	system, turns := splitSystem(req.Turns)

	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.Role(genai.RoleUser)
		if t.Role == types.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}

	gcfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		gcfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if system != "" {
		gcfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, gcfg)
	if err != nil {
		return Completion{}, fmt.Errorf("calling Gemini API: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return Completion{}, ErrEmptyCompletion
	}

	c := Completion{Text: text, Model: b.model}
	if resp.ModelVersion != "" {
		c.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		c.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	b.logger.Debug("gemini completion", zap.String("model", c.Model), zap.Int("tokens", c.TokensUsed))
	return c, nil
}
