// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/httputil"
)

// openAIBaseURL is the chat completions root. Package-level var for test substitution.
var openAIBaseURL = "https://api.openai.com/v1"

// DefaultOpenAIModel is used when the config leaves the model empty.
const DefaultOpenAIModel = "gpt-4-turbo-preview"

// penalty is the presence and frequency penalty sent with every request.
const penalty = 0.1

// OpenAIBackend calls the OpenAI chat completions API, or any gateway that
// speaks the same protocol.
type OpenAIBackend struct {
	APIKey    string
	Model     string
	BaseURL   string
	UserAgent string
	Client    *http.Client
	Logger    *zap.Logger
}

type openAIRequest struct {
	Model            string          `json:"model"`
	Messages         []openAIMessage `json:"messages"`
	Temperature      float64         `json:"temperature"`
	MaxTokens        int             `json:"max_tokens,omitempty"`
	PresencePenalty  float64         `json:"presence_penalty"`
	FrequencyPenalty float64         `json:"frequency_penalty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *openAIError `json:"error,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Name returns "openai".
func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) model() string {
	if b.Model == "" {
		return DefaultOpenAIModel
	}
	return b.Model
}

// Generate posts one chat completion request.
func (b *OpenAIBackend) Generate(ctx context.Context, req Request) (Completion, error) {
	msgs := make([]openAIMessage, len(req.Turns))
	for i, t := range req.Turns {
		msgs[i] = openAIMessage{Role: string(t.Role), Content: t.Content}
	}
	body, err := json.Marshal(openAIRequest{
		Model:            b.model(),
		Messages:         msgs,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		PresencePenalty:  penalty,
		FrequencyPenalty: penalty,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("marshaling request: %w", err)
	}

	base := b.BaseURL
	if base == "" {
		base = openAIBaseURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(base, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.APIKey)

	raw, err := httputil.Fetch(ctx, b.Client, httpReq, b.UserAgent)
	if err != nil {
		return Completion{}, describeOpenAIError(err)
	}

	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Completion{}, fmt.Errorf("decoding OpenAI response: %w", err)
	}
	if resp.Error != nil {
		return Completion{}, fmt.Errorf("OpenAI API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Completion{}, ErrEmptyCompletion
	}

	c := Completion{
		Text:       resp.Choices[0].Message.Content,
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}
	if c.Model == "" {
		c.Model = b.model()
	}
	if b.Logger != nil {
		b.Logger.Debug("openai completion", zap.String("model", c.Model), zap.Int("tokens", c.TokensUsed))
	}
	return c, nil
}

// describeOpenAIError surfaces the API's error message for non-2xx responses.
func describeOpenAIError(err error) error {
	var se *httputil.StatusError
	if !errors.As(err, &se) {
		return fmt.Errorf("calling OpenAI API: %w", err)
	}
	var body struct {
		Error *openAIError `json:"error"`
	}
	if json.Unmarshal([]byte(se.Body), &body) == nil && body.Error != nil && body.Error.Message != "" {
		return fmt.Errorf("OpenAI API returned %d: %s: %w", se.Code, body.Error.Message, err)
	}
	return fmt.Errorf("OpenAI API returned %d: %w", se.Code, err)
}
