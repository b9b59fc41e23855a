package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/config"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

// DefaultOpenAIModel is used when the configured name is a Gemini model.
const DefaultOpenAIModel = openai.ChatModelGPT4o

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAI creates an OpenAI model. BaseURL points it at any compatible
// endpoint.
func NewOpenAI(cfg config.ModelConfig) (*OpenAI, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig,
			"openai requires model.api_key (or OPENAI_API_KEY) or model.base_url")
	}
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	// Retries are owned by the stage retry policy.
	opts = append(opts, option.WithMaxRetries(0))

	name := openai.ChatModel(cfg.Name)
	if cfg.Name == "" || strings.HasPrefix(cfg.Name, "gemini") {
		name = DefaultOpenAIModel
	}
	return &OpenAI{client: openai.NewClient(opts...), model: name}, nil
}

// Name implements core.Model.
func (o *OpenAI) Name() string { return ProviderOpenAI }

// Generate implements core.Model.
func (o *OpenAI) Generate(ctx context.Context, req core.ModelRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		Temperature: openai.Float(req.Temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	}
	if req.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", classifyStatus(ProviderOpenAI, apiErr.StatusCode, err)
		}
		return "", classifyTransport(ProviderOpenAI, err)
	}
	if len(resp.Choices) == 0 {
		return "", core.ErrTransient(core.CodeModelFailed,
			fmt.Sprintf("openai returned no choices for %s", req.Role))
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
