package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/config"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-2.0-flash-exp"

// Gemini calls the Gemini API through the genai SDK. The client is created
// lazily on the first call.
type Gemini struct {
	apiKey   string
	project  string
	location string
	model    string

	mu     sync.Mutex
	client *genai.Client
}

// NewGemini creates a Gemini model. Either an API key or a Vertex project
// is required.
func NewGemini(cfg config.ModelConfig) (*Gemini, error) {
	if cfg.APIKey == "" && cfg.Project == "" {
		return nil, core.ErrValidation(core.CodeInvalidConfig,
			"gemini requires model.api_key (or GEMINI_API_KEY) or model.project")
	}
	name := cfg.Name
	if name == "" {
		name = DefaultGeminiModel
	}
	return &Gemini{
		apiKey:   cfg.APIKey,
		project:  cfg.Project,
		location: cfg.Location,
		model:    name,
	}, nil
}

// Name implements core.Model.
func (g *Gemini) Name() string { return ProviderGemini }

func (g *Gemini) initClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}
	cc := &genai.ClientConfig{
		APIKey:   g.apiKey,
		Project:  g.project,
		Location: g.location,
		Backend:  genai.BackendGeminiAPI,
	}
	if g.apiKey == "" {
		cc.Backend = genai.BackendVertexAI
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, core.ErrExecution(core.CodeModelFailed, "creating gemini client").WithCause(err)
	}
	g.client = client
	return client, nil
}

// Generate implements core.Model. Replies are requested as JSON.
func (g *Gemini) Generate(ctx context.Context, req core.ModelRequest) (string, error) {
	client, err := g.initClient(ctx)
	if err != nil {
		return "", err
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(req.Temperature)),
		ResponseMIMEType: "application/json",
	}
	if req.MaxOutputTokens > 0 {
		genConfig.MaxOutputTokens = int32(req.MaxOutputTokens)
	}
	if req.SystemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(req.UserPrompt), genConfig)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", classifyStatus(ProviderGemini, apiErr.Code, err)
		}
		return "", classifyTransport(ProviderGemini, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", core.ErrTransient(core.CodeModelFailed,
			fmt.Sprintf("gemini returned an empty %s reply", req.Role))
	}
	return text, nil
}
