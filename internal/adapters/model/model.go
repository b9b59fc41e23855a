// Package model provides the language-model collaborators behind the
// analysis stages: Gemini, OpenAI-compatible chat completions and an
// offline heuristic model.
package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/config"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/core"
	"github.com/hugo-lorenzo-mato/workflow-advisor/internal/service"
)

// Provider names.
const (
	ProviderHeuristic = "heuristic"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
)

// Providers returns the supported provider names.
func Providers() []string {
	return []string{ProviderHeuristic, ProviderGemini, ProviderOpenAI}
}

// New creates the model selected by cfg.Provider. Calls are throttled by
// the per-provider limiter of limits; a nil registry disables throttling.
func New(cfg config.ModelConfig, limits *service.RateLimiterRegistry) (core.Model, error) {
	var m core.Model
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderHeuristic:
		m = NewHeuristic(WithResponseDelay(cfg.ResponseDelayDuration()))
	case ProviderGemini:
		g, err := NewGemini(cfg)
		if err != nil {
			return nil, err
		}
		m = g
	case ProviderOpenAI:
		o, err := NewOpenAI(cfg)
		if err != nil {
			return nil, err
		}
		m = o
	default:
		return nil, core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("unknown model provider %q (supported: %s)", cfg.Provider, strings.Join(Providers(), ", ")))
	}

	if limits == nil {
		return m, nil
	}
	return &throttled{Model: m, limiter: limits.Get(m.Name())}, nil
}

// throttled acquires a token from the provider limiter before each call.
type throttled struct {
	core.Model
	limiter *service.RateLimiter
}

func (t *throttled) Generate(ctx context.Context, req core.ModelRequest) (string, error) {
	if err := t.limiter.Acquire(ctx); err != nil {
		return "", core.FromContext(err, "waiting for "+t.Name()+" rate limiter")
	}
	return t.Model.Generate(ctx, req)
}

// classifyStatus maps an HTTP status returned by a provider onto the error
// taxonomy. 429, 503 and 504 are transient; everything else is not.
func classifyStatus(provider string, status int, err error) error {
	msg := fmt.Sprintf("%s returned HTTP %d", provider, status)
	switch {
	case status == http.StatusTooManyRequests:
		return core.ErrRateLimit(msg).WithCause(err).WithDetail("provider", provider)
	case status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout,
		status == http.StatusBadGateway, status == http.StatusInternalServerError:
		return core.ErrTransient(core.CodeModelFailed, msg).WithCause(err).WithDetail("provider", provider)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return core.ErrAuth(msg).WithCause(err).WithDetail("provider", provider)
	default:
		return core.ErrExecution(core.CodeModelFailed, msg).WithCause(err).WithDetail("provider", provider)
	}
}

// classifyTransport maps an error without an HTTP status.
func classifyTransport(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return core.FromContext(err, provider+" call")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return core.ErrNetwork(provider + " request failed").WithCause(err).WithDetail("provider", provider)
	}
	return core.ErrExecution(core.CodeModelFailed, provider+" call failed").WithCause(err).WithDetail("provider", provider)
}
