package service

import (
	"context"
	"sort"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter.
type RateLimiter struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// RateLimiterConfig configures a rate limiter.
type RateLimiterConfig struct {
	MaxTokens  float64 // Maximum bucket capacity
	RefillRate float64 // Tokens added per second
}

// DefaultRateLimiterConfig returns default configuration.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		MaxTokens:  10,
		RefillRate: 1, // 1 token per second
	}
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		tokens:     cfg.MaxTokens,
		maxTokens:  cfg.MaxTokens,
		refillRate: cfg.RefillRate,
		lastRefill: time.Now(),
	}
}

// Acquire blocks until a token is available or context is cancelled.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	for {
		r.mu.Lock()
		r.refill()

		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return nil
		}

		// Wait for the missing fraction of the next token
		waitTime := time.Duration((1 - r.tokens) / r.refillRate * float64(time.Second))
		r.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire attempts to acquire a token without blocking.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// Available returns the current number of available tokens.
func (r *RateLimiter) Available() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refill()
	return r.tokens
}

// MaxTokens returns the maximum capacity.
func (r *RateLimiter) MaxTokens() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxTokens
}

// RefillRate returns the current refill rate.
func (r *RateLimiter) RefillRate() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refillRate
}

// refill adds tokens based on elapsed time.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastRefill)
	r.lastRefill = now

	r.tokens = min(r.maxTokens, r.tokens+elapsed.Seconds()*r.refillRate)
}

// RateLimiterRegistry holds one limiter per model provider. Runs that share
// a provider share its bucket.
type RateLimiterRegistry struct {
	limiters map[string]*RateLimiter
	configs  map[string]RateLimiterConfig
	mu       sync.RWMutex
}

// NewRateLimiterRegistry creates a new registry.
func NewRateLimiterRegistry() *RateLimiterRegistry {
	return &RateLimiterRegistry{
		limiters: make(map[string]*RateLimiter),
		configs:  defaultProviderConfigs(),
	}
}

// defaultProviderConfigs returns default rate limit configs per provider.
// A run makes three or four model calls.
func defaultProviderConfigs() map[string]RateLimiterConfig {
	return map[string]RateLimiterConfig{
		"gemini": {
			MaxTokens:  10,
			RefillRate: 1, // 1 request per second
		},
		"openai": {
			MaxTokens:  8,
			RefillRate: 0.5, // 1 request per 2 seconds
		},
		"heuristic": {
			MaxTokens:  1000,
			RefillRate: 1000,
		},
	}
}

// Get returns the rate limiter for a provider.
func (r *RateLimiterRegistry) Get(provider string) *RateLimiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, ok := r.limiters[provider]; ok {
		return limiter
	}

	cfg, ok := r.configs[provider]
	if !ok {
		cfg = DefaultRateLimiterConfig()
	}

	limiter := NewRateLimiter(cfg)
	r.limiters[provider] = limiter
	return limiter
}

// SetConfig updates the configuration for a provider.
func (r *RateLimiterRegistry) SetConfig(provider string, cfg RateLimiterConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[provider] = cfg
	r.limiters[provider] = NewRateLimiter(cfg)
}

// Status returns rate limiter status for every provider in use.
func (r *RateLimiterRegistry) Status() map[string]RateLimiterStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]RateLimiterStatus)
	for name, limiter := range r.limiters {
		status[name] = RateLimiterStatus{
			Available:  limiter.Available(),
			MaxTokens:  limiter.MaxTokens(),
			RefillRate: limiter.RefillRate(),
		}
	}
	return status
}

// List returns the configured provider names, sorted.
func (r *RateLimiterRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RateLimiterStatus contains status information.
type RateLimiterStatus struct {
	Available  float64 `json:"available"`
	MaxTokens  float64 `json:"max_tokens"`
	RefillRate float64 `json:"refill_rate"`
}
