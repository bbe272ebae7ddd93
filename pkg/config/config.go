// Package config loads and validates the statuspulse.yaml configuration:
// server settings, reasoning-engine tunables, per-phase presentation
// overrides, and the LLM provider used for semantic status generation.
package config

import (
	"time"

	"github.com/statuspulse/statuspulse/pkg/reasoning"
)

// Config is the fully-resolved runtime configuration.
type Config struct {
	Server    *ServerConfig
	Reasoning reasoning.Config
	Phases    reasoning.PhaseConfigMap
	LLM       *LLMProviderConfig // nil = semantic generation disabled (fallback-only)
}

// ServerConfig contains HTTP server and housekeeping settings.
type ServerConfig struct {
	// Port the HTTP server listens on.
	Port int

	// StreamTTL is how long a stream may sit without chunks, phase
	// changes, or finalization before the reaper destroys it.
	StreamTTL time.Duration

	// ReapInterval is how often the idle-stream reaper runs.
	ReapInterval time.Duration

	// EventRetention is how long persisted events are kept before the
	// cleanup loop prunes them.
	EventRetention time.Duration

	// CleanupInterval is how often retention pruning runs.
	CleanupInterval time.Duration

	// RateLimitRPS / RateLimitBurst bound per-client request rates.
	RateLimitRPS   float64
	RateLimitBurst int

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns the built-in server defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:            8080,
		StreamTTL:       5 * time.Minute,
		ReapInterval:    1 * time.Minute,
		EventRetention:  24 * time.Hour,
		CleanupInterval: 1 * time.Hour,
		RateLimitRPS:    25,
		RateLimitBurst:  50,
		ShutdownTimeout: 10 * time.Second,
	}
}

// LLMProviderConfig defines the upstream used for semantic status
// generation. The API key itself is resolved from the environment at
// startup, never stored in YAML.
type LLMProviderConfig struct {
	// Provider tag stamped into event metadata (e.g. "openrouter").
	Provider string `yaml:"provider"`

	// Model is the chat-completion model identifier (required).
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// BaseURL is an optional custom endpoint for OpenAI-compatible
	// backends.
	BaseURL string `yaml:"base_url,omitempty"`

	// Temperature for status generation (0 = client default).
	Temperature float32 `yaml:"temperature,omitempty"`

	// MaxTokens per completion (0 = client default).
	MaxTokens int `yaml:"max_tokens,omitempty"`
}
