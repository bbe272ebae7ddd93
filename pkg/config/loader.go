package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/statuspulse/statuspulse/pkg/reasoning"
)

// ConfigFileName is the single configuration file loaded from the
// config directory.
const ConfigFileName = "statuspulse.yaml"

// statusPulseYAML is the on-disk file structure. Durations are spelled
// in milliseconds for the engine tunables (matching how they are
// discussed and tuned) and as Go duration strings for the coarser
// server intervals.
type statusPulseYAML struct {
	Server    *serverYAML          `yaml:"server"`
	Reasoning *reasoningYAML       `yaml:"reasoning"`
	Phases    map[string]phaseYAML `yaml:"phases"`
	LLM       *LLMProviderConfig   `yaml:"llm"`
}

type serverYAML struct {
	Port            int     `yaml:"port"`
	StreamTTL       string  `yaml:"stream_ttl"`
	ReapInterval    string  `yaml:"reap_interval"`
	EventRetention  string  `yaml:"event_retention"`
	CleanupInterval string  `yaml:"cleanup_interval"`
	RateLimitRPS    float64 `yaml:"rate_limit_rps"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	ShutdownTimeout string  `yaml:"shutdown_timeout"`
}

type reasoningYAML struct {
	MinBufferChars          int `yaml:"min_buffer_chars"`
	MaxWaitMs               int `yaml:"max_wait_ms"`
	MinUpdateIntervalMs     int `yaml:"min_update_interval_ms"`
	StatusTimeoutMs         int `yaml:"status_timeout_ms"`
	MaxPendingCalls         int `yaml:"max_pending_calls"`
	CircuitBreakerThreshold int `yaml:"circuit_breaker_threshold"`
	CircuitBreakerResetMs   int `yaml:"circuit_breaker_reset_ms"`
	IdleHeartbeatMs         int `yaml:"idle_heartbeat_ms"`
}

type phaseYAML struct {
	DisplayName       string   `yaml:"display_name,omitempty"`
	Messages          []string `yaml:"messages,omitempty"`
	TypicalDurationMs int      `yaml:"typical_duration_ms,omitempty"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// A missing config file is not an error — every section has working
// defaults — but a present, broken file fails loudly.
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	raw, err := loadYAMLFile(configDir)
	if err != nil {
		return nil, NewLoadError(ConfigFileName, err)
	}

	cfg, err := resolve(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized",
		"port", cfg.Server.Port,
		"semantic_generation", cfg.LLM != nil,
		"stream_ttl", cfg.Server.StreamTTL)
	return cfg, nil
}

// loadYAMLFile reads and parses the config file with env expansion.
// Returns an empty document when the file does not exist.
func loadYAMLFile(configDir string) (*statusPulseYAML, error) {
	var raw statusPulseYAML

	path := filepath.Join(configDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("No configuration file found, using defaults", "path", path)
			return &raw, nil
		}
		return nil, err
	}

	data = ExpandEnv(data)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &raw, nil
}

// resolve converts the file structure into runtime configuration:
// defaults first, user values merged on top, then validation.
func resolve(raw *statusPulseYAML) (*Config, error) {
	server, err := resolveServer(raw.Server)
	if err != nil {
		return nil, err
	}

	reasoningCfg, err := resolveReasoning(raw.Reasoning)
	if err != nil {
		return nil, err
	}

	phases, err := resolvePhases(raw.Phases)
	if err != nil {
		return nil, err
	}

	llm, err := resolveLLM(raw.LLM)
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Reasoning: reasoningCfg,
		Phases:    phases,
		LLM:       llm,
	}, nil
}

// resolveServer validates the file values, then merges them over the
// built-in defaults. Zero fields in the file fall through to the
// default.
func resolveServer(raw *serverYAML) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	if raw == nil {
		return cfg, nil
	}

	if raw.Port != 0 && (raw.Port < 1 || raw.Port > 65535) {
		return nil, NewValidationError("server", "port", ErrInvalidValue)
	}
	if raw.RateLimitRPS < 0 {
		return nil, NewValidationError("server", "rate_limit_rps", ErrInvalidValue)
	}
	if raw.RateLimitBurst < 0 {
		return nil, NewValidationError("server", "rate_limit_burst", ErrInvalidValue)
	}

	overrides := ServerConfig{
		Port:           raw.Port,
		RateLimitRPS:   raw.RateLimitRPS,
		RateLimitBurst: raw.RateLimitBurst,
	}
	durations := []struct {
		field string
		value string
		dst   *time.Duration
	}{
		{"stream_ttl", raw.StreamTTL, &overrides.StreamTTL},
		{"reap_interval", raw.ReapInterval, &overrides.ReapInterval},
		{"event_retention", raw.EventRetention, &overrides.EventRetention},
		{"cleanup_interval", raw.CleanupInterval, &overrides.CleanupInterval},
		{"shutdown_timeout", raw.ShutdownTimeout, &overrides.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil || parsed <= 0 {
			return nil, NewValidationError("server", d.field, ErrInvalidValue)
		}
		*d.dst = parsed
	}

	if err := mergo.Merge(cfg, overrides, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge server config: %w", err)
	}
	return cfg, nil
}

// resolveReasoning converts the millisecond file fields into engine
// durations. Zero fields stay zero here: the engine fills its own
// defaults, which keeps file config and per-stream API overrides on
// one defaulting path.
func resolveReasoning(raw *reasoningYAML) (reasoning.Config, error) {
	if raw == nil {
		raw = &reasoningYAML{}
	}

	for field, v := range map[string]int{
		"min_buffer_chars":          raw.MinBufferChars,
		"max_wait_ms":               raw.MaxWaitMs,
		"min_update_interval_ms":    raw.MinUpdateIntervalMs,
		"status_timeout_ms":         raw.StatusTimeoutMs,
		"max_pending_calls":         raw.MaxPendingCalls,
		"circuit_breaker_threshold": raw.CircuitBreakerThreshold,
		"circuit_breaker_reset_ms":  raw.CircuitBreakerResetMs,
		"idle_heartbeat_ms":         raw.IdleHeartbeatMs,
	} {
		if v < 0 {
			return reasoning.Config{}, NewValidationError("reasoning", field, ErrInvalidValue)
		}
	}

	return reasoning.Config{
		MinBufferChars:    raw.MinBufferChars,
		MaxWait:           time.Duration(raw.MaxWaitMs) * time.Millisecond,
		MinUpdateInterval: time.Duration(raw.MinUpdateIntervalMs) * time.Millisecond,
		StatusTimeout:     time.Duration(raw.StatusTimeoutMs) * time.Millisecond,
		MaxPendingCalls:   raw.MaxPendingCalls,
		BreakerThreshold:  raw.CircuitBreakerThreshold,
		BreakerReset:      time.Duration(raw.CircuitBreakerResetMs) * time.Millisecond,
		IdleHeartbeat:     time.Duration(raw.IdleHeartbeatMs) * time.Millisecond,
	}, nil
}

func resolvePhases(raw map[string]phaseYAML) (reasoning.PhaseConfigMap, error) {
	overrides := make(reasoning.PhaseConfigMap, len(raw))
	for name, p := range raw {
		phase := reasoning.ThinkingPhase(name)
		if !phase.IsValid() {
			return nil, NewValidationError("phases", name, ErrUnknownPhase)
		}
		overrides[phase] = reasoning.PhaseConfig{
			DisplayName:     p.DisplayName,
			Messages:        p.Messages,
			TypicalDuration: time.Duration(p.TypicalDurationMs) * time.Millisecond,
		}
	}
	return overrides, nil
}

func resolveLLM(raw *LLMProviderConfig) (*LLMProviderConfig, error) {
	if raw == nil {
		slog.Warn("No LLM provider configured, streams will run fallback-only")
		return nil, nil
	}
	if raw.Model == "" {
		return nil, NewValidationError("llm", "model", ErrMissingRequiredField)
	}
	if raw.APIKeyEnv == "" {
		return nil, NewValidationError("llm", "api_key_env", ErrMissingRequiredField)
	}
	return raw, nil
}
