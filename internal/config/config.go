// Package config provides the configuration schema, loader, and provider
// registry for the pronunciation practice server.
package config

import "time"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure, typically loaded from a YAML
// file with [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Practice  PracticeConfig  `yaml:"practice"`
	Capture   CaptureConfig   `yaml:"capture"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// PracticeConfig tunes the practice session engine.
type PracticeConfig struct {
	// AcceptanceThreshold is the minimum similarity score for an attempt to
	// count as correct. Zero means the built-in default (0.8).
	AcceptanceThreshold float64 `yaml:"acceptance_threshold"`

	// ExercisesFile is a YAML file of exercises. Empty means the built-in
	// catalog.
	ExercisesFile string `yaml:"exercises_file"`
}

// CaptureConfig tunes server-side audio capture.
type CaptureConfig struct {
	// ListenTimeout is how long the recorder waits for speech to start
	// before one capture counts as no-speech. Zero means the recorder
	// default.
	ListenTimeout time.Duration `yaml:"listen_timeout"`

	// OverallTimeout bounds a whole record-and-transcribe attempt. Zero
	// means the built-in default (30s).
	OverallTimeout time.Duration `yaml:"overall_timeout"`

	// Microphone enables the server-side microphone recorder. When false,
	// only uploaded audio and JSON attempts are accepted.
	Microphone bool `yaml:"microphone"`
}

// ProvidersConfig selects which provider implementation serves each pipeline
// stage. Each entry names a provider registered in the [Registry].
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	TTS ProviderEntry `yaml:"tts"`

	// STTFallbacks are additional transcription backends tried, in order,
	// when the primary fails.
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`

	// TTSFallbacks are additional synthesis backends tried, in order, when
	// the primary fails.
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. Name selects the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "whisper", "deepgram", "coqui").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint. Empty means the
	// provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "nova-3").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered by the standard
	// fields (e.g., "language", "speaker_id", "model_path").
	Options map[string]any `yaml:"options"`
}

// Option returns the string value of a provider-specific option, or "" when
// absent or not a string.
func (e ProviderEntry) Option(key string) string {
	v, ok := e.Options[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
