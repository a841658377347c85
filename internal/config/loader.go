package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised names without rejecting them, so
// custom registrations still work.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper", "whisper-native", "deepgram"},
	"tts": {"coqui"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown fields are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every validation failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if t := cfg.Practice.AcceptanceThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("practice.acceptance_threshold %.2f is out of range (0, 1]", t))
	}
	if cfg.Capture.ListenTimeout < 0 {
		errs = append(errs, fmt.Errorf("capture.listen_timeout must not be negative"))
	}
	if cfg.Capture.OverallTimeout < 0 {
		errs = append(errs, fmt.Errorf("capture.overall_timeout must not be negative"))
	}

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	for _, e := range cfg.Providers.STTFallbacks {
		if e.Name == "" {
			errs = append(errs, errors.New("providers.stt_fallbacks entries need a name"))
			continue
		}
		validateProviderName("stt", e.Name)
	}
	validateProviderName("tts", cfg.Providers.TTS.Name)
	for _, e := range cfg.Providers.TTSFallbacks {
		if e.Name == "" {
			errs = append(errs, errors.New("providers.tts_fallbacks entries need a name"))
			continue
		}
		validateProviderName("tts", e.Name)
	}
	if cfg.Providers.TTS.Name == "" && len(cfg.Providers.TTSFallbacks) > 0 {
		errs = append(errs, errors.New("providers.tts_fallbacks require a primary providers.tts"))
	}

	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; spoken prompts will be disabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// validateProviderName logs a warning for provider names outside the known
// set. Unknown names are allowed to support custom registrations.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	if known, ok := ValidProviderNames[kind]; ok && !slices.Contains(known, name) {
		slog.Warn("unrecognised provider name; make sure a matching factory is registered",
			"kind", kind, "name", name, "known", known)
	}
}
