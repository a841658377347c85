// Command versecoach is the pronunciation practice server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shlokhq/versecoach/internal/announce"
	"github.com/shlokhq/versecoach/internal/capture"
	"github.com/shlokhq/versecoach/internal/catalog"
	"github.com/shlokhq/versecoach/internal/config"
	"github.com/shlokhq/versecoach/internal/health"
	"github.com/shlokhq/versecoach/internal/httpapi"
	"github.com/shlokhq/versecoach/internal/match"
	"github.com/shlokhq/versecoach/internal/observe"
	"github.com/shlokhq/versecoach/internal/practice"
	"github.com/shlokhq/versecoach/internal/resilience"
	"github.com/shlokhq/versecoach/pkg/audio"
	paudio "github.com/shlokhq/versecoach/pkg/audio/portaudio"
	"github.com/shlokhq/versecoach/pkg/provider/stt"
	"github.com/shlokhq/versecoach/pkg/provider/stt/deepgram"
	"github.com/shlokhq/versecoach/pkg/provider/stt/whisper"
	"github.com/shlokhq/versecoach/pkg/provider/tts"
	"github.com/shlokhq/versecoach/pkg/provider/tts/coqui"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "versecoach: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "versecoach: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("versecoach starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "versecoach"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// Providers.
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	transcriber, err := buildTranscriber(cfg, reg)
	if err != nil {
		slog.Error("failed to build transcriber", "err", err)
		return 1
	}

	// Exercise catalog.
	cat, err := loadCatalog(cfg)
	if err != nil {
		slog.Error("failed to load exercises", "err", err)
		return 1
	}
	slog.Info("catalog loaded", "exercises", cat.Len())

	// Server-side microphone (optional).
	var recorder audio.Recorder
	if cfg.Capture.Microphone {
		var recOpts []paudio.RecorderOption
		if cfg.Capture.ListenTimeout > 0 {
			recOpts = append(recOpts, paudio.WithListenTimeout(cfg.Capture.ListenTimeout))
		}
		rec, err := paudio.NewRecorder(recOpts...)
		if err != nil {
			slog.Error("failed to open microphone", "err", err)
			return 1
		}
		recorder = rec
		slog.Info("server-side microphone enabled")
	}

	capOpts := []capture.Option{capture.WithMetrics(metrics)}
	if cfg.Capture.OverallTimeout > 0 {
		capOpts = append(capOpts, capture.WithTimeout(cfg.Capture.OverallTimeout))
	}
	orchestrator, err := capture.New(recorder, transcriber, capOpts...)
	if err != nil {
		slog.Error("failed to build capture pipeline", "err", err)
		return 1
	}

	// Spoken prompts (optional).
	announcer, err := buildAnnouncer(ctx, cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build announcer", "err", err)
		return 1
	}
	var wordAnn httpapi.Announcer
	if announcer != nil {
		defer announcer.Close()
		wordAnn = wordAnnouncer{a: announcer}
	}

	// Session store.
	sessions, err := practice.NewStore(practice.StoreConfig{
		Catalog:             cat,
		Scorer:              match.New(),
		Announcer:           wordAnn,
		AcceptanceThreshold: cfg.Practice.AcceptanceThreshold,
	})
	if err != nil {
		slog.Error("failed to build session store", "err", err)
		return 1
	}

	healthHandler := health.New(health.Checker{
		Name: "catalog",
		Check: func(context.Context) error {
			if cat.Len() == 0 {
				return errors.New("no exercises loaded")
			}
			return nil
		},
	})

	api, err := httpapi.New(httpapi.Config{
		Catalog:   cat,
		Sessions:  sessions,
		Capture:   orchestrator,
		Announcer: wordAnn,
		Health:    healthHandler,
		Metrics:   metrics,
	})
	if err != nil {
		slog.Error("failed to build http server", "err", err)
		return 1
	}

	printStartupSummary(cfg, cat.Len())

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// wordAnnouncer adapts the background announcer to the fire-and-forget word
// contract used by the session store and the HTTP surface.
type wordAnnouncer struct {
	a *announce.Announcer
}

func (w wordAnnouncer) Announce(word string) {
	w.a.Announce(context.Background(), word)
}

// registerBuiltinProviders wires the provider factories that ship with the
// server into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.Option("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.Option("model_path")
		}
		var opts []whisper.NativeOption
		if lang := entry.Option("language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.Option("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := entry.Option("language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if speaker := entry.Option("speaker_id"); speaker != "" {
			opts = append(opts, coqui.WithSpeaker(speaker))
		}
		return coqui.New(entry.BaseURL, opts...)
	})
}

// buildTranscriber creates the primary transcriber and, when fallbacks are
// configured, chains them behind per-backend circuit breakers.
func buildTranscriber(cfg *config.Config, reg *config.Registry) (stt.Transcriber, error) {
	primary, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	if len(cfg.Providers.STTFallbacks) == 0 {
		return primary, nil
	}

	chain := resilience.NewTranscriberFallback(primary, cfg.Providers.STT.Name, resilience.BreakerConfig{})
	for _, entry := range cfg.Providers.STTFallbacks {
		p, err := reg.CreateSTT(entry)
		if err != nil {
			return nil, fmt.Errorf("create stt fallback %q: %w", entry.Name, err)
		}
		chain.Add(entry.Name, p)
		slog.Info("provider created", "kind", "stt-fallback", "name", entry.Name)
	}
	return chain, nil
}

// buildAnnouncer creates the background announcer when a TTS provider is
// configured, or returns nil when spoken prompts are disabled.
func buildAnnouncer(ctx context.Context, cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*announce.Announcer, error) {
	if cfg.Providers.TTS.Name == "" {
		return nil, nil
	}
	provider, err := buildSynthesizer(cfg, reg)
	if err != nil {
		return nil, err
	}

	player, err := paudio.NewPlayer()
	if err != nil {
		return nil, fmt.Errorf("open audio output: %w", err)
	}

	ann, err := announce.New(provider, player, announce.WithMetrics(metrics))
	if err != nil {
		return nil, err
	}
	ann.Start(ctx)
	return ann, nil
}

// buildSynthesizer creates the primary TTS provider and, when fallbacks are
// configured, chains them behind per-backend circuit breakers.
func buildSynthesizer(cfg *config.Config, reg *config.Registry) (tts.Provider, error) {
	primary, err := reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	if len(cfg.Providers.TTSFallbacks) == 0 {
		return primary, nil
	}

	chain := resilience.NewSynthesizerFallback(primary, cfg.Providers.TTS.Name, resilience.BreakerConfig{})
	for _, entry := range cfg.Providers.TTSFallbacks {
		p, err := reg.CreateTTS(entry)
		if err != nil {
			return nil, fmt.Errorf("create tts fallback %q: %w", entry.Name, err)
		}
		chain.Add(entry.Name, p)
		slog.Info("provider created", "kind", "tts-fallback", "name", entry.Name)
	}
	return chain, nil
}

// loadCatalog loads the exercise file named in cfg, or the built-in catalog
// when none is configured.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Practice.ExercisesFile == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(cfg.Practice.ExercisesFile)
}

func printStartupSummary(cfg *config.Config, exercises int) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       versecoach — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	mic := "(disabled)"
	if cfg.Capture.Microphone {
		mic = "enabled"
	}
	fmt.Printf("║  Microphone      : %-19s ║\n", mic)
	fmt.Printf("║  Exercises       : %-19d ║\n", exercises)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
