// Package app wires the yoassist subsystems into a running application.
//
// New builds every collaborator from the config and the provider registry.
// Run drives the conversation loop and the operational HTTP server until the
// context ends. Shutdown releases whatever New opened.
//
// For testing, inject doubles via functional options (WithJournal,
// WithMetrics, etc.). Audio devices are always supplied by the caller so
// tests never touch hardware.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/yoassist/internal/assistant"
	"github.com/MrWong99/yoassist/internal/config"
	"github.com/MrWong99/yoassist/internal/health"
	"github.com/MrWong99/yoassist/internal/journal"
	"github.com/MrWong99/yoassist/internal/journal/postgres"
	"github.com/MrWong99/yoassist/internal/observe"
	"github.com/MrWong99/yoassist/internal/resilience"
	"github.com/MrWong99/yoassist/internal/speech"
	"github.com/MrWong99/yoassist/internal/wakeword"
	"github.com/MrWong99/yoassist/pkg/audio"
	"github.com/MrWong99/yoassist/pkg/provider/tts"
	"github.com/MrWong99/yoassist/pkg/provider/vad/energy"
)

// shutdownGrace bounds the HTTP server drain on exit.
const shutdownGrace = 5 * time.Second

// Devices are the audio endpoints. Both are required. The App takes over the
// capturer and closes it in Shutdown.
type Devices struct {
	Capturer audio.Capturer
	Player   audio.Player
}

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	level   *slog.LevelVar
	metrics *observe.Metrics

	journal   journal.Journal
	stt       *resilience.STTFallback
	llm       *resilience.LLMFallback
	tts       *resilience.TTSFallback
	assistant *assistant.Assistant
	server    *http.Server

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithJournal injects an exchange journal instead of creating one from config.
func WithJournal(j journal.Journal) Option {
	return func(a *App) { a.journal = j }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// WithLevelVar hands the app the level variable behind the process logger so
// log_level changes can be applied on reload.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New wires the application. Providers are created through reg using the
// names in cfg.Providers; each kind is wrapped in a failover chain.
func New(ctx context.Context, cfg *config.Config, reg *config.Registry, dev Devices, opts ...Option) (*App, error) {
	if dev.Capturer == nil || dev.Player == nil {
		return nil, errors.New("app: capturer and player are required")
	}
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Provider chains ───────────────────────────────────────────────
	if err := a.initProviders(reg); err != nil {
		return nil, fmt.Errorf("app: init providers: %w", err)
	}

	// ── 2. Journal ───────────────────────────────────────────────────────
	if err := a.initJournal(ctx); err != nil {
		return nil, fmt.Errorf("app: init journal: %w", err)
	}

	// ── 3. Conversation loop ─────────────────────────────────────────────
	if err := a.initAssistant(dev); err != nil {
		return nil, fmt.Errorf("app: init assistant: %w", err)
	}

	// ── 4. Operational HTTP server ───────────────────────────────────────
	a.initServer()

	a.closers = append(a.closers, dev.Capturer.Close)

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) breakerConfig() resilience.FallbackConfig {
	return resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Logger: a.log,
			OnStateChange: func(name string, from, to resilience.State) {
				a.metrics.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
	}
}

func (a *App) initProviders(reg *config.Registry) error {
	p := a.cfg.Providers
	fb := a.breakerConfig()

	primarySTT, err := reg.CreateSTT(p.STT)
	if err != nil {
		return err
	}
	a.stt = resilience.NewSTTFallback(primarySTT, p.STT.Name, fb)
	for _, e := range p.STTFallbacks {
		prov, err := reg.CreateSTT(e)
		if err != nil {
			return err
		}
		a.stt.AddFallback(e.Name, prov)
	}

	primaryLLM, err := reg.CreateLLM(p.LLM)
	if err != nil {
		return err
	}
	a.llm = resilience.NewLLMFallback(primaryLLM, p.LLM.Name, fb)
	for _, e := range p.LLMFallbacks {
		prov, err := reg.CreateLLM(e)
		if err != nil {
			return err
		}
		a.llm.AddFallback(e.Name, prov)
	}

	primaryTTS, err := reg.CreateTTS(p.TTS)
	if err != nil {
		return err
	}
	a.tts = resilience.NewTTSFallback(primaryTTS, p.TTS.Name, fb)
	for _, e := range p.TTSFallbacks {
		prov, err := reg.CreateTTS(e)
		if err != nil {
			return err
		}
		a.tts.AddFallback(e.Name, prov)
	}
	return nil
}

// initJournal uses the injected journal, a PostgreSQL store when a DSN is
// configured, a JSON-lines file when a path is configured, or an in-memory
// journal otherwise.
func (a *App) initJournal(ctx context.Context) error {
	if a.journal != nil {
		return nil
	}
	dsn := a.cfg.Journal.PostgresDSN
	if dsn == "" {
		if path := a.cfg.Journal.Path; path != "" {
			a.journal = journal.NewFile(path)
			a.log.Info("exchange journal enabled", "backend", "file", "path", path)
			return nil
		}
		a.journal = &journal.Memory{}
		return nil
	}
	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.journal = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	a.log.Info("exchange journal connected", "backend", "postgres")
	return nil
}

func (a *App) initAssistant(dev Devices) error {
	c := a.cfg

	detector, err := energy.New(energy.Config{
		EnergyThreshold:   float32(c.Detector.EnergyThreshold),
		SilenceDuration:   c.Detector.SilenceDuration,
		ConsecutiveFrames: c.Detector.ConsecutiveFrames,
		HistorySize:       c.Detector.HistorySize,
	})
	if err != nil {
		return err
	}

	matcherOpts := []wakeword.Option{wakeword.WithMaxDistance(c.Detector.MaxDistance)}
	if c.Detector.Confusables != nil {
		matcherOpts = append(matcherOpts, wakeword.WithConfusables(c.Detector.Confusables...))
	}
	matcher, err := wakeword.New(c.Detector.WakeWord, matcherOpts...)
	if err != nil {
		return err
	}

	speaker, err := speech.NewSpeaker(a.tts, dev.Player,
		speech.WithVoice(tts.VoiceProfile{
			ID:       c.Conversation.Voice.ID,
			Language: c.Conversation.Voice.Language,
			Provider: c.Providers.TTS.Name,
		}),
		speech.WithLogger(a.log),
	)
	if err != nil {
		return err
	}

	conditioner := audio.NewConditioner(
		audio.WithGateThreshold(float32(c.Audio.GateThreshold)),
		audio.WithTargetRate(c.Audio.TargetRate),
	)

	a.assistant, err = assistant.New(
		assistant.Deps{
			Capturer:    dev.Capturer,
			Conditioner: conditioner,
			Detector:    detector,
			Matcher:     matcher,
			STT:         a.stt,
			LLM:         a.llm,
			Speaker:     speaker,
			Journal:     a.journal,
		},
		assistant.Config{
			WakeWindow:   c.Conversation.WakeWindow,
			ListenWindow: c.Conversation.ListenWindow,
			WindowSize:   c.Conversation.WindowSize,
			SilenceRate:  c.Conversation.SilenceRate,
			RetryPause:   c.Conversation.RetryPause,
			HistorySize:  c.Conversation.HistorySize,
			SystemPrompt: c.Conversation.SystemPrompt,
		},
		assistant.WithLogger(a.log),
		assistant.WithMetrics(a.metrics),
		assistant.WithProviderNames(c.Providers.STT.Name, c.Providers.LLM.Name, c.Providers.TTS.Name),
		assistant.WithStateHook(func(from, to assistant.State) {
			a.log.Debug("conversation state changed", "from", from.String(), "to", to.String())
		}),
	)
	return err
}

func (a *App) initServer() {
	if a.cfg.Server.ListenAddr == "" {
		return
	}
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Handler returns the operational HTTP handler: health probes and metrics
// behind the observability middleware.
func (a *App) Handler() http.Handler {
	h := health.New(
		health.AssistantChecker(a.assistant.Running, func() string { return a.assistant.State().String() }),
		health.ProviderChecker("stt", a.stt),
		health.ProviderChecker("llm", a.llm),
		health.ProviderChecker("tts", a.tts),
	)
	mux := http.NewServeMux()
	h.Register(mux)
	return observe.Middleware(a.metrics)(mux)
}

// Assistant returns the conversation loop.
func (a *App) Assistant() *assistant.Assistant { return a.assistant }

// Journal returns the exchange journal in use.
func (a *App) Journal() journal.Journal { return a.journal }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run drives the conversation loop and, when configured, the HTTP server
// until ctx is cancelled. Cancellation is a normal exit and yields nil.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.assistant.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if a.server != nil {
		g.Go(func() error {
			a.log.Info("operational server listening", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// ApplyConfig applies the hot-reloadable differences between old and new and
// logs every section that only takes effect after a restart. It is suitable
// as a [config.Watcher] callback.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(ParseLevel(d.NewLogLevel))
		a.log.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.SystemPromptChanged {
		a.assistant.SetSystemPrompt(d.NewSystemPrompt)
		a.log.Info("system prompt updated")
	}
	if d.WakeWordChanged {
		a.log.Warn("wake word change takes effect after restart", "wake_word", new.Detector.WakeWord)
	}
	if len(d.RestartRequired) > 0 {
		a.log.Warn("config sections changed that require a restart", "sections", d.RestartRequired)
	}
}

// ParseLevel maps a config log level onto slog. Unknown values map to info.
func ParseLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown runs the registered closers in order. If ctx expires first the
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}
		a.log.Info("shutdown complete")
	})
	return shutdownErr
}
