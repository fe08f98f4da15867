// Package assistant drives the conversation state machine.
//
// One [Assistant] owns the capture and detection stages and calls out to the
// external collaborators (STT, LLM and TTS) in turn. A single
// goroutine runs [Assistant.Run]; every other method is safe to call
// concurrently (for example from the readiness endpoint).
//
// Each call to [Assistant.Step] performs one transition:
//
//	AwaitingWakeWord  capture WakeWindow, transcribe, match phrase  → Listening
//	Listening         capture ListenWindow, VAD, transcribe         → Processing | AwaitingWakeWord | Listening
//	Processing        reply, speak, record history                  → AwaitingWakeWord
//
// Errors from a step never end [Assistant.Run]; the state is reset to
// AwaitingWakeWord and the loop pauses for RetryPause before continuing.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/yoassist/internal/journal"
	"github.com/MrWong99/yoassist/internal/observe"
	"github.com/MrWong99/yoassist/internal/wakeword"
	"github.com/MrWong99/yoassist/pkg/audio"
	"github.com/MrWong99/yoassist/pkg/provider/llm"
	"github.com/MrWong99/yoassist/pkg/provider/stt"
	"github.com/MrWong99/yoassist/pkg/provider/vad"
)

// Default timing and framing values.
const (
	DefaultWakeWindow   = 2 * time.Second
	DefaultListenWindow = 5 * time.Second
	DefaultWindowSize   = 1024
	DefaultSilenceRate  = 16000
	DefaultRetryPause   = time.Second
)

// Conditioner prepares a raw capture for detection and transcription.
// [*audio.Conditioner] satisfies it.
type Conditioner interface {
	Condition(raw audio.Buffer) audio.Buffer
}

// Matcher decides whether text contains the activation phrase.
// [*wakeword.Matcher] satisfies it.
type Matcher interface {
	Detect(text string) wakeword.Result
}

// Speaker turns a reply into sound and returns once playback finished.
// [*speech.Speaker] satisfies it.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Deps are the collaborators of an Assistant. All fields except Journal are
// required.
type Deps struct {
	Capturer    audio.Capturer
	Conditioner Conditioner
	Detector    vad.Detector
	Matcher     Matcher
	STT         stt.Provider
	LLM         llm.Provider
	Speaker     Speaker

	// Journal, if non-nil, receives every completed exchange. Append
	// failures are logged and otherwise ignored.
	Journal journal.Journal
}

// Config holds the loop timings. Zero values are replaced by the defaults in
// [Config.withDefaults]; negative values are rejected by [New].
type Config struct {
	// WakeWindow is the capture length while awaiting the wake word.
	WakeWindow time.Duration

	// ListenWindow is the capture length while listening for a command.
	ListenWindow time.Duration

	// WindowSize is the VAD frame length in samples.
	WindowSize int

	// SilenceRate is the sample rate passed to the silence check.
	SilenceRate int

	// RetryPause is how long Run waits after a failed step.
	RetryPause time.Duration

	// HistorySize bounds the in-memory exchange history.
	HistorySize int

	// SystemPrompt is sent with every command. Empty uses
	// [llm.DefaultSystemPrompt].
	SystemPrompt string
}

func (c Config) withDefaults() Config {
	if c.WakeWindow == 0 {
		c.WakeWindow = DefaultWakeWindow
	}
	if c.ListenWindow == 0 {
		c.ListenWindow = DefaultListenWindow
	}
	if c.WindowSize == 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.SilenceRate == 0 {
		c.SilenceRate = DefaultSilenceRate
	}
	if c.RetryPause == 0 {
		c.RetryPause = DefaultRetryPause
	}
	if c.HistorySize == 0 {
		c.HistorySize = DefaultHistorySize
	}
	return c
}

func (c Config) validate() error {
	var errs []error
	if c.WakeWindow < 0 {
		errs = append(errs, fmt.Errorf("%w: wake window must be positive, got %s", ErrInvalidConfig, c.WakeWindow))
	}
	if c.ListenWindow < 0 {
		errs = append(errs, fmt.Errorf("%w: listen window must be positive, got %s", ErrInvalidConfig, c.ListenWindow))
	}
	if c.WindowSize < 0 {
		errs = append(errs, fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidConfig, c.WindowSize))
	}
	if c.SilenceRate < 0 {
		errs = append(errs, fmt.Errorf("%w: silence rate must be positive, got %d", ErrInvalidConfig, c.SilenceRate))
	}
	if c.RetryPause < 0 {
		errs = append(errs, fmt.Errorf("%w: retry pause must not be negative, got %s", ErrInvalidConfig, c.RetryPause))
	}
	if c.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("%w: history size must be positive, got %d", ErrInvalidConfig, c.HistorySize))
	}
	return errors.Join(errs...)
}

func (d Deps) validate() error {
	var errs []error
	missing := func(name string) {
		errs = append(errs, fmt.Errorf("%w: %s is required", ErrInvalidConfig, name))
	}
	if d.Capturer == nil {
		missing("capturer")
	}
	if d.Conditioner == nil {
		missing("conditioner")
	}
	if d.Detector == nil {
		missing("detector")
	}
	if d.Matcher == nil {
		missing("matcher")
	}
	if d.STT == nil {
		missing("stt provider")
	}
	if d.LLM == nil {
		missing("llm provider")
	}
	if d.Speaker == nil {
		missing("speaker")
	}
	return errors.Join(errs...)
}

// StateHook observes every state change. It runs on the loop goroutine and
// must not block.
type StateHook func(from, to State)

// Option is a functional option for [New].
type Option func(*Assistant)

// WithStateHook registers a callback fired after every state change.
func WithStateHook(h StateHook) Option {
	return func(a *Assistant) { a.hooks = append(a.hooks, h) }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Assistant) { a.log = l }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

// WithProviderNames sets the provider labels used in metrics and spans.
func WithProviderNames(sttName, llmName, ttsName string) Option {
	return func(a *Assistant) {
		a.names = providerNames{stt: sttName, llm: llmName, tts: ttsName}
	}
}

type providerNames struct {
	stt, llm, tts string
}

// Assistant is the conversation state machine.
type Assistant struct {
	deps    Deps
	cfg     Config
	log     *slog.Logger
	metrics *observe.Metrics
	hooks   []StateHook
	names   providerNames
	history *History

	mu     sync.RWMutex
	state  State
	prompt string

	running atomic.Bool
}

// New validates deps and cfg and returns an Assistant in [StateIdle].
// Configuration problems are reported together and match [ErrInvalidConfig].
func New(deps Deps, cfg Config, opts ...Option) (*Assistant, error) {
	if err := errors.Join(deps.validate(), cfg.validate()); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	a := &Assistant{
		deps:   deps,
		cfg:    cfg,
		log:    slog.Default(),
		names:  providerNames{stt: "stt", llm: "llm", tts: "tts"},
		state:  StateIdle,
		prompt: cfg.SystemPrompt,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.deps.Journal == nil {
		a.deps.Journal = journal.Nop{}
	}
	a.history = NewHistory(cfg.HistorySize)
	return a, nil
}

// State returns the current state.
func (a *Assistant) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// History returns a snapshot of the completed exchanges, oldest first.
func (a *Assistant) History() []Exchange {
	return a.history.Entries()
}

// Running reports whether Run is currently executing.
func (a *Assistant) Running() bool {
	return a.running.Load()
}

// SetSystemPrompt replaces the system prompt used for subsequent commands.
func (a *Assistant) SetSystemPrompt(p string) {
	a.mu.Lock()
	a.prompt = p
	a.mu.Unlock()
}

// SystemPrompt returns the configured system prompt, which may be empty.
func (a *Assistant) SystemPrompt() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.prompt
}

// Run moves the machine out of Idle and steps it until ctx is cancelled. It
// returns ctx.Err(); per-step failures are logged and recovered.
func (a *Assistant) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return errors.New("assistant: already running")
	}
	defer a.running.Store(false)

	if a.State() == StateIdle {
		a.setState(ctx, StateAwaitingWakeWord)
	}
	a.log.Info("assistant started", "state", a.State().String())

	for {
		if err := ctx.Err(); err != nil {
			a.log.Info("assistant stopped")
			return err
		}

		err := a.Step(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			a.log.Info("assistant stopped")
			return ctx.Err()
		}

		a.log.Error("conversation step failed, resetting", "err", err, "state", a.State().String())
		a.setState(ctx, StateAwaitingWakeWord)

		t := time.NewTimer(a.cfg.RetryPause)
		select {
		case <-ctx.Done():
			t.Stop()
			a.log.Info("assistant stopped")
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Step performs exactly one transition from the current state. A failing
// step returns the error without changing state; [Assistant.Run] handles
// the reset.
func (a *Assistant) Step(ctx context.Context) error {
	from := a.State()

	var err error
	switch from {
	case StateIdle:
		a.setState(ctx, StateAwaitingWakeWord)
	case StateAwaitingWakeWord:
		err = a.awaitWakeWord(ctx)
	case StateListening:
		err = a.listen(ctx)
	case StateProcessing:
		// Only observable at the start of a step if a previous cycle was
		// interrupted between transitions.
		a.setState(ctx, StateListening)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	a.metrics.RecordCycle(ctx, from.String(), status)
	return err
}

// ── Transitions ──────────────────────────────────────────────────────────────

func (a *Assistant) awaitWakeWord(ctx context.Context) error {
	buf, err := a.capture(ctx, a.cfg.WakeWindow)
	if err != nil {
		return err
	}
	if buf.Empty() {
		return nil
	}

	text, err := a.transcribe(ctx, buf)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}

	res := a.deps.Matcher.Detect(text)
	if !res.Matched {
		a.log.Debug("no wake word", "text", text)
		return nil
	}
	a.metrics.RecordWakeDetection(ctx, res.Tier.String())
	a.log.Info("wake word detected", "text", text, "tier", res.Tier.String())
	a.setState(ctx, StateListening)
	return nil
}

func (a *Assistant) listen(ctx context.Context) error {
	buf, err := a.capture(ctx, a.cfg.ListenWindow)
	if err != nil {
		return err
	}

	if buf.Empty() || !a.deps.Detector.IsActive(buf.Samples, a.cfg.WindowSize) {
		if a.deps.Detector.IsSilent(buf.Samples, a.cfg.SilenceRate) {
			a.log.Debug("silence while listening")
			a.setState(ctx, StateAwaitingWakeWord)
		}
		return nil
	}

	text, err := a.transcribe(ctx, buf)
	if err != nil {
		return err
	}
	if text == "" {
		a.setState(ctx, StateAwaitingWakeWord)
		return nil
	}

	a.setState(ctx, StateProcessing)
	if err := a.process(ctx, text); err != nil {
		return err
	}
	a.setState(ctx, StateAwaitingWakeWord)
	return nil
}

// process answers one command: reasoning, speech output, history.
func (a *Assistant) process(ctx context.Context, utterance string) error {
	a.log.Info("command received", "text", utterance)

	reply, err := a.complete(ctx, utterance)
	if err != nil {
		return err
	}
	if err := a.speak(ctx, reply); err != nil {
		return err
	}

	ex := Exchange{Utterance: utterance, Response: reply, At: time.Now()}
	a.history.Add(ex)
	a.metrics.RecordExchange(ctx)
	if err := a.deps.Journal.Append(ctx, journal.Entry{
		Utterance: ex.Utterance,
		Response:  ex.Response,
		At:        ex.At,
	}); err != nil {
		a.log.Warn("journal append failed", "err", err)
	}
	return nil
}

// ── Collaborator calls ───────────────────────────────────────────────────────

// capture records one window and conditions it. A stream fault is logged
// and yields an empty buffer.
func (a *Assistant) capture(ctx context.Context, d time.Duration) (audio.Buffer, error) {
	start := time.Now()
	raw, err := a.deps.Capturer.Record(ctx, d)
	a.metrics.CaptureDuration.Record(ctx, time.Since(start).Seconds())
	switch {
	case err == nil:
	case errors.Is(err, audio.ErrStream):
		a.log.Warn("capture stream fault, window discarded", "err", err)
		return audio.Buffer{SampleRate: raw.SampleRate}, nil
	default:
		return audio.Buffer{}, fmt.Errorf("assistant: capture: %w", err)
	}
	return a.deps.Conditioner.Condition(raw), nil
}

func (a *Assistant) transcribe(ctx context.Context, buf audio.Buffer) (string, error) {
	ctx, span := observe.StartSpan(ctx, "stt.transcribe")
	start := time.Now()
	text, err := a.deps.STT.Transcribe(ctx, buf.Samples, buf.SampleRate)
	a.metrics.ObserveProvider(ctx, a.names.stt, observe.KindSTT, start, err)
	observe.EndSpan(span, err)
	if err != nil {
		return "", &CollaboratorError{Stage: StageSTT, Err: err}
	}
	return text, nil
}

func (a *Assistant) complete(ctx context.Context, utterance string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "llm.complete")
	start := time.Now()
	resp, err := a.deps.LLM.Complete(ctx, llm.UserPrompt(a.SystemPrompt(), utterance))
	if err == nil && (resp == nil || resp.Content == "") {
		err = llm.ErrEmptyResponse
	}
	a.metrics.ObserveProvider(ctx, a.names.llm, observe.KindLLM, start, err)
	observe.EndSpan(span, err)
	if err != nil {
		return "", &CollaboratorError{Stage: StageLLM, Err: err}
	}
	return resp.Content, nil
}

func (a *Assistant) speak(ctx context.Context, text string) error {
	ctx, span := observe.StartSpan(ctx, "tts.speak")
	start := time.Now()
	err := a.deps.Speaker.Speak(ctx, text)
	a.metrics.ObserveProvider(ctx, a.names.tts, observe.KindTTS, start, err)
	observe.EndSpan(span, err)
	if err != nil {
		return &CollaboratorError{Stage: StageTTS, Err: err}
	}
	return nil
}

// ---- helpers ----

func (a *Assistant) setState(ctx context.Context, to State) {
	a.mu.Lock()
	from := a.state
	a.state = to
	a.mu.Unlock()
	if from == to {
		return
	}

	a.log.Debug("state transition", "from", from.String(), "to", to.String())
	a.metrics.RecordTransition(ctx, from.String(), to.String())
	for _, h := range a.hooks {
		h(from, to)
	}
}
