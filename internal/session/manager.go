package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/speakcoach/live-coach/internal/audio"
	"github.com/speakcoach/live-coach/internal/config"
	"github.com/speakcoach/live-coach/internal/feedback"
	"github.com/speakcoach/live-coach/internal/metrics"
	"github.com/speakcoach/live-coach/internal/observability"
	"github.com/speakcoach/live-coach/internal/stt"
)

// TranscriptionLink is the slice of the streaming client the manager drives
type TranscriptionLink interface {
	Connect(ctx context.Context) error
	Send(frame audio.Frame) error
	Events() <-chan stt.TranscriptEvent
	State() stt.LinkState
	Close() error
}

// LinkFactory builds a fresh link per session. Links are single-use, so the
// manager never reuses one across sessions.
type LinkFactory func(onState func(stt.LinkState)) TranscriptionLink

// SourceFactory builds a fresh audio source per session
type SourceFactory func() (audio.FrameSource, error)

// Callbacks surface live session activity to the host application. All
// fields are optional; nil callbacks are skipped. Callbacks run on internal
// goroutines and must not call back into the manager.
type Callbacks struct {
	OnTranscript       func(text string)
	OnFeedback         func(items []feedback.Item)
	OnWarning          func(metric string, message *string)
	OnConnectionChange func(connected bool)
	OnNotice           func(message string)
}

// Manager orchestrates at most one coaching session at a time: it wires the
// audio source into the transcription link, feeds the metric estimator and
// warning debouncer from the event stream, runs the coaching loop, and
// produces the final report on stop.
type Manager struct {
	cfg       *config.Config
	callbacks Callbacks
	newLink   LinkFactory
	newSource SourceFactory
	logger    zerolog.Logger

	mu      sync.Mutex
	current *activeSession

	connMu    sync.Mutex
	connected bool
}

// metricsPollInterval is how often the warning debouncer re-reads the
// estimator while a session runs. Idle decay moves the metrics between
// transcript events, so observation cannot ride on event arrival alone.
const metricsPollInterval = 250 * time.Millisecond

// activeSession bundles everything owned by one running session
type activeSession struct {
	session   *Session
	link      TranscriptionLink
	source    audio.FrameSource
	estimator *metrics.Estimator
	debouncer *metrics.Debouncer
	loop      *feedback.Loop

	cancel context.CancelFunc // stops the event dispatch goroutine
	done   chan struct{}      // closed when dispatch has drained

	mu          sync.Mutex
	finals      []feedback.Utterance
	transcripts []string
	finalTexts  []string
	feedbacks   []feedback.Item
	termErr     string // terminal link error, frozen into the report
}

// NewManager creates a session manager using the given factories
func NewManager(cfg *config.Config, newLink LinkFactory, newSource SourceFactory, callbacks Callbacks) *Manager {
	return &Manager{
		cfg:       cfg,
		callbacks: callbacks,
		newLink:   newLink,
		newSource: newSource,
		logger:    observability.ForComponent("session"),
	}
}

// NewDefaultLinkFactory builds production links against the configured
// recognition service, authenticated through the HTTP token provider
func NewDefaultLinkFactory(cfg *config.Config, tokens stt.TokenProvider) LinkFactory {
	return func(onState func(stt.LinkState)) TranscriptionLink {
		return stt.NewLink(stt.LinkOptions{
			URL:              cfg.RecognizerURL,
			SampleRate:       cfg.RecognizerSampleRate,
			Tokens:           tokens,
			TokenMaxAttempts: cfg.TokenMaxAttempts,
			TokenRetryDelay:  cfg.TokenRetryDelay,
			Reconnect:        cfg.ReconnectConfig(),
			OnStateChange:    onState,
		})
	}
}

// Active reports whether a session is currently running
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Current returns a copy of the running session's metadata, if any
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current.session, true
}

// Metrics returns the live metric state of the running session
func (m *Manager) Metrics() (metrics.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return metrics.State{}, false
	}
	return m.current.estimator.Snapshot(), true
}

// Start begins a new coaching session. It returns once the link is active
// and the coaching loop is running, or with an error if the session could
// not start. A second Start while a session runs is rejected without
// disturbing the running session.
func (m *Manager) Start(ctx context.Context, sessionType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return ErrSessionActive
	}

	m.connMu.Lock()
	m.connected = false
	m.connMu.Unlock()

	sess := &Session{
		ID:        uuid.New(),
		Type:      sessionType,
		StartTime: time.Now(),
		State:     StateConnecting,
	}
	logger := observability.ForSession(sess.ID.String())
	logger.Info().Str("type", sessionType).Msg("Starting session")

	active := &activeSession{
		session:   sess,
		estimator: metrics.NewEstimator(nil),
		done:      make(chan struct{}),
	}

	debounceCfg := metrics.DefaultDebouncerConfig()
	debounceCfg.Hold = m.cfg.WarningDebounce
	active.debouncer = metrics.NewDebouncer(debounceCfg, func(metric string, message *string) {
		if m.callbacks.OnWarning != nil {
			m.callbacks.OnWarning(metric, message)
		}
	})

	active.loop = feedback.NewLoop(feedback.LoopOptions{
		Interval: m.cfg.FeedbackInterval,
		Window:   m.cfg.FeedbackWindow,
		Snapshot: active.snapshotFinals,
		OnFeedback: func(items []feedback.Item) {
			active.appendFeedback(items)
			if m.callbacks.OnFeedback != nil {
				m.callbacks.OnFeedback(items)
			}
		},
		OnNotice: func(msg string) {
			logger.Debug().Msg(msg)
			if m.callbacks.OnNotice != nil {
				m.callbacks.OnNotice(msg)
			}
		},
	})

	active.link = m.newLink(func(state stt.LinkState) {
		m.onLinkState(state)
	})

	source, err := m.newSource()
	if err != nil {
		active.estimator.Close()
		active.debouncer.Close()
		return fmt.Errorf("failed to open audio source: %w", err)
	}
	active.source = source

	dispatchCtx, cancel := context.WithCancel(context.Background())
	active.cancel = cancel
	go m.dispatch(dispatchCtx, active)

	// Capture runs on the audio subsystem's cadence; both calls are O(1)
	// and non-blocking, frames are dropped while the link is not active
	if err := source.Start(func(frame audio.Frame) {
		active.estimator.ObserveVolume(frame.RMS)
		_ = active.link.Send(frame)
	}); err != nil {
		m.teardown(active)
		return fmt.Errorf("failed to start audio capture: %w", err)
	}

	if err := active.link.Connect(ctx); err != nil {
		logger.Error().Err(err).Msg("Session failed to connect")
		m.writeBestEffortReport(active)
		m.teardown(active)
		return fmt.Errorf("failed to connect transcription link: %w", err)
	}

	sess.State = StateActive
	active.loop.Start()
	m.current = active

	observability.RecordSessionStart()
	logger.Info().Msg("Session active")
	return nil
}

// Stop ends the running session: the coaching loop and audio capture stop
// first, then a short grace period lets trailing final transcripts arrive
// before the analytics are flushed, the report is written and the link
// released.
func (m *Manager) Stop(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return "", ErrNoActiveSession
	}
	active := m.current
	sess := active.session
	logger := observability.ForSession(sess.ID.String())

	sess.State = StateStopping
	logger.Info().Msg("Stopping session")

	active.loop.Stop()
	if err := active.source.Close(); err != nil {
		logger.Warn().Err(err).Msg("Audio source close failed")
	}

	// Trailing finals for already-sent audio may still be in flight
	select {
	case <-time.After(m.cfg.StopGracePeriod):
	case <-ctx.Done():
	}

	// Dispatch has recorded everything that arrived during the grace
	// period; stop it so the report sees a settled snapshot, then fold
	// the trailing finals into the session totals
	active.cancel()
	<-active.done
	active.loop.Flush()

	now := time.Now()
	sess.EndTime = &now
	sess.State = StateClosed

	path, err := m.writeReport(active)
	if err != nil {
		logger.Error().Err(err).Msg("Report write failed")
	}

	m.teardown(active)
	m.current = nil

	observability.RecordSessionEnd(sess.Duration().Seconds())
	logger.Info().Str("report", path).Dur("duration", sess.Duration()).Msg("Session closed")
	return path, err
}

// dispatch consumes the link's event stream for one session, feeding the
// estimator, the warning debouncer and the transcript stores. The events
// channel is never closed, so shutdown rides on the context. A poll ticker
// keeps the debouncer fed during silence, when idle decay is the only thing
// moving the metrics.
func (m *Manager) dispatch(ctx context.Context, active *activeSession) {
	defer close(active.done)

	poll := time.NewTicker(metricsPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-active.link.Events():
			m.handleEvent(active, ev)
		case <-poll.C:
			active.debouncer.Observe(active.estimator.Snapshot())
		}
	}
}

func (m *Manager) handleEvent(active *activeSession, ev stt.TranscriptEvent) {
	switch ev.Kind {
	case stt.KindPartial, stt.KindFinal:
		active.estimator.ObserveTranscript(ev)
		active.recordTranscript(ev)
		if m.callbacks.OnTranscript != nil && ev.Text != "" {
			m.callbacks.OnTranscript(ev.Text)
		}
		active.debouncer.Observe(active.estimator.Snapshot())

	case stt.KindError:
		m.logger.Error().Str("error", ev.Err).Msg("Session transcription error")
		// Reconnect exhaustion parks the link in Error for good; record
		// the terminal failure so the report carries it
		if active.link.State() == stt.StateError {
			active.mu.Lock()
			active.termErr = ev.Err
			active.mu.Unlock()
		}

	case stt.KindSessionBegins, stt.KindSessionTerminated:
		// Connection-state callbacks already cover these
	}
}

// onLinkState translates link transitions into the host's connection
// callback: Active reads as connected, everything else (including the
// Authenticating state a reconnecting link sits in) as disconnected.
// Only changes are reported.
func (m *Manager) onLinkState(state stt.LinkState) {
	connected := state == stt.StateActive

	m.connMu.Lock()
	changed := connected != m.connected
	m.connected = connected
	m.connMu.Unlock()

	if !changed || m.callbacks.OnConnectionChange == nil {
		return
	}
	m.callbacks.OnConnectionChange(connected)
}

// teardown cancels per-session timers and goroutines and releases the link.
// Safe to call on a partially constructed session.
func (m *Manager) teardown(active *activeSession) {
	if active.cancel != nil {
		active.cancel()
		<-active.done
	}
	active.debouncer.Close()
	active.estimator.Close()
	if active.link != nil {
		_ = active.link.Close()
	}
}

// recordTranscript stores event text for the report; finals also feed the
// coaching loop's analysis window
func (a *activeSession) recordTranscript(ev stt.TranscriptEvent) {
	if ev.Text == "" {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.transcripts = append(a.transcripts, ev.Text)
	if ev.Kind == stt.KindFinal {
		a.finalTexts = append(a.finalTexts, ev.Text)
		a.finals = append(a.finals, feedback.Utterance{
			Text:       ev.Text,
			Confidence: ev.Confidence,
			At:         ev.ReceivedAt,
		})
	}
}

// snapshotFinals returns copies of the finals received within the trailing
// window, for the coaching loop
func (a *activeSession) snapshotFinals(window time.Duration) []feedback.Utterance {
	cutoff := time.Now().Add(-window)

	a.mu.Lock()
	defer a.mu.Unlock()

	var out []feedback.Utterance
	for _, u := range a.finals {
		if u.At.After(cutoff) {
			out = append(out, u)
		}
	}
	return out
}

func (a *activeSession) appendFeedback(items []feedback.Item) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.feedbacks = append(a.feedbacks, items...)
}
