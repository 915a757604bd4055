package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/speakcoach/live-coach/internal/audio"
	"github.com/speakcoach/live-coach/internal/observability"
	"github.com/speakcoach/live-coach/internal/resilience"
)

// LinkOptions configures a transcription link
type LinkOptions struct {
	URL              string
	SampleRate       int
	Tokens           TokenProvider
	TokenMaxAttempts int
	TokenRetryDelay  time.Duration
	Reconnect        *resilience.ReconnectConfig
	HandshakeTimeout time.Duration

	// OnStateChange is invoked after every state transition. Callbacks run
	// outside the link's lock and must not call back into the link.
	OnStateChange func(LinkState)
}

// Link owns the duplex connection to the recognition service: auth
// handshake, frame transmission, inbound event parsing and reconnection.
type Link struct {
	opts   LinkOptions
	logger zerolog.Logger
	dialer *websocket.Dialer

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	state LinkState
	conn  *websocket.Conn

	// The websocket connection allows a single concurrent writer
	writeMu sync.Mutex

	events chan TranscriptEvent
}

// NewLink creates a transcription link in the Idle state
func NewLink(opts LinkOptions) *Link {
	if opts.TokenMaxAttempts <= 0 {
		opts.TokenMaxAttempts = 3
	}
	if opts.TokenRetryDelay <= 0 {
		opts.TokenRetryDelay = 500 * time.Millisecond
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.Reconnect == nil {
		opts.Reconnect = resilience.DefaultReconnectConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Link{
		opts:   opts,
		logger: observability.ForComponent("stt"),
		dialer: websocket.DefaultDialer,
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
		events: make(chan TranscriptEvent, 100),
	}
}

// State returns the current link state
func (l *Link) State() LinkState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Events returns the channel of parsed transcript events, delivered in the
// order received. The channel is never closed; consumers select against
// their own done signal.
func (l *Link) Events() <-chan TranscriptEvent {
	return l.events
}

// Connect authenticates and opens the duplex channel. It returns once the
// service has acknowledged session start (Active) or with an error. A link
// is single-use: once closed it cannot be reconnected.
func (l *Link) Connect(ctx context.Context) error {
	if !l.transition([]LinkState{StateIdle}, StateAuthenticating) {
		return fmt.Errorf("cannot connect from state %s", l.State())
	}

	if err := l.establish(ctx); err != nil {
		l.setState(StateError)
		return err
	}
	return nil
}

// establish performs one full connection attempt: token, dial, handshake.
// On success the link is Active and a read loop is running.
func (l *Link) establish(ctx context.Context) error {
	token, err := l.fetchToken(ctx)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s?sample_rate=%d&token=%s", l.opts.URL, l.opts.SampleRate, url.QueryEscape(token))
	conn, _, err := l.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		observability.RecordLinkError("dial")
		return fmt.Errorf("failed to dial recognizer: %w", err)
	}

	l.mu.Lock()
	// Operator close can race a reconnection attempt; give the socket back
	if l.state == StateClosing || l.state == StateClosed {
		l.mu.Unlock()
		conn.Close()
		return ErrLinkClosed
	}
	l.conn = conn
	l.state = StateConnected
	l.mu.Unlock()
	l.notify(StateConnected)

	// The service acknowledges session start before anything else
	conn.SetReadDeadline(time.Now().Add(l.opts.HandshakeTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		observability.RecordLinkError("handshake")
		return fmt.Errorf("handshake read failed: %w", err)
	}

	var msg wireMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		conn.Close()
		observability.RecordLinkError("handshake")
		return fmt.Errorf("failed to parse handshake message: %w", err)
	}
	if msg.Error != "" {
		conn.Close()
		observability.RecordLinkError("handshake")
		return fmt.Errorf("recognizer rejected session: %s", msg.Error)
	}
	if msg.MessageType != msgSessionBegins {
		conn.Close()
		observability.RecordLinkError("handshake")
		return fmt.Errorf("expected %s handshake, got %q", msgSessionBegins, msg.MessageType)
	}
	conn.SetReadDeadline(time.Time{})

	l.setState(StateActive)
	l.deliver(TranscriptEvent{Kind: KindSessionBegins, ReceivedAt: time.Now()})
	observability.RecordTranscriptEvent(string(KindSessionBegins))

	go l.readLoop(conn)

	l.logger.Info().Str("url", l.opts.URL).Msg("Transcription link active")
	return nil
}

// fetchToken requests a credential with the token provider's own retry
// policy: a small fixed number of attempts with a fixed short delay.
func (l *Link) fetchToken(ctx context.Context) (string, error) {
	var token string

	retryCfg := &resilience.RetryConfig{
		MaxAttempts:       l.opts.TokenMaxAttempts,
		InitialBackoff:    l.opts.TokenRetryDelay,
		MaxBackoff:        l.opts.TokenRetryDelay,
		BackoffMultiplier: 1.0,
	}

	err := resilience.Retry(ctx, func() error {
		t, err := l.opts.Tokens.Token(ctx)
		if err != nil {
			l.logger.Warn().Err(err).Msg("Token fetch failed")
			return err
		}
		token = t
		return nil
	}, retryCfg, nil)

	if err != nil {
		observability.RecordLinkError("auth")
		return "", fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return token, nil
}

// Send transmits one audio frame. Frames are never queued: unless the link
// is Active the frame is dropped, keeping the call O(1) for the capture
// callback.
func (l *Link) Send(frame audio.Frame) error {
	l.mu.RLock()
	state := l.state
	conn := l.conn
	l.mu.RUnlock()

	if state != StateActive || conn == nil {
		observability.RecordFrameDropped("link_not_active")
		return nil
	}

	l.writeMu.Lock()
	err := conn.WriteMessage(websocket.BinaryMessage, frame.Bytes())
	l.writeMu.Unlock()

	if err != nil {
		observability.RecordFrameDropped("write_error")
		observability.RecordLinkError("write")
		return fmt.Errorf("failed to send frame %d: %w", frame.Seq, err)
	}

	observability.RecordFrameSent()
	return nil
}

// readLoop parses inbound events until the connection fails or the remote
// session ends. An unexpected failure hands off to the reconnect sequence.
func (l *Link) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			l.mu.RLock()
			state := l.state
			l.mu.RUnlock()

			// Operator-initiated close is clean and never retried
			if state == StateClosing || state == StateClosed {
				return
			}

			l.logger.Warn().Err(err).Msg("Transcription link lost, reconnecting")
			observability.RecordLinkError("read")
			go l.reconnect()
			return
		}

		if !l.handleMessage(payload) {
			return
		}
	}
}

// handleMessage parses one inbound payload. Malformed payloads are logged
// and discarded without closing the link. Returns false once the remote
// session has terminated.
func (l *Link) handleMessage(payload []byte) bool {
	var msg wireMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		l.logger.Warn().Err(err).Int("bytes", len(payload)).Msg("Discarding malformed message")
		observability.RecordMalformedMessage()
		return true
	}

	now := time.Now()

	switch msg.MessageType {
	case msgPartialTranscript, msgFinalTranscript:
		words, ok := convertWords(msg.Words)
		if !ok {
			l.logger.Warn().Str("type", msg.MessageType).Msg("Discarding message with inconsistent word timings")
			observability.RecordMalformedMessage()
			return true
		}

		kind := KindPartial
		if msg.MessageType == msgFinalTranscript {
			kind = KindFinal
		}

		l.deliver(TranscriptEvent{
			Kind:       kind,
			Text:       msg.Text,
			Words:      words,
			Confidence: msg.Confidence,
			ReceivedAt: now,
		})
		observability.RecordTranscriptEvent(string(kind))
		return true

	case msgSessionBegins:
		// Already consumed during the handshake; a repeat is informational
		l.logger.Debug().Msg("Duplicate SessionBegins ignored")
		return true

	case msgSessionTerminated:
		l.logger.Info().Msg("Recognizer terminated the session")
		l.deliver(TranscriptEvent{Kind: KindSessionTerminated, ReceivedAt: now})
		observability.RecordTranscriptEvent(string(KindSessionTerminated))
		l.setState(StateClosed)
		l.closeConn()
		return false

	default:
		if msg.Error != "" {
			l.logger.Error().Str("error", msg.Error).Msg("Recognizer reported an error")
			l.deliver(TranscriptEvent{Kind: KindError, Err: msg.Error, ReceivedAt: now})
			observability.RecordTranscriptEvent(string(KindError))
			return true
		}

		l.logger.Warn().Str("type", msg.MessageType).Msg("Discarding message of unknown type")
		observability.RecordMalformedMessage()
		return true
	}
}

// convertWords validates and converts wire words. Word timings must satisfy
// start <= end with non-decreasing starts.
func convertWords(in []wireWord) ([]Word, bool) {
	if len(in) == 0 {
		return nil, true
	}

	words := make([]Word, len(in))
	prevStart := -1
	for i, w := range in {
		if w.Start > w.End || w.Start < prevStart {
			return nil, false
		}
		prevStart = w.Start
		words[i] = Word{Text: w.Text, StartMs: w.Start, EndMs: w.End}
	}
	return words, true
}

// reconnect runs the bounded exponential backoff sequence after an
// unexpected close. Exceeding the attempt cap parks the link in Error;
// it is never retried silently beyond that.
func (l *Link) reconnect() {
	if !l.transition([]LinkState{StateActive, StateConnected}, StateAuthenticating) {
		return
	}

	err := resilience.Reconnect(l.ctx, func() error {
		observability.RecordReconnectAttempt()
		return l.establish(l.ctx)
	}, l.opts.Reconnect, l.logger)

	if err != nil {
		// Operator close aborted the backoff wait; nothing to report
		if l.ctx.Err() != nil {
			return
		}

		l.logger.Error().Err(err).Msg("Reconnection abandoned")
		observability.RecordLinkError("reconnect_exhausted")
		l.setState(StateError)
		l.deliver(TranscriptEvent{Kind: KindError, Err: err.Error(), ReceivedAt: time.Now()})
	}
}

// Close performs an operator-initiated clean shutdown: reconnection is
// suppressed, the remote session is terminated and the socket released.
func (l *Link) Close() error {
	l.mu.Lock()
	if l.state == StateClosed || l.state == StateIdle {
		l.mu.Unlock()
		return nil
	}
	l.state = StateClosing
	conn := l.conn
	l.mu.Unlock()
	l.notify(StateClosing)

	// Abort any in-flight backoff sleep or token retry
	l.cancel()

	if conn != nil {
		l.writeMu.Lock()
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteJSON(terminateMessage{TerminateSession: true})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		l.writeMu.Unlock()
		conn.Close()
	}

	l.setState(StateClosed)
	l.logger.Info().Msg("Transcription link closed")
	return nil
}

// closeConn closes the underlying socket without changing state
func (l *Link) closeConn() {
	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// deliver hands an event to the consumer without blocking the read loop
func (l *Link) deliver(ev TranscriptEvent) {
	select {
	case l.events <- ev:
	default:
		l.logger.Warn().Str("kind", string(ev.Kind)).Msg("Event channel full, dropping event")
	}
}

// transition atomically moves to a new state if the current state is one of
// from. Guards against concurrent connect attempts.
func (l *Link) transition(from []LinkState, to LinkState) bool {
	l.mu.Lock()
	allowed := false
	for _, s := range from {
		if l.state == s {
			allowed = true
			break
		}
	}
	if !allowed {
		l.mu.Unlock()
		return false
	}
	l.state = to
	l.mu.Unlock()

	l.notify(to)
	return true
}

// setState unconditionally moves to a new state
func (l *Link) setState(to LinkState) {
	l.mu.Lock()
	if l.state == to {
		l.mu.Unlock()
		return
	}
	l.state = to
	l.mu.Unlock()

	l.notify(to)
}

// notify fires the state-change callback outside the link's lock
func (l *Link) notify(state LinkState) {
	l.logger.Debug().Str("state", state.String()).Msg("Link state changed")
	if l.opts.OnStateChange != nil {
		l.opts.OnStateChange(state)
	}
}
