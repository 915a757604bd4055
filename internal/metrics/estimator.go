package metrics

import (
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/speakcoach/live-coach/internal/observability"
	"github.com/speakcoach/live-coach/internal/stt"
)

// fillerPattern matches common filler words and phrases
var fillerPattern = regexp.MustCompile(`(?i)\b(uh|um|er|ah|like|so|you know|basically|actually)\b`)

// EstimatorConfig holds tuning parameters for the metric estimator
type EstimatorConfig struct {
	WordWindow     time.Duration // sliding window for talking-speed estimation
	MinWindow      time.Duration // window spans at or below this are too noisy for speed
	SpeedSmoothing float64       // weight of the newest raw speed sample
	DecayInterval  time.Duration // cadence of speed decay while no words arrive
	DecayFactor    float64       // multiplicative decay applied per tick
}

// DefaultEstimatorConfig returns the default estimator configuration
func DefaultEstimatorConfig() *EstimatorConfig {
	return &EstimatorConfig{
		WordWindow:     4 * time.Second,
		MinWindow:      1 * time.Second,
		SpeedSmoothing: 0.3,
		DecayInterval:  150 * time.Millisecond,
		DecayFactor:    0.9,
	}
}

// Smoothing and scoring constants. Penalties move fast, rewards move slow.
const (
	volumeSmoothing     = 0.3
	confidenceSmoothing = 0.3
	clarityFallSmooth   = 0.3 // clarity dropping: react quickly
	clarityRiseSmooth   = 0.1 // clarity improving: reward cautiously

	volumeFloor  = 0.05 // below this, clarity is penalized
	volumeTarget = 0.15 // normalized RMS considered fully sufficient

	expectedWordMs = 300 // expected average word duration for articulation

	speedIdealMin = 130
	speedIdealMax = 170
	speedOKMin    = 110
	speedOKMax    = 190

	speedZeroSnap = 1.0 // decayed speed below this snaps to zero
)

// windowEntry is one word observed in the sliding speed window
type windowEntry struct {
	startMs int
	seenAt  time.Time
}

// Estimator consumes transcript events and volume samples and maintains the
// smoothed session State. All methods are safe for concurrent use.
type Estimator struct {
	cfg    *EstimatorConfig
	logger zerolog.Logger

	mu     sync.Mutex
	state  State
	window []windowEntry
	seen   map[int]struct{} // word start offsets already counted

	decayStop chan struct{} // closes to cancel the running decay loop
	closed    bool
}

// NewEstimator creates an estimator with fresh smoothing state
func NewEstimator(cfg *EstimatorConfig) *Estimator {
	if cfg == nil {
		cfg = DefaultEstimatorConfig()
	}
	return &Estimator{
		cfg:    cfg,
		logger: observability.ForComponent("metrics"),
		state:  initialState(),
		seen:   make(map[int]struct{}),
	}
}

// Snapshot returns a copy of the current metric state
func (e *Estimator) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ObserveVolume folds one per-frame RMS sample into the smoothed volume
func (e *Estimator) ObserveVolume(rms float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.state.VolumeRMS += volumeSmoothing * (rms - e.state.VolumeRMS)
}

// ObserveTranscript folds one transcript event into the smoothed state.
// Events with empty or whitespace-only text update nothing.
func (e *Estimator) ObserveTranscript(ev stt.TranscriptEvent) {
	if strings.TrimSpace(ev.Text) == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	// Any event with real content supersedes a pending decay
	e.cancelDecayLocked()

	now := ev.ReceivedAt
	if now.IsZero() {
		now = time.Now()
	}

	e.updateSpeedLocked(ev.Words, now)
	e.updateClarityLocked(ev)
	e.updateConfidenceLocked(ev)

	if ev.Kind == stt.KindFinal {
		e.armDecayLocked()
	}
}

// updateSpeedLocked maintains the sliding word window and the smoothed WPM
func (e *Estimator) updateSpeedLocked(words []stt.Word, now time.Time) {
	for _, w := range words {
		if _, dup := e.seen[w.StartMs]; dup {
			continue
		}
		e.seen[w.StartMs] = struct{}{}
		e.window = append(e.window, windowEntry{startMs: w.StartMs, seenAt: now})
	}

	// Expire entries that fell out of the window
	cutoff := now.Add(-e.cfg.WordWindow)
	kept := e.window[:0]
	for _, entry := range e.window {
		if entry.seenAt.After(cutoff) {
			kept = append(kept, entry)
		} else {
			delete(e.seen, entry.startMs)
		}
	}
	e.window = kept

	if len(e.window) == 0 {
		return
	}

	span := now.Sub(e.window[0].seenAt)
	if span <= e.cfg.MinWindow {
		return // too little history to be meaningful
	}

	raw := float64(len(e.window)) / span.Seconds() * 60.0
	e.state.SpeedWPM += e.cfg.SpeedSmoothing * (raw - e.state.SpeedWPM)
}

// updateClarityLocked derives clarity from recognizer confidence remapped
// through a square root, damped by volume and articulation modifiers
func (e *Estimator) updateClarityLocked(ev stt.TranscriptEvent) {
	if ev.Confidence <= 0 {
		return
	}

	target := math.Sqrt(ev.Confidence) * volumeModifier(e.state.VolumeRMS) * articulationModifier(ev.Words)

	alpha := clarityRiseSmooth
	if target < e.state.Clarity {
		alpha = clarityFallSmooth
	}
	e.state.Clarity += alpha * (target - e.state.Clarity)
}

// updateConfidenceLocked derives the performance confidence score: how well
// the speaker is coming across, weighted across volume, pace, filler usage
// and recognizer confidence
func (e *Estimator) updateConfidenceLocked(ev stt.TranscriptEvent) {
	volScore := clamp(e.state.VolumeRMS/volumeTarget, 0, 1)
	fillerScore := 1.0 - fillerRatio(ev.Text)

	target := 0.5*volScore +
		0.1*speedGoodness(e.state.SpeedWPM) +
		0.3*fillerScore +
		0.1*clamp(ev.Confidence, 0, 1)

	e.state.Confidence += confidenceSmoothing * (target - e.state.Confidence)
}

// armDecayLocked starts the speed decay loop. It runs until cancelled by the
// next event, the speed reaching zero, or Close.
func (e *Estimator) armDecayLocked() {
	e.cancelDecayLocked()

	stop := make(chan struct{})
	e.decayStop = stop

	go func() {
		ticker := time.NewTicker(e.cfg.DecayInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !e.decayTick() {
					return
				}
			}
		}
	}()
}

// decayTick applies one multiplicative decay step. Returns false once the
// speed has reached zero and the loop should stop.
func (e *Estimator) decayTick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}

	e.state.SpeedWPM *= e.cfg.DecayFactor
	if e.state.SpeedWPM < speedZeroSnap {
		e.state.SpeedWPM = 0
		e.logger.Debug().Msg("Talking speed decayed to zero")
		return false
	}
	return true
}

// cancelDecayLocked stops a running decay loop, if any
func (e *Estimator) cancelDecayLocked() {
	if e.decayStop != nil {
		close(e.decayStop)
		e.decayStop = nil
	}
}

// Close stops the decay timer and freezes the state
func (e *Estimator) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelDecayLocked()
	e.closed = true
}

// volumeModifier penalizes clarity when the speaker is below the volume
// floor, scaling linearly from 0.5 at silence up to 1.0 at the floor
func volumeModifier(volume float64) float64 {
	if volume >= volumeFloor {
		return 1.0
	}
	return 0.5 + 0.5*(volume/volumeFloor)
}

// articulationModifier penalizes long gaps between words relative to the
// expected average word duration. Contiguous words score 1.0.
func articulationModifier(words []stt.Word) float64 {
	if len(words) < 2 {
		return 1.0
	}

	totalGap := 0.0
	for i := 1; i < len(words); i++ {
		gap := float64(words[i].StartMs - words[i-1].EndMs)
		if gap > 0 {
			totalGap += gap
		}
	}
	avgGap := totalGap / float64(len(words)-1)

	ratio := avgGap / expectedWordMs
	if ratio > 1 {
		ratio = 1
	}
	return 1.0 - 0.5*ratio
}

// speedGoodness scores talking speed: 1.0 in the ideal band, degrading
// linearly to 0.2 at the edges of the acceptable band and beyond
func speedGoodness(wpm float64) float64 {
	switch {
	case wpm >= speedIdealMin && wpm <= speedIdealMax:
		return 1.0
	case wpm >= speedOKMin && wpm < speedIdealMin:
		return 0.2 + 0.8*(wpm-speedOKMin)/(speedIdealMin-speedOKMin)
	case wpm > speedIdealMax && wpm <= speedOKMax:
		return 0.2 + 0.8*(speedOKMax-wpm)/(speedOKMax-speedIdealMax)
	default:
		return 0.2
	}
}

// fillerRatio returns the share of filler words in the text
func fillerRatio(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}

	fillers := len(fillerPattern.FindAllString(text, -1))
	ratio := float64(fillers) / float64(len(words))
	return clamp(ratio, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
