package metrics

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/speakcoach/live-coach/internal/observability"
)

// Warned metric categories
const (
	MetricConfidence = "confidence"
	MetricClarity    = "clarity"
	MetricPace       = "pace"
)

// DebouncerConfig holds thresholds for the warning debouncer
type DebouncerConfig struct {
	Hold          time.Duration // how long a breach must persist before warning
	BadConfidence float64       // confidence below this is bad
	BadClarity    float64       // clarity below this is bad
	PaceMin       float64       // WPM below this is bad
	PaceMax       float64       // WPM above this is bad
}

// DefaultDebouncerConfig returns the default warning thresholds
func DefaultDebouncerConfig() *DebouncerConfig {
	return &DebouncerConfig{
		Hold:          3 * time.Second,
		BadConfidence: 0.3,
		BadClarity:    0.3,
		PaceMin:       110,
		PaceMax:       190,
	}
}

// WarningFunc receives warning changes for a metric. A nil message means the
// previously shown warning for that metric has cleared.
type WarningFunc func(metric string, message *string)

// Debouncer surfaces a warning only after a metric has stayed in its bad
// range for the hold duration, and clears it the moment the metric recovers.
// Each metric category is tracked independently.
type Debouncer struct {
	cfg    *DebouncerConfig
	notify WarningFunc
	logger zerolog.Logger

	mu     sync.Mutex
	latest State
	timers map[string]*time.Timer
	active map[string]string // metric -> currently shown warning message
	closed bool
}

// NewDebouncer creates a debouncer that reports through notify
func NewDebouncer(cfg *DebouncerConfig, notify WarningFunc) *Debouncer {
	if cfg == nil {
		cfg = DefaultDebouncerConfig()
	}
	return &Debouncer{
		cfg:    cfg,
		notify: notify,
		logger: observability.ForComponent("metrics"),
		timers: make(map[string]*time.Timer),
		active: make(map[string]string),
	}
}

// Observe evaluates the latest metric state against every threshold
func (d *Debouncer) Observe(s State) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.latest = s

	type cleared struct{ metric string }
	var toClear []cleared

	for _, metric := range []string{MetricConfidence, MetricClarity, MetricPace} {
		if d.isBad(metric, s) {
			_, shown := d.active[metric]
			_, pending := d.timers[metric]
			if !shown && !pending {
				m := metric
				d.timers[metric] = time.AfterFunc(d.cfg.Hold, func() { d.fire(m) })
			}
			continue
		}

		// Back in the good range: cancel any pending timer and clear any
		// currently shown warning
		if timer, ok := d.timers[metric]; ok {
			timer.Stop()
			delete(d.timers, metric)
		}
		if _, shown := d.active[metric]; shown {
			delete(d.active, metric)
			toClear = append(toClear, cleared{metric})
		}
	}
	d.mu.Unlock()

	for _, c := range toClear {
		d.logger.Info().Str("metric", c.metric).Msg("Warning cleared")
		if d.notify != nil {
			d.notify(c.metric, nil)
		}
	}
}

// fire runs when a hold timer elapses. The warning is only surfaced if the
// metric is still bad at that moment.
func (d *Debouncer) fire(metric string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	delete(d.timers, metric)

	if !d.isBad(metric, d.latest) {
		d.mu.Unlock()
		return
	}

	message := d.message(metric, d.latest)
	d.active[metric] = message
	d.mu.Unlock()

	d.logger.Info().Str("metric", metric).Str("message", message).Msg("Warning surfaced")
	observability.RecordWarning(metric)
	if d.notify != nil {
		d.notify(metric, &message)
	}
}

// isBad reports whether a metric is in its bad range
func (d *Debouncer) isBad(metric string, s State) bool {
	switch metric {
	case MetricConfidence:
		return s.Confidence < d.cfg.BadConfidence
	case MetricClarity:
		return s.Clarity < d.cfg.BadClarity
	case MetricPace:
		return s.SpeedWPM < d.cfg.PaceMin || s.SpeedWPM > d.cfg.PaceMax
	default:
		return false
	}
}

// message builds the user-facing warning text for a metric
func (d *Debouncer) message(metric string, s State) string {
	switch metric {
	case MetricConfidence:
		return "You may be coming across uncertain. Try projecting your voice."
	case MetricClarity:
		return "Your speech is getting hard to follow. Articulate more clearly."
	case MetricPace:
		if s.SpeedWPM < d.cfg.PaceMin {
			return "You are speaking quite slowly. Try picking up the pace."
		}
		return "You are speaking very fast. Try slowing down."
	default:
		return ""
	}
}

// Close cancels all pending timers. No warning fires after Close returns.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	for metric, timer := range d.timers {
		timer.Stop()
		delete(d.timers, metric)
	}
}
