package feedback

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/speakcoach/live-coach/internal/observability"
)

// NoRecentSpeechNotice is surfaced when an analysis window holds no finals
const NoRecentSpeechNotice = "No recent speech detected."

// SnapshotFunc returns the final transcripts received within the trailing
// window. Implementations must return copies, not live references.
type SnapshotFunc func(window time.Duration) []Utterance

// LoopOptions configures a coaching feedback loop
type LoopOptions struct {
	Interval   time.Duration // cadence of analysis ticks
	Window     time.Duration // how far back each tick looks
	Snapshot   SnapshotFunc  // source of recent final transcripts
	OnFeedback func([]Item)  // receives the items of one tick
	OnNotice   func(string)  // receives the no-recent-speech notice
}

// dimension is one independently failing analysis pass
type dimension struct {
	name string
	run  func(l *Loop, utterances []Utterance, now time.Time) (Item, error)
}

// Loop periodically analyzes recent final transcripts and folds the results
// into session analytics. One dimension failing never aborts the others.
type Loop struct {
	opts       LoopOptions
	logger     zerolog.Logger
	dimensions []dimension

	mu             sync.Mutex
	analytics      Analytics
	startedAt      time.Time
	countedThrough time.Time // newest utterance time already in TotalWords
	running        bool

	stop chan struct{}
	done chan struct{}
}

// NewLoop creates a feedback loop. Snapshot is required; zero durations
// fall back to the 10s interval and 30s window defaults.
func NewLoop(opts LoopOptions) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Window <= 0 {
		opts.Window = 30 * time.Second
	}
	return &Loop{
		opts:   opts,
		logger: observability.ForComponent("feedback"),
		dimensions: []dimension{
			{name: TypeSentiment, run: (*Loop).runSentiment},
			{name: TypeQuestion, run: (*Loop).runQuestions},
			{name: TypePace, run: (*Loop).runPace},
			{name: TypeConfidence, run: (*Loop).runConfidence},
		},
	}
}

// Start begins ticking. Returns immediately; analysis runs on its own
// goroutine until Stop.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.startedAt = time.Now()
	l.countedThrough = l.startedAt
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	l.mu.Unlock()

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-l.stop:
				return
			case now := <-ticker.C:
				l.Tick(now)
			}
		}
	}()

	l.logger.Info().
		Dur("interval", l.opts.Interval).
		Dur("window", l.opts.Window).
		Msg("Feedback loop started")
}

// Stop halts the ticker. It does not touch the analytics; the owner calls
// Flush once all trailing finals have arrived.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stop)
	done := l.done
	l.mu.Unlock()

	<-done
	l.logger.Info().Msg("Feedback loop stopped")
}

// Flush folds any still-uncounted words in the current window into the
// analytics. Called after the stop grace period, so finals that trailed the
// last tick still land in the session totals.
func (l *Loop) Flush() {
	l.accumulateWords(l.opts.Snapshot(l.opts.Window), time.Now())
}

// Analytics returns a copy of the current aggregate analytics
func (l *Loop) Analytics() Analytics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.analytics
}

// Tick runs one analysis pass over the trailing window as of now
func (l *Loop) Tick(now time.Time) {
	utterances := l.opts.Snapshot(l.opts.Window)

	if len(utterances) == 0 {
		l.logger.Debug().Msg("No recent speech in analysis window")
		observability.RecordFeedbackTick("no_speech")
		if l.opts.OnNotice != nil {
			l.opts.OnNotice(NoRecentSpeechNotice)
		}
		return
	}

	items := make([]Item, 0, len(l.dimensions))
	failed := 0
	for _, dim := range l.dimensions {
		item, err := l.safeRun(dim, utterances, now)
		if err != nil {
			failed++
			l.logger.Warn().Err(err).Str("dimension", dim.name).Msg("Analysis dimension failed")
			continue
		}
		items = append(items, item)
	}

	l.accumulateWords(utterances, now)

	outcome := "ok"
	if failed > 0 {
		outcome = "partial"
	}
	observability.RecordFeedbackTick(outcome)

	if len(items) > 0 && l.opts.OnFeedback != nil {
		l.opts.OnFeedback(items)
	}
}

// safeRun executes one dimension, converting a panic into an error so a
// misbehaving analysis cannot take down the loop
func (l *Loop) safeRun(dim dimension, utterances []Utterance, now time.Time) (item Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{dimension: dim.name, value: r}
		}
	}()
	return dim.run(l, utterances, now)
}

func (l *Loop) runSentiment(utterances []Utterance, now time.Time) (Item, error) {
	item, score, err := analyzeSentiment(utterances, now)
	if err != nil {
		return Item{}, err
	}
	l.mu.Lock()
	l.analytics.SentimentScore = score
	l.mu.Unlock()
	return item, nil
}

func (l *Loop) runQuestions(utterances []Utterance, now time.Time) (Item, error) {
	item, ratio, err := analyzeQuestions(utterances, now)
	if err != nil {
		return Item{}, err
	}
	l.mu.Lock()
	l.analytics.QuestionRatio = ratio
	l.mu.Unlock()
	return item, nil
}

func (l *Loop) runPace(utterances []Utterance, now time.Time) (Item, error) {
	item, _, err := analyzePace(utterances, l.opts.Window, now)
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

func (l *Loop) runConfidence(utterances []Utterance, now time.Time) (Item, error) {
	item, mean, err := analyzeConfidence(utterances, now)
	if err != nil {
		return Item{}, err
	}
	l.mu.Lock()
	l.analytics.AvgConfidence = mean
	l.mu.Unlock()
	return item, nil
}

// accumulateWords adds words from utterances not yet counted. Windows
// overlap between ticks, so counting is gated on the utterance timestamp.
func (l *Loop) accumulateWords(utterances []Utterance, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, u := range utterances {
		if !u.At.After(l.countedThrough) {
			continue
		}
		l.analytics.TotalWords += len(strings.Fields(u.Text))
	}
	l.countedThrough = now

	if !l.startedAt.IsZero() {
		minutes := now.Sub(l.startedAt).Minutes()
		if minutes > 0 {
			l.analytics.SpeakingPaceWPM = float64(l.analytics.TotalWords) / minutes
		}
	}
}

type panicError struct {
	dimension string
	value     interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic in %s analysis: %v", e.dimension, e.value)
}
