package feedback

import (
	"sync"
	"testing"
	"time"
)

type feedbackSink struct {
	mu      sync.Mutex
	batches [][]Item
	notices []string
}

func (s *feedbackSink) onFeedback(items []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, items)
}

func (s *feedbackSink) onNotice(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, msg)
}

func (s *feedbackSink) counts() (batches, notices int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches), len(s.notices)
}

func staticSnapshot(utterances []Utterance) SnapshotFunc {
	return func(window time.Duration) []Utterance {
		out := make([]Utterance, len(utterances))
		copy(out, utterances)
		return out
	}
}

func TestLoop_SilentTicksEmitNoticesOnly(t *testing.T) {
	sink := &feedbackSink{}
	l := NewLoop(LoopOptions{
		Snapshot:   staticSnapshot(nil),
		OnFeedback: sink.onFeedback,
		OnNotice:   sink.onNotice,
	})

	// Three silent analysis windows, as in a session with no speech
	now := time.Now()
	l.Tick(now.Add(10 * time.Second))
	l.Tick(now.Add(20 * time.Second))
	l.Tick(now.Add(30 * time.Second))

	batches, notices := sink.counts()
	if notices != 3 {
		t.Errorf("Expected 3 no-speech notices, got %d", notices)
	}
	if batches != 0 {
		t.Errorf("Expected no feedback batches for silence, got %d", batches)
	}
	if words := l.Analytics().TotalWords; words != 0 {
		t.Errorf("Expected 0 total words, got %d", words)
	}
}

func TestLoop_TickEmitsOneItemPerDimension(t *testing.T) {
	sink := &feedbackSink{}
	now := time.Now()
	l := NewLoop(LoopOptions{
		Snapshot: staticSnapshot([]Utterance{
			{Text: "The launch went great. What do you all think?", Confidence: 0.95, At: now},
		}),
		OnFeedback: sink.onFeedback,
	})

	l.Tick(now)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.batches) != 1 {
		t.Fatalf("Expected 1 feedback batch, got %d", len(sink.batches))
	}
	items := sink.batches[0]
	if len(items) != 4 {
		t.Fatalf("Expected 4 feedback items, got %d", len(items))
	}

	types := make(map[string]bool)
	for _, item := range items {
		types[item.Type] = true
		if item.Timestamp != now {
			t.Errorf("Expected item timestamp %v, got %v", now, item.Timestamp)
		}
	}
	for _, want := range []string{TypeSentiment, TypePace, TypeConfidence} {
		if !types[want] {
			t.Errorf("Expected an item of type %s, got %v", want, types)
		}
	}
	if !types[TypeQuestion] && !types[TypeEngagement] {
		t.Errorf("Expected a question or engagement item, got %v", types)
	}
}

func TestLoop_OverlappingWindowsCountWordsOnce(t *testing.T) {
	now := time.Now()
	utterance := Utterance{Text: "one two three four five", Confidence: 0.9, At: now}

	l := NewLoop(LoopOptions{Snapshot: staticSnapshot([]Utterance{utterance})})

	// The same utterance stays inside the 30s window across several ticks
	l.Tick(now.Add(10 * time.Second))
	l.Tick(now.Add(20 * time.Second))
	l.Tick(now.Add(30 * time.Second))

	if words := l.Analytics().TotalWords; words != 5 {
		t.Errorf("Expected 5 total words counted once, got %d", words)
	}
}

func TestLoop_WindowAnalyticsReplacedEachTick(t *testing.T) {
	now := time.Now()

	current := []Utterance{{Text: "some words here", Confidence: 0.6, At: now}}
	var mu sync.Mutex
	l := NewLoop(LoopOptions{Snapshot: func(window time.Duration) []Utterance {
		mu.Lock()
		defer mu.Unlock()
		out := make([]Utterance, len(current))
		copy(out, current)
		return out
	}})

	l.Tick(now)
	if got := l.Analytics().AvgConfidence; got != 0.6 {
		t.Fatalf("Expected avg confidence 0.6, got %f", got)
	}

	mu.Lock()
	current = []Utterance{{Text: "clearer words now", Confidence: 0.9, At: now.Add(10 * time.Second)}}
	mu.Unlock()

	l.Tick(now.Add(10 * time.Second))
	if got := l.Analytics().AvgConfidence; got != 0.9 {
		t.Errorf("Expected avg confidence replaced with 0.9, got %f", got)
	}
	if words := l.Analytics().TotalWords; words != 6 {
		t.Errorf("Expected 6 accumulated words, got %d", words)
	}
}

func TestLoop_DimensionFailureDoesNotAbortOthers(t *testing.T) {
	sink := &feedbackSink{}
	now := time.Now()
	l := NewLoop(LoopOptions{
		Snapshot: staticSnapshot([]Utterance{
			{Text: "The launch went great today.", Confidence: 0.95, At: now},
		}),
		OnFeedback: sink.onFeedback,
	})

	l.dimensions[0].run = func(l *Loop, utterances []Utterance, now time.Time) (Item, error) {
		panic("dimension blew up")
	}

	l.Tick(now)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.batches) != 1 {
		t.Fatalf("Expected 1 feedback batch, got %d", len(sink.batches))
	}
	if len(sink.batches[0]) != 3 {
		t.Errorf("Expected 3 items from surviving dimensions, got %d", len(sink.batches[0]))
	}
}

func TestLoop_SpeakingPaceFromSessionElapsed(t *testing.T) {
	now := time.Now()
	l := NewLoop(LoopOptions{Snapshot: staticSnapshot([]Utterance{
		{Text: wordsOfCount(60), Confidence: 0.9, At: now.Add(30 * time.Second)},
	})})

	l.startedAt = now
	l.countedThrough = now

	// 60 words over a 1 minute session
	l.Tick(now.Add(time.Minute))

	if pace := l.Analytics().SpeakingPaceWPM; pace != 60 {
		t.Errorf("Expected session pace 60 WPM, got %f", pace)
	}
}

func TestLoop_FlushCountsTrailingWords(t *testing.T) {
	now := time.Now()
	utterance := Utterance{Text: "one final trailing remark", Confidence: 0.9, At: now}

	l := NewLoop(LoopOptions{Snapshot: staticSnapshot([]Utterance{utterance})})

	// The utterance arrived after the last tick; Flush folds it in
	l.Flush()
	if words := l.Analytics().TotalWords; words != 4 {
		t.Errorf("Expected 4 words after flush, got %d", words)
	}

	// A second flush over the same window adds nothing
	l.Flush()
	if words := l.Analytics().TotalWords; words != 4 {
		t.Errorf("Expected flush to be idempotent, got %d words", words)
	}
}

func TestLoop_StartStopLifecycle(t *testing.T) {
	sink := &feedbackSink{}
	l := NewLoop(LoopOptions{
		Interval:   10 * time.Millisecond,
		Window:     time.Second,
		Snapshot:   staticSnapshot(nil),
		OnNotice:   sink.onNotice,
		OnFeedback: sink.onFeedback,
	})

	l.Start()
	time.Sleep(50 * time.Millisecond)
	l.Stop()

	_, notices := sink.counts()
	if notices == 0 {
		t.Error("Expected at least one notice while running")
	}

	settled := notices
	time.Sleep(50 * time.Millisecond)
	if _, after := sink.counts(); after != settled {
		t.Errorf("Expected no ticks after Stop, got %d -> %d", settled, after)
	}

	// Stop again is a no-op
	l.Stop()
}
