package metrics

import (
	"sync"
	"testing"
	"time"
)

type warningRecorder struct {
	mu     sync.Mutex
	events []warningEvent
}

type warningEvent struct {
	metric  string
	message *string
}

func (r *warningRecorder) record(metric string, message *string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, warningEvent{metric: metric, message: message})
}

func (r *warningRecorder) warnings(metric string) (surfaced, cleared int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.metric != metric {
			continue
		}
		if ev.message != nil {
			surfaced++
		} else {
			cleared++
		}
	}
	return
}

func fastDebouncerConfig() *DebouncerConfig {
	return &DebouncerConfig{
		Hold:          30 * time.Millisecond,
		BadConfidence: 0.3,
		BadClarity:    0.3,
		PaceMin:       110,
		PaceMax:       190,
	}
}

func goodState() State {
	return State{VolumeRMS: 0.1, Confidence: 0.8, Clarity: 0.8, SpeedWPM: 150}
}

func TestDebouncer_ShortBreachNeverWarns(t *testing.T) {
	rec := &warningRecorder{}
	d := NewDebouncer(fastDebouncerConfig(), rec.record)
	defer d.Close()

	bad := goodState()
	bad.Confidence = 0.1
	d.Observe(bad)

	time.Sleep(10 * time.Millisecond)
	d.Observe(goodState())

	time.Sleep(50 * time.Millisecond)

	surfaced, _ := rec.warnings(MetricConfidence)
	if surfaced != 0 {
		t.Errorf("Expected no warning for a breach shorter than the hold, got %d", surfaced)
	}
}

func TestDebouncer_SustainedBreachWarnsExactlyOnce(t *testing.T) {
	rec := &warningRecorder{}
	d := NewDebouncer(fastDebouncerConfig(), rec.record)
	defer d.Close()

	bad := goodState()
	bad.Confidence = 0.1

	// Keep observing the bad state past the hold duration
	for i := 0; i < 10; i++ {
		d.Observe(bad)
		time.Sleep(10 * time.Millisecond)
	}

	surfaced, cleared := rec.warnings(MetricConfidence)
	if surfaced != 1 {
		t.Errorf("Expected exactly 1 warning for a sustained breach, got %d", surfaced)
	}
	if cleared != 0 {
		t.Errorf("Expected no clear while still bad, got %d", cleared)
	}

	// Recovery clears the warning
	d.Observe(goodState())
	surfaced, cleared = rec.warnings(MetricConfidence)
	if cleared != 1 {
		t.Errorf("Expected 1 clear after recovery, got %d", cleared)
	}

	// A new sustained breach warns again
	for i := 0; i < 10; i++ {
		d.Observe(bad)
		time.Sleep(10 * time.Millisecond)
	}
	surfaced, _ = rec.warnings(MetricConfidence)
	if surfaced != 2 {
		t.Errorf("Expected a second warning after re-breach, got %d", surfaced)
	}
}

func TestDebouncer_MetricsAreIndependent(t *testing.T) {
	rec := &warningRecorder{}
	d := NewDebouncer(fastDebouncerConfig(), rec.record)
	defer d.Close()

	bad := goodState()
	bad.Confidence = 0.1
	bad.SpeedWPM = 250

	for i := 0; i < 10; i++ {
		d.Observe(bad)
		time.Sleep(10 * time.Millisecond)
	}

	confSurfaced, _ := rec.warnings(MetricConfidence)
	paceSurfaced, _ := rec.warnings(MetricPace)
	claritySurfaced, _ := rec.warnings(MetricClarity)

	if confSurfaced != 1 {
		t.Errorf("Expected 1 confidence warning, got %d", confSurfaced)
	}
	if paceSurfaced != 1 {
		t.Errorf("Expected 1 pace warning, got %d", paceSurfaced)
	}
	if claritySurfaced != 0 {
		t.Errorf("Expected no clarity warning, got %d", claritySurfaced)
	}
}

func TestDebouncer_PaceMessageDependsOnDirection(t *testing.T) {
	d := NewDebouncer(fastDebouncerConfig(), nil)
	defer d.Close()

	slow := goodState()
	slow.SpeedWPM = 80
	if msg := d.message(MetricPace, slow); msg == "" || msg == d.message(MetricPace, State{SpeedWPM: 250}) {
		t.Error("Expected distinct messages for slow and fast pace")
	}
}

func TestDebouncer_CloseCancelsPendingTimers(t *testing.T) {
	rec := &warningRecorder{}
	d := NewDebouncer(fastDebouncerConfig(), rec.record)

	bad := goodState()
	bad.Clarity = 0.1
	d.Observe(bad)

	d.Close()
	time.Sleep(50 * time.Millisecond)

	surfaced, _ := rec.warnings(MetricClarity)
	if surfaced != 0 {
		t.Errorf("Expected no warning after Close, got %d", surfaced)
	}
}
