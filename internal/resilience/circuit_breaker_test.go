package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Minute)

	for i := 0; i < 3; i++ {
		_ = cb.Call(func() error { return errors.New("failure") })
	}

	if cb.GetState() != StateOpen {
		t.Errorf("Expected circuit to be open after 3 failures, got state %d", cb.GetState())
	}

	err := cb.Call(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen while open, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Minute)

	_ = cb.Call(func() error { return errors.New("failure") })
	_ = cb.Call(func() error { return errors.New("failure") })
	_ = cb.Call(func() error { return nil })
	_ = cb.Call(func() error { return errors.New("failure") })
	_ = cb.Call(func() error { return errors.New("failure") })

	if cb.GetState() != StateClosed {
		t.Errorf("Expected circuit to stay closed, got state %d", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 10*time.Millisecond)

	_ = cb.Call(func() error { return errors.New("failure") })
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected circuit to be open, got state %d", cb.GetState())
	}

	// Wait for the reset timeout, then succeed enough times to close
	time.Sleep(15 * time.Millisecond)

	for i := 0; i < 2; i++ {
		if err := cb.Call(func() error { return nil }); err != nil {
			t.Errorf("Expected call %d to be allowed in half-open, got %v", i, err)
		}
	}

	if cb.GetState() != StateClosed {
		t.Errorf("Expected circuit to close after half-open successes, got state %d", cb.GetState())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 10*time.Millisecond)

	_ = cb.Call(func() error { return errors.New("failure") })
	time.Sleep(15 * time.Millisecond)

	_ = cb.Call(func() error { return errors.New("failure") })

	if cb.GetState() != StateOpen {
		t.Errorf("Expected circuit to re-open after half-open failure, got state %d", cb.GetState())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Minute)

	_ = cb.Call(func() error { return errors.New("failure") })
	cb.Reset()

	if cb.GetState() != StateClosed {
		t.Errorf("Expected circuit to be closed after reset, got state %d", cb.GetState())
	}
}
