package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestReconnect_SuccessAfterFailures(t *testing.T) {
	config := &ReconnectConfig{
		MaxAttempts: 5,
		Backoff:     time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  10 * time.Millisecond,
	}

	attempts := 0
	err := Reconnect(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, config, testLogger())

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestReconnect_ExhaustsAttempts(t *testing.T) {
	config := &ReconnectConfig{
		MaxAttempts: 4,
		Backoff:     time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  10 * time.Millisecond,
	}

	attempts := 0
	err := Reconnect(context.Background(), func() error {
		attempts++
		return errors.New("connection refused")
	}, config, testLogger())

	if err == nil {
		t.Error("Expected error after exhausting attempts")
	}
	if attempts != 4 {
		t.Errorf("Expected 4 attempts, got %d", attempts)
	}
}

func TestReconnect_CancelledDuringBackoff(t *testing.T) {
	config := &ReconnectConfig{
		MaxAttempts: 3,
		Backoff:     time.Second,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Reconnect(ctx, func() error {
			return errors.New("connection refused")
		}, config, testLogger())
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Reconnect did not return after context cancellation")
	}
}
