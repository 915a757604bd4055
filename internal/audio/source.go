package audio

import (
	"sync"
	"time"
)

// FrameSource captures audio and delivers fixed-size frames to a callback.
// Implementations guarantee strictly increasing sequence indices and that no
// frame is delivered after Close returns.
type FrameSource interface {
	// Start begins capture and invokes onFrame for every complete frame.
	// The callback runs on the capture cadence and must not block.
	Start(onFrame func(Frame)) error

	// Close stops capture and releases the device
	Close() error
}

// ScriptedSource replays pre-recorded sample buffers on a fixed cadence.
// Used by tests and offline replay runs in place of a live microphone.
type ScriptedSource struct {
	buffers  [][]int16
	interval time.Duration
	framer   *Framer

	mu      sync.Mutex
	closed  bool
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewScriptedSource creates a source that replays the given buffers,
// one per interval, sliced into frames of frameSize samples
func NewScriptedSource(buffers [][]int16, frameSize int, interval time.Duration) *ScriptedSource {
	return &ScriptedSource{
		buffers:  buffers,
		interval: interval,
		framer:   NewFramer(frameSize),
		done:     make(chan struct{}),
	}
}

// Start begins replaying buffers to the callback
func (s *ScriptedSource) Start(onFrame func(Frame)) error {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return ErrDevice
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for _, buf := range s.buffers {
			select {
			case <-s.done:
				return
			case <-time.After(s.interval):
			}

			for _, frame := range s.framer.Push(buf) {
				s.mu.Lock()
				closed := s.closed
				s.mu.Unlock()
				if closed {
					return
				}
				onFrame(frame)
			}
		}
	}()

	return nil
}

// Close stops replay; no frame is delivered after it returns
func (s *ScriptedSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
