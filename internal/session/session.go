package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSessionActive is returned by Start while another session is running
var ErrSessionActive = errors.New("a session is already active")

// ErrNoActiveSession is returned by Stop when no session is running
var ErrNoActiveSession = errors.New("no active session")

// State is the lifecycle state of a coaching session
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateStopping   State = "stopping"
	StateClosed     State = "closed"
)

// Session is the metadata record for one coaching session. Mutable while
// the session runs, frozen into the report on stop.
type Session struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	State     State      `json:"state"`

	// Error carries the terminal link failure, if the session ended
	// because reconnection was exhausted rather than by operator stop
	Error string `json:"error,omitempty"`
}

// Duration returns the session length, using now while still running
func (s *Session) Duration() time.Duration {
	if s.EndTime != nil {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}
