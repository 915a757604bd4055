package stt

import (
	"errors"
	"time"
)

// ErrAuthFailed indicates the token provider could not supply a credential
// within the configured attempts. Fatal to session start.
var ErrAuthFailed = errors.New("auth failed")

// ErrLinkClosed indicates an operation was attempted on a closed link
var ErrLinkClosed = errors.New("transcription link is closed")

// EventKind discriminates transcript events delivered by the link
type EventKind string

const (
	KindPartial           EventKind = "partial"
	KindFinal             EventKind = "final"
	KindSessionBegins     EventKind = "session_begins"
	KindSessionTerminated EventKind = "session_terminated"
	KindError             EventKind = "error"
)

// Word is one recognized word with millisecond offsets into the session
// audio. Start never exceeds End, and starts are non-decreasing within one
// event.
type Word struct {
	Text    string `json:"text"`
	StartMs int    `json:"start_ms"`
	EndMs   int    `json:"end_ms"`
}

// TranscriptEvent is one parsed inbound event from the recognition service.
// Immutable once constructed.
type TranscriptEvent struct {
	Kind       EventKind `json:"kind"`
	Text       string    `json:"text,omitempty"`
	Words      []Word    `json:"words,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Err        string    `json:"error,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// LinkState models the connection lifecycle of the transcription link
type LinkState int

const (
	StateIdle LinkState = iota
	StateAuthenticating
	StateConnected
	StateActive
	StateClosing
	StateClosed
	StateError
)

// String returns a human-readable state name
func (s LinkState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Wire protocol message types, exactly as the recognition service sends them
const (
	msgSessionBegins     = "SessionBegins"
	msgPartialTranscript = "PartialTranscript"
	msgFinalTranscript   = "FinalTranscript"
	msgSessionTerminated = "SessionTerminated"
)

// wireMessage is the JSON envelope for inbound text messages
type wireMessage struct {
	MessageType string     `json:"message_type"`
	Error       string     `json:"error,omitempty"`
	Text        string     `json:"text,omitempty"`
	Confidence  float64    `json:"confidence,omitempty"`
	Words       []wireWord `json:"words,omitempty"`
}

// wireWord carries per-word timing in milliseconds
type wireWord struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// terminateMessage is sent on clean shutdown to end the remote session
type terminateMessage struct {
	TerminateSession bool `json:"terminate_session"`
}
