package feedback

import "time"

// Feedback dimension types
const (
	TypeSentiment  = "sentiment"
	TypeQuestion   = "question"
	TypePace       = "pace"
	TypeConfidence = "confidence"
	TypeEngagement = "engagement"
)

// Feedback severity levels
const (
	LevelPositive = "positive"
	LevelNeutral  = "neutral"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// Item is a single coaching observation produced by one analysis dimension.
// Items are append-only once handed to the session.
type Item struct {
	Type       string    `json:"type"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Utterance is one final transcript as seen by the feedback loop
type Utterance struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	At         time.Time `json:"at"`
}

// Analytics aggregates session-level speaking statistics. TotalWords
// accumulates across the whole session; the remaining fields reflect the
// most recent analysis window.
type Analytics struct {
	TotalWords      int     `json:"total_words"`
	AvgConfidence   float64 `json:"avg_confidence"`
	SentimentScore  float64 `json:"sentiment_score"`
	QuestionRatio   float64 `json:"question_ratio"`
	SpeakingPaceWPM float64 `json:"speaking_pace_wpm"`
}
