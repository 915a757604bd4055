package feedback

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentiment banding thresholds on the positive-keyword share
const (
	sentimentPositiveBand = 0.7
	sentimentWarningBand  = 0.3
)

// Question-ratio banding thresholds
const (
	questionLowBand  = 0.1
	questionHighBand = 0.3
)

// Window pace bands in words per minute
const (
	paceSlowWPM = 120
	paceFastWPM = 180
)

// Recognizer-confidence bands
const (
	confidenceGoodBand = 0.9
	confidenceOkBand   = 0.7
)

var errEmptyWindow = errors.New("no utterances in window")

var positiveWords = map[string]struct{}{
	"great": {}, "good": {}, "excellent": {}, "love": {}, "happy": {},
	"excited": {}, "wonderful": {}, "fantastic": {}, "yes": {}, "thanks": {},
	"thank": {}, "appreciate": {}, "perfect": {}, "awesome": {}, "glad": {},
}

var negativeWords = map[string]struct{}{
	"bad": {}, "hate": {}, "terrible": {}, "awful": {}, "no": {},
	"never": {}, "problem": {}, "wrong": {}, "unfortunately": {}, "sorry": {},
	"difficult": {}, "worried": {}, "confused": {}, "frustrating": {}, "sad": {},
}

var questionStarters = map[string]struct{}{
	"who": {}, "what": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"is": {}, "are": {}, "do": {}, "does": {}, "did": {}, "can": {},
	"could": {}, "would": {}, "will": {}, "should": {},
}

// analyzeSentiment scores the positive-keyword share of the window text.
// Text with no sentiment keywords at all scores a neutral 0.5.
func analyzeSentiment(utterances []Utterance, now time.Time) (Item, float64, error) {
	if len(utterances) == 0 {
		return Item{}, 0, errEmptyWindow
	}

	positive, negative := 0, 0
	for _, u := range utterances {
		for _, w := range strings.Fields(strings.ToLower(u.Text)) {
			w = strings.Trim(w, ".,!?;:\"'")
			if _, ok := positiveWords[w]; ok {
				positive++
			}
			if _, ok := negativeWords[w]; ok {
				negative++
			}
		}
	}

	score := 0.5
	if positive+negative > 0 {
		score = float64(positive) / float64(positive+negative)
	}

	item := Item{Type: TypeSentiment, Timestamp: now}
	switch {
	case score >= sentimentPositiveBand:
		item.Level = LevelPositive
		item.Message = "Your tone is coming across positive and upbeat."
	case score < sentimentWarningBand:
		item.Level = LevelWarning
		item.Message = "Your language is leaning negative."
		item.Suggestion = "Try reframing points in positive terms."
	default:
		item.Level = LevelNeutral
		item.Message = "Your tone is balanced."
	}
	return item, score, nil
}

// analyzeQuestions measures the share of sentences that are questions.
// A healthy ratio reads as engagement; too few questions reads as a
// one-sided conversation.
func analyzeQuestions(utterances []Utterance, now time.Time) (Item, float64, error) {
	if len(utterances) == 0 {
		return Item{}, 0, errEmptyWindow
	}

	total, questions := 0, 0
	for _, u := range utterances {
		for _, sentence := range splitSentences(u.Text) {
			total++
			if isQuestion(sentence) {
				questions++
			}
		}
	}
	if total == 0 {
		return Item{}, 0, errEmptyWindow
	}

	ratio := float64(questions) / float64(total)

	item := Item{Timestamp: now}
	switch {
	case ratio < questionLowBand:
		item.Type = TypeQuestion
		item.Level = LevelWarning
		item.Message = "You have asked very few questions recently."
		item.Suggestion = "Invite the other side in with an open question."
	case ratio > questionHighBand:
		item.Type = TypeQuestion
		item.Level = LevelNeutral
		item.Message = "You are asking a lot of questions."
		item.Suggestion = "Leave room to share your own perspective too."
	default:
		item.Type = TypeEngagement
		item.Level = LevelPositive
		item.Message = "Good balance of questions, the conversation feels two-way."
	}
	return item, ratio, nil
}

// analyzePace reports the window's words-per-minute against the
// conversational comfort band
func analyzePace(utterances []Utterance, window time.Duration, now time.Time) (Item, int, error) {
	if len(utterances) == 0 {
		return Item{}, 0, errEmptyWindow
	}
	if window <= 0 {
		return Item{}, 0, fmt.Errorf("invalid analysis window %v", window)
	}

	words := 0
	for _, u := range utterances {
		words += len(strings.Fields(u.Text))
	}
	wpm := float64(words) / window.Minutes()

	item := Item{Type: TypePace, Timestamp: now}
	switch {
	case wpm < paceSlowWPM:
		item.Level = LevelWarning
		item.Message = "Your pace over the last stretch was on the slow side."
		item.Suggestion = "Tighten up pauses between thoughts."
	case wpm > paceFastWPM:
		item.Level = LevelWarning
		item.Message = "Your pace over the last stretch was quite fast."
		item.Suggestion = "Slow down so key points can land."
	default:
		item.Level = LevelPositive
		item.Message = "Your pace is in a comfortable range."
	}
	return item, words, nil
}

// analyzeConfidence reports the mean recognizer confidence over the window
func analyzeConfidence(utterances []Utterance, now time.Time) (Item, float64, error) {
	if len(utterances) == 0 {
		return Item{}, 0, errEmptyWindow
	}

	sum := 0.0
	for _, u := range utterances {
		sum += u.Confidence
	}
	mean := sum / float64(len(utterances))

	item := Item{Type: TypeConfidence, Timestamp: now}
	switch {
	case mean >= confidenceGoodBand:
		item.Level = LevelPositive
		item.Message = "You are coming through loud and clear."
	case mean >= confidenceOkBand:
		item.Level = LevelNeutral
		item.Message = "Mostly clear, with a few muddled moments."
	default:
		item.Level = LevelWarning
		item.Message = "A lot of your speech is hard to make out."
		item.Suggestion = "Speak up and enunciate."
	}
	return item, mean, nil
}

// splitSentences breaks text on terminal punctuation, keeping the
// terminator attached so question marks survive
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// isQuestion detects a question by terminal mark or leading question word
func isQuestion(sentence string) bool {
	s := strings.TrimSpace(sentence)
	if s == "" {
		return false
	}
	if strings.HasSuffix(s, "?") {
		return true
	}
	first := strings.ToLower(strings.Trim(strings.Fields(s)[0], ".,!?;:\"'"))
	_, ok := questionStarters[first]
	return ok
}
