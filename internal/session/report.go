package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/speakcoach/live-coach/internal/feedback"
	"github.com/speakcoach/live-coach/internal/observability"
)

// Report is the single persisted artifact of a session, consumed by
// external reporting tools as static JSON
type Report struct {
	Session          *Session           `json:"session"`
	Analytics        feedback.Analytics `json:"analytics"`
	Feedbacks        []feedback.Item    `json:"feedbacks"`
	Transcripts      []string           `json:"transcripts"`
	FinalTranscripts []string           `json:"final_transcripts"`
	Summary          string             `json:"summary"`
}

// buildReport freezes the session's collected state into a report
func (m *Manager) buildReport(active *activeSession) *Report {
	active.mu.Lock()
	transcripts := append([]string(nil), active.transcripts...)
	finalTexts := append([]string(nil), active.finalTexts...)
	feedbacks := append([]feedback.Item(nil), active.feedbacks...)
	if active.termErr != "" {
		active.session.Error = active.termErr
	}
	active.mu.Unlock()

	analytics := active.loop.Analytics()

	return &Report{
		Session:          active.session,
		Analytics:        analytics,
		Feedbacks:        feedbacks,
		Transcripts:      transcripts,
		FinalTranscripts: finalTexts,
		Summary:          buildSummary(active.session, analytics, len(feedbacks)),
	}
}

// writeReport serializes the report under the configured directory and
// returns the file path
func (m *Manager) writeReport(active *activeSession) (string, error) {
	report := m.buildReport(active)

	if err := os.MkdirAll(m.cfg.ReportDir, 0o755); err != nil {
		observability.RecordReportWritten(false)
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	name := fmt.Sprintf("session-%s-%s.json",
		active.session.ID.String(),
		active.session.StartTime.Format("20060102-150405"))
	path := filepath.Join(m.cfg.ReportDir, name)

	if err := writeJSON(path, report); err != nil {
		observability.RecordReportWritten(false)
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	observability.RecordReportWritten(true)
	return path, nil
}

// writeBestEffortReport captures whatever a failed session collected.
// Write errors are logged, never propagated.
func (m *Manager) writeBestEffortReport(active *activeSession) {
	active.session.State = StateClosed
	if path, err := m.writeReport(active); err != nil {
		m.logger.Warn().Err(err).Msg("Best-effort report write failed")
	} else {
		m.logger.Info().Str("report", path).Msg("Best-effort report written for failed session")
	}
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// buildSummary renders the human-readable rollup line for the report
func buildSummary(sess *Session, analytics feedback.Analytics, feedbackCount int) string {
	return fmt.Sprintf(
		"%s session lasting %s: %d words spoken at %.0f WPM overall, avg recognition confidence %.0f%%, %d feedback items.",
		sess.Type,
		sess.Duration().Round(time.Second),
		analytics.TotalWords,
		analytics.SpeakingPaceWPM,
		analytics.AvgConfidence*100,
		feedbackCount,
	)
}
