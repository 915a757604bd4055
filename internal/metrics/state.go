package metrics

// State holds the smoothed live speech-quality signals for a session.
// Owned by the Estimator; callers receive snapshot copies.
type State struct {
	// VolumeRMS is the smoothed normalized signal energy in [0, 1]
	VolumeRMS float64 `json:"volume_rms"`

	// Confidence is the derived "coming across well" score in [0, 1].
	// Distinct from recognizer confidence, which only contributes 10%.
	Confidence float64 `json:"confidence"`

	// Clarity estimates how intelligible the speech is, in [0, 1]
	Clarity float64 `json:"clarity"`

	// SpeedWPM is the smoothed talking speed in words per minute, >= 0
	SpeedWPM float64 `json:"speed_wpm"`
}

// initialState returns the smoothing-state starting point for a session
func initialState() State {
	return State{
		VolumeRMS:  0,
		Confidence: 0.5,
		Clarity:    0.5,
		SpeedWPM:   150,
	}
}
