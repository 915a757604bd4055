package audio

import (
	"errors"
	"math"
)

// ErrDevice indicates the capture device is unavailable or permission was
// denied. It is fatal to session start and never retried locally.
var ErrDevice = errors.New("audio device unavailable")

// Frame is a fixed-length block of PCM16 samples captured from the
// microphone. Seq is strictly increasing within one source.
type Frame struct {
	Samples []int16
	Seq     uint64
	RMS     float64 // normalized signal energy in [0, 1]
}

// Bytes encodes the frame's samples as little-endian PCM16, the wire format
// the recognition service expects.
func (f Frame) Bytes() []byte {
	out := make([]byte, len(f.Samples)*2)
	for i, s := range f.Samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// CalculateRMS calculates the root mean square (RMS) of audio samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// NormalizedRMS returns the RMS of the samples scaled into [0, 1]
func NormalizedRMS(samples []int16) float64 {
	return CalculateRMS(samples) / 32768.0
}
