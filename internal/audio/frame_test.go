package audio

import (
	"math"
	"testing"
)

func TestCalculateRMS_Silence(t *testing.T) {
	samples := make([]int16, 160)
	rms := CalculateRMS(samples)
	if rms != 0.0 {
		t.Errorf("Expected RMS 0 for silence, got %f", rms)
	}
}

func TestCalculateRMS_ConstantAmplitude(t *testing.T) {
	samples := make([]int16, 160)
	for i := range samples {
		samples[i] = 1000
	}

	rms := CalculateRMS(samples)
	if math.Abs(rms-1000.0) > 0.001 {
		t.Errorf("Expected RMS 1000 for constant amplitude, got %f", rms)
	}
}

func TestCalculateRMS_Empty(t *testing.T) {
	if rms := CalculateRMS(nil); rms != 0.0 {
		t.Errorf("Expected RMS 0 for empty input, got %f", rms)
	}
}

func TestNormalizedRMS_Range(t *testing.T) {
	samples := make([]int16, 160)
	for i := range samples {
		samples[i] = 16384 // half scale
	}

	rms := NormalizedRMS(samples)
	if math.Abs(rms-0.5) > 0.001 {
		t.Errorf("Expected normalized RMS 0.5 at half scale, got %f", rms)
	}
}

func TestFrame_Bytes_LittleEndian(t *testing.T) {
	frame := Frame{Samples: []int16{0x0102, -2}}
	b := frame.Bytes()

	if len(b) != 4 {
		t.Fatalf("Expected 4 bytes, got %d", len(b))
	}
	if b[0] != 0x02 || b[1] != 0x01 {
		t.Errorf("Expected little-endian 0x02 0x01, got 0x%02x 0x%02x", b[0], b[1])
	}
	if b[2] != 0xfe || b[3] != 0xff {
		t.Errorf("Expected little-endian 0xfe 0xff for -2, got 0x%02x 0x%02x", b[2], b[3])
	}
}

func TestResample_Identity(t *testing.T) {
	samples := []int16{1, 2, 3, 4}
	out := Resample(samples, 16000, 16000)

	if len(out) != len(samples) {
		t.Fatalf("Expected identical length, got %d", len(out))
	}
	for i := range samples {
		if out[i] != samples[i] {
			t.Errorf("Sample %d changed: expected %d, got %d", i, samples[i], out[i])
		}
	}
}

func TestResample_Downsample(t *testing.T) {
	samples := make([]int16, 480) // 10ms at 48kHz
	out := Resample(samples, 48000, 16000)

	if len(out) != 160 {
		t.Errorf("Expected 160 samples after 48k->16k resample, got %d", len(out))
	}
}

func TestResample_Upsample(t *testing.T) {
	samples := make([]int16, 80) // 10ms at 8kHz
	out := Resample(samples, 8000, 16000)

	if len(out) != 160 {
		t.Errorf("Expected 160 samples after 8k->16k resample, got %d", len(out))
	}
}
