package audio

import (
	"sync"
)

// SampleRing is a thread-safe ring buffer for PCM16 samples. Capture
// callbacks deliver buffers of whatever size the audio subsystem chooses;
// the ring decouples that cadence from the fixed frame size the recognition
// service mandates.
type SampleRing struct {
	buffer []int16
	size   int
	read   int
	write  int
	mu     sync.Mutex
}

// NewSampleRing creates a new ring buffer holding up to size-1 samples
func NewSampleRing(size int) *SampleRing {
	return &SampleRing{
		buffer: make([]int16, size),
		size:   size,
	}
}

// Write writes samples to the ring buffer
// Returns the number of samples written (less than len(data) if full)
func (r *SampleRing) Write(data []int16) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	written := 0
	for i := 0; i < len(data); i++ {
		if (r.write+1)%r.size == r.read {
			break // Buffer full
		}

		r.buffer[r.write] = data[i]
		r.write = (r.write + 1) % r.size
		written++
	}

	return written
}

// Read reads samples from the ring buffer
// Returns the number of samples read
func (r *SampleRing) Read(data []int16) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	read := 0
	for i := 0; i < len(data); i++ {
		if r.read == r.write {
			break // Buffer empty
		}

		data[i] = r.buffer[r.read]
		r.read = (r.read + 1) % r.size
		read++
	}

	return read
}

// Available returns the number of samples available to read
func (r *SampleRing) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.write >= r.read {
		return r.write - r.read
	}
	return r.size - r.read + r.write
}

// Clear empties the buffer
func (r *SampleRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.read = 0
	r.write = 0
}

// Framer slices an arbitrary sample stream into fixed-size frames with
// strictly increasing sequence indices and per-frame RMS.
type Framer struct {
	ring      *SampleRing
	frameSize int
	seq       uint64
}

// NewFramer creates a framer producing frames of frameSize samples
func NewFramer(frameSize int) *Framer {
	return &Framer{
		// Room for a few frames of slack between capture and consumption
		ring:      NewSampleRing(frameSize*8 + 1),
		frameSize: frameSize,
	}
}

// Push appends captured samples and returns every complete frame now
// available. Samples that overflow the internal ring are dropped, which
// keeps Push O(1)-bounded rather than letting capture back up.
func (f *Framer) Push(samples []int16) []Frame {
	f.ring.Write(samples)

	var frames []Frame
	for f.ring.Available() >= f.frameSize {
		block := make([]int16, f.frameSize)
		f.ring.Read(block)

		frames = append(frames, Frame{
			Samples: block,
			Seq:     f.seq,
			RMS:     NormalizedRMS(block),
		})
		f.seq++
	}

	return frames
}

// Reset discards buffered samples without resetting the sequence counter
func (f *Framer) Reset() {
	f.ring.Clear()
}
