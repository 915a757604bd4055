package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/speakcoach/live-coach/internal/observability"
)

// DeviceSource captures from a microphone via PortAudio, resamples to the
// recognizer's rate and slices the stream into fixed frames.
type DeviceSource struct {
	deviceIndex int // -1 selects the default input device
	targetRate  int
	frameSize   int

	stream     *portaudio.Stream
	deviceRate int
	framer     *Framer

	mu      sync.Mutex
	closed  bool
	started bool
	onFrame func(Frame)
}

// NewDeviceSource creates a microphone-backed frame source. Frames hold
// frameSize samples at targetRate Hz.
func NewDeviceSource(deviceIndex, targetRate, frameSize int) *DeviceSource {
	return &DeviceSource{
		deviceIndex: deviceIndex,
		targetRate:  targetRate,
		frameSize:   frameSize,
		framer:      NewFramer(frameSize),
	}
}

// Start opens the capture device and begins delivering frames.
// Device or permission failure surfaces as ErrDevice and is not retried.
func (d *DeviceSource) Start(onFrame func(Frame)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("device source already started")
	}
	if d.closed {
		return fmt.Errorf("device source is closed: %w", ErrDevice)
	}

	logger := observability.ForComponent("audio")

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}

	device, err := d.selectDevice()
	if err != nil {
		portaudio.Terminate()
		return err
	}

	d.deviceRate = int(device.DefaultSampleRate)
	d.onFrame = onFrame

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: 1,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      device.DefaultSampleRate,
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}

	stream, err := portaudio.OpenStream(params, d.capture)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}

	d.stream = stream
	d.started = true

	logger.Info().
		Str("device", device.Name).
		Int("device_rate", d.deviceRate).
		Int("target_rate", d.targetRate).
		Int("frame_samples", d.frameSize).
		Msg("Audio capture started")

	return nil
}

// selectDevice resolves the configured device index to a PortAudio device
func (d *DeviceSource) selectDevice() (*portaudio.DeviceInfo, error) {
	if d.deviceIndex < 0 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDevice, err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDevice, err)
	}
	if d.deviceIndex >= len(devices) {
		return nil, fmt.Errorf("%w: no device at index %d", ErrDevice, d.deviceIndex)
	}

	device := devices[d.deviceIndex]
	if device.MaxInputChannels < 1 {
		return nil, fmt.Errorf("%w: device %q has no input channels", ErrDevice, device.Name)
	}
	return device, nil
}

// capture is the PortAudio input callback. It runs on the audio subsystem's
// cadence, so everything here stays allocation-light and never blocks.
// Delivery happens under the lock Close takes, so once Close has returned
// no further frame can reach the callback.
func (d *DeviceSource) capture(in []int16) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || !d.started {
		return
	}

	for _, frame := range d.framer.Push(Resample(in, d.deviceRate, d.targetRate)) {
		d.onFrame(frame)
	}
}

// Close stops capture and releases the device. The callback lock guarantees
// no frame is delivered once Close has returned.
func (d *DeviceSource) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	stream := d.stream
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	var err error
	if stream != nil {
		if stopErr := stream.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop audio stream: %w", stopErr)
		}
		stream.Close()
	}
	portaudio.Terminate()

	logger := observability.ForComponent("audio")
	logger.Info().Msg("Audio capture stopped")
	return err
}
