package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// Capture streams microphone PCM frames of exactly CaptureFrameSamples
// samples at CaptureSampleRate (spec.md §4.1, C2). It owns the malgo
// capture device for its lifetime; teardown via Stop releases the device
// on every exit path.
//
// Grounded on the teacher's cmd/agent/main.go malgo device setup, split out
// of the one-off onSamples closure into its own focused type with a frame
// channel instead of a shared-mutex playback buffer.
type Capture struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu      sync.Mutex
	partial []int16 // buffered trailing samples below a full frame
	frames  chan Frame
	stopped bool
}

// NewCapture opens a mono 16-bit LE capture device at CaptureSampleRate.
// The returned Capture is not yet streaming; call Start.
func NewCapture(mctx *malgo.AllocatedContext) (*Capture, error) {
	c := &Capture{
		ctx:    mctx,
		frames: make(chan Frame, 64),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = CaptureSampleRate
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: c.onSamples,
	})
	if err != nil {
		return nil, fmt.Errorf("mic_unavailable: %w", err)
	}
	c.device = device
	return c, nil
}

func (c *Capture) onSamples(_, pInput []byte, _ uint32) {
	if len(pInput) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	c.partial = append(c.partial, BytesToInt16LE(pInput)...)
	for len(c.partial) >= CaptureFrameSamples {
		frame := Frame{
			Samples:    append([]int16(nil), c.partial[:CaptureFrameSamples]...),
			SampleRate: CaptureSampleRate,
		}
		c.partial = c.partial[CaptureFrameSamples:]
		select {
		case c.frames <- frame:
		default:
			// Consumer too slow: drop the oldest pending frame, matching the
			// real-time "prefer freshest audio" policy (spec.md §9).
			select {
			case <-c.frames:
			default:
			}
			c.frames <- frame
		}
	}
}

// Start begins streaming. Frames are delivered in order, no duplication,
// with no partial (short) frames — trailing data below a full frame is held
// until the next callback completes it (spec.md §4.1).
func (c *Capture) Start() error {
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("mic_unavailable: %w", err)
	}
	return nil
}

// Frames returns the channel of captured frames.
func (c *Capture) Frames() <-chan Frame {
	return c.frames
}

// Stop terminates streaming promptly and releases the device. Idempotent.
func (c *Capture) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	_ = c.device.Stop()
	c.device.Uninit()
}
