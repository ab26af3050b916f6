package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// PlaybackEventType tags a Playback completion event (spec.md §4.2).
type PlaybackEventType string

const (
	PlaybackComplete PlaybackEventType = "complete"
	PlaybackStopped  PlaybackEventType = "stopped"
	PlaybackError    PlaybackEventType = "error"
)

// PlaybackEvent is emitted on the Playback's event channel.
type PlaybackEvent struct {
	Type PlaybackEventType
	Err  error
}

// Playback consumes PCM frames to the speaker (spec.md §4.2, C3). It
// supports graceful drain (End) and immediate discard (Stop, used for
// barge-in).
//
// Grounded on the teacher's cmd/agent/main.go playback closure
// (playbackBytes slice fed from the output callback), replaced here with a
// dedicated buffer guarded by its own mutex and an explicit state machine
// instead of a bare byte slice shared across the whole program.
type Playback struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu           sync.Mutex
	buf          []int16
	ending       bool // draining remaining buffer, no more Write calls expected
	stopped      bool
	bytesWritten int64

	events chan PlaybackEvent
}

// NewPlayback opens a mono 16-bit LE playback device at sampleRate.
func NewPlayback(mctx *malgo.AllocatedContext, sampleRate int) (*Playback, error) {
	p := &Playback{
		ctx:    mctx,
		events: make(chan PlaybackEvent, 4),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: p.onSamples,
	})
	if err != nil {
		return nil, fmt.Errorf("speaker_unavailable: %w", err)
	}
	p.device = device
	return p, nil
}

// Start begins the playback device.
func (p *Playback) Start() error {
	if err := p.device.Start(); err != nil {
		return fmt.Errorf("speaker_unavailable: %w", err)
	}
	return nil
}

func (p *Playback) onSamples(pOutput, _ []byte, _ uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	want := len(pOutput) / 2
	n := want
	if n > len(p.buf) {
		n = len(p.buf)
	}

	out := Int16LEToBytes(p.buf[:n])
	copy(pOutput, out)
	for i := len(out); i < len(pOutput); i++ {
		pOutput[i] = 0
	}
	p.buf = p.buf[n:]
	p.bytesWritten += int64(len(out))

	if p.ending && len(p.buf) == 0 {
		p.ending = false
		go p.emit(PlaybackEvent{Type: PlaybackComplete})
	}
}

// Write appends a chunk to the playback buffer. Returns true if the caller
// should keep sending (no backpressure), false if the internal buffer is
// already holding more than ~2s of audio and the caller should slow down
// (spec.md §4.2).
func (p *Playback) Write(chunk []int16) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.buf = append(p.buf, chunk...)
	const backpressureSamples = 2 * DefaultPlaybackSampleRate
	return len(p.buf) < backpressureSamples
}

// End requests the device drain remaining buffered audio then emit
// PlaybackComplete (spec.md §4.2: "drain remaining buffered audio then
// finish normally").
func (p *Playback) End() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		go p.emit(PlaybackEvent{Type: PlaybackComplete})
		return
	}
	p.ending = true
}

// Stop discards the remaining buffer and terminates immediately — used for
// barge-in (spec.md §4.2).
func (p *Playback) Stop() {
	p.mu.Lock()
	p.buf = nil
	p.ending = false
	p.stopped = true
	p.mu.Unlock()
	go p.emit(PlaybackEvent{Type: PlaybackStopped})
}

// Resume allows Write to accept audio again after a Stop (e.g. for the next
// conversation turn).
func (p *Playback) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = false
}

// BytesWritten returns the total sample bytes written to the device so far
// (diagnostics, spec.md §4.2).
func (p *Playback) BytesWritten() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bytesWritten
}

// Events returns the playback completion event channel.
func (p *Playback) Events() <-chan PlaybackEvent {
	return p.events
}

func (p *Playback) emit(e PlaybackEvent) {
	select {
	case p.events <- e:
	default:
	}
}

// Close releases the playback device.
func (p *Playback) Close() {
	_ = p.device.Stop()
	p.device.Uninit()
}
