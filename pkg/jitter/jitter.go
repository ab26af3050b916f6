// Package jitter implements the Jitter Buffer (spec.md §4.7, C7): a
// small playback-side smoothing buffer between sentence-level TTS output
// and the continuous playback device, absorbing synthesis latency
// variance between sentences.
package jitter

import (
	"github.com/lokutor-ai/voxbridge/pkg/audio"
	"github.com/lokutor-ai/voxbridge/pkg/ringbuffer"
)

// EventType tags a Buffer event.
type EventType string

const (
	Ready    EventType = "ready"    // buffer crossed above the low watermark
	Underrun EventType = "underrun" // a Read request could not be fully satisfied
	Drained  EventType = "drained"  // buffer emptied after Ready was reached
)

// Event is emitted by Buffer on state transitions.
type Event struct {
	Type      EventType
	Requested int // Underrun only
	Available int // Underrun only
}

// Config tunes the jitter buffer (spec.md §4.7).
type Config struct {
	BufferSizeMs   int // default 500
	LowWatermarkMs int // default 100
	SampleRate     int
}

// DefaultConfig returns the spec.md §4.7 defaults for the given sample rate.
func DefaultConfig(sampleRate int) Config {
	return Config{
		BufferSizeMs:   500,
		LowWatermarkMs: 100,
		SampleRate:     sampleRate,
	}
}

// Buffer wraps pkg/ringbuffer with the millisecond-denominated watermarks
// and ready/underrun/drained event semantics the Playback Pipeline (C11)
// needs to decide when to start pulling frames to the audio device.
//
// Grounded on pkg/ringbuffer.Buffer (C1, teacher-adjacent — this repo's own
// lossy SPSC ring) for storage, generalized with ms-based sizing and the
// three playback-smoothing events named in spec.md §4.7.
type Buffer struct {
	rb        *ringbuffer.Buffer
	cfg       Config
	reachedReady bool
}

// New constructs a Buffer sized per cfg.
func New(cfg Config) *Buffer {
	if cfg.BufferSizeMs <= 0 {
		cfg.BufferSizeMs = 500
	}
	if cfg.LowWatermarkMs <= 0 {
		cfg.LowWatermarkMs = 100
	}
	capSamples := msToSamples(cfg.BufferSizeMs, cfg.SampleRate)
	lowSamples := msToSamples(cfg.LowWatermarkMs, cfg.SampleRate)
	return &Buffer{
		rb:  ringbuffer.New(capSamples, lowSamples, capSamples),
		cfg: cfg,
	}
}

// Write pushes synthesized samples into the buffer and reports a Ready
// event the first time occupancy crosses the low watermark.
func (b *Buffer) Write(samples []int16) *Event {
	b.rb.Write(samples)
	if !b.reachedReady && !b.rb.IsBelowLow() {
		b.reachedReady = true
		return &Event{Type: Ready}
	}
	return nil
}

// Read pulls up to n samples for the playback device. If fewer than n are
// available, the short result is returned alongside an Underrun event, or
// alongside a Drained event instead when the buffer is left empty after
// having reached Ready (which also re-arms the Ready latch).
func (b *Buffer) Read(n int) ([]int16, *Event) {
	out := b.rb.Read(n)
	if len(out) < n {
		ev := &Event{Type: Underrun, Requested: n, Available: len(out)}
		if b.reachedReady && b.rb.Available() == 0 {
			b.reachedReady = false
			ev.Type = Drained
		}
		return out, ev
	}
	return out, nil
}

// Available reports the number of buffered samples.
func (b *Buffer) Available() int { return b.rb.Available() }

// Clear discards all buffered audio (used on barge-in).
func (b *Buffer) Clear() {
	b.rb.Clear()
	b.reachedReady = false
}

func msToSamples(ms, sampleRate int) int {
	if sampleRate <= 0 {
		sampleRate = audio.DefaultPlaybackSampleRate
	}
	return sampleRate * ms / 1000
}
