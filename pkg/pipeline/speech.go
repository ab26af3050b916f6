// Package pipeline wires the leaf components into the two pipelines the
// Session Manager drives (spec.md §2): the Speech Pipeline (C10, mic →
// capture → VAD → STT) and the Playback Pipeline (C11, TTS → jitter →
// speaker).
package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lokutor-ai/voxbridge/pkg/audio"
	"github.com/lokutor-ai/voxbridge/pkg/stt"
	"github.com/lokutor-ai/voxbridge/pkg/vad"
)

// SpeechEventType tags a Speech pipeline event.
type SpeechEventType string

const (
	Transcript      SpeechEventType = "transcript"
	EmptyTranscript SpeechEventType = "empty_transcript"
	BargeIn         SpeechEventType = "barge_in"
	SpeechPipelineError SpeechEventType = "error"
)

// SpeechEvent is emitted by Speech as utterances resolve.
type SpeechEvent struct {
	Type            SpeechEventType
	Text            string
	AudioDurationMs int64
	STTDurationMs   int64
	Probability     float64
	Err             error
}

// Transcriber transcribes one utterance. *stt.Engine satisfies it.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []int16) (stt.Result, error)
}

// Speech wires Capture → Segmenter → STT (C10), running the blocking
// pieces (mic reads, STT subprocess calls) on dedicated goroutines per
// spec.md §5 ("the loop never blocks on model inference or device I/O")
// while emitting a single typed event stream to the Session Manager.
//
// Grounded on the teacher's pkg/orchestrator/managed_stream.go for the
// "one goroutine pumping frames, one handling results, errgroup for
// teardown" shape, generalized from a cloud-streaming-STT session to a
// local capture+VAD+local-STT chain; errgroup usage itself is grounded on
// MrWong99-glyphoxa/internal/hotctx/assembler.go's errgroup.WithContext
// pattern.
type Speech struct {
	capture    *audio.Capture
	segmenter  *vad.Segmenter
	transcriber Transcriber

	events chan SpeechEvent
}

// NewSpeech constructs a Speech pipeline over its three collaborators.
func NewSpeech(capture *audio.Capture, segmenter *vad.Segmenter, transcriber Transcriber) *Speech {
	return &Speech{
		capture:     capture,
		segmenter:   segmenter,
		transcriber: transcriber,
		events:      make(chan SpeechEvent, 16),
	}
}

// Events returns the pipeline's event stream.
func (s *Speech) Events() <-chan SpeechEvent { return s.events }

// SetPlaybackActive forwards to the segmenter (spec.md §4.10: C12 toggles
// this on entering/leaving speaking).
func (s *Speech) SetPlaybackActive(active bool) { s.segmenter.SetPlaybackActive(active) }

// Run starts the capture device and processes frames until ctx is
// cancelled or the capture device errors. It blocks until teardown
// completes.
func (s *Speech) Run(ctx context.Context) error {
	if err := s.capture.Start(); err != nil {
		return fmt.Errorf("mic_unavailable: %w", err)
	}
	defer s.capture.Stop()
	defer close(s.events)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return s.pump(egCtx)
	})

	return eg.Wait()
}

func (s *Speech) pump(ctx context.Context) error {
	frames := s.capture.Frames()
	for {
		select {
		case <-ctx.Done():
			if ev := s.segmenter.ForceEndSpeech(); ev != nil {
				s.handleSegmentEvent(ctx, ev)
			}
			return nil
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			ev, err := s.segmenter.Process(frame.Samples)
			if err != nil {
				s.emit(ctx, SpeechEvent{Type: SpeechPipelineError, Err: err})
				continue
			}
			if ev == nil {
				continue
			}
			s.handleSegmentEvent(ctx, ev)
		}
	}
}

func (s *Speech) handleSegmentEvent(ctx context.Context, ev *vad.Event) {
	switch ev.Type {
	case vad.BargeIn:
		s.emit(ctx, SpeechEvent{Type: BargeIn, Probability: ev.Probability})
	case vad.SpeechEnded:
		result, err := s.transcriber.Transcribe(ctx, ev.Audio)
		if err != nil {
			s.emit(ctx, SpeechEvent{Type: SpeechPipelineError, Err: err})
			return
		}
		if result.Text == "" {
			s.emit(ctx, SpeechEvent{Type: EmptyTranscript, AudioDurationMs: ev.DurationMs, STTDurationMs: result.DurationMs})
			return
		}
		s.emit(ctx, SpeechEvent{
			Type:            Transcript,
			Text:            result.Text,
			AudioDurationMs: ev.DurationMs,
			STTDurationMs:   result.DurationMs,
		})
	}
}

// emit delivers ev, preferring to block over silently dropping a
// transcript, but giving way to pipeline teardown.
func (s *Speech) emit(ctx context.Context, ev SpeechEvent) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}
