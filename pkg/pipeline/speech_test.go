package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokutor-ai/voxbridge/pkg/stt"
	"github.com/lokutor-ai/voxbridge/pkg/vad"
)

type fakeTranscriber struct {
	result stt.Result
	err    error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, samples []int16) (stt.Result, error) {
	return f.result, f.err
}

func TestHandleSegmentEventEmitsTranscript(t *testing.T) {
	s := &Speech{transcriber: &fakeTranscriber{result: stt.Result{Text: "hello", DurationMs: 50}}, events: make(chan SpeechEvent, 4)}
	s.handleSegmentEvent(context.Background(), &vad.Event{Type: vad.SpeechEnded, DurationMs: 1200})

	ev := <-s.events
	assert.Equal(t, Transcript, ev.Type)
	assert.Equal(t, "hello", ev.Text)
	assert.Equal(t, int64(1200), ev.AudioDurationMs)
}

func TestHandleSegmentEventEmitsEmptyTranscriptOnGarbage(t *testing.T) {
	s := &Speech{transcriber: &fakeTranscriber{result: stt.Result{Text: ""}}, events: make(chan SpeechEvent, 4)}
	s.handleSegmentEvent(context.Background(), &vad.Event{Type: vad.SpeechEnded, DurationMs: 800})

	ev := <-s.events
	assert.Equal(t, EmptyTranscript, ev.Type)
}

func TestHandleSegmentEventEmitsErrorOnTranscribeFailure(t *testing.T) {
	s := &Speech{transcriber: &fakeTranscriber{err: errors.New("stt_process_error: boom")}, events: make(chan SpeechEvent, 4)}
	s.handleSegmentEvent(context.Background(), &vad.Event{Type: vad.SpeechEnded})

	ev := <-s.events
	require.Equal(t, SpeechPipelineError, ev.Type)
	assert.Error(t, ev.Err)
}

func TestHandleSegmentEventForwardsBargeIn(t *testing.T) {
	s := &Speech{transcriber: &fakeTranscriber{}, events: make(chan SpeechEvent, 4)}
	s.handleSegmentEvent(context.Background(), &vad.Event{Type: vad.BargeIn, Probability: 0.8})

	ev := <-s.events
	assert.Equal(t, BargeIn, ev.Type)
	assert.Equal(t, 0.8, ev.Probability)
}
