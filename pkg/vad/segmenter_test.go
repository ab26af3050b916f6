package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClassifier returns a constant probability, letting tests drive the
// segmenter deterministically without RMS math.
type fixedClassifier struct {
	p float64
}

func (f *fixedClassifier) Probability([]int16) (float64, error) { return f.p, nil }
func (f *fixedClassifier) Reset()                                {}
func (f *fixedClassifier) Clone() Classifier                     { return &fixedClassifier{p: f.p} }

func frame() []int16 { return make([]int16, 480) }

func TestRejectsInvertedThresholds(t *testing.T) {
	_, err := NewSegmenter(&fixedClassifier{}, Config{NormalThreshold: 0.7, BargeInThreshold: 0.5})
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestSpeechStartedPrecedesSpeechEnded(t *testing.T) {
	cls := &fixedClassifier{p: 0.9}
	seg, err := NewSegmenter(cls, DefaultConfig())
	require.NoError(t, err)

	ev, err := seg.Process(frame())
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, SpeechStarted, ev.Type)

	// Feed enough speech frames to exceed min_speech_ms (500ms / 30ms ≈ 17).
	for i := 0; i < 20; i++ {
		_, err := seg.Process(frame())
		require.NoError(t, err)
	}

	cls.p = 0.0 // drop to silence
	var ended *Event
	for i := 0; i < 60 && ended == nil; i++ { // 60*30ms = 1800ms > silence_duration_ms
		ev, err := seg.Process(frame())
		require.NoError(t, err)
		if ev != nil && ev.Type == SpeechEnded {
			ended = ev
		}
	}
	require.NotNil(t, ended)
	assert.GreaterOrEqual(t, ended.DurationMs, int64(500))
}

func TestShortUtteranceDiscardedSilently(t *testing.T) {
	cls := &fixedClassifier{p: 0.9}
	seg, err := NewSegmenter(cls, DefaultConfig())
	require.NoError(t, err)

	ev, err := seg.Process(frame())
	require.NoError(t, err)
	require.Equal(t, SpeechStarted, ev.Type)

	// Only ~90ms of speech, well under min_speech_ms.
	for i := 0; i < 2; i++ {
		seg.Process(frame())
	}

	cls.p = 0.0
	var sawEnded bool
	for i := 0; i < 60; i++ {
		ev, err := seg.Process(frame())
		require.NoError(t, err)
		if ev != nil && ev.Type == SpeechEnded {
			sawEnded = true
		}
	}
	assert.False(t, sawEnded, "utterance shorter than min_speech_ms must be discarded silently")
}

func TestBargeInOnlyOncePerPlaybackWindow(t *testing.T) {
	cls := &fixedClassifier{p: 0.9} // above both thresholds
	seg, err := NewSegmenter(cls, DefaultConfig())
	require.NoError(t, err)
	seg.SetPlaybackActive(true)

	var bargeIns int
	for i := 0; i < 5; i++ {
		ev, err := seg.Process(frame())
		require.NoError(t, err)
		if ev != nil && ev.Type == BargeIn {
			bargeIns++
		}
	}
	assert.Equal(t, 1, bargeIns)

	seg.SetPlaybackActive(false)
	seg.SetPlaybackActive(true) // new playback window resets the latch
	ev, err := seg.Process(frame())
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, BargeIn, ev.Type)
}

func TestMinBargeinFramesRequiresConsecutiveAboveThreshold(t *testing.T) {
	cls := &fixedClassifier{p: 0.9}
	cfg := DefaultConfig()
	cfg.MinBargeinFrames = 3
	seg, err := NewSegmenter(cls, cfg)
	require.NoError(t, err)
	seg.SetPlaybackActive(true)

	ev, err := seg.Process(frame()) // starts speech; barge-in needs two more frames
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, SpeechStarted, ev.Type)

	ev, err = seg.Process(frame())
	require.NoError(t, err)
	assert.Nil(t, ev)

	ev, err = seg.Process(frame())
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, BargeIn, ev.Type)
}

func TestMinBargeinFramesResetsOnDip(t *testing.T) {
	cls := &fixedClassifier{p: 0.9}
	cfg := DefaultConfig()
	cfg.MinBargeinFrames = 2
	seg, err := NewSegmenter(cls, cfg)
	require.NoError(t, err)
	seg.SetPlaybackActive(true)

	seg.Process(frame()) // 1 above
	cls.p = 0.0
	seg.Process(frame()) // dip resets run
	cls.p = 0.9
	ev, err := seg.Process(frame()) // 1 above again
	require.NoError(t, err)
	assert.Nil(t, ev)
	ev, err = seg.Process(frame()) // 2 above -> fires
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, BargeIn, ev.Type)
}

func TestForceEndSpeechDrainsInProgressSegment(t *testing.T) {
	cls := &fixedClassifier{p: 0.9}
	seg, err := NewSegmenter(cls, DefaultConfig())
	require.NoError(t, err)

	seg.Process(frame())
	for i := 0; i < 20; i++ {
		seg.Process(frame())
	}

	ev := seg.ForceEndSpeech()
	require.NotNil(t, ev)
	assert.Equal(t, SpeechEnded, ev.Type)
}
