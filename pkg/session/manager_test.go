package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokutor-ai/voxbridge/pkg/agent"
	"github.com/lokutor-ai/voxbridge/pkg/jitter"
	"github.com/lokutor-ai/voxbridge/pkg/pipeline"
	"github.com/lokutor-ai/voxbridge/pkg/stt"
	"github.com/lokutor-ai/voxbridge/pkg/tts"
	"github.com/lokutor-ai/voxbridge/pkg/vad"
)

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(ctx context.Context, samples []int16) (stt.Result, error) {
	return stt.Result{}, nil
}

type fakeSynth struct{}

func (fakeSynth) Synthesize(ctx context.Context, sentence string) ([]int16, error) {
	return nil, nil
}

func newTestManager(t *testing.T, client *agent.Client) *Manager {
	t.Helper()
	classifier := vad.NewRMSClassifier()
	segmenter, err := vad.NewSegmenter(classifier, vad.DefaultConfig())
	require.NoError(t, err)

	speech := pipeline.NewSpeech(nil, segmenter, fakeTranscriber{})
	stream := tts.NewStream(fakeSynth{}, 20)
	jb := jitter.New(jitter.DefaultConfig(22050))
	playback := pipeline.NewPlayback(stream, jb, nil, 22050, 20)

	var events []string
	var mu sync.Mutex
	onEvent := func(kind string, data interface{}) {
		mu.Lock()
		events = append(events, kind)
		mu.Unlock()
	}

	return NewManager(DefaultConfig(), nil, nil, speech, playback, client, onEvent)
}

func TestInvalidTransitionForcesIdleAndEmitsError(t *testing.T) {
	m := newTestManager(t, nil)
	m.mu.Lock()
	m.state = Listening
	to := m.transition("reply_ok", "bogus")
	m.mu.Unlock()
	assert.Equal(t, Idle, to)
}

func TestEmptyTranscriptReturnsToListening(t *testing.T) {
	m := newTestManager(t, nil)
	m.mu.Lock()
	m.state = Listening
	m.mu.Unlock()

	m.handleEmptyTranscript(pipeline.SpeechEvent{Type: pipeline.EmptyTranscript})

	snap := m.Snapshot()
	assert.Equal(t, Listening, snap.State)
	assert.Equal(t, "Didn't catch that", snap.LastError)
}

func TestEmptyTranscriptIgnoredOutsideListening(t *testing.T) {
	m := newTestManager(t, nil)
	m.mu.Lock()
	m.state = Processing
	m.mu.Unlock()

	m.handleEmptyTranscript(pipeline.SpeechEvent{Type: pipeline.EmptyTranscript})

	snap := m.Snapshot()
	assert.Equal(t, Processing, snap.State, "transcript arriving outside listening must be dropped")
}

func TestBargeInAcceptedOnceDuringCooldown(t *testing.T) {
	m := newTestManager(t, nil)
	m.mu.Lock()
	m.state = Speaking
	m.mu.Unlock()

	m.handleBargeIn(pipeline.SpeechEvent{Type: pipeline.BargeIn, Probability: 0.9})
	snap := m.Snapshot()
	assert.Equal(t, Listening, snap.State)
	firstBargeIn := snap.LastBargeInAt

	// Re-enter speaking and fire a second barge-in immediately (within cooldown).
	m.mu.Lock()
	m.state = Speaking
	m.mu.Unlock()
	m.handleBargeIn(pipeline.SpeechEvent{Type: pipeline.BargeIn, Probability: 0.9})

	snap = m.Snapshot()
	assert.Equal(t, Speaking, snap.State, "barge-in within cooldown must be ignored")
	assert.Equal(t, firstBargeIn, snap.LastBargeInAt)
}

func TestBargeInIgnoredOutsideSpeaking(t *testing.T) {
	m := newTestManager(t, nil)
	m.mu.Lock()
	m.state = Listening
	m.mu.Unlock()

	m.handleBargeIn(pipeline.SpeechEvent{Type: pipeline.BargeIn})

	snap := m.Snapshot()
	assert.Equal(t, Listening, snap.State)
	assert.True(t, snap.LastBargeInAt.IsZero())
}

func TestAgentFailureReturnsToListeningWithTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := agent.NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	m := newTestManager(t, client)
	m.mu.Lock()
	m.state = Processing
	m.mu.Unlock()

	m.handleAgentFailure(agent.ErrGatewayError)

	snap := m.Snapshot()
	assert.Equal(t, Listening, snap.State)
	assert.NotEmpty(t, snap.LastError)
}

func TestHandleTranscriptDroppedWhenNotListening(t *testing.T) {
	m := newTestManager(t, nil)
	m.mu.Lock()
	m.state = Processing
	m.mu.Unlock()

	m.handleTranscript(context.Background(), pipeline.SpeechEvent{Type: pipeline.Transcript, Text: "hello"})

	snap := m.Snapshot()
	assert.Equal(t, Processing, snap.State)
	assert.Empty(t, snap.LastTranscript, "transcript must not be recorded while not listening")
}

func TestResetSessionClearsID(t *testing.T) {
	m := newTestManager(t, nil)
	m.mu.Lock()
	m.sessionID = "abc"
	m.mu.Unlock()

	require.NoError(t, m.ResetSession())
	assert.Empty(t, m.Snapshot().SessionID)
}
