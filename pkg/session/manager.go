// Package session implements the Session Manager (spec.md §4.10, C12):
// the five-state conversation machine that drives the Speech and Playback
// pipelines, the Agent Client, and the Connection Monitor.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lokutor-ai/voxbridge/pkg/agent"
	"github.com/lokutor-ai/voxbridge/pkg/metrics"
	"github.com/lokutor-ai/voxbridge/pkg/pipeline"
	"github.com/lokutor-ai/voxbridge/pkg/vlog"
)

// State is a conversation state (spec.md §3, §4.10).
type State string

const (
	Idle               State = "idle"
	Listening          State = "listening"
	Processing         State = "processing"
	Speaking           State = "speaking"
	WaitingForWakeword State = "waiting_for_wakeword"
)

// ErrInvalidTransition maps to the state_transition_error kind (spec.md
// §7): a bug, logged and recovered to idle rather than propagated.
var ErrInvalidTransition = errors.New("state_transition_error")

// transitions enumerates every allowed (from, trigger) -> to edge from
// spec.md §4.10's diagram. The "any" rows (stop, fatal) are not in the
// table; isAllowed accepts them from every state on each call.
var transitions = map[State]map[string]State{
	Idle: {
		"start": Listening,
	},
	Listening: {
		"transcript": Processing,
	},
	Processing: {
		"reply_ok":         Speaking,
		"reply_err":        Listening,
		"empty_transcript": Listening,
	},
	Speaking: {
		"playback_complete": Listening,
		"barge_in":          Listening,
	},
}

func isAllowed(from State, trigger string) (State, bool) {
	if trigger == "stop" || trigger == "fatal" {
		return Idle, true
	}
	edges, ok := transitions[from]
	if !ok {
		return "", false
	}
	to, ok := edges[trigger]
	return to, ok
}

// PersistenceStore is the session-id persistence collaborator (spec.md §6).
type PersistenceStore interface {
	LoadSessionID() (string, error)
	SaveSessionID(string) error
}

// NullStore is a PersistenceStore that never persists anything; used when
// no collaborator is configured.
type NullStore struct{}

func (NullStore) LoadSessionID() (string, error) { return "", nil }
func (NullStore) SaveSessionID(string) error      { return nil }

// Config tunes the Session Manager (spec.md §4.10).
type Config struct {
	BargeInEnabled     bool
	BargeInCooldownMs  int64 // default 200
	PostPlaybackGuardMs int64 // "just stopped talking" echo guard, default 250 (SPEC_FULL.md §4)

	// ClearSessionAfterFailures resolves spec.md §9's open question:
	// consecutive openclaw_unreachable failures before the session id is
	// cleared. 0 (default) means never clear automatically.
	ClearSessionAfterFailures int
}

// DefaultConfig returns the spec.md §4.10 defaults.
func DefaultConfig() Config {
	return Config{
		BargeInEnabled:            true,
		BargeInCooldownMs:         200,
		PostPlaybackGuardMs:       250,
		ClearSessionAfterFailures: 0,
	}
}

// LatencyBreakdown reports per-stage turn timings (SPEC_FULL.md §4,
// adapted from the teacher's ManagedStream.GetLatencyBreakdown).
type LatencyBreakdown struct {
	UserToSTT    int64
	STT          int64
	UserToAgent  int64
	Agent        int64
	UserToTTSFirstByte int64
	AgentToTTSFirstByte int64
}

// Snapshot is a read-only copy of conversation state, handed to observers
// (spec.md §5: "observers receive copies").
type Snapshot struct {
	State          State
	LastTranscript string
	LastReply      string
	LastError      string
	AgentConnected bool
	SessionID      string
	LastBargeInAt  time.Time
}

// EventFunc receives observable events (spec.md §6). One polymorphic sink
// per spec.md §9's design note.
type EventFunc func(kind string, data interface{})

// Manager drives the conversation state machine.
//
// Grounded on the teacher's pkg/orchestrator/managed_stream.go state
// fields (isSpeaking/isThinking/lastInterruptedAt/GetLatencyBreakdown) and
// pkg/orchestrator/orchestrator.go's ResetSession/SetSystemPrompt API
// surface, restructured around an explicit transition table instead of
// the teacher's scattered boolean flags, since spec.md §8 requires the
// machine to "accept only transitions listed in §4.10" — a property a
// table can enforce directly.
type Manager struct {
	mu sync.Mutex

	cfg   Config
	log   vlog.Logger
	store PersistenceStore

	state          State
	lastTranscript string
	lastReply      string
	lastError      string
	agentConnected bool
	sessionID      string
	lastBargeInAt  time.Time
	playbackEndedAt time.Time

	consecutiveAgentFailures int
	playbackGuardGen        int64

	speech   *pipeline.Speech
	playback *pipeline.Playback
	client   *agent.Client

	latency LatencyBreakdown

	onEvent EventFunc
}

// NewManager constructs a Manager. store may be nil (uses NullStore).
func NewManager(cfg Config, log vlog.Logger, store PersistenceStore, speech *pipeline.Speech, playback *pipeline.Playback, client *agent.Client, onEvent EventFunc) *Manager {
	if store == nil {
		store = NullStore{}
	}
	if log == nil {
		log = vlog.NoOpLogger{}
	}
	if onEvent == nil {
		onEvent = func(string, interface{}) {}
	}
	m := &Manager{
		cfg:      cfg,
		log:      log,
		store:    store,
		state:    Idle,
		speech:   speech,
		playback: playback,
		client:   client,
		onEvent:  onEvent,
	}
	if id, err := store.LoadSessionID(); err == nil && id != "" {
		m.sessionID = id
	}
	return m
}

// Snapshot returns a read-only copy of current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:          m.state,
		LastTranscript: m.lastTranscript,
		LastReply:      m.lastReply,
		LastError:      m.lastError,
		AgentConnected: m.agentConnected,
		SessionID:      m.sessionID,
		LastBargeInAt:  m.lastBargeInAt,
	}
}

// transition attempts (from-current, trigger) -> to, enforcing spec.md
// §8's "accepts only transitions listed in §4.10" property. An invalid
// trigger logs, emits state_transition_error, and forces idle.
func (m *Manager) transition(trigger string, reason string) State {
	from := m.state
	to, ok := isAllowed(from, trigger)
	if !ok {
		m.log.Error("invalid state transition", "from", from, "trigger", trigger)
		m.onEvent("error", map[string]string{"type": ErrInvalidTransition.Error(), "message": fmt.Sprintf("invalid transition %s from %s", trigger, from)})
		to = Idle
	}
	m.state = to
	metrics.StateTransitionsTotal.WithLabelValues(string(from), string(to), trigger).Inc()
	m.onEvent("state_changed", map[string]string{"from": string(from), "to": string(to), "reason": reason})

	if to == Speaking && from != Speaking {
		m.playbackGuardGen++
		m.speech.SetPlaybackActive(true)
	}
	if from == Speaking && to != Speaking {
		m.playbackEndedAt = time.Now()
		m.playbackGuardGen++
		gen := m.playbackGuardGen
		guard := time.Duration(m.cfg.PostPlaybackGuardMs) * time.Millisecond
		if guard <= 0 {
			m.speech.SetPlaybackActive(false)
		} else {
			// Echo guard (SPEC_FULL.md §4): keep the higher t_bargein
			// threshold active for a short window after playback ends so the
			// tail of the speaker's own signal isn't mistaken for the next
			// utterance. Superseded if playback re-enters before it fires.
			go func() {
				time.Sleep(guard)
				m.mu.Lock()
				defer m.mu.Unlock()
				if m.playbackGuardGen == gen {
					m.speech.SetPlaybackActive(false)
				}
			}()
		}
	}
	return to
}

// Start transitions idle->listening (spec.md §4.10).
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transition("start", "session started")
	m.onEvent("started", nil)
}

// Stop forces any state -> idle.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transition("stop", "stopped")
	m.onEvent("stopped", nil)
}

// HandleSpeechEvent reacts to a Speech Pipeline (C10) event.
func (m *Manager) HandleSpeechEvent(ctx context.Context, ev pipeline.SpeechEvent) {
	switch ev.Type {
	case pipeline.Transcript:
		m.handleTranscript(ctx, ev)
	case pipeline.EmptyTranscript:
		m.handleEmptyTranscript(ev)
	case pipeline.BargeIn:
		m.handleBargeIn(ev)
	case pipeline.SpeechPipelineError:
		m.handleRecoverableError("error", ev.Err)
	}
}

func (m *Manager) handleTranscript(ctx context.Context, ev pipeline.SpeechEvent) {
	m.mu.Lock()
	if m.state != Listening {
		// Turn semantics (spec.md §5): only one send in flight; drop
		// late-arriving transcripts while processing/speaking.
		m.mu.Unlock()
		return
	}
	m.lastTranscript = ev.Text
	userSpeechEnd := time.Now()
	m.latency = LatencyBreakdown{
		UserToSTT: ev.STTDurationMs,
		STT:       ev.STTDurationMs,
	}
	metrics.TranscriptsTotal.WithLabelValues("ok").Inc()
	metrics.STTDuration.Observe(float64(ev.STTDurationMs) / 1000)
	m.transition("transcript", "transcript received")
	m.onEvent("transcript", map[string]interface{}{
		"text":              ev.Text,
		"audio_duration_ms": ev.AudioDurationMs,
		"stt_duration_ms":   ev.STTDurationMs,
	})
	sessionID := m.sessionID
	m.mu.Unlock()

	agentStart := time.Now()
	resp, err := m.client.Send(ctx, ev.Text, sessionID)
	metrics.AgentRequestDuration.Observe(time.Since(agentStart).Seconds())
	if err != nil {
		m.handleAgentFailure(err)
		return
	}

	m.mu.Lock()
	m.consecutiveAgentFailures = 0
	m.lastReply = resp.Text
	if resp.SessionID != "" {
		m.sessionID = resp.SessionID
		m.store.SaveSessionID(resp.SessionID)
	}
	m.latency.UserToAgent = time.Since(userSpeechEnd).Milliseconds()
	m.latency.Agent = time.Since(agentStart).Milliseconds()
	m.transition("reply_ok", "agent replied")
	m.onEvent("response", map[string]interface{}{
		"text":        resp.Text,
		"session_id":  resp.SessionID,
		"duration_ms": resp.LatencyMs,
	})
	m.mu.Unlock()

	m.playback.Speak(ctx, resp.Text)

	// Speak blocks until playback finishes, is stopped (barge-in), or
	// errors. A barge-in already transitioned Speaking->Listening via
	// handleBargeIn; only drive the playback_complete edge if that
	// didn't happen.
	m.mu.Lock()
	if m.state == Speaking {
		m.transition("playback_complete", "playback finished")
		m.onEvent("speaking_complete", nil)
	}
	m.mu.Unlock()
}

func (m *Manager) handleAgentFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consecutiveAgentFailures++
	m.lastError = err.Error()
	if m.cfg.ClearSessionAfterFailures > 0 && m.consecutiveAgentFailures >= m.cfg.ClearSessionAfterFailures {
		m.sessionID = ""
		m.store.SaveSessionID("")
		m.consecutiveAgentFailures = 0
	}
	m.transition("reply_err", "agent send failed")
	m.onEvent("error", map[string]string{"type": "openclaw", "message": err.Error()})
}

func (m *Manager) handleEmptyTranscript(ev pipeline.SpeechEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Listening {
		return
	}
	m.lastError = "Didn't catch that"
	metrics.TranscriptsTotal.WithLabelValues("empty").Inc()
	m.transition("transcript", "utterance transcribed")
	m.transition("empty_transcript", "empty or garbage transcript")
	m.onEvent("empty_transcript", map[string]string{"reason": "no speech detected"})
}

func (m *Manager) handleRecoverableError(kind string, err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastError = err.Error()
	m.onEvent(kind, map[string]string{"type": kind, "message": err.Error()})
}

// handleBargeIn implements spec.md §4.10's barge-in policy: only while
// speaking, only if enabled, and only outside cooldown. The post-playback
// echo guard (SPEC_FULL.md §4) is applied in transition, not here.
func (m *Manager) handleBargeIn(ev pipeline.SpeechEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cfg.BargeInEnabled || m.state != Speaking {
		return
	}
	now := time.Now()
	if !m.lastBargeInAt.IsZero() {
		cooldown := time.Duration(m.cfg.BargeInCooldownMs) * time.Millisecond
		if now.Sub(m.lastBargeInAt) < cooldown {
			return
		}
	}

	m.lastBargeInAt = now
	m.playback.Stop()
	metrics.BargeInTotal.Inc()
	m.transition("barge_in", "barge-in accepted")
	m.onEvent("barge_in", nil)
}

// ResetSession clears the in-memory and persisted session id (spec.md
// §4.10's explicit reset_session()).
func (m *Manager) ResetSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionID = ""
	return m.store.SaveSessionID("")
}

// NewSessionID generates a fresh opaque id, used when no persisted id
// exists and the caller wants one before the first agent reply supplies
// one (SPEC_FULL.md §3: "opaque id generation").
func NewSessionID() string {
	return uuid.NewString()
}

// LatencyBreakdown returns the last turn's measured stage timings.
func (m *Manager) LatencyBreakdown() LatencyBreakdown {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latency
}
