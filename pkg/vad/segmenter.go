// Package vad implements the VAD Processor (spec.md §4.4, C4): a 30ms-frame
// speech/non-speech segmenter with pre-roll, barge-in signalling, and the
// dual-threshold policy that makes barge-in harder to trigger than normal
// speech-start detection.
package vad

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// EventType tags a Segmenter event.
type EventType string

const (
	SpeechStarted EventType = "speech_started"
	SpeechEnded   EventType = "speech_ended"
	BargeIn       EventType = "barge_in"
)

// Event is emitted by the Segmenter.
type Event struct {
	Type EventType

	// Populated for SpeechEnded.
	Audio      []int16
	DurationMs int64

	// Populated for BargeIn.
	Probability float64
}

// Config tunes the Segmenter. NewSegmenter replaces the whole Config with
// DefaultConfig when both thresholds are zero; otherwise only a zero
// FrameMs or MinBargeinFrames is replaced by its default, and the other
// fields are used as given.
type Config struct {
	NormalThreshold   float64 // t_normal, default 0.5
	BargeInThreshold  float64 // t_bargein, default 0.7, must be > NormalThreshold
	SilenceDurationMs int64   // default 1200
	MinSpeechMs       int64   // default 500
	PreRollMs         int64   // default 200
	FrameMs           int64   // default 30 (spec.md §4.1 capture granularity)

	// MinBargeinFrames is the frame-count analogue of the teacher's
	// MinWordsToInterrupt (SPEC_FULL.md §4): the number of consecutive
	// above-t_bargein frames required before a barge_in fires. Default 1
	// (fires on the first qualifying frame, i.e. disabled).
	MinBargeinFrames int
}

// DefaultConfig returns the spec.md §4.4 defaults.
func DefaultConfig() Config {
	return Config{
		NormalThreshold:   0.5,
		BargeInThreshold:  0.7,
		SilenceDurationMs: 1200,
		MinSpeechMs:       500,
		PreRollMs:         200,
		FrameMs:           30,
		MinBargeinFrames:  1,
	}
}

// ErrConfigInvalid is returned when BargeInThreshold <= NormalThreshold
// (spec.md §9 Open Question, resolved as a startup config error).
var ErrConfigInvalid = errors.New("config_invalid: t_bargein must be strictly greater than t_normal")

// Segmenter turns a stream of 30ms frames into speech_started/speech_ended/
// barge_in events.
//
// Grounded on the teacher's pkg/orchestrator/vad.go RMSVAD hysteresis
// machine (consecutiveFrames/minConfirmed, silence timer), generalized from
// a single RMS threshold to an injected Classifier and the spec's dual
// t_normal/t_bargein thresholds plus pre-roll capture.
type Segmenter struct {
	mu sync.Mutex

	classifier Classifier
	cfg        Config

	playbackActive bool
	bargeInFired   bool // at most once per playback window (spec.md §4.4)
	bargeinRun     int  // consecutive above-t_bargein frames during this playback window

	speaking       bool
	current        []int16 // accumulated utterance samples
	speechFrames   int64   // count of above-threshold frames since speech_started
	silenceRun     int64   // ms of contiguous sub-threshold frames while speaking
	preRoll        [][]int16
	preRollMaxLen  int
}

// NewSegmenter validates cfg and constructs a Segmenter over classifier.
func NewSegmenter(classifier Classifier, cfg Config) (*Segmenter, error) {
	if cfg.NormalThreshold == 0 && cfg.BargeInThreshold == 0 {
		cfg = DefaultConfig()
	}
	if cfg.BargeInThreshold <= cfg.NormalThreshold {
		return nil, ErrConfigInvalid
	}
	if cfg.FrameMs <= 0 {
		cfg.FrameMs = 30
	}
	if cfg.MinBargeinFrames <= 0 {
		cfg.MinBargeinFrames = 1
	}
	preRollFrames := int(cfg.PreRollMs / cfg.FrameMs)
	if preRollFrames < 1 {
		preRollFrames = 1
	}
	return &Segmenter{
		classifier:    classifier,
		cfg:           cfg,
		preRollMaxLen: preRollFrames,
	}, nil
}

// SetPlaybackActive toggles the effective threshold between t_normal and
// t_bargein (spec.md §4.10: called by the Session Manager on entering/
// leaving the speaking state) and resets the once-per-window barge-in
// latch when playback starts.
func (s *Segmenter) SetPlaybackActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playbackActive = active
	if active {
		s.bargeInFired = false
		s.bargeinRun = 0
	}
}

// Process classifies one 30ms frame and returns any resulting event (nil if
// none). Frames must arrive in capture order.
func (s *Segmenter) Process(frame []int16) (*Event, error) {
	p, err := s.classifier.Probability(frame)
	if err != nil {
		return nil, fmt.Errorf("vad_model_error: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	threshold := s.cfg.NormalThreshold
	if s.playbackActive {
		threshold = s.cfg.BargeInThreshold
	}
	above := p >= threshold

	var bargeIn *Event
	if s.playbackActive {
		if p >= s.cfg.BargeInThreshold {
			s.bargeinRun++
		} else {
			s.bargeinRun = 0
		}
		if s.bargeinRun >= s.cfg.MinBargeinFrames && !s.bargeInFired {
			s.bargeInFired = true
			bargeIn = &Event{Type: BargeIn, Probability: p}
		}
	}

	if !s.speaking {
		s.pushPreRoll(frame)
		if above {
			s.speaking = true
			s.current = s.drainPreRoll()
			s.current = append(s.current, frame...)
			s.speechFrames = 1
			s.silenceRun = 0
			// A barge-in takes priority over speech_started: playback is
			// only active once C12 has already entered speaking, so this
			// frame is the start of an interruption, not a fresh turn.
			if bargeIn != nil {
				return bargeIn, nil
			}
			return &Event{Type: SpeechStarted}, nil
		}
		return bargeIn, nil
	}

	// Already speaking.
	s.current = append(s.current, frame...)
	if above {
		s.speechFrames++
		s.silenceRun = 0
		return bargeIn, nil
	}

	s.silenceRun += s.cfg.FrameMs
	if s.silenceRun >= s.cfg.SilenceDurationMs {
		ev := s.finishUtteranceLocked()
		if ev != nil {
			return ev, nil
		}
		return bargeIn, nil
	}
	return bargeIn, nil
}

// ForceEndSpeech drains any in-progress segment as speech_ended without
// waiting for silence (spec.md §4.4: used at shutdown).
func (s *Segmenter) ForceEndSpeech() *Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.speaking {
		return nil
	}
	return s.finishUtteranceLocked()
}

// finishUtteranceLocked must be called with s.mu held. It returns a
// speech_ended event if the accumulated utterance met MinSpeechMs, or nil if
// it was discarded as too short (spec.md §4.4).
func (s *Segmenter) finishUtteranceLocked() *Event {
	durationMs := s.speechFrames * s.cfg.FrameMs
	audio := s.current

	s.speaking = false
	s.current = nil
	s.speechFrames = 0
	s.silenceRun = 0

	if durationMs < s.cfg.MinSpeechMs {
		return nil
	}
	return &Event{Type: SpeechEnded, Audio: audio, DurationMs: durationMs}
}

func (s *Segmenter) pushPreRoll(frame []int16) {
	cp := append([]int16(nil), frame...)
	s.preRoll = append(s.preRoll, cp)
	if len(s.preRoll) > s.preRollMaxLen {
		s.preRoll = s.preRoll[len(s.preRoll)-s.preRollMaxLen:]
	}
}

func (s *Segmenter) drainPreRoll() []int16 {
	var out []int16
	for _, f := range s.preRoll {
		out = append(out, f...)
	}
	s.preRoll = nil
	return out
}

// Reset clears all segmentation state, including the underlying classifier.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classifier.Reset()
	s.speaking = false
	s.current = nil
	s.speechFrames = 0
	s.silenceRun = 0
	s.bargeinRun = 0
	s.preRoll = nil
	s.bargeInFired = false
}
