package vad

import (
	"fmt"

	"github.com/streamer45/silero-vad-go/speech"
)

// SileroClassifier wraps a Silero ONNX voice-activity model as the
// production-grade Classifier backend.
//
// Grounded on longregen-alicia/internal/adapters/livekit/vad.go, which
// drives the same streamer45/silero-vad-go detector at the same 16kHz rate
// this spec fixes for capture (spec.md §4.1). The upstream detector reports
// segment boundaries rather than a raw per-frame float; SileroClassifier
// treats "this frame falls inside a just-detected segment" as probability
// 1.0 and everything else as 0.0 — coarser than a native per-frame
// posterior, but sufficient for the threshold comparisons Segmenter makes
// (p >= t_normal / p >= t_bargein), which only ever test the p ∈ {0,1}
// question "is this frame speech".
type SileroClassifier struct {
	modelPath string
	threshold float32
	detector  *speech.Detector
}

// NewSileroClassifier loads the ONNX model at modelPath. Returns
// vad_model_error (per spec.md §7) wrapped around the detector's error if
// the model can't be loaded.
func NewSileroClassifier(modelPath string, threshold float64) (*SileroClassifier, error) {
	d, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            modelPath,
		SampleRate:           16000,
		Threshold:            float32(threshold),
		MinSilenceDurationMs: 100,
		SpeechPadMs:          0,
	})
	if err != nil {
		return nil, fmt.Errorf("vad_model_error: %w", err)
	}
	return &SileroClassifier{modelPath: modelPath, threshold: float32(threshold), detector: d}, nil
}

func (s *SileroClassifier) Probability(frame []int16) (float64, error) {
	floats := make([]float32, len(frame))
	for i, v := range frame {
		floats[i] = float32(v) / 32768.0
	}
	segments, err := s.detector.Detect(floats)
	if err != nil {
		return 0, fmt.Errorf("vad_model_error: %w", err)
	}
	if len(segments) > 0 {
		return 1.0, nil
	}
	return 0.0, nil
}

func (s *SileroClassifier) Reset() {
	if s.detector != nil {
		_ = s.detector.Reset()
	}
}

func (s *SileroClassifier) Clone() Classifier {
	c, err := NewSileroClassifier(s.modelPath, float64(s.threshold))
	if err != nil {
		// Loading already succeeded once; a clone failing here would be a
		// resource exhaustion issue, not a config error. Fall back to an
		// RMS classifier rather than panicking mid-stream.
		return NewRMSClassifier()
	}
	return c
}
