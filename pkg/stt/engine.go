// Package stt implements the STT Engine (spec.md §4.5, C5): transcription
// of a captured utterance via an out-of-process inference binary.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/lokutor-ai/voxbridge/pkg/audio"
)

// ErrBinaryNotFound maps to the whisper_not_found error kind (spec.md §7).
var ErrBinaryNotFound = errors.New("whisper_not_found")

// Result is the outcome of a Transcribe call (spec.md §3 Transcript /
// §4.5 contract).
type Result struct {
	Text       string
	DurationMs int64
}

// Engine wraps an out-of-process whisper.cpp-style CLI (spec.md §4.5:
// "calls an out-of-process inference binary with a model path and a thread
// count").
//
// Grounded on other_examples/a81c8245_ent0n29-samantha__internal-voice-local.go.go's
// LocalConfig (WhisperCLI/WhisperModelPath/WhisperThreads) for the
// subprocess shape, and on the teacher's pkg/providers/stt/groq.go for the
// provider-interface contract (Transcribe/Name) and WAV-container call
// site (pkg/audio.NewWavBuffer).
type Engine struct {
	BinaryPath string
	ModelPath  string
	Threads    int
	SampleRate int
}

// NewEngine validates that the binary and model exist on disk (spec.md §6:
// "C12 refuses to start if any is missing and reports which one") and
// returns an Engine ready to transcribe.
func NewEngine(binaryPath, modelPath string, threads int) (*Engine, error) {
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBinaryNotFound, binaryPath)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("config_missing: stt model not found at %s", modelPath)
	}
	if threads <= 0 {
		threads = 4
	}
	return &Engine{
		BinaryPath: binaryPath,
		ModelPath:  modelPath,
		Threads:    threads,
		SampleRate: audio.CaptureSampleRate,
	}, nil
}

// Transcribe packages samples as a WAV container and invokes the
// out-of-process binary once. No retries (spec.md §4.5): a process failure
// is fatal for this single call and returned as an error.
func (e *Engine) Transcribe(ctx context.Context, samples []int16) (Result, error) {
	start := time.Now()

	wav := audio.NewWavBuffer(audio.Int16LEToBytes(samples), e.SampleRate)
	tmp, err := os.CreateTemp("", "voxbridge-utterance-*.wav")
	if err != nil {
		return Result{}, fmt.Errorf("stt_process_error: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(wav); err != nil {
		tmp.Close()
		return Result{}, fmt.Errorf("stt_process_error: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("stt_process_error: %w", err)
	}

	args := []string{
		"-m", e.ModelPath,
		"-t", strconv.Itoa(e.Threads),
		"-f", tmp.Name(),
		"-nt",       // no timestamps
		"-oj",       // output JSON
		"-of", tmp.Name(),
	}

	cmd := exec.CommandContext(ctx, e.BinaryPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("stt_process_error: %w: %s", err, stderr.String())
	}

	text, err := readWhisperJSON(tmp.Name() + ".json")
	if err != nil {
		return Result{}, fmt.Errorf("stt_process_error: %w", err)
	}

	if isGarbage(text) {
		text = ""
	}

	return Result{
		Text:       text,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}

// Name identifies this STT provider for diagnostics.
func (e *Engine) Name() string { return "whisper-cpp-local" }

func readWhisperJSON(path string) (string, error) {
	defer os.Remove(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var doc struct {
		Transcription []struct {
			Text string `json:"text"`
		} `json:"transcription"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", err
	}
	var out string
	for _, seg := range doc.Transcription {
		out += seg.Text
	}
	return out, nil
}
