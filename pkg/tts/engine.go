package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/lokutor-ai/voxbridge/pkg/audio"
)

// Engine invokes an out-of-process piper-style TTS binary once per
// sentence, returning raw PCM samples.
//
// Grounded on other_examples/a8f0491d_xpanvictor-xarvis__pkg-io-tts-piper-stream-streamer.go.go
// for the per-chunk synthesis shape (one subprocess call per sentence,
// streamed back to the caller), adapted from an HTTP/websocket client to
// an os/exec invocation per spec.md §4.6 ("calls an out-of-process
// inference binary"). The Name method is kept from the teacher's
// pkg/providers/tts/lokutor.go provider shape.
type Engine struct {
	BinaryPath string
	ModelPath  string
	SampleRate int
}

// NewEngine validates the binary and model exist on disk.
func NewEngine(binaryPath, modelPath string) (*Engine, error) {
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("piper_not_found: %s", binaryPath)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("config_missing: tts model not found at %s", modelPath)
	}
	return &Engine{
		BinaryPath: binaryPath,
		ModelPath:  modelPath,
		SampleRate: audio.DefaultPlaybackSampleRate,
	}, nil
}

// Synthesize runs the binary on one sentence and returns raw PCM samples.
// The process is expected to write a WAV file to stdout (piper's
// --output_file - convention); the WAV header is stripped before returning
// samples.
func (e *Engine) Synthesize(ctx context.Context, sentence string) ([]int16, error) {
	cmd := exec.CommandContext(ctx, e.BinaryPath,
		"--model", e.ModelPath,
		"--output_file", "-",
	)
	cmd.Stdin = bytes.NewBufferString(sentence)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("tts_process_error: %w: %s", err, stderr.String())
	}

	pcm, err := stripWavHeader(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("tts_process_error: %w", err)
	}
	return audio.BytesToInt16LE(pcm), nil
}

// Name identifies this TTS provider for diagnostics.
func (e *Engine) Name() string { return "piper-local" }

// stripWavHeader removes the 44-byte canonical RIFF/WAVE header written by
// piper, returning the raw little-endian PCM payload.
func stripWavHeader(data []byte) ([]byte, error) {
	const headerLen = 44
	if len(data) < headerLen {
		return nil, fmt.Errorf("tts output too short to be a WAV file (%d bytes)", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("tts output is not a RIFF/WAVE container")
	}
	return data[headerLen:], nil
}
