package config

import (
	"os"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.WhisperThreads <= 0 {
		t.Error("WhisperThreads should be positive")
	}
	if cfg.AgentBaseURL == "" {
		t.Error("AgentBaseURL should not be empty")
	}
	if cfg.PlaybackSampleRate <= 0 {
		t.Error("PlaybackSampleRate should be positive")
	}
	if cfg.VAD.BargeInThreshold <= cfg.VAD.NormalThreshold {
		t.Error("default VAD thresholds should satisfy t_bargein > t_normal")
	}
}

func TestLoadLayersEnvOverDefaults(t *testing.T) {
	t.Setenv("VOXBRIDGE_AGENT_URL", "http://127.0.0.1:9999")
	t.Setenv("VOXBRIDGE_WHISPER_THREADS", "8")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AgentBaseURL != "http://127.0.0.1:9999" {
		t.Errorf("got AgentBaseURL %q, want override", cfg.AgentBaseURL)
	}
	if cfg.WhisperThreads != 8 {
		t.Errorf("got WhisperThreads %d, want 8", cfg.WhisperThreads)
	}
}

func TestLoadRejectsInvalidVADThresholds(t *testing.T) {
	t.Setenv("VOXBRIDGE_VAD_T_NORMAL", "0.8")
	t.Setenv("VOXBRIDGE_VAD_T_BARGEIN", "0.5")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when t_bargein <= t_normal")
	}
}

func TestLoadRejectsMalformedInt(t *testing.T) {
	t.Setenv("VOXBRIDGE_WHISPER_THREADS", "not-a-number")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for malformed integer env var")
	}
}

func TestValidateReportsMissingAssets(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error: no model asset paths are set")
	}
}

func TestValidatePassesWhenAssetsExist(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/binary"
	if err := os.WriteFile(path, []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.VADModelPath = path
	cfg.WhisperBinary = path
	cfg.WhisperModel = path
	cfg.PiperBinary = path
	cfg.PiperModel = path

	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
