// Package config loads voxbridge's runtime tunables: VAD thresholds,
// timing windows, default sample rates, and model-asset paths. The
// on-disk configuration format, its atomic-rewrite/backup persistence,
// and the first-run wizard are out of scope (spec.md §1); this package
// only defines the in-memory Config struct and its env-var loader.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/lokutor-ai/voxbridge/pkg/audio"
	"github.com/lokutor-ai/voxbridge/pkg/session"
	"github.com/lokutor-ai/voxbridge/pkg/vad"
)

// Config holds every tunable named across spec.md §4. Grouped by
// component rather than flattened, mirroring the teacher's
// orchestrator.DefaultConfig() shape.
type Config struct {
	// Model assets (spec.md §6).
	VADModelPath   string
	WhisperBinary  string
	WhisperModel   string
	WhisperThreads int
	PiperBinary    string
	PiperModel     string

	// Agent gateway (spec.md §4.8).
	AgentBaseURL string
	AgentTimeoutSec int
	ProbeIntervalSec int

	// Audio (spec.md §4.1, §4.2).
	PlaybackSampleRate int
	PlaybackFrameMs    int

	VAD     vad.Config
	Session session.Config
}

// DefaultConfig mirrors the teacher's orchestrator.DefaultConfig():
// struct literal defaults that env vars are layered over.
func DefaultConfig() Config {
	return Config{
		WhisperThreads:     4,
		AgentBaseURL:       "http://127.0.0.1:8675",
		AgentTimeoutSec:    30,
		ProbeIntervalSec:   5,
		PlaybackSampleRate: audio.DefaultPlaybackSampleRate,
		PlaybackFrameMs:    audio.DefaultPlaybackFrameMs,
		VAD:                vad.DefaultConfig(),
		Session:             session.DefaultConfig(),
	}
}

// Load reads a `.env` file if present (teacher's cmd/agent/main.go
// pattern: godotenv.Load() then os.Getenv layered over defaults) and
// returns a populated Config. It does not validate model asset paths —
// callers check those at startup (spec.md §6: "C12 refuses to start if
// any is missing").
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		// No .env file is not fatal — env vars may be set directly.
	}

	cfg := DefaultConfig()

	cfg.VADModelPath = getEnv("VOXBRIDGE_VAD_MODEL_PATH", cfg.VADModelPath)
	cfg.WhisperBinary = getEnv("VOXBRIDGE_WHISPER_BIN", cfg.WhisperBinary)
	cfg.WhisperModel = getEnv("VOXBRIDGE_WHISPER_MODEL", cfg.WhisperModel)
	cfg.PiperBinary = getEnv("VOXBRIDGE_PIPER_BIN", cfg.PiperBinary)
	cfg.PiperModel = getEnv("VOXBRIDGE_PIPER_MODEL", cfg.PiperModel)
	cfg.AgentBaseURL = getEnv("VOXBRIDGE_AGENT_URL", cfg.AgentBaseURL)

	var err error
	cfg.WhisperThreads, err = getEnvInt("VOXBRIDGE_WHISPER_THREADS", cfg.WhisperThreads)
	if err != nil {
		return cfg, err
	}
	cfg.AgentTimeoutSec, err = getEnvInt("VOXBRIDGE_AGENT_TIMEOUT_SEC", cfg.AgentTimeoutSec)
	if err != nil {
		return cfg, err
	}
	cfg.ProbeIntervalSec, err = getEnvInt("VOXBRIDGE_PROBE_INTERVAL_SEC", cfg.ProbeIntervalSec)
	if err != nil {
		return cfg, err
	}
	cfg.PlaybackSampleRate, err = getEnvInt("VOXBRIDGE_PLAYBACK_SAMPLE_RATE", cfg.PlaybackSampleRate)
	if err != nil {
		return cfg, err
	}

	cfg.VAD.NormalThreshold, err = getEnvFloat("VOXBRIDGE_VAD_T_NORMAL", cfg.VAD.NormalThreshold)
	if err != nil {
		return cfg, err
	}
	cfg.VAD.BargeInThreshold, err = getEnvFloat("VOXBRIDGE_VAD_T_BARGEIN", cfg.VAD.BargeInThreshold)
	if err != nil {
		return cfg, err
	}
	if cfg.VAD.BargeInThreshold <= cfg.VAD.NormalThreshold {
		return cfg, fmt.Errorf("config_invalid: %w", vad.ErrConfigInvalid)
	}

	cfg.Session.BargeInCooldownMs, err = getEnvInt64("VOXBRIDGE_BARGEIN_COOLDOWN_MS", cfg.Session.BargeInCooldownMs)
	if err != nil {
		return cfg, err
	}
	cfg.Session.ClearSessionAfterFailures, err = getEnvInt("VOXBRIDGE_CLEAR_SESSION_AFTER_FAILURES", cfg.Session.ClearSessionAfterFailures)
	if err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks that every required model asset exists on disk,
// matching spec.md §6's "C12 refuses to start if any is missing and
// reports which one".
func (c Config) Validate() error {
	required := map[string]string{
		"VAD model":       c.VADModelPath,
		"whisper binary":  c.WhisperBinary,
		"whisper model":   c.WhisperModel,
		"piper binary":    c.PiperBinary,
		"piper model":     c.PiperModel,
	}
	for name, path := range required {
		if path == "" {
			return fmt.Errorf("config_missing: %s path not set", name)
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("config_missing: %s not found at %s", name, path)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("config_invalid: %s=%q: %w", key, v, err)
	}
	return n, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback, fmt.Errorf("config_invalid: %s=%q: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, fmt.Errorf("config_invalid: %s=%q: %w", key, v, err)
	}
	return f, nil
}
