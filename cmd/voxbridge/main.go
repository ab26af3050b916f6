// Command voxbridge is the local voice front-end entrypoint: it wires
// capture, VAD, STT, the agent gateway client, TTS, and playback into a
// single running Session Manager.
//
// Grounded on longregen-alicia/cmd/alicia/main.go's cobra root-command
// shape (PersistentPreRunE loading config, subcommands for run/version),
// replacing the teacher's flat cmd/agent/main.go's func-main device setup
// with a command tree per SPEC_FULL.md §2.3.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lokutor-ai/voxbridge/pkg/config"
)

var (
	version = "dev"
	commit  = "none"
)

var cfg config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "voxbridge",
		Short: "Local-first conversational voice front-end",
		Long: `voxbridge turns microphone audio into agent replies spoken back
through local speakers: mic capture, voice-activity detection, local
speech-to-text, a localhost agent gateway, and streaming text-to-speech,
with support for interrupting a reply mid-sentence.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		runCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("voxbridge %s (%s)\n", version, commit)
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Model assets:")
			fmt.Printf("  VAD model:       %s\n", cfg.VADModelPath)
			fmt.Printf("  Whisper binary:  %s\n", cfg.WhisperBinary)
			fmt.Printf("  Whisper model:   %s\n", cfg.WhisperModel)
			fmt.Printf("  Whisper threads: %d\n", cfg.WhisperThreads)
			fmt.Printf("  Piper binary:    %s\n", cfg.PiperBinary)
			fmt.Printf("  Piper model:     %s\n", cfg.PiperModel)
			fmt.Println()
			fmt.Println("Agent gateway:")
			fmt.Printf("  URL:             %s\n", cfg.AgentBaseURL)
			fmt.Printf("  Timeout:         %ds\n", cfg.AgentTimeoutSec)
			fmt.Printf("  Probe interval:  %ds\n", cfg.ProbeIntervalSec)
			fmt.Println()
			fmt.Println("VAD:")
			fmt.Printf("  t_normal:        %.2f\n", cfg.VAD.NormalThreshold)
			fmt.Printf("  t_bargein:       %.2f\n", cfg.VAD.BargeInThreshold)
			fmt.Printf("  silence_ms:      %d\n", cfg.VAD.SilenceDurationMs)
			fmt.Printf("  min_speech_ms:   %d\n", cfg.VAD.MinSpeechMs)
			fmt.Println()
			if err := cfg.Validate(); err != nil {
				fmt.Printf("status: NOT READY (%v)\n", err)
			} else {
				fmt.Println("status: ready")
			}
			return nil
		},
	}
}
