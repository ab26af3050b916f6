package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/spf13/cobra"

	"github.com/lokutor-ai/voxbridge/pkg/agent"
	"github.com/lokutor-ai/voxbridge/pkg/audio"
	"github.com/lokutor-ai/voxbridge/pkg/config"
	"github.com/lokutor-ai/voxbridge/pkg/events"
	"github.com/lokutor-ai/voxbridge/pkg/jitter"
	"github.com/lokutor-ai/voxbridge/pkg/metrics"
	"github.com/lokutor-ai/voxbridge/pkg/pipeline"
	"github.com/lokutor-ai/voxbridge/pkg/session"
	"github.com/lokutor-ai/voxbridge/pkg/stt"
	"github.com/lokutor-ai/voxbridge/pkg/tts"
	"github.com/lokutor-ai/voxbridge/pkg/vad"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start listening and speaking",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context(), cfg)
		},
	}
}

// runEngine wires every C1-C12 component per SPEC_FULL.md §2.3 and runs
// until interrupted.
//
// Grounded on the teacher's cmd/agent/main.go (malgo.InitContext setup,
// signal.Notify shutdown, event-loop switch over OrchestratorEvent.Type),
// restructured around the component-per-package layout instead of one
// main-function closure.
func runEngine(parentCtx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config not ready: %w", err)
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("mic_unavailable: %w", err)
	}
	defer mctx.Uninit()

	capture, err := audio.NewCapture(mctx)
	if err != nil {
		return err
	}
	playbackDev, err := audio.NewPlayback(mctx, cfg.PlaybackSampleRate)
	if err != nil {
		return err
	}
	defer playbackDev.Close()

	var classifier vad.Classifier
	if cfg.VADModelPath != "" {
		classifier, err = vad.NewSileroClassifier(cfg.VADModelPath, cfg.VAD.NormalThreshold)
		if err != nil {
			return err
		}
	} else {
		classifier = vad.NewRMSClassifier()
	}
	segmenter, err := vad.NewSegmenter(classifier, cfg.VAD)
	if err != nil {
		return err
	}

	sttEngine, err := stt.NewEngine(cfg.WhisperBinary, cfg.WhisperModel, cfg.WhisperThreads)
	if err != nil {
		return err
	}
	ttsEngine, err := tts.NewEngine(cfg.PiperBinary, cfg.PiperModel)
	if err != nil {
		return err
	}

	speech := pipeline.NewSpeech(capture, segmenter, sttEngine)

	stream := tts.NewStream(ttsEngine, 20)
	jb := jitter.New(jitter.DefaultConfig(cfg.PlaybackSampleRate))
	playback := pipeline.NewPlayback(stream, jb, playbackDev, cfg.PlaybackSampleRate, cfg.PlaybackFrameMs)

	client, err := agent.NewClient(cfg.AgentBaseURL, time.Duration(cfg.AgentTimeoutSec)*time.Second)
	if err != nil {
		return err
	}
	monitor := agent.NewMonitor(client, time.Duration(cfg.ProbeIntervalSec)*time.Second)

	store := session.NewFileStore(session.DefaultStorePath())

	// The single polymorphic event sink (spec.md §9, SPEC_FULL.md §4): every
	// observable moment funnels through here for a console/TUI or other UI
	// collaborator to range over.
	sink := events.NewChanSink(64)
	onEvent := func(kind string, data interface{}) {
		sink.Emit(events.Event{Type: events.Type(kind), Data: data})
	}
	mgr := session.NewManager(cfg.Session, nil, store, speech, playback, client, onEvent)

	go func() {
		for ev := range sink.Events() {
			logEvent(string(ev.Type), ev.Data)
		}
	}()

	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nShutting down...")
		cancel()
	}()

	go monitor.Run(ctx, func(connected bool) {
		metrics.ConnectionState.Set(boolToFloat(connected))
		onEvent("connection_changed", connected)
	})

	go func() {
		if err := speech.Run(ctx); err != nil {
			onEvent("error", map[string]string{"type": "speech_pipeline", "message": err.Error()})
		}
	}()

	mgr.Start()
	fmt.Println("voxbridge listening. Press Ctrl+C to exit.")

	for {
		select {
		case <-ctx.Done():
			mgr.Stop()
			return nil
		case ev, ok := <-speech.Events():
			if !ok {
				return nil
			}
			// Dispatched so a transcript's blocking agent-send + playback
			// doesn't stall the loop from reacting to a concurrent barge_in
			// (spec.md §5: "the loop never blocks").
			go mgr.HandleSpeechEvent(ctx, ev)
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func logEvent(kind string, data interface{}) {
	switch kind {
	case "state_changed":
		fmt.Printf("[state] %v\n", data)
	case "transcript":
		fmt.Printf("[transcript] %v\n", data)
	case "response":
		fmt.Printf("[response] %v\n", data)
	case "empty_transcript":
		fmt.Println("[empty_transcript] didn't catch that")
	case "barge_in":
		fmt.Println("[barge_in] interrupted")
	case "error":
		fmt.Printf("[error] %v\n", data)
	case "connection_changed":
		fmt.Printf("[connection] %v\n", data)
	case "speaking_complete":
		fmt.Println("[speaking_complete]")
	case "started":
		fmt.Println("[started]")
	case "stopped":
		fmt.Println("[stopped]")
	}
}
