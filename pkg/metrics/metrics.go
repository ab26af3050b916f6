// Package metrics exposes Prometheus counters/gauges for the voice
// pipeline's internal state (ring buffer occupancy, barge-in counts,
// connection state, state-machine transitions).
//
// Grounded on longregen-alicia's internal/adapters/metrics/prometheus.go
// package-level promauto.New* var pattern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RingBufferOccupancy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voxbridge_ring_buffer_occupancy_samples",
		Help: "Current occupancy of a ring buffer, in samples",
	}, []string{"buffer"})

	BargeInTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxbridge_barge_in_total",
		Help: "Total accepted barge-in events",
	})

	ConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxbridge_agent_connected",
		Help: "1 if the agent gateway is reachable, 0 otherwise",
	})

	StateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxbridge_state_transitions_total",
		Help: "Total session state machine transitions",
	}, []string{"from", "to", "trigger"})

	TranscriptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxbridge_transcripts_total",
		Help: "Total transcripts by outcome",
	}, []string{"outcome"}) // "ok" | "empty"

	STTDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxbridge_stt_duration_seconds",
		Help:    "STT transcription duration",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
	})

	AgentRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxbridge_agent_request_duration_seconds",
		Help:    "Agent gateway round-trip duration",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})
)
