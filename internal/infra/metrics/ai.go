package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiCallsTotal,
		aiCallsLatencyMs,
		credentialRotationsTotal,
		credentialCooldownWaits,
	)
}

var (
	aiCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_calls_total",
			Help: "Outbound AI calls per model, labeled by success.",
		},
		[]string{"model", "success"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "AI call latency distribution in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 30000, 60000},
		},
		[]string{"model"},
	)

	credentialRotationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credential_rotations_total",
			Help: "Times a quota response forced rotation to another credential slot.",
		},
	)

	credentialCooldownWaits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credential_cooldown_waits_total",
			Help: "Times an acquire had to wait for a slot cooldown to expire.",
		},
	)
)

func ObserveAICall(model string, latencyMs int, success bool) {
	aiCallsTotal.WithLabelValues(norm(model), strconv.FormatBool(success)).Inc()
	aiCallsLatencyMs.WithLabelValues(norm(model)).Observe(float64(latencyMs))
}

func IncRotation()     { credentialRotationsTotal.Inc() }
func IncCooldownWait() { credentialCooldownWaits.Inc() }
