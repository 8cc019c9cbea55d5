package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const OutcomeSuccess = "success"

// GenerationMetrics tracks gateway requests, credits charged and provider latency.
type GenerationMetrics struct {
	requests *prometheus.CounterVec
	credits  *prometheus.CounterVec
	provider *prometheus.HistogramVec
}

func NewGenerationMetrics(reg prometheus.Registerer) *GenerationMetrics {
	if reg == nil {
		return &GenerationMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "generation",
		Name:      "requests_total",
		Help:      "Generation requests by operation and outcome.",
	}, []string{"operation", "outcome"})
	credits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "generation",
		Name:      "credits_charged_total",
		Help:      "Credits deducted by operation.",
	}, []string{"operation"})
	provider := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "generation",
		Name:      "provider_duration_seconds",
		Help:      "Latency of provider calls.",
		Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"provider", "kind"})
	reg.MustRegister(requests, credits, provider)
	return &GenerationMetrics{requests: requests, credits: credits, provider: provider}
}

// ObserveRequest counts one request. outcome is OutcomeSuccess or an error code.
func (g *GenerationMetrics) ObserveRequest(operation, outcome string) {
	if g == nil || g.requests == nil {
		return
	}
	g.requests.WithLabelValues(normalizeLabel(operation), strings.ToLower(normalizeLabel(outcome))).Inc()
}

func (g *GenerationMetrics) AddCredits(operation string, amount int) {
	if g == nil || g.credits == nil || amount <= 0 {
		return
	}
	g.credits.WithLabelValues(normalizeLabel(operation)).Add(float64(amount))
}

func (g *GenerationMetrics) ObserveProvider(provider, kind string, duration time.Duration) {
	if g == nil || g.provider == nil {
		return
	}
	g.provider.WithLabelValues(normalizeLabel(provider), normalizeLabel(kind)).Observe(duration.Seconds())
}
