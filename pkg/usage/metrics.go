package usage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// usageRequestsTotal tracks metered calls by model and cache status.
	usageRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genai_usage_requests_total",
		Help: "Total metered generation calls by model and cache status",
	}, []string{"model", "cached"})

	// usageCostDollars tracks estimated spend by model.
	usageCostDollars = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genai_usage_cost_dollars_total",
		Help: "Estimated cumulative cost in dollars by model",
	}, []string{"model"})

	// usageLatencySeconds tracks call latency by model.
	usageLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "genai_usage_latency_seconds",
		Help:    "Generation call latency in seconds by model",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"model"})
)
