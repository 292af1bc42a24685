package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recognitionResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guideitor",
		Subsystem: "recognition",
		Name:      "results_total",
		Help:      "Classification outcomes by tenant, kind and model used.",
	}, []string{"tenant", "kind", "model"})

	recognitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "guideitor",
		Subsystem: "recognition",
		Name:      "duration_seconds",
		Help:      "End-to-end recognition latency, cache misses only.",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"tenant"})

	activationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "guideitor",
		Subsystem: "trigger",
		Name:      "decisions_total",
		Help:      "Activation decisions emitted by tenant and kind.",
	}, []string{"tenant", "kind"})
)
