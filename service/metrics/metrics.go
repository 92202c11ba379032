package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nsfw_requests_total",
		Help: "Detection requests by final outcome.",
	}, []string{"outcome"})

	UnitsClassified = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nsfw_units_classified_total",
		Help: "Units submitted to the classifier.",
	})

	UnitFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nsfw_unit_failures_total",
		Help: "Unit-level failures by error kind.",
	}, []string{"kind"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nsfw_stage_duration_seconds",
		Help:    "Wall-clock duration of pipeline stages.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
	}, []string{"stage"})
)
