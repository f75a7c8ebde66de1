package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prospector_sweep_runs_total",
			Help: "Total number of sweeps by outcome",
		},
		[]string{"sweep", "outcome"},
	)

	sweepUnitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prospector_sweep_units_total",
			Help: "Total number of sweep units by result",
		},
		[]string{"sweep", "result"},
	)

	sweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prospector_sweep_duration_seconds",
			Help:    "Duration of completed sweeps in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"sweep"},
	)
)
