// Package metrics declares the Prometheus collectors shared by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExtractionsTotal counts extraction batches by result.
	ExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cubebuddy_extractions_total",
		Help: "Colour extraction batches by result",
	}, []string{"result"})

	// ExtractionDuration tracks successful batch latency.
	ExtractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cubebuddy_extraction_duration_seconds",
		Help:    "Colour extraction batch duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	// CaptureEvents counts capture state machine events by event and outcome.
	CaptureEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cubebuddy_capture_events_total",
		Help: "Capture session events by event name and outcome",
	}, []string{"event", "outcome"})

	// CamerasActive is the number of camera streams currently held.
	CamerasActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cubebuddy_cameras_active",
		Help: "Camera streams currently acquired by capture sessions",
	})

	// SolverRequests counts solver calls by solver kind and result.
	SolverRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cubebuddy_solver_requests_total",
		Help: "Solver requests by solver and result",
	}, []string{"solver", "result"})

	// HandoffWrites counts hand-off store writes by backend and result.
	HandoffWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cubebuddy_handoff_writes_total",
		Help: "Solution hand-off writes by backend and result",
	}, []string{"backend", "result"})
)
