// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics holds the Prometheus instruments of the server. They are
// registered with the default registry and exposed on GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes
const (
	OutcomeRecorded  = "recorded"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Fit outcomes
const (
	FitOK               = "ok"
	FitInsufficientData = "insufficient_data"
	FitFailed           = "failed"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bestworst_submissions_total",
		Help: "Trial submissions by outcome",
	}, []string{"outcome"})

	SequencesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bestworst_sequences_created_total",
		Help: "Trial sequences generated and stored",
	})

	LeftoverStimuliTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bestworst_leftover_stimuli_total",
		Help: "Stimulus repeats dropped because they could not be packed into a trial",
	})

	FitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bestworst_fits_total",
		Help: "Final ranking fits by outcome",
	}, []string{"outcome"})

	FitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bestworst_fit_duration_seconds",
		Help:    "Time to fit the final ranking model",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bestworst_http_request_duration_seconds",
		Help:    "HTTP request latency by method and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bestworst_active_sessions",
		Help: "Participant sessions with an in-memory value state",
	})
)
