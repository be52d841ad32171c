// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted counts therapy sessions opened, by therapy type.
	SessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "therapy_sessions_started_total",
		Help: "Therapy sessions started by therapy type",
	}, []string{"therapy_type"})

	// SessionsEnded counts therapy sessions closed, by type and final status.
	SessionsEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "therapy_sessions_ended_total",
		Help: "Therapy sessions ended by therapy type and status",
	}, []string{"therapy_type", "status"})

	// AnswersRecorded counts answers by correctness.
	AnswersRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "therapy_answers_recorded_total",
		Help: "Answers recorded by correctness",
	}, []string{"correct"})

	// SessionConflicts counts starts rejected because a session was already active.
	SessionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "therapy_session_conflicts_total",
		Help: "Session starts rejected because an active session of the same type exists",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route pattern, method and status code",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"route", "method"})

	// EventsPublished counts progress events by outcome.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "therapy_progress_events_total",
		Help: "Progress events published by outcome",
	}, []string{"result"})
)
