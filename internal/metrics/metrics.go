// Package metrics provides Prometheus metrics for the retailops API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReviewActionsTotal tracks approve/reject/request-changes dispatches by outcome
	ReviewActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retailops",
			Subsystem: "review",
			Name:      "actions_total",
			Help:      "Total number of review actions by kind, action and outcome",
		},
		[]string{"kind", "action", "outcome"},
	)

	// DirectivesTotal tracks highlight directives by how a session handled them
	DirectivesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retailops",
			Subsystem: "review",
			Name:      "directives_total",
			Help:      "Total number of highlight directives by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// WebsocketClients tracks connected websocket clients
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "retailops",
			Subsystem: "websocket",
			Name:      "clients",
			Help:      "Number of connected websocket clients",
		},
	)

	// HTTPRequestDuration tracks inbound request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "retailops",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)

	// CacheLookupsTotal tracks analytics cache hits and misses
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "retailops",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of cache lookups by result",
		},
		[]string{"result"},
	)
)
