package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FinalizeAttempts tracks finalize calls by outcome (completed, failed,
	// conflict, rejected).
	FinalizeAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_finalize_attempts_total",
			Help: "Total number of finalize attempts",
		},
		[]string{"outcome"},
	)

	// RequestRetries tracks retried outbound requests.
	RequestRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_request_retries_total",
			Help: "Total number of retried outbound requests",
		},
		[]string{"method"},
	)

	// ClassifiedErrors tracks classified errors surfaced to callers, by kind.
	ClassifiedErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_classified_errors_total",
			Help: "Total number of classified errors surfaced",
		},
		[]string{"kind"},
	)

	// SaleTotal observes the total amount of completed sales.
	SaleTotal = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkout_sale_total_amount",
			Help:    "Total amount of completed sales",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	// ActiveSessions tracks currently open operator sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkout_active_sessions",
			Help: "Number of active operator sessions",
		},
	)

	// JournalWriteFailures tracks best-effort sales journal writes that failed.
	JournalWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_journal_write_failures_total",
			Help: "Total number of failed sales journal writes",
		},
	)
)
