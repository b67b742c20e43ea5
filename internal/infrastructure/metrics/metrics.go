package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActivationsTotal tracks activation attempts by outcome
	ActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keygate_activations_total",
		Help: "Total number of license activation attempts",
	}, []string{"result"})

	// VerificationsTotal tracks verification attempts by outcome
	VerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keygate_verifications_total",
		Help: "Total number of license verification attempts",
	}, []string{"result"})

	// PiracyAttemptsTotal tracks detected domain mismatches by source path
	PiracyAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keygate_piracy_attempts_total",
		Help: "Total number of detected domain-mismatch attempts",
	}, []string{"source"})

	// NotifierDeliveries tracks piracy alert delivery outcomes
	NotifierDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keygate_notifier_deliveries_total",
		Help: "Total number of piracy alert delivery attempts",
	}, []string{"result"})

	// CacheOperations tracks license cache hits and misses
	CacheOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keygate_cache_operations_total",
		Help: "Total number of license cache hits and misses",
	}, []string{"result"})

	// RequestDuration tracks HTTP handler processing time
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keygate_request_duration_seconds",
		Help:    "Histogram of request processing duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// DBConnectionsActive tracks open database connections
	DBConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keygate_db_connections_active",
		Help: "Number of active database connections",
	})
)
