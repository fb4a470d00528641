// Package metrics provides Prometheus metrics for the moderation service
// (RED for the HTTP surface, plus classifier/signal-store/report-manager
// domain counters) and concrete MetricsSink implementations the
// moderation packages consume through their narrow interfaces.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/monosonet/modcore/internal/moderation/types"
)

const namespace = "modcore"

var (
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10),
		},
		[]string{"method", "path"},
	)

	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active WebSocket connections.",
		},
	)

	WebSocketMessageSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "websocket_message_size_bytes",
			Help:      "WebSocket message size in bytes, by direction.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
		[]string{"direction"},
	)

	WebSocketMessagesSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "websocket_messages_sent_total",
		Help:      "Total number of WebSocket messages sent to clients.",
	})

	RateLimitDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_decisions_total",
			Help:      "Total number of rate limiter decisions by outcome.",
		},
		[]string{"outcome"}, // allow | deny
	)

	DBQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds, by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	classificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_results_total",
			Help:      "Total number of classification results by label.",
		},
		[]string{"label"},
	)

	classificationDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classification_duration_seconds",
			Help:      "Classification pipeline duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	mlInferenceDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ml_inference_duration_seconds",
			Help:      "ML model inference duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	classificationCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_cache_hits_total",
			Help:      "Total number of classification result cache hits.",
		},
	)

	signalsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_received_total",
			Help:      "Total number of signals received by the store, by signal type.",
		},
		[]string{"signal_type"},
	)

	signalsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_processed_total",
			Help:      "Total number of signals processed by the store, by signal type.",
		},
		[]string{"signal_type"},
	)

	pipelineExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_executions_total",
			Help:      "Total number of pipeline executions by decision.",
		},
		[]string{"decision"},
	)

	ruleActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_actions_total",
			Help:      "Total number of rule-engine actions emitted, by action type.",
		},
		[]string{"action_type"},
	)

	signalSweepRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_sweep_removed_total",
			Help:      "Total number of expired signals removed by the sweeper.",
		},
	)

	signalStoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "signal_store_size",
			Help:      "Current number of signals held in the store.",
		},
	)

	reportsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_created_total",
			Help:      "Total number of user reports created, by priority.",
		},
		[]string{"priority"},
	)

	reportStatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_status_transitions_total",
			Help:      "Total number of report status transitions.",
		},
		[]string{"from", "to"},
	)
)

// ClassifierSink implements classifier.MetricsSink.
type ClassifierSink struct{}

func (ClassifierSink) RecordCacheHit() { classificationCacheHitsTotal.Inc() }

func (ClassifierSink) RecordClassificationTime(ms int64) {
	classificationDurationSeconds.Observe(float64(ms) / 1000.0)
}

func (ClassifierSink) RecordClassificationResult(label types.ClassificationLabel) {
	classificationTotal.WithLabelValues(string(label)).Inc()
}

func (ClassifierSink) RecordMLInferenceTime(ms int64) {
	mlInferenceDurationSeconds.Observe(float64(ms) / 1000.0)
}

// SignalsSink implements signals.MetricsSink.
type SignalsSink struct{}

func (SignalsSink) RecordSignalReceived(signal types.Signal) {
	signalsReceivedTotal.WithLabelValues(string(signal.SignalType)).Inc()
	signalStoreSize.Inc()
}

func (SignalsSink) RecordSignalProcessed(signal types.Signal) {
	signalsProcessedTotal.WithLabelValues(string(signal.SignalType)).Inc()
}

func (SignalsSink) RecordPipelineExecution(result types.PipelineResult) {
	decision := "unknown"
	if result.FinalDecision != nil {
		decision = string(result.FinalDecision.Decision)
	}
	pipelineExecutionsTotal.WithLabelValues(decision).Inc()
}

func (SignalsSink) RecordRuleActions(signal types.Signal, actions []types.SignalAction) {
	for _, action := range actions {
		ruleActionsTotal.WithLabelValues(string(action.ActionType)).Inc()
	}
}

func (SignalsSink) RecordSweep(removed int, remaining int) {
	signalSweepRemovedTotal.Add(float64(removed))
	signalStoreSize.Set(float64(remaining))
}

// ReportsSink implements reports.MetricsSink.
type ReportsSink struct{}

func (ReportsSink) RecordReportCreated(priority types.ReportPriority) {
	reportsCreatedTotal.WithLabelValues(string(priority)).Inc()
}

func (ReportsSink) RecordReportStatusChanged(from, to types.ReportStatus) {
	reportStatusTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}
