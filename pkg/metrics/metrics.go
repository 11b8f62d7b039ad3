package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Names accepted by Record.
const (
	DiagnosisProcessingSeconds = "diagnosis_processing_seconds"
	DiagnosisStageErrors       = "diagnosis_stage_errors"
	DiagnosisConfidence        = "diagnosis_confidence"
)

// Metrics holds all application metrics
type Metrics struct {
	// Pipeline metrics
	DiagnosisLatency    *prometheus.HistogramVec
	DiagnosisTotal      *prometheus.CounterVec
	DiagnosisStageFails *prometheus.CounterVec
	DiagnosisConfidence *prometheus.HistogramVec

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxEventsDeleted     prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec
}

// NewMetrics creates all application metrics on reg. A nil reg uses the
// default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		DiagnosisLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "diagnosis",
			Name:      "processing_duration_seconds",
			Help:      "Time spent running the diagnostic pipeline",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"urgency"}),
		DiagnosisTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "diagnosis",
			Name:      "requests_total",
			Help:      "Total number of completed diagnoses by final urgency",
		}, []string{"urgency"}),
		DiagnosisStageFails: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "diagnosis",
			Name:      "stage_errors_total",
			Help:      "Total number of pipeline stage failures",
		}, []string{"urgency"}),
		DiagnosisConfidence: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "diagnosis",
			Name:      "overall_confidence",
			Help:      "Overall confidence of completed diagnoses",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"urgency"}),

		OutboxEventsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_processed_total",
			Help:      "Total number of successfully published outbox events",
		}),
		OutboxEventsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_failed_total",
			Help:      "Total number of outbox events that failed publishing",
		}),
		OutboxEventsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_deleted_total",
			Help:      "Total number of processed outbox events removed after retention",
		}),
		OutboxProcessingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "processing_duration_seconds",
			Help:      "Time spent processing one outbox batch",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		RedisOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redis_operations_total",
			Help:      "Total number of Redis operations",
		}, []string{"operation", "status"}),
	}
}

// Record implements the pipeline metrics sink. Unknown names are ignored.
func (m *Metrics) Record(name string, value float64, tags map[string]string) {
	urgency := tags["urgency"]
	switch name {
	case DiagnosisProcessingSeconds:
		m.DiagnosisLatency.WithLabelValues(urgency).Observe(value)
		m.DiagnosisTotal.WithLabelValues(urgency).Inc()
	case DiagnosisStageErrors:
		if value > 0 {
			m.DiagnosisStageFails.WithLabelValues(urgency).Add(value)
		}
	case DiagnosisConfidence:
		m.DiagnosisConfidence.WithLabelValues(urgency).Observe(value)
	}
}
