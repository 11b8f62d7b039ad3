package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("triage", reg)
	tags := map[string]string{"urgency": "emergency"}

	m.Record(DiagnosisProcessingSeconds, 0.02, tags)
	m.Record(DiagnosisProcessingSeconds, 0.03, tags)
	m.Record(DiagnosisStageErrors, 2, tags)
	m.Record(DiagnosisStageErrors, 0, tags)
	m.Record(DiagnosisConfidence, 0.7, tags)
	m.Record("unknown_metric", 1, tags)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DiagnosisTotal.WithLabelValues("emergency")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DiagnosisStageFails.WithLabelValues("emergency")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.DiagnosisTotal.WithLabelValues("low")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DiagnosisLatency))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DiagnosisConfidence))
}

func TestSeparateRegistries(t *testing.T) {
	// two instances must not collide
	a := NewMetrics("triage", prometheus.NewRegistry())
	b := NewMetrics("triage", prometheus.NewRegistry())
	a.OutboxEventsProcessed.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.OutboxEventsProcessed))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.OutboxEventsProcessed))
}
