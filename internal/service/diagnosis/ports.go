package diagnosis

import (
	"context"

	"github.com/jwalitptl/triage-api/internal/model"
)

// PersistenceSink stores a finished consultation. A false return is logged
// and never fails the request.
type PersistenceSink interface {
	LogConsultation(ctx context.Context, input *model.SymptomInput, result *model.DiagnosisResult) bool
}

// GuidelineProvider resolves the guideline text cited for a condition.
type GuidelineProvider interface {
	Guideline(conditionID string) (string, bool)
}

type MetricsSink interface {
	Record(name string, value float64, tags map[string]string)
}

type nopPersistence struct{}

func (nopPersistence) LogConsultation(context.Context, *model.SymptomInput, *model.DiagnosisResult) bool {
	return true
}

type nopGuidelines struct{}

func (nopGuidelines) Guideline(string) (string, bool) { return "", false }

type nopMetrics struct{}

func (nopMetrics) Record(string, float64, map[string]string) {}
