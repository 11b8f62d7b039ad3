package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/triage-api/internal/knowledge"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/pkg/errors"
)

func newService(t *testing.T) *Service {
	t.Helper()
	kb, err := knowledge.Default()
	require.NoError(t, err)
	return NewService(kb)
}

func TestNormalizeFluLikeSymptoms(t *testing.T) {
	svc := newService(t)
	symptoms := []model.Symptom{
		{Name: "  Fever ", Severity: model.SeverityModerate, Duration: "2 days"},
		{Name: "Body   Aches", Severity: model.SeverityMild, Duration: "2 days"},
		{Name: "fatigue", Severity: model.SeverityMild, Duration: "1 week"},
		{Name: "headache", Severity: model.SeverityModerate},
	}

	out, err := svc.Normalize(symptoms, model.PatientContext{Age: 30, Gender: "female"}, "feeling awful")
	require.NoError(t, err)

	assert.Equal(t, []string{"fever", "body aches", "fatigue", "headache"}, model.SymptomNames(out.CleanedSymptoms))
	assert.Equal(t, []string{"fever", "body aches", "fatigue"}, out.SystemClassification["infectious"])
	assert.Equal(t, []string{"fatigue"}, out.SystemClassification["endocrine"])
	assert.Equal(t, []string{"headache"}, out.SystemClassification["neurological"])
	assert.Equal(t, []string{"neurological", "endocrine", "infectious"}, out.PrimarySystems)

	require.Len(t, out.Clusters, 1)
	assert.Equal(t, "flu_like", out.Clusters[0].Name)
	assert.Equal(t, 4, out.Clusters[0].Matches)

	assert.Equal(t, 6.0, out.Severity.Overall)
	assert.Equal(t, 2, out.Severity.Max)
	assert.InDelta(t, 1.5, out.Severity.Average, 1e-9)

	dp := out.MedicalFeatures.DurationPatterns
	assert.True(t, dp.HasDurationInfo)
	assert.Equal(t, 3, dp.DurationCount)
	assert.Equal(t, 2, dp.Acute)
	assert.Equal(t, 1, dp.Chronic)
	assert.Equal(t, 2, out.MedicalFeatures.SeverityDistribution[model.SeverityMild])

	// (0.4 + 1 + 1 + 0.5) / 4
	assert.InDelta(t, 0.725, out.Confidence, 1e-9)
}

func TestNormalizeDropsShortNames(t *testing.T) {
	svc := newService(t)
	symptoms := []model.Symptom{
		{Name: "x", Severity: model.SeverityMild},
		{Name: " ", Severity: model.SeverityMild},
		{Name: "cough", Severity: model.SeverityMild},
	}

	out, err := svc.Normalize(symptoms, model.PatientContext{}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"cough"}, model.SymptomNames(out.CleanedSymptoms))
}

func TestNormalizeRejectsEmpty(t *testing.T) {
	svc := newService(t)

	_, err := svc.Normalize(nil, model.PatientContext{}, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))

	_, err = svc.Normalize([]model.Symptom{{Name: "a", Severity: model.SeverityMild}}, model.PatientContext{}, "")
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestSymptomMatchesSeveralSystems(t *testing.T) {
	svc := newService(t)
	out, err := svc.Normalize([]model.Symptom{{Name: "shortness of breath", Severity: model.SeveritySevere}}, model.PatientContext{}, "")
	require.NoError(t, err)

	assert.Contains(t, out.SystemClassification, "cardiovascular")
	assert.Contains(t, out.SystemClassification, "respiratory")
	assert.Empty(t, out.Clusters)
}

func TestNormalizeTextUnicode(t *testing.T) {
	// decomposed e + combining acute composes under NFC
	assert.Equal(t, "caf\u00e9 pain", NormalizeText("Cafe\u0301   PAIN"))
}
