package interaction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/triage-api/internal/knowledge"
	"github.com/jwalitptl/triage-api/internal/model"
)

func newService(t *testing.T) *Service {
	t.Helper()
	kb, err := knowledge.Default()
	require.NoError(t, err)
	return NewService(kb)
}

func TestCheckMajorInteraction(t *testing.T) {
	svc := newService(t)
	patient := model.PatientContext{Age: 70, Medications: []string{"Warfarin 5mg"}}
	treatments := []model.TreatmentOption{
		{Name: "Ibuprofen", Type: model.TreatmentMedication},
		{Name: "Dark Room Rest", Type: model.TreatmentLifestyle},
	}

	r := svc.Check(patient, treatments)

	assert.Equal(t, []string{"warfarin 5mg", "ibuprofen"}, r.Medications)
	require.Len(t, r.Interactions, 1)
	assert.Equal(t, model.InteractionMajor, r.Interactions[0].Severity)
	assert.Equal(t, 1, r.SeveritySummary[model.InteractionMajor])
	assert.False(t, r.SafeToPrescribe)
	assert.True(t, r.RequiresMonitor)
	assert.Equal(t, []string{
		"MAJOR INTERACTION - Requires immediate physician consultation",
		"Avoid combination, use alternative pain relief",
	}, r.Recommendations)
	assert.Equal(t, []string{"Anticoagulant + NSAID: Increased bleeding risk"}, r.ClassWarnings)
}

func TestCheckReverseOrderAndContraindicated(t *testing.T) {
	svc := newService(t)
	r := svc.Check(model.PatientContext{Age: 50, Medications: []string{"contrast_dye", "metformin"}}, nil)

	require.Len(t, r.Interactions, 1)
	assert.Equal(t, model.InteractionContraindicated, r.Interactions[0].Severity)
	assert.False(t, r.SafeToPrescribe)
	assert.False(t, r.RequiresMonitor)
	assert.Equal(t, "DO NOT USE TOGETHER - Contraindicated drug combination found", r.Recommendations[0])
}

func TestCheckContraindicationsAndAge(t *testing.T) {
	svc := newService(t)
	patient := model.PatientContext{
		Age:            12,
		Medications:    []string{"aspirin", "metformin"},
		MedicalHistory: []string{"Severe Kidney Disease"},
	}

	r := svc.Check(patient, nil)

	assert.Empty(t, r.Interactions)
	assert.True(t, r.SafeToPrescribe)
	require.Len(t, r.Contraindications, 1)
	assert.Equal(t, "metformin", r.Contraindications[0].Medication)
	assert.Equal(t, "absolute", r.Contraindications[0].Severity)
	assert.Equal(t, "insulin", r.Contraindications[0].Alternative)
	require.Len(t, r.AgeWarnings, 1)
	assert.Equal(t, "aspirin", r.AgeWarnings[0].Medication)
	assert.Equal(t, []string{"No significant drug interactions found"}, r.Recommendations)
}

func TestCheckElderlyCautionAndAntihypertensives(t *testing.T) {
	svc := newService(t)
	patient := model.PatientContext{
		Age:         80,
		Medications: []string{"benzodiazepine", "lisinopril", "metoprolol", "amlodipine"},
	}

	r := svc.Check(patient, nil)

	require.Len(t, r.AgeWarnings, 1)
	assert.Equal(t, "benzodiazepine", r.AgeWarnings[0].Medication)
	assert.Equal(t, []string{"Multiple blood pressure medications: Monitor for hypotension"}, r.ClassWarnings)
}

func TestCheckEmpty(t *testing.T) {
	svc := newService(t)
	r := svc.Check(model.PatientContext{Age: 30}, nil)

	assert.Empty(t, r.Medications)
	assert.True(t, r.SafeToPrescribe)
	assert.False(t, r.RequiresMonitor)
	assert.Empty(t, r.ClassWarnings)
}

func TestCategoryPrefersMostSpecificName(t *testing.T) {
	svc := NewService(&knowledge.Base{DrugCategories: map[string]string{
		"codeine":       "opioid",
		"acetaminophen": "analgesic",
		"aspirin":       categoryAnticoagulant,
		"baby aspirin":  "antiplatelet",
	}})

	for i := 0; i < 50; i++ {
		cat, ok := svc.category("acetaminophen with codeine")
		require.True(t, ok)
		assert.Equal(t, "analgesic", cat)

		cat, ok = svc.category("baby aspirin 81mg")
		require.True(t, ok)
		assert.Equal(t, "antiplatelet", cat)
	}

	_, ok := svc.category("saline")
	assert.False(t, ok)
}
