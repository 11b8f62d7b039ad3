package treatment

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

func candidate(id string, p, c float64) model.ConditionCandidate {
	return model.ConditionCandidate{ID: id, Probability: p, Confidence: c}
}

func names(ts []model.TreatmentOption) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Name
	}
	return out
}

func TestSelectPenicillinAllergy(t *testing.T) {
	svc := newService(t)
	patient := model.PatientContext{Age: 40, Gender: "male", Allergies: []string{"Penicillin"}}

	plan, err := svc.Select([]model.ConditionCandidate{candidate("pneumonia", 0.5, 0.6)}, patient)
	require.NoError(t, err)

	assert.Equal(t, []string{"Oxygen Therapy"}, names(plan.Treatments))
	require.Len(t, plan.Excluded, 1)
	assert.Equal(t, "Amoxicillin", plan.Excluded[0].Name)
	assert.Equal(t, "pneumonia", plan.Excluded[0].ConditionID)
	assert.Contains(t, plan.Excluded[0].Reason, "penicillin")
	assert.Equal(t, 1, plan.ContraindicationsFound)
	assert.Equal(t, 2, plan.TotalConsidered)
	assert.Equal(t, model.UrgencyUrgent, plan.Urgency)
	// (0.6 + 1/3 + 1 + 0.5) / 4
	assert.InDelta(t, (0.6+1.0/3.0+1+0.5)/4, plan.Confidence, 1e-9)
}

func TestSelectRanksLifestyleFirst(t *testing.T) {
	svc := newService(t)

	plan, err := svc.Select([]model.ConditionCandidate{candidate("influenza", 0.5, 0.7)}, model.PatientContext{Age: 30, Gender: "female"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Rest and Hydration", "Oseltamivir (Tamiflu)", "Acetaminophen"}, names(plan.Treatments))
	assert.Empty(t, plan.Excluded)
	for _, tr := range plan.Treatments {
		assert.Equal(t, "influenza", tr.ConditionID)
	}
}

func TestSelectExcludesByHistory(t *testing.T) {
	svc := newService(t)
	patient := model.PatientContext{Age: 60, Gender: "male", MedicalHistory: []string{"Severe Kidney Disease"}}

	plan, err := svc.Select([]model.ConditionCandidate{
		candidate("influenza", 0.5, 0.7),
		candidate("diabetes_type_2", 0.4, 0.5),
		candidate("migraine", 0.3, 0.4),
		candidate("pneumonia", 0.2, 0.3),
	}, patient)
	require.NoError(t, err)

	excluded := make([]string, len(plan.Excluded))
	for i, e := range plan.Excluded {
		excluded[i] = e.Name
	}
	assert.ElementsMatch(t, []string{"Oseltamivir (Tamiflu)", "Metformin", "Ibuprofen"}, excluded)
	// pneumonia is outside the top three
	assert.NotContains(t, names(plan.Treatments), "Amoxicillin")
	assert.Equal(t, 6, plan.TotalConsidered)
}

func TestSelectAgeRestrictionAndDrugClass(t *testing.T) {
	svc := newService(t)

	// ampicillin-class members are matched by name
	assert.NotEmpty(t, svc.kb.AllergyClasses["penicillin"])

	plan, err := svc.Select([]model.ConditionCandidate{candidate("pneumonia", 0.9, 0.9)}, model.PatientContext{Age: 5, Gender: "female", Allergies: []string{"penicillin"}})
	require.NoError(t, err)
	assert.NotContains(t, names(plan.Treatments), "Amoxicillin")

	reason, excluded := svc.exclusionReason(model.TreatmentOption{Name: "Aspirin"}, model.PatientContext{Age: 12})
	assert.True(t, excluded)
	assert.Contains(t, reason, "age 18")

	_, excluded = svc.exclusionReason(model.TreatmentOption{Name: "Aspirin"}, model.PatientContext{Age: 30})
	assert.False(t, excluded)

	reason, excluded = svc.exclusionReason(model.TreatmentOption{Name: "Ibuprofen"}, model.PatientContext{Age: 30, MedicalHistory: []string{"chronic kidney disease"}})
	assert.True(t, excluded)
	assert.Contains(t, reason, "chronic_kidney_disease")

	reason, excluded = svc.exclusionReason(model.TreatmentOption{Name: "Ampicillin"}, model.PatientContext{Age: 30, Allergies: []string{"penicillin"}})
	assert.True(t, excluded)
	assert.Contains(t, reason, "drug class")
}

func TestUrgencyRules(t *testing.T) {
	svc := newService(t)

	assert.Equal(t, model.UrgencyLow, svc.Urgency(nil))
	assert.Equal(t, model.UrgencyEmergency, svc.Urgency([]model.ConditionCandidate{candidate("appendicitis", 0.1, 0.1)}))
	assert.Equal(t, model.UrgencyLow, svc.Urgency([]model.ConditionCandidate{candidate("common_cold", 0.95, 0.9)}))
	assert.Equal(t, model.UrgencyUrgent, svc.Urgency([]model.ConditionCandidate{candidate("migraine", 0.85, 0.9)}))
	assert.Equal(t, model.UrgencyModerate, svc.Urgency([]model.ConditionCandidate{candidate("migraine", 0.7, 0.9)}))
	assert.Equal(t, model.UrgencyLow, svc.Urgency([]model.ConditionCandidate{candidate("migraine", 0.6, 0.9)}))
}

func TestGuidanceWarnings(t *testing.T) {
	svc := newService(t)

	next, warnings, care := svc.Guidance(model.UrgencyEmergency, []model.ConditionCandidate{
		candidate("appendicitis", 0.5, 0.5),
		candidate("pneumonia", 0.4, 0.4),
		candidate("gastroenteritis", 0.3, 0.3),
	})

	assert.Equal(t, "Call 911 or go to the nearest emergency room immediately", next[0])
	assert.Equal(t, "Seek immediate emergency medical care (call 911)", care)
	assert.Len(t, warnings, 7+2+2)
	assert.Equal(t, "Severe abdominal pain that worsens", warnings[7])
	assert.Equal(t, "Rapid or difficult breathing", warnings[10])
}

func TestSelectEmptyDifferential(t *testing.T) {
	svc := newService(t)

	plan, err := svc.Select(nil, model.PatientContext{Age: 30})
	require.NoError(t, err)
	assert.Equal(t, model.UrgencyLow, plan.Urgency)
	assert.Empty(t, plan.Treatments)
	assert.NotEmpty(t, plan.NextSteps)
	// (0 + 0 + 1 + 1) / 4
	assert.InDelta(t, 0.5, plan.Confidence, 1e-9)
}
