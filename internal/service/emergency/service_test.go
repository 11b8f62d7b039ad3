package emergency

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

func TestHeartAttackPatternFires(t *testing.T) {
	svc := newService(t)
	symptoms := []model.Symptom{
		{Name: "chest pain", Severity: model.SeveritySevere, Description: "crushing pain radiating down"},
	}

	out := svc.Assess(symptoms, "Sudden chest pressure after climbing stairs")

	assert.Equal(t, model.UrgencyEmergency, out.Urgency)
	assert.True(t, out.RequiresImmediateCare)
	assert.True(t, out.Escalated)
	require.NotEmpty(t, out.TriggeredPatterns)

	mi := out.TriggeredPatterns[0]
	assert.Equal(t, "acute_mi", mi.ID)
	assert.InDelta(t, 0.6, mi.KeywordRatio, 1e-9)
	assert.Equal(t, []string{"chest pain", "crushing pain", "chest pressure"}, mi.MatchedKeywords)
	assert.Equal(t, 1.0, mi.Score)

	// escalation also fires the moderate tier, but only the final tier alerts
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, model.ActionEmergency911, out.Alerts[0].Type)
	assert.Equal(t, "IMMEDIATE", out.Alerts[0].Priority)
	assert.Equal(t, model.UrgencyEmergency, out.Alerts[0].Urgency)
	assert.Contains(t, out.RedFlags, "chest pain")
	assert.Contains(t, out.RedFlags, "crushing pain")
	assert.Contains(t, out.Recommendations, "CALL 911 IMMEDIATELY - Possible heart attack")
}

func TestEmergencyGateBlocksWeakRatio(t *testing.T) {
	svc := newService(t)
	// 1 of 5 acute_mi keywords: ratio 0.2 is below the 0.6 gate even with triggers
	symptoms := []model.Symptom{{Name: "chest pain", Severity: model.SeverityMild, Description: "intense"}}

	out := svc.Assess(symptoms, "")

	for _, tp := range out.TriggeredPatterns {
		assert.NotEqual(t, "acute_mi", tp.ID)
	}
	assert.NotEqual(t, model.UrgencyEmergency, out.Urgency)
	assert.Contains(t, out.RedFlags, "chest pain")
}

func TestDoctorConsultPattern(t *testing.T) {
	svc := newService(t)
	symptoms := []model.Symptom{
		{Name: "persistent cough", Severity: model.SeverityMild},
		{Name: "fever", Severity: model.SeverityMild},
	}

	out := svc.Assess(symptoms, "")

	require.Len(t, out.TriggeredPatterns, 1)
	assert.Equal(t, "respiratory_infection", out.TriggeredPatterns[0].ID)
	assert.Equal(t, model.UrgencyModerate, out.Urgency)
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, model.ActionDoctorConsult, out.Alerts[0].Type)
}

func TestEscalationBySeverity(t *testing.T) {
	svc := newService(t)

	out := svc.Assess([]model.Symptom{{Name: "back ache", Severity: model.SeverityCritical}}, "")
	assert.True(t, out.Escalated)
	assert.Equal(t, model.UrgencyModerate, out.Urgency)
	assert.InDelta(t, 0.2, out.EmergencyScore, 1e-9)

	out = svc.Assess([]model.Symptom{{Name: "back ache", Severity: model.SeverityMild, Description: "unbearable"}}, "")
	assert.True(t, out.Escalated)
}

func TestEscalationByModerateSignals(t *testing.T) {
	svc := newService(t)

	one := svc.Assess([]model.Symptom{{Name: "back ache", Severity: model.SeverityModerate}}, "")
	assert.False(t, one.Escalated)
	assert.Equal(t, model.UrgencyLow, one.Urgency)

	// moderate (1) + worsening (0.5) + persistent (0.5)
	two := svc.Assess([]model.Symptom{{Name: "back ache", Severity: model.SeverityModerate, Description: "persistent and worsening"}}, "")
	assert.True(t, two.Escalated)
	assert.Equal(t, model.UrgencyModerate, two.Urgency)
}

func TestLowUrgencyHasNoAlerts(t *testing.T) {
	svc := newService(t)

	out := svc.Assess([]model.Symptom{
		{Name: "headache", Severity: model.SeverityMild},
		{Name: "muscle tension", Severity: model.SeverityMild},
	}, "tension in my neck")

	assert.Equal(t, model.UrgencyLow, out.Urgency)
	assert.Empty(t, out.Alerts)
	assert.Empty(t, out.TriggeredPatterns)
	assert.False(t, out.Escalated)
	assert.Zero(t, out.EmergencyScore)
}

func TestRedFlagsDoNotRaiseTier(t *testing.T) {
	svc := newService(t)

	out := svc.Assess([]model.Symptom{{Name: "shortness of breath", Severity: model.SeverityMild}}, "")

	assert.Equal(t, []string{"shortness of breath"}, out.RedFlags)
	assert.Equal(t, model.UrgencyLow, out.Urgency)
}
