package diagnosis

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/triage-api/internal/knowledge"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/service/guideline"
	"github.com/jwalitptl/triage-api/pkg/embedding"
	"github.com/jwalitptl/triage-api/pkg/errors"
)

type recordingSink struct {
	mu      sync.Mutex
	results []*model.DiagnosisResult
	ok      bool
}

func (s *recordingSink) LogConsultation(_ context.Context, _ *model.SymptomInput, r *model.DiagnosisResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return s.ok
}

type recordingMetrics struct {
	mu    sync.Mutex
	names []string
}

func (m *recordingMetrics) Record(name string, _ float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = append(m.names, name)
}

type panickingSink struct{}

func (panickingSink) LogConsultation(context.Context, *model.SymptomInput, *model.DiagnosisResult) bool {
	panic("nil database handle")
}

type panickingGuidelines struct{}

func (panickingGuidelines) Guideline(string) (string, bool) {
	panic("guideline store unavailable")
}

func newCoordinator(t *testing.T, opts ...Option) *Coordinator {
	t.Helper()
	kb, err := knowledge.Default()
	require.NoError(t, err)
	c := NewCoordinator(NewStages(kb, embedding.NullProvider{}, nil), opts...)
	require.NoError(t, c.Initialize(context.Background()))
	return c
}

func symptom(name string, sev model.Severity) model.Symptom {
	return model.Symptom{Name: name, Severity: sev}
}

func conditionIDs(r *model.DiagnosisResult) []string {
	ids := make([]string, len(r.PossibleConditions))
	for i, c := range r.PossibleConditions {
		ids[i] = c.ID
	}
	return ids
}

func treatmentNames(r *model.DiagnosisResult) []string {
	names := make([]string, len(r.RecommendedTreatments))
	for i, t := range r.RecommendedTreatments {
		names[i] = t.Name
	}
	return names
}

func assertWellFormed(t *testing.T, r *model.DiagnosisResult) {
	t.Helper()
	assert.NotEqual(t, uuid.Nil, r.SessionID)
	assert.False(t, r.Timestamp.IsZero())
	assert.Equal(t, model.Disclaimer, r.Disclaimer)
	assert.NotEmpty(t, r.NextSteps)
	assert.NotEmpty(t, r.WhenToSeekCare)
	for i, c := range r.PossibleConditions {
		assert.GreaterOrEqual(t, c.Probability, 0.0)
		assert.LessOrEqual(t, c.Probability, 1.0)
		assert.GreaterOrEqual(t, c.Confidence, 0.0)
		assert.LessOrEqual(t, c.Confidence, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, r.PossibleConditions[i-1].Probability, c.Probability)
		}
	}
	if r.ConfidenceAnalysis != nil {
		assert.GreaterOrEqual(t, r.ConfidenceAnalysis.OverallConfidence, 0.0)
		assert.LessOrEqual(t, r.ConfidenceAnalysis.OverallConfidence, 1.0)
	}
}

func TestScenarioFluLikeIllness(t *testing.T) {
	c := newCoordinator(t)
	in := &model.SymptomInput{
		Symptoms: []model.Symptom{
			symptom("fever", model.SeveritySevere),
			symptom("body aches", model.SeverityModerate),
			symptom("fatigue", model.SeveritySevere),
			symptom("cough", model.SeverityMild),
		},
		PatientInfo:    model.PatientContext{Age: 30, Gender: "male"},
		ChiefComplaint: "Feeling terrible for two days",
	}

	r, err := c.Diagnose(context.Background(), in)
	require.NoError(t, err)
	assertWellFormed(t, r)

	require.GreaterOrEqual(t, len(r.PossibleConditions), 3)
	assert.Contains(t, conditionIDs(r)[:3], "influenza")
	assert.GreaterOrEqual(t, r.Urgency, model.UrgencyModerate)
	assert.Empty(t, r.StageErrors)
	assert.False(t, r.Degraded)

	require.NotNil(t, r.EmergencyAssessment)
	require.NotNil(t, r.RiskAssessment)
	require.NotNil(t, r.ConfidenceAnalysis)
	require.NotNil(t, r.DrugSafety)
	assert.Equal(t, "Analyzed 4 reported symptoms", r.Explanation.ReasoningSteps[0])
	assert.Len(t, r.Explanation.AlternativeDiagnoses, 2)
	assert.Contains(t, r.Explanation.ConfidenceFactors, "overall_confidence")
}

func TestScenarioHeartAttackEscalates(t *testing.T) {
	c := newCoordinator(t)
	in := &model.SymptomInput{
		Symptoms: []model.Symptom{
			{Name: "chest pain", Severity: model.SeveritySevere, Description: "crushing pain"},
			symptom("shortness of breath", model.SeveritySevere),
		},
		PatientInfo:    model.PatientContext{Age: 55, Gender: "male", MedicalHistory: []string{"hypertension"}},
		ChiefComplaint: "chest pressure since this morning",
	}

	r, err := c.Diagnose(context.Background(), in)
	require.NoError(t, err)
	assertWellFormed(t, r)

	assert.Equal(t, model.UrgencyEmergency, r.Urgency)
	require.NotNil(t, r.EmergencyAssessment)
	require.NotEmpty(t, r.EmergencyAssessment.TriggeredPatterns)
	mi := r.EmergencyAssessment.TriggeredPatterns[0]
	assert.Equal(t, "acute_mi", mi.ID)
	assert.GreaterOrEqual(t, mi.KeywordRatio, 0.6)
	assert.Equal(t, model.ActionEmergency911, r.EmergencyAssessment.Alerts[0].Type)
	assert.Equal(t, "CALL 911 IMMEDIATELY - Possible heart attack", r.NextSteps[0])
	assert.Equal(t, "Seek immediate emergency medical care (call 911)", r.WhenToSeekCare)
}

func TestScenarioPenicillinAllergy(t *testing.T) {
	c := newCoordinator(t)
	in := &model.SymptomInput{
		Symptoms: []model.Symptom{
			symptom("fever", model.SeverityMild),
			symptom("cough", model.SeverityMild),
			symptom("shortness of breath", model.SeverityMild),
			symptom("chills", model.SeverityMild),
		},
		PatientInfo: model.PatientContext{Age: 70, Gender: "female", Allergies: []string{"penicillin"}},
	}

	r, err := c.Diagnose(context.Background(), in)
	require.NoError(t, err)
	assertWellFormed(t, r)

	require.NotEmpty(t, r.PossibleConditions)
	assert.Equal(t, "pneumonia", r.PossibleConditions[0].ID)
	assert.NotContains(t, treatmentNames(r), "Amoxicillin")
	assert.Contains(t, treatmentNames(r), "Oxygen Therapy")
	assert.Equal(t, model.UrgencyUrgent, r.Urgency)
	assert.Contains(t, r.WarningSigns, "Bluish lips or fingernails")
	assert.True(t, r.ConfidenceAnalysis.Treatment.HasFactor("contraindications_found"))
}

func TestScenarioTensionHeadacheStaysLow(t *testing.T) {
	c := newCoordinator(t)
	in := &model.SymptomInput{
		Symptoms: []model.Symptom{
			symptom("headache", model.SeverityModerate),
			symptom("neck tension", model.SeverityMild),
		},
		PatientInfo: model.PatientContext{Age: 35, Gender: "female"},
	}

	r, err := c.Diagnose(context.Background(), in)
	require.NoError(t, err)
	assertWellFormed(t, r)

	assert.Equal(t, model.UrgencyLow, r.Urgency)
	assert.Empty(t, r.EmergencyAssessment.Alerts)
	assert.Empty(t, r.EmergencyAssessment.TriggeredPatterns)
	assert.Equal(t, "tension_headache", r.PossibleConditions[0].ID)
	assert.Equal(t, []string{"No report of muscle tension", "No report of stress", "No report of fatigue"}, r.Explanation.EvidenceAgainst)
}

func TestFinalUrgencyIsMaxOfSignals(t *testing.T) {
	c := newCoordinator(t)
	in := &model.SymptomInput{
		Symptoms: []model.Symptom{
			symptom("abdominal pain", model.SeverityModerate),
			symptom("nausea", model.SeverityMild),
			symptom("loss of appetite", model.SeverityMild),
		},
		PatientInfo: model.PatientContext{Age: 25, Gender: "male"},
	}

	r, err := c.Diagnose(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, r.EmergencyAssessment)
	selector := c.stages.Treatment.Urgency(r.PossibleConditions)
	assert.Equal(t, model.MaxUrgency(r.EmergencyAssessment.Urgency, selector), r.Urgency)
	assert.GreaterOrEqual(t, r.Urgency, r.EmergencyAssessment.Urgency)
	assert.GreaterOrEqual(t, r.Urgency, selector)
}

func TestDiagnoseRejectsInvalidInput(t *testing.T) {
	c := newCoordinator(t)

	_, err := c.Diagnose(context.Background(), &model.SymptomInput{PatientInfo: model.PatientContext{Age: 30, Gender: "male"}})
	assert.True(t, errors.IsCode(err, errors.ErrValidation))

	_, err = c.Diagnose(context.Background(), &model.SymptomInput{
		Symptoms:    []model.Symptom{symptom("fever", model.SeverityMild)},
		PatientInfo: model.PatientContext{Age: 200, Gender: "male"},
	})
	assert.True(t, errors.IsCode(err, errors.ErrValidation))

	// passes struct validation but nothing survives cleaning
	_, err = c.Diagnose(context.Background(), &model.SymptomInput{
		Symptoms:    []model.Symptom{symptom("x", model.SeverityMild)},
		PatientInfo: model.PatientContext{Age: 30, Gender: "male"},
	})
	assert.True(t, errors.IsCode(err, errors.ErrValidation))

	_, err = c.Diagnose(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestNotInitialized(t *testing.T) {
	kb, err := knowledge.Default()
	require.NoError(t, err)
	c := NewCoordinator(NewStages(kb, nil, nil))

	assert.False(t, c.Ready())
	_, err = c.Diagnose(context.Background(), &model.SymptomInput{})
	assert.True(t, errors.IsCode(err, errors.ErrNotInitialized))
	_, err = c.AssessUrgency(context.Background(), &model.SymptomInput{})
	assert.True(t, errors.IsCode(err, errors.ErrNotInitialized))

	err = NewCoordinator(Stages{}).Initialize(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrNotInitialized))
}

func TestStageFailureDegrades(t *testing.T) {
	c := newCoordinator(t)
	c.stages.Risk = nil

	r, err := c.Diagnose(context.Background(), &model.SymptomInput{
		Symptoms:    []model.Symptom{symptom("fever", model.SeverityMild), symptom("cough", model.SeverityMild)},
		PatientInfo: model.PatientContext{Age: 30, Gender: "male"},
	})
	require.NoError(t, err)
	assertWellFormed(t, r)

	assert.True(t, r.Degraded)
	require.Len(t, r.StageErrors, 1)
	assert.Equal(t, model.StageError{Stage: "risk", Code: int(errors.ErrStageFailure), Message: "risk stage failed"}, r.StageErrors[0])
	assert.Nil(t, r.RiskAssessment)
	assert.NotEmpty(t, r.PossibleConditions)
}

func TestMergeFailureReturnsFallback(t *testing.T) {
	c := newCoordinator(t, WithGuidelines(panickingGuidelines{}))

	low, err := c.Diagnose(context.Background(), &model.SymptomInput{
		Symptoms: []model.Symptom{
			symptom("headache", model.SeverityMild),
			symptom("muscle tension", model.SeverityMild),
			symptom("nausea", model.SeverityMild),
		},
		PatientInfo: model.PatientContext{Age: 35, Gender: "female"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.UrgencyModerate, low.Urgency)
	assert.Equal(t, []string{"Contact healthcare provider for evaluation"}, low.NextSteps)
	assert.Equal(t, map[string]float64{"system_error": 0}, low.Explanation.ConfidenceFactors)
	assert.True(t, low.Degraded)
	assert.Equal(t, model.Disclaimer, low.Disclaimer)

	// the fallback never lowers an urgency the stages already established
	high, err := c.Diagnose(context.Background(), &model.SymptomInput{
		Symptoms: []model.Symptom{
			{Name: "chest pain", Severity: model.SeveritySevere, Description: "crushing pain"},
			symptom("shortness of breath", model.SeveritySevere),
		},
		PatientInfo:    model.PatientContext{Age: 55, Gender: "male"},
		ChiefComplaint: "chest pressure",
	})
	require.NoError(t, err)
	assert.Equal(t, model.UrgencyEmergency, high.Urgency)
}

func TestSinksReceiveResult(t *testing.T) {
	sink := &recordingSink{ok: false}
	metrics := &recordingMetrics{}
	c := newCoordinator(t, WithPersistence(sink), WithMetrics(metrics))

	r, err := c.Diagnose(context.Background(), &model.SymptomInput{
		Symptoms:    []model.Symptom{symptom("fever", model.SeverityMild), symptom("cough", model.SeverityMild)},
		PatientInfo: model.PatientContext{Age: 30, Gender: "male"},
	})
	require.NoError(t, err)

	require.Len(t, sink.results, 1)
	assert.Same(t, r, sink.results[0])
	assert.Equal(t, []string{"diagnosis_processing_seconds", "diagnosis_stage_errors", "diagnosis_confidence"}, metrics.names)
}

func TestGuidelinesUsedAreDeduplicated(t *testing.T) {
	kb, err := knowledge.Default()
	require.NoError(t, err)
	c := newCoordinator(t, WithGuidelines(guideline.NewService(kb)))

	r, err := c.Diagnose(context.Background(), &model.SymptomInput{
		Symptoms: []model.Symptom{
			symptom("fever", model.SeverityMild),
			symptom("body aches", model.SeverityMild),
			symptom("fatigue", model.SeverityMild),
			symptom("cough", model.SeverityMild),
		},
		PatientInfo: model.PatientContext{Age: 30, Gender: "male"},
	})
	require.NoError(t, err)

	used := r.Explanation.GuidelinesUsed
	assert.Contains(t, used, "WHO: WHO_INFLUENZA_2019")
	seen := make(map[string]bool)
	for _, g := range used {
		assert.False(t, seen[g], "duplicate guideline %q", g)
		seen[g] = true
	}
	text, ok := guideline.NewService(kb).Guideline("influenza")
	require.True(t, ok)
	assert.Contains(t, used, text)
}

func TestConcurrentRequestsAreIndependent(t *testing.T) {
	c := newCoordinator(t)
	in := &model.SymptomInput{
		Symptoms:    []model.Symptom{symptom("fever", model.SeverityModerate), symptom("cough", model.SeverityMild)},
		PatientInfo: model.PatientContext{Age: 40, Gender: "female", Medications: []string{"warfarin"}},
	}

	const n = 8
	results := make([]*model.DiagnosisResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := c.Diagnose(context.Background(), in)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.NotEqual(t, results[0].SessionID, results[i].SessionID)
		assert.Equal(t, results[0].PossibleConditions, results[i].PossibleConditions)
		assert.Equal(t, results[0].Urgency, results[i].Urgency)
		assert.Equal(t, results[0].ConfidenceAnalysis, results[i].ConfidenceAnalysis)
	}
}

func TestAssessUrgency(t *testing.T) {
	c := newCoordinator(t)

	out, err := c.AssessUrgency(context.Background(), &model.SymptomInput{
		Symptoms:    []model.Symptom{symptom("headache", model.SeverityMild), symptom("muscle tension", model.SeverityMild)},
		PatientInfo: model.PatientContext{Age: 35, Gender: "female"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.UrgencyLow, out.Urgency)
	assert.Equal(t, model.UrgencyLow, out.ConditionUrgency)
	assert.NotEmpty(t, out.NextSteps)

	out, err = c.AssessUrgency(context.Background(), &model.SymptomInput{
		Symptoms: []model.Symptom{
			{Name: "chest pain", Severity: model.SeveritySevere, Description: "crushing pain"},
		},
		PatientInfo:    model.PatientContext{Age: 60, Gender: "male"},
		ChiefComplaint: "chest pressure",
	})
	require.NoError(t, err)
	assert.Equal(t, model.UrgencyEmergency, out.Urgency)
	assert.Equal(t, "CALL 911 IMMEDIATELY - Possible heart attack", out.NextSteps[0])
}

func TestPanickingSinkKeepsResult(t *testing.T) {
	metrics := &recordingMetrics{}
	c := newCoordinator(t, WithPersistence(panickingSink{}), WithMetrics(metrics))

	var r *model.DiagnosisResult
	var err error
	require.NotPanics(t, func() {
		r, err = c.Diagnose(context.Background(), &model.SymptomInput{
			Symptoms:    []model.Symptom{symptom("fever", model.SeverityMild), symptom("cough", model.SeverityMild)},
			PatientInfo: model.PatientContext{Age: 30, Gender: "male"},
		})
	})
	require.NoError(t, err)
	assertWellFormed(t, r)
	assert.False(t, r.Degraded)
	assert.NotEmpty(t, r.PossibleConditions)
	assert.Contains(t, metrics.names, "diagnosis_processing_seconds")
}

func TestAssessUrgencyStageFailureDegrades(t *testing.T) {
	headache := &model.SymptomInput{
		Symptoms:    []model.Symptom{symptom("headache", model.SeverityMild), symptom("muscle tension", model.SeverityMild)},
		PatientInfo: model.PatientContext{Age: 35, Gender: "female"},
	}

	t.Run("emergency", func(t *testing.T) {
		c := newCoordinator(t)
		c.stages.Emergency = nil

		var out *model.UrgencyAssessment
		var err error
		require.NotPanics(t, func() {
			out, err = c.AssessUrgency(context.Background(), headache)
		})
		require.NoError(t, err)
		assert.Equal(t, model.UrgencyModerate, out.Urgency)
		assert.Nil(t, out.Emergency)
		assert.True(t, out.Degraded)
		require.Len(t, out.StageErrors, 1)
		assert.Equal(t, model.StageError{Stage: "emergency", Code: int(errors.ErrStageFailure), Message: "emergency stage failed"}, out.StageErrors[0])
		assert.NotEmpty(t, out.NextSteps)
	})

	t.Run("treatment", func(t *testing.T) {
		c := newCoordinator(t)
		c.stages.Treatment = nil

		var out *model.UrgencyAssessment
		var err error
		require.NotPanics(t, func() {
			out, err = c.AssessUrgency(context.Background(), headache)
		})
		require.NoError(t, err)
		assert.Equal(t, model.UrgencyModerate, out.Urgency)
		assert.True(t, out.Degraded)
		require.Len(t, out.StageErrors, 2)
		for _, se := range out.StageErrors {
			assert.Equal(t, "treatment", se.Stage)
		}
		assert.Equal(t, []string{"Contact healthcare provider for evaluation"}, out.NextSteps)
		assert.Equal(t, "If symptoms persist or worsen", out.CareInstruction)
	})

	t.Run("keeps established emergency", func(t *testing.T) {
		c := newCoordinator(t)
		c.stages.Treatment = nil

		out, err := c.AssessUrgency(context.Background(), &model.SymptomInput{
			Symptoms: []model.Symptom{
				{Name: "chest pain", Severity: model.SeveritySevere, Description: "crushing pain"},
			},
			PatientInfo:    model.PatientContext{Age: 60, Gender: "male"},
			ChiefComplaint: "chest pressure",
		})
		require.NoError(t, err)
		assert.Equal(t, model.UrgencyEmergency, out.Urgency)
		assert.Equal(t, "CALL 911 IMMEDIATELY - Possible heart attack", out.NextSteps[0])
	})
}

func TestExplanationCountsAnalyzedSymptoms(t *testing.T) {
	c := newCoordinator(t)

	r, err := c.Diagnose(context.Background(), &model.SymptomInput{
		Symptoms: []model.Symptom{
			symptom("fever", model.SeverityMild),
			symptom("cough", model.SeverityMild),
			symptom("x", model.SeverityMild),
		},
		PatientInfo: model.PatientContext{Age: 30, Gender: "male"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Analyzed 2 reported symptoms", r.Explanation.ReasoningSteps[0])
}
