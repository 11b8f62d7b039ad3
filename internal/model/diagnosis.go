package model

import (
	"time"

	"github.com/google/uuid"
)

const Disclaimer = "This AI assessment is for informational purposes only and should not replace professional medical advice."

// Explanation is the reasoning trail attached to every result.
type Explanation struct {
	ReasoningSteps       []string           `json:"reasoning_steps"`
	EvidenceSupporting   []string           `json:"evidence_supporting"`
	EvidenceAgainst      []string           `json:"evidence_against"`
	AlternativeDiagnoses []string           `json:"alternative_diagnoses"`
	ConfidenceFactors    map[string]float64 `json:"confidence_factors"`
	GuidelinesUsed       []string           `json:"guidelines_used"`
}

// StageError is the client-safe record of a failed stage.
type StageError struct {
	Stage   string `json:"stage"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type DiagnosisResult struct {
	SessionID             uuid.UUID              `json:"session_id"`
	Timestamp             time.Time              `json:"timestamp"`
	Urgency               UrgencyLevel           `json:"urgency_level"`
	SymptomClassification *SymptomClassification `json:"symptom_classification"`
	PossibleConditions    []ConditionCandidate   `json:"possible_conditions"`
	RecommendedTreatments []TreatmentOption      `json:"recommended_treatments"`
	NextSteps             []string               `json:"next_steps"`
	WarningSigns          []string               `json:"warning_signs"`
	WhenToSeekCare        string                 `json:"when_to_seek_care"`
	Explanation           Explanation            `json:"explanation"`
	Disclaimer            string                 `json:"disclaimer"`

	EmergencyAssessment *EmergencyAssessment `json:"emergency_assessment,omitempty"`
	RiskAssessment      *RiskAssessment      `json:"risk_assessment,omitempty"`
	ConfidenceAnalysis  *ConfidenceAnalysis  `json:"confidence_analysis,omitempty"`
	DrugSafety          *DrugSafetyReport    `json:"drug_safety,omitempty"`
	StageErrors         []StageError         `json:"stage_errors,omitempty"`
	ProcessingTime      time.Duration        `json:"-"`
	Degraded            bool                 `json:"degraded,omitempty"`
}

// TopCondition returns the highest ranked condition, if any.
func (r *DiagnosisResult) TopCondition() (ConditionCandidate, bool) {
	if r == nil || len(r.PossibleConditions) == 0 {
		return ConditionCandidate{}, false
	}
	return r.PossibleConditions[0], true
}
