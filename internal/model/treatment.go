package model

type TreatmentType string

const (
	TreatmentLifestyle  TreatmentType = "lifestyle"
	TreatmentMedication TreatmentType = "medication"
	TreatmentTherapy    TreatmentType = "therapy"
	TreatmentTreatment  TreatmentType = "treatment"
	TreatmentProcedure  TreatmentType = "procedure"
)

// Priority ranks treatment types for recommendation order; lower comes first.
func (t TreatmentType) Priority() int {
	switch t {
	case TreatmentLifestyle:
		return 1
	case TreatmentMedication, TreatmentTherapy:
		return 2
	case TreatmentTreatment:
		return 3
	case TreatmentProcedure:
		return 4
	default:
		return 5
	}
}

type TreatmentOption struct {
	Name              string        `json:"name" yaml:"name" validate:"required"`
	Type              TreatmentType `json:"type" yaml:"type" validate:"required,oneof=lifestyle medication therapy treatment procedure"`
	Description       string        `json:"description" yaml:"description" validate:"required"`
	Dosage            string        `json:"dosage,omitempty" yaml:"dosage"`
	Duration          string        `json:"duration,omitempty" yaml:"duration"`
	SideEffects       []string      `json:"side_effects" yaml:"side_effects"`
	Contraindications []string      `json:"contraindications" yaml:"contraindications"`
	WHOGuideline      string        `json:"who_guideline,omitempty" yaml:"who_guideline"`
	CDCGuideline      string        `json:"cdc_guideline,omitempty" yaml:"cdc_guideline"`
	ConditionID       string        `json:"condition_id,omitempty" yaml:"-"`
}

// GuidelineCount is the number of WHO/CDC citations.
func (t TreatmentOption) GuidelineCount() int {
	n := 0
	if t.WHOGuideline != "" {
		n++
	}
	if t.CDCGuideline != "" {
		n++
	}
	return n
}

// EvidenceConfidence maps guideline backing to a confidence in the recommendation.
func (t TreatmentOption) EvidenceConfidence() float64 {
	switch t.GuidelineCount() {
	case 2:
		return 0.9
	case 1:
		return 0.7
	default:
		return 0.5
	}
}

// ExcludedTreatment records a treatment removed by the safety filter.
type ExcludedTreatment struct {
	Name        string `json:"name"`
	ConditionID string `json:"condition_id"`
	Reason      string `json:"reason"`
}

// TreatmentPlan is the selector stage output.
type TreatmentPlan struct {
	Urgency                UrgencyLevel        `json:"urgency_level"`
	Treatments             []TreatmentOption   `json:"recommended_treatments"`
	Excluded               []ExcludedTreatment `json:"excluded_treatments,omitempty"`
	NextSteps              []string            `json:"next_steps"`
	WarningSigns           []string            `json:"warning_signs"`
	CareInstruction        string              `json:"when_to_seek_care"`
	TotalConsidered        int                 `json:"total_treatments_considered"`
	ContraindicationsFound int                 `json:"contraindications_found"`
	Confidence             float64             `json:"confidence"`
}
