package model

type InteractionSeverity string

const (
	InteractionContraindicated InteractionSeverity = "contraindicated"
	InteractionMajor           InteractionSeverity = "major"
	InteractionModerate        InteractionSeverity = "moderate"
	InteractionMinor           InteractionSeverity = "minor"
)

type DrugInteraction struct {
	Drugs      [2]string           `json:"drugs"`
	Severity   InteractionSeverity `json:"severity"`
	Mechanism  string              `json:"mechanism"`
	Effect     string              `json:"clinical_effect"`
	Management string              `json:"management"`
	Reference  string              `json:"reference"`
}

type DrugContraindication struct {
	Medication  string `json:"medication"`
	Condition   string `json:"condition"`
	Reason      string `json:"reason"`
	Severity    string `json:"severity"`
	Alternative string `json:"alternative,omitempty"`
}

type AgeWarning struct {
	Medication  string `json:"medication"`
	MinAge      int    `json:"min_age"`
	Reason      string `json:"reason"`
	Alternative string `json:"alternative,omitempty"`
}

// DrugSafetyReport covers patient medications plus recommended medications.
type DrugSafetyReport struct {
	Medications       []string                    `json:"medications_checked"`
	Interactions      []DrugInteraction           `json:"interactions"`
	Contraindications []DrugContraindication      `json:"contraindications"`
	AgeWarnings       []AgeWarning                `json:"age_warnings"`
	ClassWarnings     []string                    `json:"class_warnings"`
	SeveritySummary   map[InteractionSeverity]int `json:"severity_summary"`
	SafeToPrescribe   bool                        `json:"safe_to_prescribe"`
	RequiresMonitor   bool                        `json:"requires_monitoring"`
	Recommendations   []string                    `json:"recommendations"`
}
