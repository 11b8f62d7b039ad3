package model

type UncertaintyType string

const (
	UncertaintySymptom    UncertaintyType = "symptom"
	UncertaintyDiagnostic UncertaintyType = "diagnostic"
	UncertaintyTreatment  UncertaintyType = "treatment"
)

type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Level float64 `json:"confidence_level,omitempty"`
}

// UncertaintyEstimate is one domain's uncertainty, every value in [0,1].
type UncertaintyEstimate struct {
	Type            UncertaintyType    `json:"type"`
	Value           float64            `json:"value"`
	Interval        Interval           `json:"confidence_interval"`
	Components      map[string]float64 `json:"components"`
	Factors         []string           `json:"contributing_factors"`
	Recommendations []string           `json:"recommendations"`
	Explanation     string             `json:"explanation"`
}

// HasFactor reports whether the named factor contributed.
func (e UncertaintyEstimate) HasFactor(name string) bool {
	for _, f := range e.Factors {
		if f == name {
			return true
		}
	}
	return false
}

type UncertaintyRecommendation struct {
	Type     string   `json:"type"`
	Priority string   `json:"priority"`
	Action   string   `json:"action"`
	Details  []string `json:"details"`
}

type ConditionInterval struct {
	ConditionID string   `json:"condition_id"`
	Name        string   `json:"name"`
	Probability float64  `json:"probability"`
	Interval    Interval `json:"confidence_interval"`
	Margin      float64  `json:"margin_of_error"`
}

type CalibrationAssessment struct {
	Status            string  `json:"calibration_status"`
	AverageConfidence float64 `json:"average_model_confidence"`
	OverallConfidence float64 `json:"overall_confidence"`
	Score             float64 `json:"calibration_score"`
}

type DecisionSupport struct {
	Recommendation string   `json:"recommendation"`
	RiskLevel      string   `json:"risk_level"`
	Actions        []string `json:"suggested_actions"`
}

type ReliabilityMetrics struct {
	DataCompleteness      float64 `json:"data_completeness"`
	InternalConsistency   float64 `json:"internal_consistency"`
	PredictionConsistency float64 `json:"prediction_consistency"`
	Overall               float64 `json:"overall_reliability"`
}

// ConfidenceAnalysis is the uncertainty stage output.
type ConfidenceAnalysis struct {
	Symptom             UncertaintyEstimate         `json:"symptom_uncertainty"`
	Diagnostic          UncertaintyEstimate         `json:"diagnostic_uncertainty"`
	Treatment           UncertaintyEstimate         `json:"treatment_uncertainty"`
	OverallConfidence   float64                     `json:"overall_confidence"`
	Level               string                      `json:"confidence_level"`
	Breakdown           map[string]float64          `json:"confidence_breakdown"`
	Reliability         float64                     `json:"reliability_score"`
	Calibration         float64                     `json:"calibration_score"`
	Recommendations     []UncertaintyRecommendation `json:"recommendations"`
	ConditionIntervals  []ConditionInterval         `json:"condition_intervals"`
	CalibrationReport   CalibrationAssessment       `json:"calibration_assessment"`
	DecisionSupport     DecisionSupport             `json:"decision_support"`
	ReliabilityMetrics  ReliabilityMetrics          `json:"reliability_metrics"`
	ExplanationSummary  string                      `json:"explanation"`
}
