package model

type RiskLevel string

const (
	RiskVeryLow  RiskLevel = "very_low"
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// RiskLevelFor maps a score onto the fixed bands.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score <= 0.2:
		return RiskVeryLow
	case score <= 0.4:
		return RiskLow
	case score <= 0.6:
		return RiskModerate
	case score <= 0.8:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

// RiskProfile is the baseline risk for one health domain.
type RiskProfile struct {
	Domain           string    `json:"domain"`
	BaselineScore    float64   `json:"baseline_score"`
	AgeComponent     float64   `json:"age_component"`
	GenderComponent  float64   `json:"gender_component"`
	HistoryComponent float64   `json:"history_component"`
	Level            RiskLevel `json:"risk_level"`
}

type ConditionRisk struct {
	ConditionID        string             `json:"condition_id"`
	Name               string             `json:"name"`
	BaseRisk           float64            `json:"base_risk"`
	AgeMultiplier      float64            `json:"age_multiplier"`
	SeverityMultiplier float64            `json:"severity_multiplier"`
	ImmediateRisk      float64            `json:"immediate_risk"`
	Complications      map[string]float64 `json:"complication_risks"`
	RequiresMonitoring bool               `json:"requires_monitoring"`
}

type ComorbidityInteraction struct {
	Conditions   [2]string `json:"conditions"`
	Multiplier   float64   `json:"risk_multiplier"`
	Significance string    `json:"clinical_significance"`
}

type ComorbidityAssessment struct {
	Multiplier      float64                  `json:"comorbidity_multiplier"`
	Interactions    []ComorbidityInteraction `json:"interactions"`
	ComplexityScore float64                  `json:"complexity_score"`
}

type SymptomModifiers struct {
	SeverityModifier float64  `json:"severity_modifier"`
	CountModifier    float64  `json:"symptom_count_modifier"`
	EmergencyFlags   []string `json:"emergency_flags"`
	AverageSeverity  float64  `json:"average_severity"`
}

type RiskPrediction struct {
	Outcome     string  `json:"outcome"`
	Probability float64 `json:"probability"`
	Risk        string  `json:"risk_level"`
	Confidence  float64 `json:"confidence"`
	Timeframe   string  `json:"timeframe"`
}

type RiskUncertainty struct {
	Epistemic   float64  `json:"epistemic_uncertainty"`
	Aleatoric   float64  `json:"aleatoric_uncertainty"`
	Total       float64  `json:"total_uncertainty"`
	Interval    Interval `json:"confidence_interval"`
	Reliability string   `json:"reliability"`
}

type RiskRecommendation struct {
	Category        string   `json:"category"`
	Priority        string   `json:"priority"`
	Recommendation  string   `json:"recommendation"`
	SpecificActions []string `json:"specific_actions"`
	Timeframe       string   `json:"timeframe"`
}

type MonitoringSchedule struct {
	Frequency string   `json:"frequency"`
	Intensity string   `json:"intensity"`
	NextCheck string   `json:"next_assessment"`
	Focus     []string `json:"focus_areas"`
}

type Intervention struct {
	Target   string  `json:"target"`
	Source   string  `json:"source"`
	Score    float64 `json:"risk_score"`
	Urgency  string  `json:"urgency"`
	Priority int     `json:"priority"`
}

// RiskAssessment is the risk stage output.
type RiskAssessment struct {
	PatientRef       string                `json:"patient_ref,omitempty"`
	Baseline         []RiskProfile         `json:"baseline_risks"`
	ConditionRisks   []ConditionRisk       `json:"condition_risks"`
	Comorbidity      ComorbidityAssessment `json:"comorbidity_interactions"`
	SymptomModifiers SymptomModifiers      `json:"symptom_modifiers"`
	Predictions      []RiskPrediction      `json:"predictive_scores"`
	Uncertainty      RiskUncertainty       `json:"uncertainty"`
	OverallScore     float64               `json:"overall_risk_score"`
	Level            RiskLevel             `json:"risk_level"`
	Recommendations  []RiskRecommendation  `json:"recommendations"`
	Monitoring       MonitoringSchedule    `json:"monitoring_schedule"`
	Interventions    []Intervention        `json:"intervention_priorities"`
}
