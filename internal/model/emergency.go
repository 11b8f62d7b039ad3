package model

// AlertAction is the action tier attached to an emergency pattern.
type AlertAction string

const (
	ActionEmergency911  AlertAction = "emergency_911"
	ActionUrgentCare    AlertAction = "urgent_care"
	ActionDoctorConsult AlertAction = "doctor_consult"
	ActionMonitor       AlertAction = "monitor"
)

// Urgency maps an action tier onto the urgency scale.
func (a AlertAction) Urgency() UrgencyLevel {
	switch a {
	case ActionEmergency911:
		return UrgencyEmergency
	case ActionUrgentCare:
		return UrgencyUrgent
	case ActionDoctorConsult:
		return UrgencyModerate
	default:
		return UrgencyLow
	}
}

type TriggeredPattern struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Score             float64     `json:"score"`
	KeywordRatio      float64     `json:"keyword_ratio"`
	MatchedKeywords   []string    `json:"matched_keywords"`
	SeverityTriggers  int         `json:"severity_triggers"`
	AssociatedMatches int         `json:"associated_matches"`
	Action            AlertAction `json:"action"`
	Message           string      `json:"message"`
}

type SafetyAlert struct {
	Type     AlertAction  `json:"type"`
	Message  string       `json:"message"`
	Priority string       `json:"priority"`
	Urgency  UrgencyLevel `json:"urgency_level"`
}

// EmergencyAssessment is the detector stage output.
type EmergencyAssessment struct {
	Urgency               UrgencyLevel       `json:"urgency_level"`
	EmergencyScore        float64            `json:"emergency_score"`
	TriggeredPatterns     []TriggeredPattern `json:"triggered_patterns"`
	Alerts                []SafetyAlert      `json:"alerts"`
	RedFlags              []string           `json:"red_flags"`
	Escalated             bool               `json:"severity_escalation"`
	RequiresImmediateCare bool               `json:"requires_immediate_care"`
	Recommendations       []string           `json:"recommendations"`
}

// UrgencyAssessment is returned by the urgency-only path.
type UrgencyAssessment struct {
	Urgency          UrgencyLevel         `json:"urgency_level"`
	ConditionUrgency UrgencyLevel         `json:"condition_urgency"`
	Emergency        *EmergencyAssessment `json:"emergency_assessment"`
	CareInstruction  string               `json:"when_to_seek_care"`
	NextSteps        []string             `json:"next_steps"`
	StageErrors      []StageError         `json:"stage_errors,omitempty"`
	Degraded         bool                 `json:"degraded,omitempty"`
}
