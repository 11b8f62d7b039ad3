package model

// ConditionCandidate is one entry of a differential diagnosis.
type ConditionCandidate struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	ICDCode       string   `json:"icd_code,omitempty"`
	Probability   float64  `json:"probability"`
	Confidence    float64  `json:"confidence"`
	Description   string   `json:"description"`
	SymptomsMatch []string `json:"symptoms_match"`
	RiskFactors   []string `json:"risk_factors"`

	SimilarityScore float64 `json:"-"`
	RuleScore       float64 `json:"-"`
	CombinedScore   float64 `json:"-"`
}

// SimilarityMatch is one semantic-similarity hit.
type SimilarityMatch struct {
	ConditionID string  `json:"condition_id"`
	Score       float64 `json:"similarity_score"`
}

// RuleMatch is one rule-based hit.
type RuleMatch struct {
	ConditionID  string   `json:"condition_id"`
	Score        float64  `json:"match_percentage"`
	ExactMatches []string `json:"exact_matches"`
	Total        int      `json:"total_condition_symptoms"`
}

// ConditionMatch is the matcher stage output.
type ConditionMatch struct {
	Differential      []ConditionCandidate `json:"differential_diagnosis"`
	SimilarityMatches []SimilarityMatch    `json:"similarity_matches"`
	RuleMatches       []RuleMatch          `json:"rule_based_matches"`
	ConditionsMatched int                  `json:"conditions_matched"`
	Confidence        float64              `json:"confidence"`
}

// Top returns the highest ranked candidate.
func (m *ConditionMatch) Top() (ConditionCandidate, bool) {
	if m == nil || len(m.Differential) == 0 {
		return ConditionCandidate{}, false
	}
	return m.Differential[0], true
}
