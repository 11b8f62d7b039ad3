package model

type DurationPatterns struct {
	HasDurationInfo bool `json:"has_duration_info"`
	DurationCount   int  `json:"duration_count"`
	Acute           int  `json:"acute_symptoms"`
	Chronic         int  `json:"chronic_symptoms"`
}

type MedicalFeatures struct {
	PatientAge           int              `json:"patient_age"`
	Gender               string           `json:"patient_gender"`
	HasMedicalHistory    bool             `json:"has_medical_history"`
	TakesMedications     bool             `json:"takes_medications"`
	HasAllergies         bool             `json:"has_allergies"`
	ChiefComplaint       string           `json:"chief_complaint"`
	SymptomCount         int              `json:"symptom_count"`
	SeverityDistribution map[Severity]int `json:"severity_distribution"`
	DurationPatterns     DurationPatterns `json:"duration_patterns"`
}

type SymptomCluster struct {
	Name    string   `json:"name"`
	Matches int      `json:"matches"`
	Total   int      `json:"total_keywords"`
	Members []string `json:"members"`
}

type SeverityScores struct {
	Overall float64 `json:"overall_severity"`
	Max     int     `json:"max_severity"`
	Average float64 `json:"average_severity"`
	Count   int     `json:"severity_count"`
}

// SymptomClassification is the normalizer stage output.
type SymptomClassification struct {
	CleanedSymptoms      []Symptom           `json:"cleaned_symptoms"`
	SystemClassification map[string][]string `json:"system_classification"`
	PrimarySystems       []string            `json:"primary_systems"`
	MedicalFeatures      MedicalFeatures     `json:"medical_features"`
	Clusters             []SymptomCluster    `json:"symptom_clusters"`
	Severity             SeverityScores      `json:"severity_scores"`
	Confidence           float64             `json:"confidence"`
}

// SystemCount is the number of body systems with at least one symptom.
func (c *SymptomClassification) SystemCount() int {
	if c == nil {
		return 0
	}
	return len(c.SystemClassification)
}
