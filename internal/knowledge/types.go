package knowledge

import "github.com/jwalitptl/triage-api/internal/model"

// Condition is one catalogued condition. ID is the stable key used by every table.
type Condition struct {
	ID             string             `yaml:"id" validate:"required"`
	Name           string             `yaml:"name"`
	ICDCode        string             `yaml:"icd_code" validate:"required"`
	Description    string             `yaml:"description" validate:"required"`
	Severity       string             `yaml:"severity" validate:"required"`
	Symptoms       []string           `yaml:"symptoms" validate:"required,min=1,dive,required"`
	SymptomWeights map[string]float64 `yaml:"symptom_weights" validate:"dive,gt=0,lte=1"`
	AgeGroups      []string           `yaml:"age_groups" validate:"required,min=1,dive,required"`
	Seasonal       bool               `yaml:"seasonal"`
	RiskFactors    []string           `yaml:"risk_factors"`
	RedFlags       []string           `yaml:"red_flags"`
	Differentials  []string           `yaml:"differentials"`
	WarningSigns   []string           `yaml:"warning_signs"`
}

// AllAges reports whether the condition applies without an age adjustment.
func (c Condition) AllAges() bool {
	for _, g := range c.AgeGroups {
		if g == "all" {
			return true
		}
	}
	return false
}

// EmbeddingText is the text embedded for similarity matching.
func (c Condition) EmbeddingText() string {
	text := c.Description + " symptoms:"
	for _, s := range c.Symptoms {
		text += " " + s
	}
	return text
}

// AgeGroup is a demographic bracket referenced by conditions.
type AgeGroup struct {
	Name    string  `yaml:"name" validate:"required"`
	MinAge  int     `yaml:"min_age" validate:"gte=0"`
	MaxAge  int     `yaml:"max_age" validate:"gtefield=MinAge"`
	Gender  string  `yaml:"gender"`
	History string  `yaml:"history"`
	Factor  float64 `yaml:"factor" validate:"gt=0"`
}

type GenderFactor struct {
	ConditionID string  `yaml:"condition" validate:"required"`
	Gender      string  `yaml:"gender" validate:"required"`
	Factor      float64 `yaml:"factor" validate:"gt=0"`
}

type conditionFile struct {
	AgeGroups     []AgeGroup     `yaml:"age_groups" validate:"dive"`
	GenderFactors []GenderFactor `yaml:"gender_factors" validate:"dive"`
	Conditions    []Condition    `yaml:"conditions" validate:"required,min=1,dive"`
}

type treatmentFile struct {
	Treatments map[string][]model.TreatmentOption `yaml:"treatments" validate:"dive,min=1,dive"`
}

// EmergencyPattern is a keyword pattern that can force urgency escalation.
type EmergencyPattern struct {
	ID               string            `yaml:"id" validate:"required"`
	Name             string            `yaml:"name" validate:"required"`
	Keywords         []string          `yaml:"keywords" validate:"required,min=1,dive,required"`
	Associated       []string          `yaml:"associated"`
	SeverityTriggers []string          `yaml:"severity_triggers"`
	Action           model.AlertAction `yaml:"action" validate:"required,oneof=emergency_911 urgent_care doctor_consult monitor"`
	Message          string            `yaml:"message" validate:"required"`
	Threshold        float64           `yaml:"threshold" validate:"gt=0,lte=1"`
}

type Escalation struct {
	SevereKeywords   []string `yaml:"severe_keywords" validate:"required,min=1"`
	ModerateKeywords []string `yaml:"moderate_keywords" validate:"required,min=1"`
	ModerateLimit    float64  `yaml:"moderate_limit" validate:"gt=0"`
}

// Guidance is the care template for one urgency tier.
type Guidance struct {
	NextSteps       []string `yaml:"next_steps" validate:"required,min=1"`
	CareInstruction string   `yaml:"care_instruction" validate:"required"`
	AlertMessage    string   `yaml:"alert_message"`
	AlertPriority   string   `yaml:"alert_priority"`
}

type triageFile struct {
	UrgencyRules    map[string]string   `yaml:"urgency_rules" validate:"required"`
	Patterns        []EmergencyPattern  `yaml:"emergency_patterns" validate:"required,min=1,dive"`
	RedFlags        []string            `yaml:"red_flags" validate:"required,min=1"`
	Escalation      Escalation          `yaml:"escalation"`
	Guidance        map[string]Guidance `yaml:"guidance" validate:"required,dive"`
	GenericWarnings []string            `yaml:"generic_warnings" validate:"required,min=1"`
}

// KeywordGroup is a named keyword list. Body systems and clusters keep file order.
type KeywordGroup struct {
	Name     string   `yaml:"name" validate:"required"`
	Keywords []string `yaml:"keywords" validate:"required,min=1,dive,required"`
}

type UncertaintyTables struct {
	VagueSymptoms      []string `yaml:"vague_symptoms" validate:"required,min=1"`
	RareMarkers        []string `yaml:"rare_markers"`
	HighRiskTreatments []string `yaml:"high_risk_treatments"`
}

type systemsFile struct {
	BodySystems []KeywordGroup    `yaml:"body_systems" validate:"required,min=1,dive"`
	Clusters    []KeywordGroup    `yaml:"clusters" validate:"required,min=1,dive"`
	Uncertainty UncertaintyTables `yaml:"uncertainty"`
}

type AgeBand struct {
	Min    int     `yaml:"min" validate:"gte=0"`
	Max    int     `yaml:"max"`
	Weight float64 `yaml:"weight" validate:"gt=0"`
}

// Contains treats a zero Max as open-ended.
func (b AgeBand) Contains(age int) bool {
	if age < b.Min {
		return false
	}
	return b.Max == 0 || age <= b.Max
}

// RiskDomain is the baseline matrix for one health domain.
type RiskDomain struct {
	Name               string             `yaml:"name" validate:"required"`
	AgeBands           []AgeBand          `yaml:"age_bands" validate:"required,min=1,dive"`
	GenderWeights      map[string]float64 `yaml:"gender_weights" validate:"required"`
	HistoryMultipliers map[string]float64 `yaml:"history_multipliers" validate:"required"`
	ProtectiveFactors  map[string]float64 `yaml:"protective_factors"`
	PreventionActions  []string           `yaml:"prevention_actions"`
}

type ComorbidityPair struct {
	A      string  `yaml:"a" validate:"required"`
	B      string  `yaml:"b" validate:"required"`
	Weight float64 `yaml:"weight" validate:"gt=0"`
}

type WeightedKeyword struct {
	Keyword string  `yaml:"keyword" validate:"required"`
	Weight  float64 `yaml:"weight" validate:"gt=0"`
}

type PredictiveModel struct {
	Name      string             `yaml:"name" validate:"required"`
	Weights   map[string]float64 `yaml:"weights" validate:"required"`
	Threshold float64            `yaml:"threshold" validate:"gt=0,lte=1"`
}

type riskFile struct {
	Domains             []RiskDomain                  `yaml:"domains" validate:"required,min=1,dive"`
	Comorbidities       []ComorbidityPair             `yaml:"comorbidities" validate:"dive"`
	Complications       map[string]map[string]float64 `yaml:"complications"`
	SeverityMultipliers map[string]float64            `yaml:"severity_multipliers"`
	ComplexityWeights   []WeightedKeyword             `yaml:"complexity_weights" validate:"dive"`
	EmergencySymptoms   []string                      `yaml:"emergency_symptoms"`
	PredictiveModels    []PredictiveModel             `yaml:"predictive_models" validate:"dive"`
	DefaultPrevention   []string                      `yaml:"default_prevention" validate:"required,min=1"`
}

type Interaction struct {
	DrugA      string                    `yaml:"drug_a" validate:"required"`
	DrugB      string                    `yaml:"drug_b" validate:"required"`
	Severity   model.InteractionSeverity `yaml:"severity" validate:"required,oneof=contraindicated major moderate minor"`
	Mechanism  string                    `yaml:"mechanism" validate:"required"`
	Effect     string                    `yaml:"effect" validate:"required"`
	Management string                    `yaml:"management" validate:"required"`
	Reference  string                    `yaml:"reference"`
}

type Contraindication struct {
	Medication  string `yaml:"medication" validate:"required"`
	Condition   string `yaml:"condition" validate:"required"`
	Reason      string `yaml:"reason" validate:"required"`
	Severity    string `yaml:"severity" validate:"required,oneof=absolute relative"`
	Alternative string `yaml:"alternative"`
}

type AgeRestriction struct {
	Drug           string `yaml:"drug" validate:"required"`
	MinAge         int    `yaml:"min_age" validate:"gte=0"`
	ElderlyCaution bool   `yaml:"elderly_caution"`
	Reason         string `yaml:"reason" validate:"required"`
	Alternative    string `yaml:"alternative"`
}

type drugFile struct {
	Interactions      []Interaction       `yaml:"interactions" validate:"dive"`
	Contraindications []Contraindication  `yaml:"contraindications" validate:"dive"`
	Categories        map[string]string   `yaml:"categories"`
	AgeRestrictions   []AgeRestriction    `yaml:"age_restrictions" validate:"dive"`
	AllergyClasses    map[string][]string `yaml:"allergy_classes"`
}

// Guideline is a published WHO or CDC recommendation set.
type Guideline struct {
	Code            string   `yaml:"code" json:"code" validate:"required"`
	Organization    string   `yaml:"organization" json:"organization" validate:"required,oneof=who cdc"`
	ConditionID     string   `yaml:"condition" json:"condition_id" validate:"required"`
	Title           string   `yaml:"title" json:"title" validate:"required"`
	Version         string   `yaml:"version" json:"version"`
	LastUpdated     string   `yaml:"last_updated" json:"last_updated"`
	URL             string   `yaml:"url" json:"url" validate:"required,url"`
	EvidenceLevel   string   `yaml:"evidence_level" json:"evidence_level,omitempty"`
	Recommendations []string `yaml:"recommendations" json:"recommendations" validate:"required,min=1"`
}

type guidelineFile struct {
	Guidelines []Guideline `yaml:"guidelines" validate:"required,min=1,dive"`
}
