package diagnosis

import (
	"fmt"
	"strings"

	"github.com/jwalitptl/triage-api/internal/model"
)

const maxEvidenceAgainst = 3

func (c *Coordinator) explain(state *pipelineState, urgency model.UrgencyLevel) model.Explanation {
	conditions := state.conditions()
	treatments := state.treatments()

	patterns := 0
	if state.emergency != nil {
		patterns = len(state.emergency.TriggeredPatterns)
	}

	exp := model.Explanation{
		ReasoningSteps: []string{
			fmt.Sprintf("Analyzed %d reported symptoms", len(state.symptoms)),
			fmt.Sprintf("Classified symptoms into %d body systems", state.classification.SystemCount()),
			fmt.Sprintf("Identified %d possible conditions", len(conditions)),
			fmt.Sprintf("Screened against emergency patterns, %d triggered", patterns),
			fmt.Sprintf("Generated %d treatment recommendations", len(treatments)),
			fmt.Sprintf("Assessed urgency level as %s", urgency),
		},
		EvidenceSupporting:   []string{},
		EvidenceAgainst:      []string{},
		AlternativeDiagnoses: []string{},
		ConfidenceFactors:    c.confidenceFactors(state),
		GuidelinesUsed:       c.guidelinesUsed(treatments),
	}

	if len(conditions) > 0 {
		top := conditions[0]
		exp.EvidenceSupporting = append(exp.EvidenceSupporting,
			fmt.Sprintf("Primary condition probability: %.2f", top.Probability),
			fmt.Sprintf("Matching symptoms: %s", strings.Join(top.SymptomsMatch, ", ")),
			fmt.Sprintf("Patient age group compatibility: %d years", state.input.PatientInfo.Age),
		)
		exp.EvidenceAgainst = c.evidenceAgainst(top, state.symptoms)
	}
	for i := 1; i < len(conditions) && i < 3; i++ {
		exp.AlternativeDiagnoses = append(exp.AlternativeDiagnoses,
			fmt.Sprintf("%s (probability: %.2f)", conditions[i].Name, conditions[i].Probability))
	}
	return exp
}

// evidenceAgainst lists catalogued symptoms of the top condition the patient
// did not report.
func (c *Coordinator) evidenceAgainst(top model.ConditionCandidate, reported []model.Symptom) []string {
	out := []string{}
	cond, ok := c.stages.Knowledge.Condition(top.ID)
	if !ok {
		return out
	}
	for _, catalogued := range cond.Symptoms {
		if len(out) == maxEvidenceAgainst {
			break
		}
		if !reportedSymptom(catalogued, reported) {
			out = append(out, fmt.Sprintf("No report of %s", catalogued))
		}
	}
	return out
}

func reportedSymptom(catalogued string, reported []model.Symptom) bool {
	for _, r := range reported {
		name := strings.ToLower(r.Name)
		if strings.Contains(name, catalogued) || strings.Contains(catalogued, name) {
			return true
		}
	}
	return false
}

func (c *Coordinator) confidenceFactors(state *pipelineState) map[string]float64 {
	var symptom, matching, treatment float64
	if state.classification != nil {
		symptom = state.classification.Confidence
	}
	if state.match != nil {
		matching = state.match.Confidence
	}
	if state.plan != nil {
		treatment = state.plan.Confidence
	}
	factors := map[string]float64{
		"symptom_classification": symptom,
		"condition_matching":     matching,
		"treatment_retrieval":    treatment,
		"overall_confidence":     (symptom + matching + treatment) / 3,
	}
	if state.confidence != nil {
		factors["uncertainty_adjusted_confidence"] = state.confidence.OverallConfidence
	}
	return factors
}

// guidelinesUsed collects treatment citations and the provider's guideline
// text per condition, deduplicated in first-seen order.
func (c *Coordinator) guidelinesUsed(treatments []model.TreatmentOption) []string {
	out := []string{}
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	for _, t := range treatments {
		if t.WHOGuideline != "" {
			add("WHO: " + t.WHOGuideline)
		}
		if t.CDCGuideline != "" {
			add("CDC: " + t.CDCGuideline)
		}
	}
	resolved := make(map[string]bool)
	for _, t := range treatments {
		if t.ConditionID == "" || resolved[t.ConditionID] {
			continue
		}
		resolved[t.ConditionID] = true
		if text, ok := c.guidelines.Guideline(t.ConditionID); ok {
			add(text)
		}
	}
	return out
}
