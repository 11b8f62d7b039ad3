package treatment

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jwalitptl/triage-api/internal/knowledge"
	"github.com/jwalitptl/triage-api/internal/model"
)

const (
	conditionsConsidered = 3
	warningConditions    = 2

	urgentProbability   = 0.8
	moderateProbability = 0.6
)

// Service selects safe treatments for the leading conditions.
type Service struct {
	kb *knowledge.Base
}

func NewService(kb *knowledge.Base) *Service {
	return &Service{kb: kb}
}

// Select builds a treatment plan for the differential. The plan's guidance is
// derived from the selector's own urgency; callers that know a higher final
// urgency should call Guidance again.
func (s *Service) Select(conditions []model.ConditionCandidate, patient model.PatientContext) (*model.TreatmentPlan, error) {
	plan := &model.TreatmentPlan{
		Urgency:    s.Urgency(conditions),
		Treatments: []model.TreatmentOption{},
		Excluded:   []model.ExcludedTreatment{},
	}

	var candidates []model.TreatmentOption
	for i, c := range conditions {
		if i == conditionsConsidered {
			break
		}
		candidates = append(candidates, s.kb.Treatments(c.ID)...)
	}
	plan.TotalConsidered = len(candidates)

	for _, t := range candidates {
		if reason, excluded := s.exclusionReason(t, patient); excluded {
			plan.Excluded = append(plan.Excluded, model.ExcludedTreatment{
				Name:        t.Name,
				ConditionID: t.ConditionID,
				Reason:      reason,
			})
			continue
		}
		plan.Treatments = append(plan.Treatments, t)
	}
	plan.ContraindicationsFound = len(plan.Excluded)

	Rank(plan.Treatments)

	plan.NextSteps, plan.WarningSigns, plan.CareInstruction = s.Guidance(plan.Urgency, conditions)
	plan.Confidence = confidence(conditions, len(plan.Treatments), len(plan.Excluded), plan.TotalConsidered)
	return plan, nil
}

// Urgency is the catalogue rule for the top condition, or a probability band
// when the condition has no rule.
func (s *Service) Urgency(conditions []model.ConditionCandidate) model.UrgencyLevel {
	if len(conditions) == 0 {
		return model.UrgencyLow
	}
	top := conditions[0]
	if level, ok := s.kb.UrgencyRules[top.ID]; ok {
		return level
	}
	switch {
	case top.Probability > urgentProbability:
		return model.UrgencyUrgent
	case top.Probability > moderateProbability:
		return model.UrgencyModerate
	default:
		return model.UrgencyLow
	}
}

// Guidance returns the next steps, warning signs and care instruction for a tier.
func (s *Service) Guidance(level model.UrgencyLevel, conditions []model.ConditionCandidate) ([]string, []string, string) {
	g := s.kb.Guidance[level]
	next := append([]string(nil), g.NextSteps...)

	var warnings []string
	for _, w := range s.kb.GenericWarnings {
		warnings = appendUnique(warnings, w)
	}
	for i, c := range conditions {
		if i == warningConditions {
			break
		}
		cond, ok := s.kb.Condition(c.ID)
		if !ok {
			continue
		}
		for _, w := range cond.WarningSigns {
			warnings = appendUnique(warnings, w)
		}
	}
	return next, warnings, g.CareInstruction
}

// Rank orders treatments by type priority, then by guideline backing.
func Rank(treatments []model.TreatmentOption) {
	sort.SliceStable(treatments, func(i, j int) bool {
		pi, pj := treatments[i].Type.Priority(), treatments[j].Type.Priority()
		if pi != pj {
			return pi < pj
		}
		return treatments[i].GuidelineCount() > treatments[j].GuidelineCount()
	})
}

func (s *Service) exclusionReason(t model.TreatmentOption, patient model.PatientContext) (string, bool) {
	name := strings.ToLower(t.Name)

	for _, ci := range t.Contraindications {
		ci = strings.ToLower(ci)
		for _, h := range patient.MedicalHistory {
			h = strings.ToLower(strings.TrimSpace(h))
			if h == "" {
				continue
			}
			if strings.Contains(ci, h) || strings.Contains(h, ci) {
				return fmt.Sprintf("contraindicated by medical history: %s", h), true
			}
		}
	}

	for _, a := range patient.Allergies {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if strings.Contains(name, a) {
			return fmt.Sprintf("patient is allergic to %s", a), true
		}
		for _, ci := range t.Contraindications {
			if strings.Contains(strings.ToLower(ci), a) {
				return fmt.Sprintf("contraindicated by %s allergy", a), true
			}
		}
		for _, member := range s.kb.AllergyClasses[a] {
			if strings.Contains(name, member) {
				return fmt.Sprintf("%s belongs to the %s drug class", t.Name, a), true
			}
		}
	}

	for _, r := range s.kb.AgeRestrictions {
		if strings.Contains(name, r.Drug) && patient.Age < r.MinAge {
			return fmt.Sprintf("not recommended under age %d: %s", r.MinAge, r.Reason), true
		}
	}

	for _, ci := range s.kb.Contraindications {
		if !strings.Contains(name, ci.Medication) {
			continue
		}
		for _, h := range patient.MedicalHistory {
			key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
			if key != "" && strings.Contains(ci.Condition, key) {
				return fmt.Sprintf("%s contraindication with %s: %s", ci.Severity, ci.Condition, ci.Reason), true
			}
		}
	}
	return "", false
}

func confidence(conditions []model.ConditionCandidate, safe, excluded, total int) float64 {
	top := 0.0
	if len(conditions) > 0 {
		top = conditions[0].Confidence
	}
	denom := total
	if denom < 1 {
		denom = 1
	}
	return (top + math.Min(float64(safe)/3, 1) + 1 + (1 - float64(excluded)/float64(denom))) / 4
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
