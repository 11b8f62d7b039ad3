package risk

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/jwalitptl/triage-api/internal/knowledge"
	"github.com/jwalitptl/triage-api/internal/model"
)

const (
	pediatricAge = 18
	geriatricAge = 65

	pediatricMultiplier = 0.8
	geriatricMultiplier = 1.3

	monitoringThreshold   = 0.6
	complicationThreshold = 0.4

	comorbidityCap     = 3.0
	complexityCap      = 2.0
	burdenStep         = 0.1
	highSignificance   = 2.0
	predictionConf     = 0.75
	predictionTimespan = "6_months"

	noRiskScore      = 0.3
	intervalSpread   = 0.15
	intervalLevel    = 0.85
	maxInterventions = 5

	highBaseline       = 0.6
	screeningAge       = 40
	polypharmacyCount  = 5
	defaultSeverityPts = 5.0
)

var severityPoints = map[model.Severity]float64{
	model.SeverityMild:     3,
	model.SeverityModerate: 6,
	model.SeveritySevere:   8,
	model.SeverityCritical: 10,
}

// Service scores baseline, condition-specific and comorbidity risk.
type Service struct {
	kb *knowledge.Base
}

func NewService(kb *knowledge.Base) *Service {
	return &Service{kb: kb}
}

// Assess combines demographic baselines with the differential into an overall
// risk picture.
func (s *Service) Assess(patient model.PatientContext, symptoms []model.Symptom, conditions []model.ConditionCandidate) (*model.RiskAssessment, error) {
	history := normalizeHistory(patient.MedicalHistory)

	out := &model.RiskAssessment{
		Baseline:         s.baseline(patient, history),
		ConditionRisks:   s.conditionRisks(patient, conditions),
		Comorbidity:      s.comorbidity(history),
		SymptomModifiers: s.symptomModifiers(symptoms),
		Predictions:      s.predictions(patient),
	}

	out.OverallScore = overallScore(out.Baseline, out.ConditionRisks)
	out.Level = model.RiskLevelFor(out.OverallScore)
	out.Uncertainty = uncertainty(out.Baseline, out.ConditionRisks, out.OverallScore)
	out.Recommendations = s.recommendations(patient, out.Baseline)
	out.Monitoring = monitoring(out)
	out.Interventions = interventions(out.Baseline, out.ConditionRisks)
	return out, nil
}

func normalizeHistory(history []string) []string {
	out := make([]string, 0, len(history))
	for _, h := range history {
		h = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

func (s *Service) baseline(patient model.PatientContext, history []string) []model.RiskProfile {
	profiles := make([]model.RiskProfile, 0, len(s.kb.Domains))
	for _, d := range s.kb.Domains {
		age := 1.0
		for _, band := range d.AgeBands {
			if band.Contains(patient.Age) {
				age = band.Weight
				break
			}
		}

		gender := 1.0
		if w, ok := d.GenderWeights[strings.ToLower(patient.Gender)]; ok {
			gender = w
		}

		hist := historyProduct(d.HistoryMultipliers, history) * historyProduct(d.ProtectiveFactors, history)

		score := math.Min(age*gender*hist, 1)
		profiles = append(profiles, model.RiskProfile{
			Domain:           d.Name,
			BaselineScore:    score,
			AgeComponent:     age,
			GenderComponent:  gender,
			HistoryComponent: hist,
			Level:            model.RiskLevelFor(score),
		})
	}
	return profiles
}

// historyProduct multiplies the weight of every table key found in the history.
func historyProduct(weights map[string]float64, history []string) float64 {
	product := 1.0
	for _, key := range sortedKeys(weights) {
		for _, h := range history {
			if strings.Contains(h, key) {
				product *= weights[key]
				break
			}
		}
	}
	return product
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Service) conditionRisks(patient model.PatientContext, conditions []model.ConditionCandidate) []model.ConditionRisk {
	ageMult := 1.0
	switch {
	case patient.Age < pediatricAge:
		ageMult = pediatricMultiplier
	case patient.Age > geriatricAge:
		ageMult = geriatricMultiplier
	}

	out := make([]model.ConditionRisk, 0, len(conditions))
	for _, c := range conditions {
		base := c.Probability * c.Confidence
		sev := 1.0
		if m, ok := s.kb.SeverityMultipliers[c.ID]; ok {
			sev = m
		}

		complications := make(map[string]float64)
		monitor := base > monitoringThreshold
		for name, p := range s.kb.Complications[c.ID] {
			complications[name] = p
			if p > complicationThreshold {
				monitor = true
			}
		}

		out = append(out, model.ConditionRisk{
			ConditionID:        c.ID,
			Name:               c.Name,
			BaseRisk:           base,
			AgeMultiplier:      ageMult,
			SeverityMultiplier: sev,
			ImmediateRisk:      math.Min(base*ageMult*sev, 1),
			Complications:      complications,
			RequiresMonitoring: monitor,
		})
	}
	return out
}

func (s *Service) comorbidity(history []string) model.ComorbidityAssessment {
	out := model.ComorbidityAssessment{
		Multiplier:   1,
		Interactions: []model.ComorbidityInteraction{},
	}

	for _, h := range history {
		for _, cw := range s.kb.ComplexityWeights {
			if strings.Contains(h, cw.Keyword) {
				out.ComplexityScore += cw.Weight
				break
			}
		}
	}
	out.ComplexityScore = math.Min(out.ComplexityScore, complexityCap)

	if len(history) < 2 {
		return out
	}
	for i := 0; i < len(history); i++ {
		for j := i + 1; j < len(history); j++ {
			for _, pair := range s.kb.Comorbidities {
				forward := strings.Contains(history[i], pair.A) && strings.Contains(history[j], pair.B)
				reverse := strings.Contains(history[i], pair.B) && strings.Contains(history[j], pair.A)
				if !forward && !reverse {
					continue
				}
				significance := "moderate"
				if pair.Weight > highSignificance {
					significance = "high"
				}
				out.Multiplier *= pair.Weight
				out.Interactions = append(out.Interactions, model.ComorbidityInteraction{
					Conditions:   [2]string{history[i], history[j]},
					Multiplier:   pair.Weight,
					Significance: significance,
				})
			}
		}
	}
	if n := len(history); n >= 3 {
		out.Multiplier *= 1 + float64(n-2)*burdenStep
	}
	out.Multiplier = math.Min(out.Multiplier, comorbidityCap)
	return out
}

func (s *Service) symptomModifiers(symptoms []model.Symptom) model.SymptomModifiers {
	out := model.SymptomModifiers{
		SeverityModifier: 1,
		CountModifier:    1,
		EmergencyFlags:   []string{},
		AverageSeverity:  defaultSeverityPts,
	}
	if len(symptoms) == 0 {
		return out
	}

	total := 0.0
	for _, sym := range symptoms {
		pts, ok := severityPoints[sym.Severity]
		if !ok {
			pts = defaultSeverityPts
		}
		total += pts

		name := strings.ToLower(sym.Name)
		qualified := string(sym.Severity) + " " + name
		for _, flag := range s.kb.EmergencySymptoms {
			if strings.Contains(name, flag) || strings.Contains(qualified, flag) {
				out.EmergencyFlags = append(out.EmergencyFlags, flag)
			}
		}
	}
	out.AverageSeverity = total / float64(len(symptoms))
	out.SeverityModifier = 1 + (out.AverageSeverity-defaultSeverityPts)*0.1
	if n := len(symptoms); n > 5 {
		out.CountModifier = 1 + float64(n-5)*0.05
	}
	return out
}

func (s *Service) predictions(patient model.PatientContext) []model.RiskPrediction {
	features := map[string]float64{
		"age":              math.Min(float64(patient.Age)/80, 1),
		"comorbidities":    math.Min(float64(len(patient.MedicalHistory))/5, 1),
		"medication_count": math.Min(float64(len(patient.Medications))/10, 1),
	}

	out := make([]model.RiskPrediction, 0, len(s.kb.PredictiveModels))
	for _, m := range s.kb.PredictiveModels {
		score := 0.0
		for _, name := range sortedKeys(m.Weights) {
			score += m.Weights[name] * features[name]
		}
		level := "low"
		if score > m.Threshold {
			level = "high"
		}
		out = append(out, model.RiskPrediction{
			Outcome:     m.Name,
			Probability: math.Min(score, 1),
			Risk:        level,
			Confidence:  predictionConf,
			Timeframe:   predictionTimespan,
		})
	}
	return out
}

// overallScore weights the highest risks most: 0.5/0.3/0.2 for three or
// more, 0.7/0.3 for two.
func overallScore(baseline []model.RiskProfile, conditions []model.ConditionRisk) float64 {
	scores := make([]float64, 0, len(baseline)+len(conditions))
	for _, b := range baseline {
		scores = append(scores, b.BaselineScore)
	}
	for _, c := range conditions {
		scores = append(scores, c.ImmediateRisk)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	switch len(scores) {
	case 0:
		return noRiskScore
	case 1:
		return scores[0]
	case 2:
		return 0.7*scores[0] + 0.3*scores[1]
	default:
		return 0.5*scores[0] + 0.3*scores[1] + 0.2*scores[2]
	}
}

func uncertainty(baseline []model.RiskProfile, conditions []model.ConditionRisk, overall float64) model.RiskUncertainty {
	epistemic := 0.1
	if len(baseline) >= 2 {
		values := make([]float64, len(baseline))
		for i, b := range baseline {
			values[i] = b.BaselineScore
		}
		epistemic = math.Min(stat.Variance(values, nil), 0.5)
	}

	completeness := 0.0
	if len(baseline) > 0 {
		completeness += 5
	}
	if len(conditions) > 0 {
		completeness += 3
	}
	if len(baseline) > 3 {
		completeness += 2
	}
	aleatoric := 1 - completeness/10
	total := (epistemic + aleatoric) / 2

	reliability := "low"
	switch {
	case total < 0.2:
		reliability = "high"
	case total < 0.4:
		reliability = "moderate"
	}

	return model.RiskUncertainty{
		Epistemic: epistemic,
		Aleatoric: aleatoric,
		Total:     total,
		Interval: model.Interval{
			Lower: math.Max(0, overall*(1-intervalSpread)),
			Upper: math.Min(1, overall*(1+intervalSpread)),
			Level: intervalLevel,
		},
		Reliability: reliability,
	}
}

func (s *Service) recommendations(patient model.PatientContext, baseline []model.RiskProfile) []model.RiskRecommendation {
	out := []model.RiskRecommendation{}
	for _, b := range baseline {
		if b.BaselineScore <= highBaseline {
			continue
		}
		out = append(out, model.RiskRecommendation{
			Category:        "prevention",
			Priority:        "high",
			Recommendation:  fmt.Sprintf("High risk for %s - implement aggressive prevention strategies", b.Domain),
			SpecificActions: s.preventionActions(b.Domain),
			Timeframe:       "quarterly",
		})
	}
	if patient.Age > screeningAge {
		out = append(out, model.RiskRecommendation{
			Category:        "screening",
			Priority:        "moderate",
			Recommendation:  "Age-appropriate screening for cardiovascular disease and diabetes",
			SpecificActions: []string{"Blood pressure monitoring", "Cholesterol screening", "Diabetes screening"},
			Timeframe:       "annually",
		})
	}
	if len(patient.Medications) > polypharmacyCount {
		out = append(out, model.RiskRecommendation{
			Category:        "medication_safety",
			Priority:        "high",
			Recommendation:  "Medication review for potential interactions and optimization",
			SpecificActions: []string{"Pharmacist consultation", "Medication reconciliation", "Deprescribing review"},
			Timeframe:       "next_visit",
		})
	}
	return out
}

func (s *Service) preventionActions(domain string) []string {
	for _, d := range s.kb.Domains {
		if d.Name == domain && len(d.PreventionActions) > 0 {
			return d.PreventionActions
		}
	}
	return s.kb.DefaultPrevention
}

func monitoring(a *model.RiskAssessment) model.MonitoringSchedule {
	var m model.MonitoringSchedule
	switch score := a.OverallScore; {
	case score > 0.8:
		m = model.MonitoringSchedule{Frequency: "monthly", Intensity: "intensive_monitoring", NextCheck: "1_month"}
	case score > 0.6:
		m = model.MonitoringSchedule{Frequency: "quarterly", Intensity: "regular_monitoring", NextCheck: "3_months"}
	case score > 0.4:
		m = model.MonitoringSchedule{Frequency: "semi_annually", Intensity: "routine_monitoring", NextCheck: "6_months"}
	default:
		m = model.MonitoringSchedule{Frequency: "annually", Intensity: "preventive_monitoring", NextCheck: "12_months"}
	}

	m.Focus = []string{}
	for _, b := range a.Baseline {
		if b.BaselineScore > 0.5 {
			m.Focus = append(m.Focus, b.Domain)
		}
	}
	for _, c := range a.ConditionRisks {
		if c.RequiresMonitoring {
			m.Focus = append(m.Focus, c.ConditionID)
		}
	}
	return m
}

func interventions(baseline []model.RiskProfile, conditions []model.ConditionRisk) []model.Intervention {
	all := make([]model.Intervention, 0, len(baseline)+len(conditions))
	for _, b := range baseline {
		all = append(all, model.Intervention{Target: b.Domain, Source: "prevention", Score: b.BaselineScore})
	}
	for _, c := range conditions {
		all = append(all, model.Intervention{Target: c.ConditionID, Source: "treatment", Score: c.ImmediateRisk})
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Score > all[j].Score
	})
	if len(all) > maxInterventions {
		all = all[:maxInterventions]
	}
	for i := range all {
		all[i].Priority = i + 1
		switch {
		case all[i].Score > 0.7:
			all[i].Urgency = "high"
		case all[i].Score > 0.4:
			all[i].Urgency = "moderate"
		default:
			all[i].Urgency = "low"
		}
	}
	return all
}
