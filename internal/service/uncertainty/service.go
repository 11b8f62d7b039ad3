package uncertainty

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/jwalitptl/triage-api/internal/knowledge"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/pkg/errors"
)

const (
	symptomWeightVague    = 0.3
	symptomWeightCount    = 0.2
	symptomWeightSeverity = 0.2

	diagWeightGap   = 0.25
	diagWeightRare  = 0.2
	diagWeightInfo  = 0.3
	diagWeightModel = 0.25

	treatWeightContra    = 0.35
	treatWeightVariation = 0.25
	treatWeightEvidence  = 0.25
	treatWeightSide      = 0.15

	confWeightSymptom    = 0.25
	confWeightDiagnostic = 0.45
	confWeightTreatment  = 0.3

	conditionIntervalLevel = 0.9
)

// Input carries everything the quantifier looks at. Contraindications is the
// number found upstream by the treatment filter and drug safety checks.
type Input struct {
	Symptoms          []model.Symptom
	Conditions        []model.ConditionCandidate
	Treatments        []model.TreatmentOption
	Patient           model.PatientContext
	Contraindications int
}

type Service struct {
	kb *knowledge.Base
}

func NewService(kb *knowledge.Base) *Service {
	return &Service{kb: kb}
}

// Analyze estimates symptom, diagnostic and treatment uncertainty and folds
// them into an overall confidence.
func (s *Service) Analyze(in Input) (*model.ConfidenceAnalysis, error) {
	for _, c := range in.Conditions {
		if !unit(c.Probability) || !unit(c.Confidence) {
			return nil, errors.NewValidation(fmt.Sprintf("condition %s has scores outside [0,1]", c.ID), nil)
		}
	}

	sym := s.symptomUncertainty(in.Symptoms)
	diag := s.diagnosticUncertainty(in.Conditions, in.Patient)
	treat := s.treatmentUncertainty(in)

	confidences := []float64{1 - sym.Value, 1 - diag.Value, 1 - treat.Value}
	overall := confWeightSymptom*confidences[0] + confWeightDiagnostic*confidences[1] + confWeightTreatment*confidences[2]
	overall = clamp(overall)

	out := &model.ConfidenceAnalysis{
		Symptom:           sym,
		Diagnostic:        diag,
		Treatment:         treat,
		OverallConfidence: overall,
		Level:             Level(overall),
		Breakdown: map[string]float64{
			"symptom_confidence":    confidences[0],
			"diagnostic_confidence": confidences[1],
			"treatment_confidence":  confidences[2],
		},
		Reliability: math.Max(0, 1-2*stat.Variance(confidences, nil)),
		Calibration: CalibrationScore(overall),
	}
	out.Recommendations = recommendations(sym, diag, treat)
	out.ConditionIntervals = conditionIntervals(in.Conditions, treat.Value)
	out.CalibrationReport = calibration(in.Conditions, overall)
	out.DecisionSupport = decisionSupport(overall)
	out.ReliabilityMetrics = reliability(in)
	out.ExplanationSummary = fmt.Sprintf("Overall confidence: %s (%.2f)", out.Level, overall)
	return out, nil
}

// Level bands an overall confidence.
func Level(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "very_high"
	case confidence >= 0.75:
		return "high"
	case confidence >= 0.6:
		return "moderate"
	case confidence >= 0.4:
		return "low"
	default:
		return "very_low"
	}
}

func CalibrationScore(confidence float64) float64 {
	switch {
	case confidence >= 0.7 && confidence <= 0.9:
		return 0.9
	case confidence >= 0.5 && confidence <= 0.95:
		return 0.7
	default:
		return 0.5
	}
}

type factors struct {
	names []string
	seen  map[string]bool
}

func (f *factors) add(name string) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if !f.seen[name] {
		f.seen[name] = true
		f.names = append(f.names, name)
	}
}

func (f *factors) list() []string {
	if f.names == nil {
		return []string{}
	}
	return f.names
}

func (s *Service) symptomUncertainty(symptoms []model.Symptom) model.UncertaintyEstimate {
	if len(symptoms) == 0 {
		return model.UncertaintyEstimate{
			Type:            model.UncertaintySymptom,
			Value:           0.9,
			Interval:        model.Interval{Lower: 0.8, Upper: 1},
			Components:      map[string]float64{},
			Factors:         []string{"missing_symptoms"},
			Recommendations: []string{"Gather comprehensive symptom history"},
			Explanation:     "No symptoms provided",
		}
	}

	var f factors
	n := float64(len(symptoms))

	vague := 0
	for _, sym := range symptoms {
		name := strings.ToLower(sym.Name)
		for _, v := range s.kb.Uncertainty.VagueSymptoms {
			if strings.Contains(name, v) {
				vague++
				break
			}
		}
	}
	vagueRatio := float64(vague) / n
	if vagueRatio > 0.5 {
		f.add("high_proportion_vague_symptoms")
	}

	count := 0.1
	switch {
	case len(symptoms) < 3:
		count = 0.4
		f.add("insufficient_symptom_detail")
	case len(symptoms) > 10:
		count = 0.3
		f.add("symptom_overload_complexity")
	}

	ranks := make([]float64, 0, len(symptoms))
	for _, sym := range symptoms {
		if r := sym.Severity.Rank(); r > 0 {
			ranks = append(ranks, float64(r))
		}
	}
	severity := 0.3
	switch {
	case len(ranks) == 0:
		f.add("missing_severity_information")
	case len(ranks) == 1:
		severity = 0
	default:
		v := stat.Variance(ranks, nil)
		severity = math.Min(v/2, 0.5)
		if v > 1.5 {
			f.add("inconsistent_severity_reporting")
		}
	}

	value := clamp(symptomWeightVague*vagueRatio + symptomWeightCount*count + symptomWeightSeverity*severity)

	recs := []string{}
	if vagueRatio > 0.4 {
		recs = append(recs, "Request more specific symptom descriptions")
	}
	if len(symptoms) < 3 {
		recs = append(recs, "Gather additional symptom information")
	}
	if len(ranks) == 0 {
		recs = append(recs, "Assess and document symptom severity")
	}

	return model.UncertaintyEstimate{
		Type:     model.UncertaintySymptom,
		Value:    value,
		Interval: around(value, 0.1),
		Components: map[string]float64{
			"specificity": clamp(vagueRatio),
			"count":       count,
			"severity":    severity,
		},
		Factors:         f.list(),
		Recommendations: recs,
		Explanation:     "Symptom uncertainty from specificity, count and severity consistency",
	}
}

func (s *Service) diagnosticUncertainty(conditions []model.ConditionCandidate, patient model.PatientContext) model.UncertaintyEstimate {
	if len(conditions) == 0 {
		return model.UncertaintyEstimate{
			Type:            model.UncertaintyDiagnostic,
			Value:           1,
			Interval:        model.Interval{Lower: 0.9, Upper: 1},
			Components:      map[string]float64{},
			Factors:         []string{"no_predictions"},
			Recommendations: []string{"Run diagnostic analysis"},
			Explanation:     "No diagnostic predictions available",
		}
	}

	var f factors
	confidences := make([]float64, len(conditions))
	probabilities := make([]float64, len(conditions))
	for i, c := range conditions {
		confidences[i] = c.Confidence
		probabilities[i] = c.Probability
	}

	avg := stat.Mean(confidences, nil)
	variance := 0.0
	if len(confidences) > 1 {
		variance = stat.Variance(confidences, nil)
	}
	modelUnc := clamp(1 - avg + variance*0.5)
	if avg < 0.6 {
		f.add("low_model_confidence")
	}
	if variance > 0.1 {
		f.add("inconsistent_prediction_confidence")
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(probabilities)))
	gap := 0.2
	if len(probabilities) >= 2 {
		diff := probabilities[0] - probabilities[1]
		if diff < 0.2 {
			gap = 0.4
			f.add("close_differential_diagnosis")
		} else {
			gap = math.Max(0, 0.3-diff)
		}
	}

	rare := 0.0
	for _, c := range conditions {
		name := strings.ToLower(c.Name)
		for _, marker := range s.kb.Uncertainty.RareMarkers {
			if strings.Contains(name, marker) {
				rare += 0.2
				f.add("rare_condition_prediction")
				break
			}
		}
	}
	rare = math.Min(rare, 0.4)

	completeness := patientCompleteness(patient)
	info := 1 - completeness
	if completeness < 0.5 {
		f.add("incomplete_patient_information")
	}

	value := clamp(diagWeightGap*gap + diagWeightRare*rare + diagWeightInfo*info + diagWeightModel*modelUnc)

	recs := []string{}
	if modelUnc > 0.5 {
		recs = append(recs, "Consider additional diagnostic testing")
	}
	if gap > 0.3 {
		recs = append(recs, "Review differential diagnosis carefully")
	}
	if info > 0.4 {
		recs = append(recs, "Gather additional patient history")
	}
	if rare > 0.1 {
		recs = append(recs, "Verify rare condition diagnosis with specialist")
	}

	return model.UncertaintyEstimate{
		Type:     model.UncertaintyDiagnostic,
		Value:    value,
		Interval: around(value, 0.15),
		Components: map[string]float64{
			"differential_overlap":   gap,
			"rare_conditions":        rare,
			"incomplete_information": info,
			"model_confidence":       modelUnc,
		},
		Factors:         f.list(),
		Recommendations: recs,
		Explanation:     "Diagnostic uncertainty from model confidence, differential overlap and information completeness",
	}
}

// patientCompleteness is the share of age, gender, history and medications
// that are present.
func patientCompleteness(p model.PatientContext) float64 {
	n := 0
	if p.Age > 0 {
		n++
	}
	if p.Gender != "" {
		n++
	}
	if len(p.MedicalHistory) > 0 {
		n++
	}
	if len(p.Medications) > 0 {
		n++
	}
	return float64(n) / 4
}

func (s *Service) treatmentUncertainty(in Input) model.UncertaintyEstimate {
	if len(in.Treatments) == 0 {
		return model.UncertaintyEstimate{
			Type:            model.UncertaintyTreatment,
			Value:           0.8,
			Interval:        model.Interval{Lower: 0.7, Upper: 0.9},
			Components:      map[string]float64{},
			Factors:         []string{"no_treatments"},
			Recommendations: []string{"Generate treatment recommendations"},
			Explanation:     "No treatment recommendations available",
		}
	}

	var f factors
	contra := in.Contraindications
	if contra > 0 {
		f.add("contraindications_found")
	}
	for _, t := range in.Treatments {
		name := strings.ToLower(t.Name)
		for _, a := range in.Patient.Allergies {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" && strings.Contains(name, a) {
				contra++
				f.add("potential_allergy_contraindication")
				break
			}
		}
	}
	contraUnc := math.Min(float64(contra)*0.3, 0.6)

	ageUnc := 0.05
	if in.Patient.Age < 18 || in.Patient.Age > 75 {
		ageUnc = 0.2
		f.add("age_related_treatment_variation")
	}
	comorbidUnc := 0.1
	if n := len(in.Patient.MedicalHistory); n >= 3 {
		comorbidUnc = math.Min(float64(n)*0.1, 0.4)
		f.add("complex_comorbidity_profile")
	}
	variation := ageUnc + comorbidUnc

	evidence := 0.2
	for _, t := range in.Treatments {
		if t.EvidenceConfidence() < 0.6 {
			evidence += 0.1
			f.add("low_evidence_confidence")
		}
	}
	evidence = math.Min(evidence, 0.5)

	side := 0.15
	for _, t := range in.Treatments {
		name := strings.ToLower(t.Name)
		for _, risky := range s.kb.Uncertainty.HighRiskTreatments {
			if strings.Contains(name, risky) {
				side += 0.1
				f.add("high_side_effect_risk")
				break
			}
		}
	}
	side = math.Min(side, 0.4)

	value := clamp(treatWeightContra*contraUnc + treatWeightVariation*variation + treatWeightEvidence*evidence + treatWeightSide*side)

	recs := []string{}
	if contraUnc > 0.2 {
		recs = append(recs, "Review contraindications and drug interactions")
	}
	if variation > 0.3 {
		recs = append(recs, "Consider patient-specific factors for treatment selection")
	}
	if evidence > 0.3 {
		recs = append(recs, "Review treatment evidence and guidelines")
	}
	if side > 0.25 {
		recs = append(recs, "Discuss potential side effects with patient")
	}

	return model.UncertaintyEstimate{
		Type:     model.UncertaintyTreatment,
		Value:    value,
		Interval: around(value, 0.1),
		Components: map[string]float64{
			"contraindications":    contraUnc,
			"individual_variation": variation,
			"evidence_quality":     evidence,
			"side_effect_profile":  side,
		},
		Factors:         f.list(),
		Recommendations: recs,
		Explanation:     "Treatment uncertainty from contraindications, individual variation and evidence quality",
	}
}

func recommendations(sym, diag, treat model.UncertaintyEstimate) []model.UncertaintyRecommendation {
	out := []model.UncertaintyRecommendation{}
	if sym.Value > 0.5 {
		out = append(out, model.UncertaintyRecommendation{
			Type:     "symptom_clarification",
			Priority: "high",
			Action:   "Gather more detailed symptom information",
			Details:  sym.Recommendations,
		})
	}
	if diag.Value > 0.6 {
		out = append(out, model.UncertaintyRecommendation{
			Type:     "diagnostic_verification",
			Priority: "high",
			Action:   "Seek additional diagnostic confirmation",
			Details:  diag.Recommendations,
		})
	}
	if treat.Value > 0.5 {
		out = append(out, model.UncertaintyRecommendation{
			Type:     "treatment_review",
			Priority: "moderate",
			Action:   "Review treatment recommendations carefully",
			Details:  treat.Recommendations,
		})
	}
	if math.Max(sym.Value, math.Max(diag.Value, treat.Value)) > 0.7 {
		out = append(out, model.UncertaintyRecommendation{
			Type:     "expert_consultation",
			Priority: "high",
			Action:   "Consider expert medical consultation",
			Details:  []string{"Consult specialist", "Review with senior physician", "Consider second opinion"},
		})
	}
	return out
}

func conditionIntervals(conditions []model.ConditionCandidate, treatment float64) []model.ConditionInterval {
	out := make([]model.ConditionInterval, 0, len(conditions))
	for _, c := range conditions {
		margin := (1-c.Confidence)*0.2 + treatment*0.1
		out = append(out, model.ConditionInterval{
			ConditionID: c.ID,
			Name:        c.Name,
			Probability: c.Probability,
			Interval: model.Interval{
				Lower: math.Max(0, c.Probability-margin),
				Upper: math.Min(1, c.Probability+margin),
				Level: conditionIntervalLevel,
			},
			Margin: margin,
		})
	}
	return out
}

func calibration(conditions []model.ConditionCandidate, overall float64) model.CalibrationAssessment {
	if len(conditions) == 0 {
		return model.CalibrationAssessment{Status: "unknown", OverallConfidence: overall, Score: CalibrationScore(overall)}
	}
	confidences := make([]float64, len(conditions))
	for i, c := range conditions {
		confidences[i] = c.Confidence
	}
	avg := stat.Mean(confidences, nil)

	status := "moderately_calibrated"
	switch {
	case math.Abs(avg-overall) < 0.1:
		status = "well_calibrated"
	case avg > overall+0.2:
		status = "overconfident"
	case avg < overall-0.2:
		status = "underconfident"
	}
	return model.CalibrationAssessment{
		Status:            status,
		AverageConfidence: avg,
		OverallConfidence: overall,
		Score:             CalibrationScore(overall),
	}
}

func decisionSupport(overall float64) model.DecisionSupport {
	switch {
	case overall >= 0.8:
		return model.DecisionSupport{
			Recommendation: "Proceed with recommendations",
			RiskLevel:      "low",
			Actions:        []string{"Implement treatment plan", "Schedule follow-up"},
		}
	case overall >= 0.6:
		return model.DecisionSupport{
			Recommendation: "Proceed with caution",
			RiskLevel:      "moderate",
			Actions:        []string{"Verify key assumptions", "Monitor closely", "Regular symptom monitoring"},
		}
	case overall >= 0.4:
		return model.DecisionSupport{
			Recommendation: "Seek additional information",
			RiskLevel:      "high",
			Actions:        []string{"Gather more data", "Consider additional testing", "Consider specialist consultation"},
		}
	default:
		return model.DecisionSupport{
			Recommendation: "Exercise extreme caution",
			RiskLevel:      "very_high",
			Actions:        []string{"Comprehensive reevaluation required", "Immediate expert consultation required"},
		}
	}
}

func reliability(in Input) model.ReliabilityMetrics {
	available := 0
	if len(in.Symptoms) >= 2 {
		available++
	}
	if in.Patient.Age > 0 {
		available++
	}
	if in.Patient.Gender != "" {
		available++
	}
	if len(in.Patient.MedicalHistory) > 0 {
		available++
	}
	if len(in.Patient.Medications) > 0 {
		available++
	}
	for _, sym := range in.Symptoms {
		if sym.Severity.Valid() {
			available++
			break
		}
	}
	completeness := float64(available) / 6

	consistency := 0.5
	if len(in.Symptoms) > 0 && len(in.Conditions) > 0 {
		consistency = 0.6
		if ratio := float64(len(in.Symptoms)) / float64(len(in.Conditions)); ratio >= 0.5 && ratio <= 3 {
			consistency = 1
		}
	}

	prediction := 0.5
	if len(in.Conditions) > 0 {
		gaps := make([]float64, len(in.Conditions))
		for i, c := range in.Conditions {
			gaps[i] = math.Abs(c.Confidence - c.Probability)
		}
		prediction = math.Max(0, 1-2*stat.Mean(gaps, nil))
	}

	return model.ReliabilityMetrics{
		DataCompleteness:      completeness,
		InternalConsistency:   consistency,
		PredictionConsistency: prediction,
		Overall:               (completeness + consistency + prediction) / 3,
	}
}

func around(v, spread float64) model.Interval {
	return model.Interval{Lower: math.Max(0, v-spread), Upper: math.Min(1, v+spread)}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func unit(v float64) bool {
	return v >= 0 && v <= 1 && !math.IsNaN(v)
}
