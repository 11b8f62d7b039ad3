package normalizer

import (
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/jwalitptl/triage-api/internal/knowledge"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/pkg/errors"
)

const (
	minNameRunes     = 2
	primarySystemMax = 3
	minClusterHits   = 2
)

var (
	acuteMarkers   = []string{"hour", "day"}
	chronicMarkers = []string{"week", "month", "year"}
)

// Service classifies raw symptoms into body systems and clusters.
type Service struct {
	kb *knowledge.Base
}

func NewService(kb *knowledge.Base) *Service {
	return &Service{kb: kb}
}

// Normalize cleans the symptom list and derives the classification used by
// every later stage. It fails with a validation error when no usable symptom
// remains after cleaning.
func (s *Service) Normalize(symptoms []model.Symptom, patient model.PatientContext, chiefComplaint string) (*model.SymptomClassification, error) {
	cleaned := Clean(symptoms)
	if len(cleaned) == 0 {
		return nil, errors.NewValidation("at least one symptom with a name of two or more characters is required", nil)
	}

	systems, primary := s.classifySystems(cleaned)
	clusters := s.findClusters(cleaned)
	severity := Score(cleaned)

	out := &model.SymptomClassification{
		CleanedSymptoms:      cleaned,
		SystemClassification: systems,
		PrimarySystems:       primary,
		MedicalFeatures:      extractFeatures(cleaned, patient, chiefComplaint),
		Clusters:             clusters,
		Severity:             severity,
	}
	out.Confidence = confidence(len(cleaned), len(systems), severity.Overall, len(clusters))
	return out, nil
}

// Clean normalizes names to NFC lower case with collapsed whitespace and drops
// names that are too short to match anything.
func Clean(symptoms []model.Symptom) []model.Symptom {
	out := make([]model.Symptom, 0, len(symptoms))
	for _, sym := range symptoms {
		name := NormalizeText(sym.Name)
		if utf8.RuneCountInString(name) < minNameRunes {
			continue
		}
		sym.Name = name
		sym.Description = strings.TrimSpace(norm.NFC.String(sym.Description))
		sym.Duration = strings.TrimSpace(sym.Duration)
		sym.Location = strings.TrimSpace(sym.Location)
		out = append(out, sym)
	}
	return out
}

func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFC.String(s))), " ")
}

// mutualContains is the keyword rule used throughout triage: either string may
// contain the other.
func mutualContains(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func (s *Service) classifySystems(symptoms []model.Symptom) (map[string][]string, []string) {
	systems := make(map[string][]string)
	var primary []string
	for _, group := range s.kb.BodySystems {
		for _, sym := range symptoms {
			for _, kw := range group.Keywords {
				if mutualContains(sym.Name, kw) {
					systems[group.Name] = appendUnique(systems[group.Name], sym.Name)
					break
				}
			}
		}
		if _, ok := systems[group.Name]; ok && len(primary) < primarySystemMax {
			primary = append(primary, group.Name)
		}
	}
	return systems, primary
}

func (s *Service) findClusters(symptoms []model.Symptom) []model.SymptomCluster {
	var out []model.SymptomCluster
	for _, group := range s.kb.Clusters {
		var members []string
		for _, sym := range symptoms {
			for _, kw := range group.Keywords {
				if strings.Contains(sym.Name, kw) {
					members = append(members, sym.Name)
					break
				}
			}
		}
		if len(members) >= minClusterHits {
			out = append(out, model.SymptomCluster{
				Name:    group.Name,
				Matches: len(members),
				Total:   len(group.Keywords),
				Members: members,
			})
		}
	}
	return out
}

// Score sums severity ranks (mild 1 to critical 4).
func Score(symptoms []model.Symptom) model.SeverityScores {
	var scores model.SeverityScores
	total := 0
	for _, sym := range symptoms {
		rank := sym.Severity.Rank()
		if rank == 0 {
			continue
		}
		total += rank
		scores.Count++
		if rank > scores.Max {
			scores.Max = rank
		}
	}
	scores.Overall = float64(total)
	if scores.Count > 0 {
		scores.Average = float64(total) / float64(scores.Count)
	}
	return scores
}

func extractFeatures(symptoms []model.Symptom, patient model.PatientContext, chiefComplaint string) model.MedicalFeatures {
	features := model.MedicalFeatures{
		PatientAge:           patient.Age,
		Gender:               patient.Gender,
		HasMedicalHistory:    len(patient.MedicalHistory) > 0,
		TakesMedications:     len(patient.Medications) > 0,
		HasAllergies:         len(patient.Allergies) > 0,
		ChiefComplaint:       strings.TrimSpace(chiefComplaint),
		SymptomCount:         len(symptoms),
		SeverityDistribution: make(map[model.Severity]int),
	}
	for _, sym := range symptoms {
		if sym.Severity.Valid() {
			features.SeverityDistribution[sym.Severity]++
		}
		if sym.Duration == "" {
			continue
		}
		features.DurationPatterns.HasDurationInfo = true
		features.DurationPatterns.DurationCount++
		d := strings.ToLower(sym.Duration)
		switch {
		case containsAny(d, acuteMarkers):
			features.DurationPatterns.Acute++
		case containsAny(d, chronicMarkers):
			features.DurationPatterns.Chronic++
		}
	}
	return features
}

func confidence(symptoms, systems int, overall float64, clusters int) float64 {
	severityFactor := 0.5
	if overall > 0 {
		severityFactor = 1
	}
	factors := []float64{
		math.Min(float64(symptoms)/10, 1),
		math.Min(float64(systems)/3, 1),
		severityFactor,
		math.Min(float64(clusters)/2, 1),
	}
	sum := 0.0
	for _, f := range factors {
		sum += f
	}
	return sum / float64(len(factors))
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
