package interaction

import (
	"sort"
	"strings"

	"github.com/jwalitptl/triage-api/internal/knowledge"
	"github.com/jwalitptl/triage-api/internal/model"
)

const (
	elderlyAge          = 65
	maxAntihypertensive = 2

	categoryAnticoagulant    = "anticoagulant"
	categoryNSAID            = "nsaid"
	categoryAntihypertensive = "antihypertensive"
)

// Service checks a medication list for interactions, contraindications and
// age restrictions.
type Service struct {
	kb *knowledge.Base
	// drugs are the category keys, longest first so the most specific name
	// wins when a medication contains several
	drugs []string
}

func NewService(kb *knowledge.Base) *Service {
	return &Service{kb: kb, drugs: categoryKeys(kb.DrugCategories)}
}

func categoryKeys(categories map[string]string) []string {
	keys := make([]string, 0, len(categories))
	for drug := range categories {
		keys = append(keys, drug)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Check covers the patient's current medications plus any recommended
// medication treatments.
func (s *Service) Check(patient model.PatientContext, treatments []model.TreatmentOption) *model.DrugSafetyReport {
	meds := medicationList(patient.Medications, treatments)

	report := &model.DrugSafetyReport{
		Medications:       meds,
		Interactions:      []model.DrugInteraction{},
		Contraindications: []model.DrugContraindication{},
		AgeWarnings:       []model.AgeWarning{},
		ClassWarnings:     []string{},
		SeveritySummary:   make(map[model.InteractionSeverity]int),
	}

	for i := 0; i < len(meds); i++ {
		for j := i + 1; j < len(meds); j++ {
			if ix, ok := s.lookup(meds[i], meds[j]); ok {
				report.Interactions = append(report.Interactions, ix)
				report.SeveritySummary[ix.Severity]++
			}
		}
	}

	for _, med := range meds {
		report.Contraindications = append(report.Contraindications, s.contraindications(med, patient.MedicalHistory)...)
		report.AgeWarnings = append(report.AgeWarnings, s.ageWarnings(med, patient.Age)...)
	}
	report.ClassWarnings = s.classWarnings(meds)

	c := report.SeveritySummary
	report.SafeToPrescribe = c[model.InteractionContraindicated] == 0 && c[model.InteractionMajor] == 0
	report.RequiresMonitor = c[model.InteractionModerate]+c[model.InteractionMajor] > 0
	report.Recommendations = recommendations(report)
	return report
}

func medicationList(current []string, treatments []model.TreatmentOption) []string {
	var meds []string
	add := func(m string) {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			return
		}
		for _, x := range meds {
			if x == m {
				return
			}
		}
		meds = append(meds, m)
	}
	for _, m := range current {
		add(m)
	}
	for _, t := range treatments {
		if t.Type == model.TreatmentMedication {
			add(t.Name)
		}
	}
	return meds
}

func (s *Service) lookup(a, b string) (model.DrugInteraction, bool) {
	for _, ix := range s.kb.Interactions {
		forward := strings.Contains(a, ix.DrugA) && strings.Contains(b, ix.DrugB)
		reverse := strings.Contains(a, ix.DrugB) && strings.Contains(b, ix.DrugA)
		if forward || reverse {
			return model.DrugInteraction{
				Drugs:      [2]string{a, b},
				Severity:   ix.Severity,
				Mechanism:  ix.Mechanism,
				Effect:     ix.Effect,
				Management: ix.Management,
				Reference:  ix.Reference,
			}, true
		}
	}
	return model.DrugInteraction{}, false
}

func (s *Service) contraindications(med string, history []string) []model.DrugContraindication {
	var out []model.DrugContraindication
	for _, ci := range s.kb.Contraindications {
		if !strings.Contains(med, ci.Medication) {
			continue
		}
		for _, h := range history {
			key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
			if key != "" && strings.Contains(ci.Condition, key) {
				out = append(out, model.DrugContraindication{
					Medication:  med,
					Condition:   ci.Condition,
					Reason:      ci.Reason,
					Severity:    ci.Severity,
					Alternative: ci.Alternative,
				})
				break
			}
		}
	}
	return out
}

func (s *Service) ageWarnings(med string, age int) []model.AgeWarning {
	var out []model.AgeWarning
	for _, r := range s.kb.AgeRestrictions {
		if !strings.Contains(med, r.Drug) {
			continue
		}
		if age < r.MinAge || (r.ElderlyCaution && age >= elderlyAge) {
			out = append(out, model.AgeWarning{
				Medication:  med,
				MinAge:      r.MinAge,
				Reason:      r.Reason,
				Alternative: r.Alternative,
			})
		}
	}
	return out
}

func (s *Service) classWarnings(meds []string) []string {
	counts := make(map[string]int)
	for _, med := range meds {
		if cat, ok := s.category(med); ok {
			counts[cat]++
		}
	}
	out := []string{}
	if counts[categoryAnticoagulant] > 0 && counts[categoryNSAID] > 0 {
		out = append(out, "Anticoagulant + NSAID: Increased bleeding risk")
	}
	if counts[categoryAntihypertensive] > maxAntihypertensive {
		out = append(out, "Multiple blood pressure medications: Monitor for hypotension")
	}
	return out
}

// category resolves a medication to its drug class by name containment.
func (s *Service) category(med string) (string, bool) {
	if cat, ok := s.kb.DrugCategories[med]; ok {
		return cat, true
	}
	for _, drug := range s.drugs {
		if strings.Contains(med, drug) {
			return s.kb.DrugCategories[drug], true
		}
	}
	return "", false
}

func recommendations(r *model.DrugSafetyReport) []string {
	var out []string
	addManagement := func(sev model.InteractionSeverity) {
		for _, ix := range r.Interactions {
			if ix.Severity == sev {
				out = append(out, ix.Management)
			}
		}
	}
	c := r.SeveritySummary
	if c[model.InteractionContraindicated] > 0 {
		out = append(out, "DO NOT USE TOGETHER - Contraindicated drug combination found")
		addManagement(model.InteractionContraindicated)
	}
	if c[model.InteractionMajor] > 0 {
		out = append(out, "MAJOR INTERACTION - Requires immediate physician consultation")
		addManagement(model.InteractionMajor)
	}
	if c[model.InteractionModerate] > 0 {
		out = append(out, "Monitor closely for adverse effects")
		addManagement(model.InteractionModerate)
	}
	if len(out) == 0 {
		out = append(out, "No significant drug interactions found")
	}
	return out
}
