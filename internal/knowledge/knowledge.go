package knowledge

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/pkg/validator"
)

//go:embed data/*.yaml
var dataFS embed.FS

const (
	conditionsFile  = "data/conditions.yaml"
	treatmentsFile  = "data/treatments.yaml"
	triageFileName  = "data/triage.yaml"
	systemsFileName = "data/systems.yaml"
	riskFileName    = "data/risk.yaml"
	drugsFile       = "data/drugs.yaml"
	guidelinesFile  = "data/guidelines.yaml"
)

// Base holds every clinical table. It is read-only once loaded and safe for
// concurrent use without locking.
type Base struct {
	conditions []Condition
	byID       map[string]int

	AgeGroups     map[string]AgeGroup
	GenderFactors []GenderFactor

	treatments map[string][]model.TreatmentOption

	UrgencyRules    map[string]model.UrgencyLevel
	Patterns        []EmergencyPattern
	RedFlags        []string
	Escalation      Escalation
	Guidance        map[model.UrgencyLevel]Guidance
	GenericWarnings []string

	BodySystems []KeywordGroup
	Clusters    []KeywordGroup
	Uncertainty UncertaintyTables

	Domains             []RiskDomain
	Comorbidities       []ComorbidityPair
	Complications       map[string]map[string]float64
	SeverityMultipliers map[string]float64
	ComplexityWeights   []WeightedKeyword
	EmergencySymptoms   []string
	PredictiveModels    []PredictiveModel
	DefaultPrevention   []string

	Interactions      []Interaction
	Contraindications []Contraindication
	DrugCategories    map[string]string
	AgeRestrictions   []AgeRestriction
	AllergyClasses    map[string][]string

	Guidelines []Guideline
}

var (
	defaultOnce sync.Once
	defaultBase *Base
	defaultErr  error
)

// Default returns the process-wide knowledge base built from the embedded tables.
func Default() (*Base, error) {
	defaultOnce.Do(func() {
		defaultBase, defaultErr = Load()
	})
	return defaultBase, defaultErr
}

// Load parses and validates the embedded tables.
func Load() (*Base, error) {
	return LoadFS(dataFS)
}

// LoadDir loads the tables from dir/data/*.yaml, or the embedded tables when
// dir is empty.
func LoadDir(dir string) (*Base, error) {
	if dir == "" {
		return Default()
	}
	base, err := LoadFS(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge from %s: %w", dir, err)
	}
	return base, nil
}

// LoadFS parses the tables from fsys, which must contain the data/*.yaml files.
func LoadFS(fsys fs.FS) (*Base, error) {
	v := validator.New()

	var cf conditionFile
	if err := decode(fsys, conditionsFile, v, &cf); err != nil {
		return nil, err
	}
	var tf treatmentFile
	if err := decode(fsys, treatmentsFile, v, &tf); err != nil {
		return nil, err
	}
	var trf triageFile
	if err := decode(fsys, triageFileName, v, &trf); err != nil {
		return nil, err
	}
	var sf systemsFile
	if err := decode(fsys, systemsFileName, v, &sf); err != nil {
		return nil, err
	}
	var rf riskFile
	if err := decode(fsys, riskFileName, v, &rf); err != nil {
		return nil, err
	}
	var df drugFile
	if err := decode(fsys, drugsFile, v, &df); err != nil {
		return nil, err
	}
	var gf guidelineFile
	if err := decode(fsys, guidelinesFile, v, &gf); err != nil {
		return nil, err
	}

	b := &Base{
		AgeGroups:           make(map[string]AgeGroup, len(cf.AgeGroups)),
		GenderFactors:       cf.GenderFactors,
		UrgencyRules:        make(map[string]model.UrgencyLevel, len(trf.UrgencyRules)),
		Patterns:            trf.Patterns,
		RedFlags:            trf.RedFlags,
		Escalation:          trf.Escalation,
		Guidance:            make(map[model.UrgencyLevel]Guidance, len(trf.Guidance)),
		GenericWarnings:     trf.GenericWarnings,
		BodySystems:         sf.BodySystems,
		Clusters:            sf.Clusters,
		Uncertainty:         sf.Uncertainty,
		Domains:             rf.Domains,
		Comorbidities:       rf.Comorbidities,
		Complications:       rf.Complications,
		SeverityMultipliers: rf.SeverityMultipliers,
		ComplexityWeights:   rf.ComplexityWeights,
		EmergencySymptoms:   rf.EmergencySymptoms,
		PredictiveModels:    rf.PredictiveModels,
		DefaultPrevention:   rf.DefaultPrevention,
		Interactions:        df.Interactions,
		Contraindications:   df.Contraindications,
		DrugCategories:      df.Categories,
		AgeRestrictions:     df.AgeRestrictions,
		AllergyClasses:      df.AllergyClasses,
		Guidelines:          gf.Guidelines,
	}

	if err := b.indexConditions(cf); err != nil {
		return nil, err
	}
	if err := b.indexTreatments(tf); err != nil {
		return nil, err
	}
	if err := b.indexTriage(trf); err != nil {
		return nil, err
	}
	for _, g := range b.Guidelines {
		if _, ok := b.byID[g.ConditionID]; !ok {
			return nil, fmt.Errorf("guideline %s: unknown condition %q", g.Code, g.ConditionID)
		}
	}
	return b, nil
}

func decode(fsys fs.FS, name string, v validator.Validator, out interface{}) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if err := v.Validate(out); err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	return nil
}

func (b *Base) indexConditions(cf conditionFile) error {
	for _, g := range cf.AgeGroups {
		if _, dup := b.AgeGroups[g.Name]; dup {
			return fmt.Errorf("duplicate age group %q", g.Name)
		}
		b.AgeGroups[g.Name] = g
	}

	title := cases.Title(language.English)
	b.conditions = make([]Condition, 0, len(cf.Conditions))
	b.byID = make(map[string]int, len(cf.Conditions))
	for _, c := range cf.Conditions {
		if _, dup := b.byID[c.ID]; dup {
			return fmt.Errorf("duplicate condition id %q", c.ID)
		}
		for _, g := range c.AgeGroups {
			if g == "all" {
				continue
			}
			if _, ok := b.AgeGroups[g]; !ok {
				return fmt.Errorf("condition %s: unknown age group %q", c.ID, g)
			}
		}
		if c.Name == "" {
			c.Name = title.String(strings.ReplaceAll(c.ID, "_", " "))
		}
		b.byID[c.ID] = len(b.conditions)
		b.conditions = append(b.conditions, c)
	}

	for _, gfac := range b.GenderFactors {
		if _, ok := b.byID[gfac.ConditionID]; !ok {
			return fmt.Errorf("gender factor: unknown condition %q", gfac.ConditionID)
		}
	}
	return nil
}

func (b *Base) indexTreatments(tf treatmentFile) error {
	b.treatments = make(map[string][]model.TreatmentOption, len(tf.Treatments))
	for id, opts := range tf.Treatments {
		if _, ok := b.byID[id]; !ok {
			return fmt.Errorf("treatments: unknown condition %q", id)
		}
		list := make([]model.TreatmentOption, len(opts))
		for i, o := range opts {
			o.ConditionID = id
			list[i] = o
		}
		b.treatments[id] = list
	}
	return nil
}

func (b *Base) indexTriage(trf triageFile) error {
	for id, raw := range trf.UrgencyRules {
		if _, ok := b.byID[id]; !ok {
			return fmt.Errorf("urgency rule: unknown condition %q", id)
		}
		level, err := model.ParseUrgency(raw)
		if err != nil {
			return fmt.Errorf("urgency rule %s: %w", id, err)
		}
		b.UrgencyRules[id] = level
	}
	for raw, g := range trf.Guidance {
		level, err := model.ParseUrgency(raw)
		if err != nil {
			return fmt.Errorf("guidance: %w", err)
		}
		b.Guidance[level] = g
	}
	for level := model.UrgencyLow; level <= model.UrgencyEmergency; level++ {
		if _, ok := b.Guidance[level]; !ok {
			return fmt.Errorf("guidance: missing tier %s", level)
		}
	}
	seen := make(map[string]struct{}, len(b.Patterns))
	for _, p := range b.Patterns {
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("duplicate emergency pattern %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// Conditions returns the catalogue in file order.
func (b *Base) Conditions() []Condition {
	return b.conditions
}

func (b *Base) Condition(id string) (Condition, bool) {
	i, ok := b.byID[id]
	if !ok {
		return Condition{}, false
	}
	return b.conditions[i], true
}

// Order is the catalogue position of id, used as the ranking tie-break.
func (b *Base) Order(id string) int {
	if i, ok := b.byID[id]; ok {
		return i
	}
	return len(b.conditions)
}

// Treatments returns a copy of the treatment catalogue for a condition.
func (b *Base) Treatments(conditionID string) []model.TreatmentOption {
	src := b.treatments[conditionID]
	out := make([]model.TreatmentOption, len(src))
	copy(out, src)
	return out
}

func (b *Base) GuidelinesFor(conditionID string) []Guideline {
	var out []Guideline
	for _, g := range b.Guidelines {
		if g.ConditionID == conditionID {
			out = append(out, g)
		}
	}
	return out
}

func (b *Base) GuidelinesByOrganization(org string) []Guideline {
	org = strings.ToLower(org)
	var out []Guideline
	for _, g := range b.Guidelines {
		if g.Organization == org {
			out = append(out, g)
		}
	}
	return out
}

func (b *Base) GuidelineByCode(code string) (Guideline, bool) {
	for _, g := range b.Guidelines {
		if g.Code == code {
			return g, true
		}
	}
	return Guideline{}, false
}

// MatchesAgeGroup reports whether the named group covers the patient.
func (b *Base) MatchesAgeGroup(name string, patient model.PatientContext) bool {
	g, ok := b.AgeGroups[name]
	if !ok {
		return false
	}
	if g.History != "" {
		for _, h := range patient.MedicalHistory {
			if strings.Contains(strings.ToLower(h), g.History) {
				return true
			}
		}
		return false
	}
	if g.Gender != "" && !strings.EqualFold(g.Gender, patient.Gender) {
		return false
	}
	return patient.Age >= g.MinAge && patient.Age <= g.MaxAge
}
