package matcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jwalitptl/triage-api/internal/knowledge"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/pkg/embedding"
	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
	"github.com/jwalitptl/triage-api/pkg/logger"
)

const (
	similarityWeight = 0.6
	ruleWeight       = 0.4

	maxSimilarityMatches = 10
	maxCandidates        = 5

	outsideAgeGroupFactor = 0.8
	riskFactorStep        = 0.1
)

// Service ranks catalogued conditions against reported symptoms.
type Service struct {
	kb       *knowledge.Base
	provider embedding.Provider
	log      *logger.Logger
}

func NewService(kb *knowledge.Base, provider embedding.Provider, log *logger.Logger) *Service {
	if provider == nil {
		provider = embedding.NullProvider{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{kb: kb, provider: provider, log: log}
}

// Warm encodes every condition text once so later requests hit the cache.
// A missing provider is reported as a capability error and is not fatal.
func (s *Service) Warm(ctx context.Context) error {
	for _, c := range s.kb.Conditions() {
		if _, err := s.provider.Encode(ctx, c.EmbeddingText()); err != nil {
			return apperrors.NewCapabilityAbsent("embedding", err)
		}
	}
	return nil
}

type scored struct {
	cond    knowledge.Condition
	order   int
	sim     float64
	rule    float64
	matches []string
	score   float64
}

// Match returns the top differential for the given symptoms.
func (s *Service) Match(ctx context.Context, symptoms []model.Symptom, patient model.PatientContext) (*model.ConditionMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("failed to match conditions: %w", err)
	}

	simMatches := s.similarity(ctx, symptoms)
	ruleMatches := s.ruleBased(symptoms)

	merged := s.merge(simMatches, ruleMatches)
	for _, c := range merged {
		c.score = math.Min(c.score*s.demographicFactor(c.cond, patient), 1)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].score > merged[j].score
	})

	out := &model.ConditionMatch{
		SimilarityMatches: simMatches,
		RuleMatches:       ruleMatches,
		ConditionsMatched: len(merged),
	}
	for i, c := range merged {
		if i == maxCandidates {
			break
		}
		out.Differential = append(out.Differential, model.ConditionCandidate{
			ID:              c.cond.ID,
			Name:            c.cond.Name,
			ICDCode:         c.cond.ICDCode,
			Probability:     c.score,
			Confidence:      math.Min(c.sim+c.rule, 1),
			Description:     c.cond.Description,
			SymptomsMatch:   c.matches,
			RiskFactors:     c.cond.RiskFactors,
			SimilarityScore: c.sim,
			RuleScore:       c.rule,
			CombinedScore:   similarityWeight*c.sim + ruleWeight*c.rule,
		})
	}
	out.Confidence = stageConfidence(out, len(symptoms), len(simMatches) > 0 && len(ruleMatches) > 0)
	return out, nil
}

func (s *Service) similarity(ctx context.Context, symptoms []model.Symptom) []model.SimilarityMatch {
	query, err := s.provider.Encode(ctx, strings.Join(model.SymptomNames(symptoms), " "))
	if err != nil {
		s.logAbsent(err)
		return nil
	}

	conds := s.kb.Conditions()
	matches := make([]model.SimilarityMatch, 0, len(conds))
	for _, c := range conds {
		vec, err := s.provider.Encode(ctx, c.EmbeddingText())
		if err != nil {
			s.logAbsent(err)
			return nil
		}
		matches = append(matches, model.SimilarityMatch{
			ConditionID: c.ID,
			Score:       math.Max(embedding.Cosine(query, vec), 0),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > maxSimilarityMatches {
		matches = matches[:maxSimilarityMatches]
	}
	return matches
}

func (s *Service) logAbsent(err error) {
	if errors.Is(err, embedding.ErrUnavailable) {
		s.log.Debug("similarity matching skipped", "reason", err.Error())
		return
	}
	s.log.Warn("similarity matching failed", "error", err.Error())
}

// ruleBased counts the reported symptoms that overlap a catalogued symptom.
func (s *Service) ruleBased(symptoms []model.Symptom) []model.RuleMatch {
	var out []model.RuleMatch
	for _, c := range s.kb.Conditions() {
		hits := 0
		var exact []string
		for _, sym := range symptoms {
			hit := false
			for _, cs := range c.Symptoms {
				if strings.Contains(sym.Name, cs) || strings.Contains(cs, sym.Name) {
					exact = appendUnique(exact, cs)
					hit = true
				}
			}
			if hit {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		out = append(out, model.RuleMatch{
			ConditionID:  c.ID,
			Score:        math.Min(float64(hits)/float64(len(c.Symptoms)), 1),
			ExactMatches: exact,
			Total:        len(c.Symptoms),
		})
	}
	return out
}

func (s *Service) merge(sim []model.SimilarityMatch, rule []model.RuleMatch) []*scored {
	byID := make(map[string]*scored)
	get := func(id string) *scored {
		if c, ok := byID[id]; ok {
			return c
		}
		cond, ok := s.kb.Condition(id)
		if !ok {
			return nil
		}
		c := &scored{cond: cond, order: s.kb.Order(id), matches: []string{}}
		byID[id] = c
		return c
	}
	for _, m := range sim {
		if c := get(m.ConditionID); c != nil {
			c.sim = m.Score
		}
	}
	for _, m := range rule {
		if c := get(m.ConditionID); c != nil {
			c.rule = m.Score
			c.matches = m.ExactMatches
		}
	}

	out := make([]*scored, 0, len(byID))
	for _, c := range byID {
		c.score = similarityWeight*c.sim + ruleWeight*c.rule
		if c.score > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].order < out[j].order
	})
	return out
}

func (s *Service) demographicFactor(c knowledge.Condition, patient model.PatientContext) float64 {
	factor := s.ageFactor(c, patient)

	if n := len(MatchedRiskFactors(c.RiskFactors, patient.MedicalHistory)); n > 0 {
		factor *= 1 + riskFactorStep*float64(n)
	}

	for _, g := range s.kb.GenderFactors {
		if g.ConditionID == c.ID && strings.EqualFold(g.Gender, patient.Gender) {
			factor *= g.Factor
		}
	}
	return factor
}

func (s *Service) ageFactor(c knowledge.Condition, patient model.PatientContext) float64 {
	if c.AllAges() {
		return 1
	}
	best := 0.0
	for _, name := range c.AgeGroups {
		if !s.kb.MatchesAgeGroup(name, patient) {
			continue
		}
		if f := s.kb.AgeGroups[name].Factor; f > best {
			best = f
		}
	}
	if best == 0 {
		return outsideAgeGroupFactor
	}
	return best
}

// MatchedRiskFactors returns the risk factors found in any history entry.
// Underscored keys match their spaced form.
func MatchedRiskFactors(riskFactors, history []string) []string {
	var out []string
	for _, rf := range riskFactors {
		key := strings.ToLower(strings.ReplaceAll(rf, "_", " "))
		for _, h := range history {
			entry := strings.ToLower(strings.ReplaceAll(h, "_", " "))
			if strings.Contains(entry, key) {
				out = append(out, rf)
				break
			}
		}
	}
	return out
}

func stageConfidence(m *model.ConditionMatch, symptoms int, bothMethods bool) float64 {
	top := 0.0
	if c, ok := m.Top(); ok {
		top = c.Probability
	}
	methods := 0.7
	if bothMethods {
		methods = 1
	}
	return (math.Min(float64(m.ConditionsMatched)/5, 1) +
		math.Min(float64(symptoms)/5, 1) +
		top +
		methods) / 4
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
