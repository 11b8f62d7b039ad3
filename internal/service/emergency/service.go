package emergency

import (
	"math"
	"sort"
	"strings"

	"github.com/jwalitptl/triage-api/internal/knowledge"
	"github.com/jwalitptl/triage-api/internal/model"
)

const (
	emergencyGate     = 0.6
	doctorConsultGate = 0.4
	triggerBonus      = 0.2
	associatedBonus   = 0.2
	escalationBonus   = 0.2
	moderateKeywordPt = 0.5
)

// Service scans symptoms for emergency patterns. It can only raise urgency.
type Service struct {
	kb *knowledge.Base
}

func NewService(kb *knowledge.Base) *Service {
	return &Service{kb: kb}
}

// Assess scores every emergency pattern against the complaint and symptoms.
func (s *Service) Assess(symptoms []model.Symptom, chiefComplaint string) *model.EmergencyAssessment {
	haystack := buildHaystack(symptoms, chiefComplaint)

	out := &model.EmergencyAssessment{
		Urgency:           model.UrgencyLow,
		TriggeredPatterns: []model.TriggeredPattern{},
		Alerts:            []model.SafetyAlert{},
		RedFlags:          []string{},
		Recommendations:   []string{},
	}

	tiers := make(map[model.UrgencyLevel]bool)
	for _, p := range s.kb.Patterns {
		tp, fired := scorePattern(p, haystack)
		if !fired {
			continue
		}
		out.TriggeredPatterns = append(out.TriggeredPatterns, tp)
		tiers[p.Action.Urgency()] = true
		out.EmergencyScore = math.Max(out.EmergencyScore, tp.Score)
	}
	sort.SliceStable(out.TriggeredPatterns, func(i, j int) bool {
		return out.TriggeredPatterns[i].Score > out.TriggeredPatterns[j].Score
	})

	for _, flag := range s.kb.RedFlags {
		if strings.Contains(haystack, flag) {
			out.RedFlags = append(out.RedFlags, flag)
		}
	}

	if s.escalated(symptoms) {
		out.Escalated = true
		tiers[model.UrgencyModerate] = true
		out.EmergencyScore = math.Min(out.EmergencyScore+escalationBonus, 1)
	}

	for level := range tiers {
		out.Urgency = model.MaxUrgency(out.Urgency, level)
	}
	// one alert, for the final tier
	if out.Urgency > model.UrgencyLow {
		g := s.kb.Guidance[out.Urgency]
		out.Alerts = append(out.Alerts, model.SafetyAlert{
			Type:     actionFor(out.Urgency),
			Message:  g.AlertMessage,
			Priority: g.AlertPriority,
			Urgency:  out.Urgency,
		})
	}
	out.RequiresImmediateCare = out.Urgency == model.UrgencyEmergency

	for _, tp := range out.TriggeredPatterns {
		out.Recommendations = appendUnique(out.Recommendations, tp.Message)
	}
	return out
}

func buildHaystack(symptoms []model.Symptom, chiefComplaint string) string {
	parts := make([]string, 0, len(symptoms)+1)
	parts = append(parts, strings.ToLower(chiefComplaint))
	for _, sym := range symptoms {
		parts = append(parts, strings.ToLower(sym.Name+" "+sym.Description+" "+string(sym.Severity)))
	}
	return strings.Join(parts, " ")
}

// scorePattern applies the keyword gate for the pattern's action tier and
// reports whether the pattern crosses its threshold.
func scorePattern(p knowledge.EmergencyPattern, haystack string) (model.TriggeredPattern, bool) {
	var matched []string
	for _, kw := range p.Keywords {
		if strings.Contains(haystack, kw) {
			matched = append(matched, kw)
		}
	}
	ratio := float64(len(matched)) / float64(len(p.Keywords))
	if ratio == 0 {
		return model.TriggeredPattern{}, false
	}
	switch p.Action {
	case model.ActionEmergency911:
		if ratio < emergencyGate {
			return model.TriggeredPattern{}, false
		}
	case model.ActionDoctorConsult:
		if ratio < doctorConsultGate {
			return model.TriggeredPattern{}, false
		}
	}

	triggers := countContained(haystack, p.SeverityTriggers)
	associated := countContained(haystack, p.Associated)

	score := ratio + triggerBonus*float64(triggers)
	if len(p.Associated) > 0 {
		score += associatedBonus * float64(associated) / float64(len(p.Associated))
	}
	score = math.Min(score, 1)
	if score < p.Threshold {
		return model.TriggeredPattern{}, false
	}

	return model.TriggeredPattern{
		ID:                p.ID,
		Name:              p.Name,
		Score:             score,
		KeywordRatio:      ratio,
		MatchedKeywords:   matched,
		SeverityTriggers:  triggers,
		AssociatedMatches: associated,
		Action:            p.Action,
		Message:           p.Message,
	}, true
}

// escalated reports whether symptom severity alone warrants at least a
// moderate tier.
func (s *Service) escalated(symptoms []model.Symptom) bool {
	esc := s.kb.Escalation
	moderate := 0.0
	for _, sym := range symptoms {
		if sym.Severity.Rank() >= model.SeveritySevere.Rank() {
			return true
		}
		text := strings.ToLower(sym.Name + " " + sym.Description)
		if countContained(text, esc.SevereKeywords) > 0 {
			return true
		}
		if sym.Severity == model.SeverityModerate {
			moderate++
		}
		moderate += moderateKeywordPt * float64(countContained(text, esc.ModerateKeywords))
	}
	return moderate >= esc.ModerateLimit
}

func actionFor(level model.UrgencyLevel) model.AlertAction {
	switch level {
	case model.UrgencyEmergency:
		return model.ActionEmergency911
	case model.UrgencyUrgent:
		return model.ActionUrgentCare
	case model.UrgencyModerate:
		return model.ActionDoctorConsult
	default:
		return model.ActionMonitor
	}
}

func countContained(haystack string, needles []string) int {
	n := 0
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			n++
		}
	}
	return n
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
