package guideline

import (
	"fmt"
	"strings"

	"github.com/jwalitptl/triage-api/internal/knowledge"
	"github.com/jwalitptl/triage-api/pkg/errors"
)

var organizations = map[string]bool{"who": true, "cdc": true}

// Service serves the WHO and CDC guideline records held in the knowledge base.
type Service struct {
	kb *knowledge.Base
}

func NewService(kb *knowledge.Base) *Service {
	return &Service{kb: kb}
}

// Guideline renders the guidelines cited for a condition as one line.
func (s *Service) Guideline(conditionID string) (string, bool) {
	records := s.kb.GuidelinesFor(conditionID)
	if len(records) == 0 {
		return "", false
	}
	parts := make([]string, len(records))
	for i, g := range records {
		parts[i] = fmt.Sprintf("%s: %s (%s v%s)", strings.ToUpper(g.Organization), g.Title, g.Code, g.Version)
	}
	return strings.Join(parts, "; "), true
}

func (s *Service) ForCondition(conditionID string) ([]knowledge.Guideline, error) {
	if _, ok := s.kb.Condition(conditionID); !ok {
		return nil, errors.NewNotFound("condition", nil)
	}
	records := s.kb.GuidelinesFor(conditionID)
	if records == nil {
		records = []knowledge.Guideline{}
	}
	return records, nil
}

func (s *Service) ByOrganization(org string) ([]knowledge.Guideline, error) {
	org = strings.ToLower(org)
	if !organizations[org] {
		return nil, errors.NewBadRequest(fmt.Sprintf("unknown organization %q", org), nil)
	}
	return s.kb.GuidelinesByOrganization(org), nil
}

func (s *Service) ByCode(code string) (knowledge.Guideline, error) {
	g, ok := s.kb.GuidelineByCode(code)
	if !ok {
		return knowledge.Guideline{}, errors.NewNotFound("guideline", nil)
	}
	return g, nil
}
