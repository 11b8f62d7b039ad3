package knowledge

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/triage-api/internal/handler"
	kb "github.com/jwalitptl/triage-api/internal/knowledge"
	"github.com/jwalitptl/triage-api/internal/service/guideline"
	"github.com/jwalitptl/triage-api/pkg/errors"
)

type ConditionSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ICDCode  string `json:"icd_code"`
	Severity string `json:"severity"`
}

type ConditionDetail struct {
	ConditionSummary
	Description   string   `json:"description"`
	Symptoms      []string `json:"symptoms"`
	AgeGroups     []string `json:"age_groups"`
	Seasonal      bool     `json:"seasonal"`
	RiskFactors   []string `json:"risk_factors"`
	RedFlags      []string `json:"red_flags"`
	Differentials []string `json:"differentials"`
	WarningSigns  []string `json:"warning_signs"`
}

// Handler serves the read-only catalogue behind the pipeline.
type Handler struct {
	kb         *kb.Base
	guidelines *guideline.Service
}

func NewHandler(base *kb.Base, guidelines *guideline.Service) *Handler {
	return &Handler{kb: base, guidelines: guidelines}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	conditions := r.Group("/conditions")
	{
		conditions.GET("", h.ListConditions)
		conditions.GET("/:id", h.GetCondition)
		conditions.GET("/:id/treatments", h.ListTreatments)
		conditions.GET("/:id/guidelines", h.ListConditionGuidelines)
	}

	guidelines := r.Group("/guidelines")
	{
		guidelines.GET("/:organization", h.ListGuidelines)
		guidelines.GET("/:organization/:code", h.GetGuideline)
	}
}

func summary(c kb.Condition) ConditionSummary {
	return ConditionSummary{ID: c.ID, Name: c.Name, ICDCode: c.ICDCode, Severity: c.Severity}
}

func (h *Handler) ListConditions(c *gin.Context) {
	all := h.kb.Conditions()
	out := make([]ConditionSummary, 0, len(all))
	for _, cond := range all {
		out = append(out, summary(cond))
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(out))
}

func (h *Handler) GetCondition(c *gin.Context) {
	cond, ok := h.kb.Condition(c.Param("id"))
	if !ok {
		handler.Fail(c, errors.NewNotFound("condition", nil))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(ConditionDetail{
		ConditionSummary: summary(cond),
		Description:      cond.Description,
		Symptoms:         cond.Symptoms,
		AgeGroups:        cond.AgeGroups,
		Seasonal:         cond.Seasonal,
		RiskFactors:      cond.RiskFactors,
		RedFlags:         cond.RedFlags,
		Differentials:    cond.Differentials,
		WarningSigns:     cond.WarningSigns,
	}))
}

func (h *Handler) ListTreatments(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.kb.Condition(id); !ok {
		handler.Fail(c, errors.NewNotFound("condition", nil))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(h.kb.Treatments(id)))
}

func (h *Handler) ListConditionGuidelines(c *gin.Context) {
	records, err := h.guidelines.ForCondition(c.Param("id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(records))
}

func (h *Handler) ListGuidelines(c *gin.Context) {
	records, err := h.guidelines.ByOrganization(c.Param("organization"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(records))
}

func (h *Handler) GetGuideline(c *gin.Context) {
	g, err := h.guidelines.ByCode(c.Param("code"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	if !strings.EqualFold(g.Organization, c.Param("organization")) {
		handler.Fail(c, errors.NewNotFound("guideline", nil))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(g))
}
