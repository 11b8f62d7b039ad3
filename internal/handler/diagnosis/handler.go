package diagnosis

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/triage-api/internal/handler"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/pkg/errors"
)

// Service is the part of the diagnosis coordinator the HTTP layer uses.
type Service interface {
	Diagnose(ctx context.Context, in *model.SymptomInput) (*model.DiagnosisResult, error)
	AssessUrgency(ctx context.Context, in *model.SymptomInput) (*model.UrgencyAssessment, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/diagnose", h.Diagnose)
	r.POST("/urgency", h.AssessUrgency)
}

func (h *Handler) Diagnose(c *gin.Context) {
	in, ok := bindInput(c)
	if !ok {
		return
	}

	result, err := h.service.Diagnose(c.Request.Context(), in)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) AssessUrgency(c *gin.Context) {
	in, ok := bindInput(c)
	if !ok {
		return
	}

	assessment, err := h.service.AssessUrgency(c.Request.Context(), in)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(assessment))
}

// bindInput only decodes; field rules are enforced by the coordinator so the
// CLI and HTTP paths reject the same inputs.
func bindInput(c *gin.Context) (*model.SymptomInput, bool) {
	var in model.SymptomInput
	if err := c.ShouldBindJSON(&in); err != nil {
		handler.Fail(c, errors.NewBadRequest("invalid request body", err))
		return nil, false
	}
	return &in, true
}
