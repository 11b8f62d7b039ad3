package consultation

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/triage-api/internal/handler"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/repository"
	"github.com/jwalitptl/triage-api/pkg/errors"
	"github.com/jwalitptl/triage-api/pkg/validator"
)

// Handler exposes stored consultations. Only registered when a database is
// configured. Sealed inputs are never returned.
type Handler struct {
	repo     repository.ConsultationRepository
	validate validator.Validator
}

func NewHandler(repo repository.ConsultationRepository) *Handler {
	return &Handler{repo: repo, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	consultations := r.Group("/consultations")
	{
		consultations.GET("", h.ListConsultations)
		consultations.GET("/:session_id", h.GetConsultation)
	}
}

func (h *Handler) ListConsultations(c *gin.Context) {
	var filters model.ConsultationFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		handler.Fail(c, errors.NewBadRequest("invalid query parameters", err))
		return
	}
	if filters.Urgency != "" {
		level, err := model.ParseUrgency(filters.Urgency)
		if err != nil {
			handler.Fail(c, errors.NewBadRequest(err.Error(), nil))
			return
		}
		filters.Urgency = level.String()
	}
	if err := h.validate.Validate(&filters); err != nil {
		handler.Fail(c, errors.NewValidation("invalid query parameters", err))
		return
	}

	items, err := h.repo.List(c.Request.Context(), &filters)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(items))
}

func (h *Handler) GetConsultation(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		handler.Fail(c, errors.NewBadRequest("invalid session ID", err))
		return
	}

	item, err := h.repo.GetBySession(c.Request.Context(), sessionID)
	if err != nil {
		handler.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(item))
}
