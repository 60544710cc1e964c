package analysis

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"siteproof/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, owned gin.HandlerFunc) {
	rg.POST("/reports/:id/analyze", owned, h.Analyze)
}

// Analyze godoc
// @Summary Run vision analysis over a report's photos
// @Description Assesses the listed photo ids, or every analyzable photo when the body is empty. Responds only after the whole run finished; progress streams over the report's websocket.
// @Tags Analysis
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param request body AnalyzeRequest false "Photo selection"
// @Success 200 {object} map[string]interface{}
// @Failure 400,401,403,404 {object} map[string]interface{}
// @Router /reports/{id}/analyze [post]
func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	summary, err := h.service.Analyze(c.Request.Context(), c.GetInt64("contractor_id"), c.Param("id"), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrReportNotFound):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Report not found")
		case errors.Is(err, ErrNotOwner):
			response.Error(c, http.StatusForbidden, "FORBIDDEN", err.Error())
		case errors.Is(err, ErrNoPhotos):
			response.Error(c, http.StatusBadRequest, "NO_PHOTOS", "Report has no analyzable photos")
		default:
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Analysis failed")
		}
		return
	}

	response.Success(c, http.StatusOK, summary)
}
