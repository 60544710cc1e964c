package report

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"siteproof/internal/pkg/response"
	"siteproof/internal/pkg/validation"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the CRUD routes. The scoped group must already carry
// JWT auth; owned wraps per-report routes with the ownership check.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, owned gin.HandlerFunc) {
	reports := rg.Group("/reports")
	{
		reports.POST("", h.Create)
		reports.GET("", h.List)
		reports.GET("/:id", owned, h.Get)
		reports.PATCH("/:id", owned, h.Update)
		reports.DELETE("/:id", owned, h.Delete)
	}
}

// Create godoc
// @Summary Create an inspection report
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateReportRequest true "Report fields"
// @Success 201 {object} map[string]interface{}
// @Failure 400,401,500 {object} map[string]interface{}
// @Router /reports [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", validation.Details(err, req))
		return
	}

	r, err := h.service.Create(c.Request.Context(), c.GetInt64("contractor_id"), req)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create report")
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"report": r})
}

// List godoc
// @Summary List my reports
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status" Enums(draft, in_progress, completed)
// @Param limit query int false "Page size (default 20)"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]interface{}
// @Router /reports [get]
func (h *Handler) List(c *gin.Context) {
	var q ListReportsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters", validation.Details(err, q))
		return
	}

	reports, total, err := h.service.List(c.Request.Context(), c.GetInt64("contractor_id"), q)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list reports")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"reports": reports,
		"total":   total,
	})
}

// Get godoc
// @Summary Get a report with photos and analysis rollup
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403,404 {object} map[string]interface{}
// @Router /reports/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Report not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load report")
		return
	}

	response.Success(c, http.StatusOK, detail)
}

// Update godoc
// @Summary Patch report fields or status
// @Tags Reports
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Param request body UpdateReportRequest true "Fields to change"
// @Success 200 {object} map[string]interface{}
// @Failure 400,403,404 {object} map[string]interface{}
// @Router /reports/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	var req UpdateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", validation.Details(err, req))
		return
	}

	r, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Report not found")
		case errors.Is(err, ErrInvalidStatus):
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid report status")
		default:
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update report")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": r})
}

// Delete godoc
// @Summary Delete a report and all its photos
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Report ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403,404,500 {object} map[string]interface{}
// @Router /reports/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Report not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete report")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
