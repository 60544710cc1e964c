package photo

import (
	"errors"
	"io"
	"net/http"
	"strconv"

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

// RegisterRoutes mounts the photo routes. The group must already carry JWT
// auth; owned wraps the per-photo routes with the ownership check.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, owned gin.HandlerFunc) {
	photos := rg.Group("/photos")
	{
		photos.POST("", h.Upload)
		photos.POST("/chunked", h.InitChunked)
		photos.PUT("/chunked/:session_id/:index", h.PutChunk)
		photos.POST("/chunked/:session_id/complete", h.CompleteChunked)
		photos.GET("/:id", owned, h.Get)
		photos.DELETE("/:id", owned, h.Delete)
	}
}

// Upload godoc
// @Summary Upload inspection photos
// @Description Multipart batch upload. Field "photos" repeats per file; "client_ids" matches files positionally so responses reconcile by client id, never by filename.
// @Tags Photos
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param report_id formData string true "Target report"
// @Param photos formData file true "Photo files (repeatable)"
// @Param client_ids formData string false "Client-generated ids, positionally matched (repeatable)"
// @Success 201 {object} map[string]interface{}
// @Failure 400,401,403,404,413 {object} map[string]interface{}
// @Router /photos [post]
func (h *Handler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid multipart form")
		return
	}

	files := form.File["photos"]
	clientIDs := form.Value["client_ids"]
	reportID := c.PostForm("report_id")

	descriptors, err := h.service.UploadBatch(c.Request.Context(), c.GetInt64("contractor_id"), reportID, files, clientIDs)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	stored := 0
	for _, d := range descriptors {
		if d.Error == "" {
			stored++
		}
	}

	status := http.StatusCreated
	if stored == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{
		"success": stored > 0,
		"data": gin.H{
			"photos": descriptors,
			"stored": stored,
			"failed": len(descriptors) - stored,
		},
	})
}

// InitChunked godoc
// @Summary Open a chunked upload session
// @Tags Photos
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body InitChunkedRequest true "Session parameters"
// @Success 201 {object} map[string]interface{}
// @Failure 400,403,404 {object} map[string]interface{}
// @Router /photos/chunked [post]
func (h *Handler) InitChunked(c *gin.Context) {
	var req InitChunkedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", validation.Details(err, req))
		return
	}

	resp, err := h.service.InitChunked(c.Request.Context(), c.GetInt64("contractor_id"), req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, resp)
}

// PutChunk godoc
// @Summary Upload one chunk
// @Description Binary body; X-Chunk-Total carries the total chunk count. Re-sending an index is idempotent.
// @Tags Photos
// @Accept octet-stream
// @Produce json
// @Security BearerAuth
// @Param session_id path string true "Session ID"
// @Param index path int true "Zero-based chunk index"
// @Param X-Chunk-Total header int true "Total chunk count"
// @Success 200 {object} map[string]interface{}
// @Failure 400,403,404,410,413 {object} map[string]interface{}
// @Router /photos/chunked/{session_id}/{index} [put]
func (h *Handler) PutChunk(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Chunk index must be an integer")
		return
	}
	total, err := strconv.Atoi(c.GetHeader("X-Chunk-Total"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "X-Chunk-Total header is required")
		return
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read chunk body")
		return
	}

	resp, err := h.service.PutChunk(c.Request.Context(), c.GetInt64("contractor_id"), c.Param("session_id"), index, total, data)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resp)
}

// CompleteChunked godoc
// @Summary Finalize a chunked upload
// @Description Assembles staged chunks in index order. Rejected with the missing indexes while the session is incomplete.
// @Tags Photos
// @Produce json
// @Security BearerAuth
// @Param session_id path string true "Session ID"
// @Success 201 {object} map[string]interface{}
// @Failure 400,403,404,409,410 {object} map[string]interface{}
// @Router /photos/chunked/{session_id}/complete [post]
func (h *Handler) CompleteChunked(c *gin.Context) {
	desc, err := h.service.CompleteChunked(c.Request.Context(), c.GetInt64("contractor_id"), c.Param("session_id"))
	if err != nil {
		var incomplete *IncompleteSessionError
		if errors.As(err, &incomplete) {
			response.ErrorWithDetails(c, http.StatusConflict, "SESSION_INCOMPLETE", "Upload session is missing chunks", gin.H{
				"missing_indexes": incomplete.Missing,
			})
			return
		}
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"photo": desc})
}

// Get godoc
// @Summary Download photo bytes
// @Tags Photos
// @Produce image/jpeg
// @Security BearerAuth
// @Param id path string true "Photo ID"
// @Param size query string false "Variant" Enums(thumbnail, medium, original)
// @Success 200 {file} binary
// @Failure 403,404 {object} map[string]interface{}
// @Router /photos/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	data, contentType, err := h.service.Get(c.Request.Context(), c.Param("id"), c.Query("size"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, data)
}

// Delete godoc
// @Summary Delete a photo and its stored variants
// @Tags Photos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Photo ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403,404,500 {object} map[string]interface{}
// @Router /photos/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPhotoNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Photo not found")
	case errors.Is(err, ErrReportNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Report not found")
	case errors.Is(err, ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Upload session not found")
	case errors.Is(err, ErrSessionExpired):
		response.Error(c, http.StatusGone, "SESSION_EXPIRED", "Upload session expired")
	case errors.Is(err, ErrNotOwner):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, ErrNoFiles):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "No files provided")
	case errors.Is(err, ErrEmptyFile), errors.Is(err, ErrInvalidMimeType), errors.Is(err, ErrChunkInvalid):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrDuplicateClientID):
		response.Error(c, http.StatusConflict, "DUPLICATE_CLIENT_ID", err.Error())
	case errors.Is(err, ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Photo operation failed")
	}
}
