package events

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"siteproof/internal/domain"
	"siteproof/internal/pkg/jwt"
	"siteproof/internal/pkg/response"
)

// ReportGetter is the slice of the report repository the stream needs for the
// ownership check.
type ReportGetter interface {
	GetByID(ctx context.Context, id string) (*domain.Report, error)
}

type Handler struct {
	hub        *Hub
	jwtService *jwt.Service
	reports    ReportGetter
}

func NewHandler(hub *Hub, jwtService *jwt.Service, reports ReportGetter) *Handler {
	return &Handler{hub: hub, jwtService: jwtService, reports: reports}
}

// RegisterRoutes mounts the stream on an unauthenticated group; the handler
// validates the token itself because browsers cannot set headers on WebSocket
// connections, so the token arrives as ?token= instead.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/reports/:id/events", h.Stream)
}

// Stream godoc
// @Summary Subscribe to photo status events for a report
// @Description WebSocket endpoint. Emits photo.status and analysis.summary frames. Authenticate with ?token=JWT or a Bearer header.
// @Tags Events
// @Param id path string true "Report ID"
// @Param token query string false "JWT when headers are unavailable"
// @Router /reports/{id}/events [get]
func (h *Handler) Stream(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(header), "bearer ") {
			token = strings.TrimSpace(header[len("Bearer "):])
		}
	}
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Token is required. Use ?token=YOUR_JWT_TOKEN")
		return
	}

	claims, err := h.jwtService.ValidateToken(token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
		return
	}

	reportID := c.Param("id")
	report, err := h.reports.GetByID(c.Request.Context(), reportID)
	if err != nil {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "Report not found")
		return
	}
	if report.ContractorID != claims.ContractorID && claims.Role != "admin" {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "You don't own this report")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.hub.ServeWS(conn, reportID)
}
