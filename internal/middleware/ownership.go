package middleware

import (
	"net/http"

	"siteproof/internal/repository"

	"github.com/gin-gonic/gin"
)

// OwnershipChecker provides middleware to verify resource ownership
type OwnershipChecker struct {
	reportRepo *repository.ReportRepository
	photoRepo  *repository.PhotoRepository
}

// NewOwnershipChecker creates a new ownership checker
func NewOwnershipChecker(
	reportRepo *repository.ReportRepository,
	photoRepo *repository.PhotoRepository,
) *OwnershipChecker {
	return &OwnershipChecker{
		reportRepo: reportRepo,
		photoRepo:  photoRepo,
	}
}

// CheckReportOwnership verifies the contractor owns the report.
// Expects report ID in URL param "id". Admins pass regardless of owner.
func (oc *OwnershipChecker) CheckReportOwnership() gin.HandlerFunc {
	return func(c *gin.Context) {
		contractorID := c.GetInt64("contractor_id")
		if contractorID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"},
			})
			return
		}

		report, err := oc.reportRepo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   gin.H{"code": "NOT_FOUND", "message": "Report not found"},
			})
			return
		}

		if report.ContractorID != contractorID && c.GetString("role") != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   gin.H{"code": "FORBIDDEN", "message": "You don't own this report"},
			})
			return
		}

		c.Next()
	}
}

// CheckPhotoOwnership verifies the contractor owns the report that owns the
// photo. Expects photo ID in URL param "id".
func (oc *OwnershipChecker) CheckPhotoOwnership() gin.HandlerFunc {
	return func(c *gin.Context) {
		contractorID := c.GetInt64("contractor_id")
		if contractorID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"},
			})
			return
		}

		photo, err := oc.photoRepo.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   gin.H{"code": "NOT_FOUND", "message": "Photo not found"},
			})
			return
		}

		report, err := oc.reportRepo.GetByID(c.Request.Context(), photo.ReportID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   gin.H{"code": "NOT_FOUND", "message": "Report not found"},
			})
			return
		}

		if report.ContractorID != contractorID && c.GetString("role") != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   gin.H{"code": "FORBIDDEN", "message": "You don't own this resource"},
			})
			return
		}

		c.Next()
	}
}
