package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/middleware"
	"github.com/framecraft-studio/framecraft-api/models"
	"github.com/framecraft-studio/framecraft-api/services"
)

// ListJobCards handles GET /api/v1/job-cards - workers see their own
// cards, admins see all
func ListJobCards(c *gin.Context) {
	profile, err := middleware.GetProfile(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return
	}

	db := config.GetDB()
	query := db.Model(&models.JobCard{})

	switch profile.Role {
	case models.RoleWorker:
		query = query.Where("worker_id = ?", profile.UserID)
	case models.RoleAdmin:
		// no filter
	default:
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only workers and admins can view job cards",
			},
		})
		return
	}

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var cards []models.JobCard
	if err := query.Order("updated_at DESC").Find(&cards).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch job cards",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    cards,
	})
}

// UpdateJobCardRequest represents the request body for updating a job
// card: logging worked minutes and/or toggling the waiting-on-materials
// state
type UpdateJobCardRequest struct {
	Minutes          int   `json:"minutes" binding:"omitempty,gt=0"`
	WaitingMaterials *bool `json:"waiting_materials" binding:"omitempty"`
}

// UpdateJobCard handles PATCH /api/v1/orders/:id/job-card - the assigned
// worker updates production tracking for the order
func UpdateJobCard(c *gin.Context) {
	profile, err := middleware.GetProfile(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return
	}

	orderID, ok := orderIDParam(c)
	if !ok {
		return
	}

	var req UpdateJobCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	workflow := services.NewWorkflowService(config.GetDB())
	var card *models.JobCard

	if req.Minutes > 0 {
		card, err = workflow.LogMinutes(orderID, profile.UserID, req.Minutes)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
	}

	if req.WaitingMaterials != nil {
		card, err = workflow.SetWaitingMaterials(orderID, profile.UserID, *req.WaitingMaterials)
		if err != nil {
			respondWorkflowError(c, err)
			return
		}
	}

	if card == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Nothing to update",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    card,
	})
}
