package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/models"
)

// ListOrderEvents handles GET /api/v1/orders/:id/events - returns the
// order's timeline, oldest first. Visibility follows the same role
// scoping as the order itself.
func ListOrderEvents(c *gin.Context) {
	_, order, ok := loadOrderForCaller(c)
	if !ok {
		return
	}

	var events []models.OrderEvent
	if err := config.GetDB().Where("order_id = ?", order.ID).
		Preload("Actor").
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch order events",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    events,
	})
}
