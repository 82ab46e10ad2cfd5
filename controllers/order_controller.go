package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/middleware"
	"github.com/framecraft-studio/framecraft-api/models"
	"github.com/framecraft-studio/framecraft-api/services"
)

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	Description    string  `json:"description" binding:"required"`
	FrameStyle     string  `json:"frame_style" binding:"required"`
	WidthCM        float64 `json:"width_cm" binding:"required,gt=0"`
	HeightCM       float64 `json:"height_cm" binding:"required,gt=0"`
	BaseFramePrice float64 `json:"base_frame_price" binding:"required,gt=0"`
	Deadline       string  `json:"deadline" binding:"omitempty,oneof=standard express custom"`
}

// CreateOrder handles POST /api/v1/orders - creates a new order
// (customers only). The cost is computed server-side from the dimensions
// and the order number is generated with a uniqueness retry.
func CreateOrder(c *gin.Context) {
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

	// Check if user is a customer (only customers can create orders)
	if profile.Role != models.RoleCustomer {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only customers can create orders",
			},
		})
		return
	}

	// Parse request body
	var req CreateOrderRequest
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

	deadline := req.Deadline
	if deadline == "" {
		deadline = services.DeadlineStandard
	}

	quote := services.CalculateCost(req.WidthCM, req.HeightCM, req.BaseFramePrice)

	order := models.Order{
		Description: req.Description,
		FrameStyle:  req.FrameStyle,
		WidthCM:     req.WidthCM,
		HeightCM:    req.HeightCM,
		Deadline:    deadline,
		Cost:        quote.WithDeadline(deadline),
		Status:      models.OrderStatusPending,
		CustomerID:  profile.UserID,
	}

	db := config.GetDB()

	// Order numbers are random-suffixed; retry the insert on the rare
	// collision instead of trusting the suffix alone
	var created bool
	for attempt := 0; attempt < 3 && !created; attempt++ {
		number, err := generateOrderNumber()
		if err != nil {
			break
		}
		order.OrderNumber = number
		if err := db.Create(&order).Error; err == nil {
			created = true
		}
	}
	if !created {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create order",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"order": order,
			"quote": quote,
		},
	})
}

// ListOrders handles GET /api/v1/orders - lists orders scoped to the
// caller's role: customers see their own, workers see assigned, admins
// see everything
func ListOrders(c *gin.Context) {
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
	query := db.Model(&models.Order{})

	switch profile.Role {
	case models.RoleCustomer:
		query = query.Where("customer_id = ?", profile.UserID)
	case models.RoleWorker:
		query = query.Where("worker_id = ?", profile.UserID)
	}

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var orders []models.Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch orders",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// GetOrder handles GET /api/v1/orders/:id - fetches a single order with
// the same access rule as listing
func GetOrder(c *gin.Context) {
	_, order, ok := loadOrderForCaller(c)
	if !ok {
		return
	}

	// Attach the job card when one exists
	var card models.JobCard
	response := gin.H{"order": order}
	if err := config.GetDB().Where("order_id = ?", order.ID).First(&card).Error; err == nil {
		response["job_card"] = card
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    response,
	})
}

// AssignWorkerRequest represents the request body for assigning a worker
type AssignWorkerRequest struct {
	WorkerID uint `json:"worker_id" binding:"required"`
}

// AssignWorker handles POST /api/v1/orders/:id/assign - assigns a worker
// to a pending order (admins only; wired in routing)
func AssignWorker(c *gin.Context) {
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

	var req AssignWorkerRequest
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

	// The assignee must be an existing worker
	db := config.GetDB()
	var workerProfile models.Profile
	if err := db.Where("user_id = ? AND role = ?", req.WorkerID, models.RoleWorker).First(&workerProfile).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_WORKER",
				"message": "Worker not found",
			},
		})
		return
	}

	workflow := services.NewWorkflowService(db)
	order, err := workflow.AssignWorker(orderID, req.WorkerID, profile.UserID)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// StartWork handles POST /api/v1/orders/:id/start - the assigned worker
// begins production
func StartWork(c *gin.Context) {
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

	workflow := services.NewWorkflowService(config.GetDB())
	order, err := workflow.StartWork(orderID, profile.UserID)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// OrderStateRequest carries the optional reason for cancel/delay
type OrderStateRequest struct {
	Reason string `json:"reason" binding:"omitempty"`
}

// CancelOrder handles POST /api/v1/orders/:id/cancel. The ordering
// customer can cancel their own order; admins can cancel any.
func CancelOrder(c *gin.Context) {
	orderSideState(c, "cancel")
}

// DelayOrder handles POST /api/v1/orders/:id/delay - admins flag an
// order as delayed.
func DelayOrder(c *gin.Context) {
	orderSideState(c, "delay")
}

// ResumeOrder handles POST /api/v1/orders/:id/resume - admins put a
// delayed order back where it was.
func ResumeOrder(c *gin.Context) {
	orderSideState(c, "resume")
}

func orderSideState(c *gin.Context, action string) {
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

	var req OrderStateRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	db := config.GetDB()

	var target models.Order
	if err := db.First(&target, orderID).Error; err != nil {
		respondWorkflowError(c, err)
		return
	}

	allowed := profile.Role == models.RoleAdmin
	if action == "cancel" && target.CustomerID == profile.UserID {
		allowed = true
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "You do not have permission to change this order",
			},
		})
		return
	}

	workflow := services.NewWorkflowService(db)
	var order *models.Order
	switch action {
	case "cancel":
		order, err = workflow.Cancel(orderID, profile.UserID, req.Reason)
	case "resume":
		order, err = workflow.Resume(orderID, profile.UserID, req.Reason)
	default:
		order, err = workflow.MarkDelayed(orderID, profile.UserID, req.Reason)
	}
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// loadOrderForCaller fetches the order from the :id parameter and
// enforces the role-scoped access rule. On failure the response has
// already been written.
func loadOrderForCaller(c *gin.Context) (*models.Profile, *models.Order, bool) {
	profile, err := middleware.GetProfile(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return nil, nil, false
	}

	orderID, ok := orderIDParam(c)
	if !ok {
		return nil, nil, false
	}

	var order models.Order
	if err := config.GetDB().First(&order, orderID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_NOT_FOUND",
				"message": "Order not found",
			},
		})
		return nil, nil, false
	}

	canView := false
	switch profile.Role {
	case models.RoleCustomer:
		canView = order.CustomerID == profile.UserID
	case models.RoleWorker:
		canView = order.WorkerID != nil && *order.WorkerID == profile.UserID
	case models.RoleAdmin:
		canView = true
	}

	if !canView {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "You do not have permission to access this order",
			},
		})
		return nil, nil, false
	}

	return profile, &order, true
}

// orderIDParam parses the :id URL parameter. On failure the response has
// already been written.
func orderIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid order ID",
			},
		})
		return 0, false
	}
	return uint(id), true
}

// respondWorkflowError maps workflow service errors onto the response
// envelope.
func respondWorkflowError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_TRANSITION",
				"message": "The order is not in a state that allows this action",
			},
		})
	case errors.Is(err, services.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VERSION_CONFLICT",
				"message": "The order was modified concurrently. Reload and try again.",
			},
		})
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_NOT_FOUND",
				"message": "Order not found",
			},
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update order",
			},
		})
	}
}

// generateOrderNumber builds a human-readable order number from the date
// and a random suffix, e.g. FRM-20260830-K7TQWC.
func generateOrderNumber() (string, error) {
	plain, err := services.GeneratePlainCode()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("FRM-%s-%s", time.Now().Format("20060102"), plain[:6]), nil
}
