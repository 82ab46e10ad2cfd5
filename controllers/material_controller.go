package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/middleware"
	"github.com/framecraft-studio/framecraft-api/models"
)

// MaterialRequest represents the request body for creating or updating a
// material
type MaterialRequest struct {
	Name            string   `json:"name" binding:"required"`
	Unit            string   `json:"unit" binding:"required"`
	UnitPrice       float64  `json:"unit_price" binding:"required,gte=0"`
	QuantityInStock *float64 `json:"quantity_in_stock" binding:"omitempty,gte=0"`
}

// ListMaterials handles GET /api/v1/materials - lists inventory with
// stock levels
func ListMaterials(c *gin.Context) {
	var materials []models.Material
	if err := config.GetDB().Order("name ASC").Find(&materials).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch materials",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    materials,
	})
}

// CreateMaterial handles POST /api/v1/materials (admins only; wired in
// routing)
func CreateMaterial(c *gin.Context) {
	var req MaterialRequest
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

	material := models.Material{
		Name:      req.Name,
		Unit:      req.Unit,
		UnitPrice: req.UnitPrice,
	}
	if req.QuantityInStock != nil {
		material.QuantityInStock = *req.QuantityInStock
	}

	if err := config.GetDB().Create(&material).Error; err != nil {
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "duplicate") ||
			strings.Contains(errMsg, "unique constraint") ||
			strings.Contains(errMsg, "unique") {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MATERIAL_EXISTS",
					"message": "A material with this name already exists",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create material",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    material,
	})
}

// UpdateMaterial handles PUT /api/v1/materials/:id (admins only; wired
// in routing)
func UpdateMaterial(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid material ID",
			},
		})
		return
	}

	var req MaterialRequest
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

	db := config.GetDB()
	var material models.Material
	if err := db.First(&material, uint(id)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MATERIAL_NOT_FOUND",
				"message": "Material not found",
			},
		})
		return
	}

	updates := map[string]interface{}{
		"name":       req.Name,
		"unit":       req.Unit,
		"unit_price": req.UnitPrice,
	}
	if req.QuantityInStock != nil {
		updates["quantity_in_stock"] = *req.QuantityInStock
	}

	if err := db.Model(&material).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update material",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    material,
	})
}

// DeleteMaterial handles DELETE /api/v1/materials/:id (admins only;
// wired in routing)
func DeleteMaterial(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid material ID",
			},
		})
		return
	}

	result := config.GetDB().Delete(&models.Material{}, uint(id))
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to delete material",
			},
		})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MATERIAL_NOT_FOUND",
				"message": "Material not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Material deleted",
	})
}

// AllocateMaterialRequest represents the request body for allocating a
// material to an order
type AllocateMaterialRequest struct {
	MaterialID uint    `json:"material_id" binding:"required"`
	Quantity   float64 `json:"quantity" binding:"required,gt=0"`
}

// AllocateMaterial handles POST /api/v1/orders/:id/materials - reserves
// a quantity of a material for an order (admins and workers)
func AllocateMaterial(c *gin.Context) {
	_, order, ok := loadOrderForCaller(c)
	if !ok {
		return
	}

	var req AllocateMaterialRequest
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

	db := config.GetDB()
	var material models.Material
	if err := db.First(&material, req.MaterialID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MATERIAL_NOT_FOUND",
				"message": "Material not found",
			},
		})
		return
	}

	allocation := models.OrderMaterial{
		OrderID:           order.ID,
		MaterialID:        material.ID,
		QuantityAllocated: req.Quantity,
	}
	if err := db.Create(&allocation).Error; err != nil {
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "duplicate") ||
			strings.Contains(errMsg, "unique constraint") ||
			strings.Contains(errMsg, "unique") {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ALREADY_ALLOCATED",
					"message": "This material is already allocated to the order",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to allocate material",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    allocation,
	})
}

// ListOrderMaterials handles GET /api/v1/orders/:id/materials - lists an
// order's allocations with their materials
func ListOrderMaterials(c *gin.Context) {
	_, order, ok := loadOrderForCaller(c)
	if !ok {
		return
	}

	var allocations []models.OrderMaterial
	if err := config.GetDB().Where("order_id = ?", order.ID).
		Preload("Material").
		Find(&allocations).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch order materials",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    allocations,
	})
}

// LogUsageRequest represents the request body for logging material
// consumption
type LogUsageRequest struct {
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
}

// LogUsage handles POST /api/v1/order-materials/:id/usage - records
// actual consumption against an allocation and decrements stock. The
// usage row and the stock decrement commit together; the decrement is
// guarded so stock never goes below zero, even with concurrent loggers.
func LogUsage(c *gin.Context) {
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

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid allocation ID",
			},
		})
		return
	}

	var req LogUsageRequest
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

	db := config.GetDB()
	var usage models.MaterialUsage
	var insufficientStock bool

	err = db.Transaction(func(tx *gorm.DB) error {
		var allocation models.OrderMaterial
		if err := tx.First(&allocation, uint(id)).Error; err != nil {
			return err
		}

		// Guarded decrement: the WHERE clause makes a concurrent
		// over-draw lose instead of driving stock negative
		result := tx.Model(&models.Material{}).
			Where("id = ? AND quantity_in_stock >= ?", allocation.MaterialID, req.Quantity).
			Update("quantity_in_stock", gorm.Expr("quantity_in_stock - ?", req.Quantity))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			insufficientStock = true
			return gorm.ErrInvalidData
		}

		usage = models.MaterialUsage{
			OrderMaterialID: allocation.ID,
			QuantityUsed:    req.Quantity,
			LoggedByID:      profile.UserID,
		}
		return tx.Create(&usage).Error
	})
	if err != nil {
		if insufficientStock {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INSUFFICIENT_STOCK",
					"message": "Not enough stock to log this usage",
				},
			})
			return
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ALLOCATION_NOT_FOUND",
					"message": "Material allocation not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to log material usage",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    usage,
	})
}
