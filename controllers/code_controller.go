package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/services"
)

// GenerateCodesRequest represents the request body for minting
// registration codes
type GenerateCodesRequest struct {
	Role  string `json:"role" binding:"required"`
	Count int    `json:"count" binding:"required,gt=0"`
}

// GenerateCodes handles POST /api/v1/admin/codes - mints a batch of
// registration codes. The plaintext codes appear in this response only;
// the database keeps hashes.
func GenerateCodes(c *gin.Context) {
	var req GenerateCodesRequest
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

	codeService := services.NewCodeService(config.GetDB())
	generated, err := codeService.Generate(req.Role, req.Count)
	if err != nil {
		if errors.Is(err, services.ErrCodeLimitExceeded) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "CODE_LIMIT_EXCEEDED",
					"message": "Too many outstanding registration codes; revoke some first",
				},
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    generated,
	})
}

// ListCodes handles GET /api/v1/admin/codes - lists code records (never
// plaintext codes)
func ListCodes(c *gin.Context) {
	codeService := services.NewCodeService(config.GetDB())
	codes, err := codeService.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch registration codes",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    codes,
	})
}

// RevokeCode handles DELETE /api/v1/admin/codes/:id
func RevokeCode(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid code ID",
			},
		})
		return
	}

	codeService := services.NewCodeService(config.GetDB())
	if err := codeService.Revoke(uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "CODE_NOT_FOUND",
					"message": "Registration code not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to revoke registration code",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Registration code revoked",
	})
}

// ResetCodes handles DELETE /api/v1/admin/codes - deletes every
// registration code, used and unused alike
func ResetCodes(c *gin.Context) {
	codeService := services.NewCodeService(config.GetDB())
	if err := codeService.ResetAll(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to reset registration codes",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "All registration codes deleted",
	})
}
