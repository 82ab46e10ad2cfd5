package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/middleware"
	"github.com/framecraft-studio/framecraft-api/models"
	"github.com/framecraft-studio/framecraft-api/services"
	"github.com/framecraft-studio/framecraft-api/utils"
)

// SubmitDraft handles POST /api/v1/orders/:id/drafts - the assigned
// worker uploads proof of the finished work (multipart: "file" plus an
// optional "note" field). The file is stored first; the order/job-card
// transition and the draft row commit together afterwards.
func SubmitDraft(c *gin.Context) {
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

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE",
				"message": "A draft file is required",
			},
		})
		return
	}

	fileService := services.GetFileService()
	if fileService == nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "STORAGE_ERROR",
				"message": "File storage is not configured",
			},
		})
		return
	}

	fileKey, err := fileService.StoreDraftFile(fileHeader)
	if err != nil {
		var uploadErr *utils.FileUploadError
		if errors.As(err, &uploadErr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    uploadErr.Code,
					"message": uploadErr.Message,
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "STORAGE_ERROR",
				"message": "Failed to store draft file",
			},
		})
		return
	}

	workflow := services.NewWorkflowService(config.GetDB())
	draft, err := workflow.SubmitDraft(orderID, profile.UserID, fileKey, c.PostForm("note"))
	if err != nil {
		// The upload is orphaned if the transition fails; remove it
		if deleteErr := fileService.DeleteFile(fileKey); deleteErr != nil {
			log.Warnf("Failed to delete orphaned draft file %s: %v", fileKey, deleteErr)
		}
		respondWorkflowError(c, err)
		return
	}

	if url, err := fileService.GetFileURL(draft.FileKey); err == nil {
		draft.FileURL = url
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    draft,
	})
}

// ListDrafts handles GET /api/v1/orders/:id/drafts - lists an order's
// drafts, newest first, with resolved file URLs
func ListDrafts(c *gin.Context) {
	_, order, ok := loadOrderForCaller(c)
	if !ok {
		return
	}

	var drafts []models.Draft
	if err := config.GetDB().Where("order_id = ?", order.ID).
		Order("created_at DESC").
		Find(&drafts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch drafts",
			},
		})
		return
	}

	if fileService := services.GetFileService(); fileService != nil {
		for i := range drafts {
			if url, err := fileService.GetFileURL(drafts[i].FileKey); err == nil {
				drafts[i].FileURL = url
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    drafts,
	})
}

// ReviewDraftRequest represents the request body for approving or
// rejecting a draft
type ReviewDraftRequest struct {
	Note string `json:"note" binding:"omitempty"`
}

// ApproveDraft handles POST /api/v1/drafts/:id/approve - closes the
// order. Only the ordering customer or an admin may review.
func ApproveDraft(c *gin.Context) {
	reviewDraft(c, true)
}

// RejectDraft handles POST /api/v1/drafts/:id/reject - sends the order
// back to production. Only the ordering customer or an admin may review.
func RejectDraft(c *gin.Context) {
	reviewDraft(c, false)
}

func reviewDraft(c *gin.Context, approve bool) {
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

	draftID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Invalid draft ID",
			},
		})
		return
	}

	var req ReviewDraftRequest
	_ = c.ShouldBindJSON(&req) // note is optional

	db := config.GetDB()

	var draft models.Draft
	if err := db.First(&draft, draftID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DRAFT_NOT_FOUND",
					"message": "Draft not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch draft",
			},
		})
		return
	}

	var owner models.Order
	if err := db.First(&owner, draft.OrderID).Error; err != nil {
		respondWorkflowError(c, err)
		return
	}
	if profile.Role != models.RoleAdmin && owner.CustomerID != profile.UserID {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only the ordering customer may review drafts",
			},
		})
		return
	}

	workflow := services.NewWorkflowService(db)
	var order *models.Order
	if approve {
		order, err = workflow.ApproveDraft(uint(draftID), profile.UserID, req.Note)
	} else {
		order, err = workflow.RejectDraft(uint(draftID), profile.UserID, req.Note)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DRAFT_NOT_FOUND",
					"message": "Draft not found",
				},
			})
			return
		}
		respondWorkflowError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}
