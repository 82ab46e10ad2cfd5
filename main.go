package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/controllers"
	"github.com/framecraft-studio/framecraft-api/middleware"
	"github.com/framecraft-studio/framecraft-api/models"
	"github.com/framecraft-studio/framecraft-api/services"
)

func main() {
	log.Info("Starting Framecraft API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	config.SetConfig(cfg)

	// Connect to database
	if err := config.ConnectDatabase(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.RegistrationCode{},
		&models.VerificationCode{},
		&models.Order{},
		&models.JobCard{},
		&models.Draft{},
		&models.Material{},
		&models.OrderMaterial{},
		&models.MaterialUsage{},
		&models.OrderEvent{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Info("Database migration completed successfully")

	// Outbound email: real SMTP when configured, log-only otherwise
	services.InitEmailSender(cfg)

	// Order change feed over Redis. Optional: the API works without it,
	// subscribers just see nothing.
	if _, err := services.InitEventPublisher(cfg.RedisURL); err != nil {
		log.Warnf("Event publisher unavailable, order changes will not be broadcast: %v", err)
	}

	// Draft storage: S3 when a bucket is configured, local disk otherwise
	if cfg.AWSS3Bucket != "" {
		if _, err := services.InitS3Service(); err != nil {
			log.Warnf("S3 unavailable, falling back to local draft storage: %v", err)
		}
	}
	services.InitFileService(cfg.UploadDir)

	router := setupRouter(cfg)

	addr := ":" + cfg.Port
	log.Infof("Server is running on http://localhost%s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupRouter wires middleware and all API routes. Split from main so
// tests can build the same router against a test database.
func setupRouter(cfg *config.Config) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	identity := services.NewIdentityService(config.GetDB(), services.NewSyncCache(), cfg.AuthFailOpen)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)

		// Locally stored draft files (S3 deployments use presigned URLs)
		v1.GET("/uploads/:filename", controllers.GetUploadedFile)

		auth := v1.Group("/auth")
		{
			auth.POST("/signup", controllers.Signup)
			auth.POST("/verify-email", controllers.VerifyEmail)
			auth.POST("/resend-code", controllers.ResendCode)
			auth.POST("/login", controllers.Login)
			auth.POST("/forgot-password", controllers.ForgotPassword)
			auth.POST("/reset-password", controllers.ResetPassword)
		}

		// Everything below requires a valid token and a live account
		authed := v1.Group("")
		authed.Use(middleware.EnsureValidToken(cfg))
		authed.Use(middleware.ResolveIdentity(identity))
		{
			authed.GET("/users/me", controllers.GetMyProfile)
			authed.PUT("/users/me", controllers.UpdateMyProfile)

			authed.POST("/orders", controllers.CreateOrder)
			authed.GET("/orders", controllers.ListOrders)
			authed.GET("/orders/:id", controllers.GetOrder)
			authed.POST("/orders/:id/start", controllers.StartWork)
			authed.POST("/orders/:id/cancel", controllers.CancelOrder)
			authed.POST("/orders/:id/delay", controllers.DelayOrder)
			authed.POST("/orders/:id/resume", controllers.ResumeOrder)
			authed.GET("/orders/:id/events", controllers.ListOrderEvents)

			authed.POST("/orders/:id/drafts", controllers.SubmitDraft)
			authed.GET("/orders/:id/drafts", controllers.ListDrafts)
			authed.POST("/drafts/:id/approve", controllers.ApproveDraft)
			authed.POST("/drafts/:id/reject", controllers.RejectDraft)

			authed.GET("/job-cards", controllers.ListJobCards)
			authed.PATCH("/orders/:id/job-card", controllers.UpdateJobCard)

			authed.GET("/materials", controllers.ListMaterials)
			authed.GET("/orders/:id/materials", controllers.ListOrderMaterials)

			staff := authed.Group("")
			staff.Use(middleware.RequireRole(models.RoleWorker, models.RoleAdmin))
			{
				staff.POST("/orders/:id/materials", controllers.AllocateMaterial)
				staff.POST("/order-materials/:id/usage", controllers.LogUsage)
			}

			admin := authed.Group("")
			admin.Use(middleware.RequireRole(models.RoleAdmin))
			{
				admin.POST("/orders/:id/assign", controllers.AssignWorker)

				admin.GET("/users", controllers.ListUsers)
				admin.DELETE("/users/:id", controllers.DeleteUser)

				admin.POST("/materials", controllers.CreateMaterial)
				admin.PUT("/materials/:id", controllers.UpdateMaterial)
				admin.DELETE("/materials/:id", controllers.DeleteMaterial)

				admin.POST("/admin/codes", controllers.GenerateCodes)
				admin.GET("/admin/codes", controllers.ListCodes)
				admin.DELETE("/admin/codes/:id", controllers.RevokeCode)
				admin.DELETE("/admin/codes", controllers.ResetCodes)
			}
		}
	}

	return router
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Framecraft API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	var tables []string
	if err := db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public'").Scan(&tables).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
