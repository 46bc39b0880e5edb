package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/metavis/renderengine/controllers"
	"github.com/metavis/renderengine/middleware"
)

func SetupRoutes(r *gin.Engine) {
	// Initialize controllers
	authController := controllers.NewAuthController()
	jobController := controllers.NewJobController()
	governanceController := controllers.NewGovernancePlanController()

	// Health check and system endpoints
	r.GET("/health", healthCheck)
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "Deliverable Render Engine API",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Authentication routes (no auth required)
		auth := v1.Group("/auth")
		{
			auth.POST("/register", middleware.AuthRateLimit(), authController.Register)
			auth.POST("/login", middleware.AuthRateLimit(), authController.Login)
			auth.POST("/refresh", authController.RefreshToken)
		}

		// Protected authentication routes
		authProtected := v1.Group("/auth")
		authProtected.Use(middleware.AuthRequired())
		{
			authProtected.GET("/profile", authController.Profile)
			authProtected.POST("/change-password", authController.ChangePassword)
		}

		// Render job lifecycle routes: submit a Timeline, poll status,
		// fetch the published DeliverableManifest once complete.
		jobs := v1.Group("/jobs")
		jobs.Use(middleware.AuthRequired())
		{
			jobs.POST("", jobController.Create)
			jobs.GET("/:id", jobController.Get)
			jobs.GET("/:id/manifest", jobController.Manifest)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired())
		admin.Use(middleware.RoleRequired("admin"))
		{
			admin.POST("/governance-plans", governanceController.Create)
			admin.GET("/governance-plans", governanceController.List)
		}
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status": "healthy",
		"services": gin.H{
			"database": "connected",
			"redis":    "connected",
			"rabbitmq": "connected",
		},
	})
}
