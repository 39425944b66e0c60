package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/driftbyte/snapharbor/internal/api/handlers"
	"github.com/driftbyte/snapharbor/internal/api/middleware"
	"github.com/driftbyte/snapharbor/internal/auth"
	"github.com/driftbyte/snapharbor/internal/config"
	"github.com/driftbyte/snapharbor/internal/database"
	"github.com/driftbyte/snapharbor/internal/holds"
	"github.com/driftbyte/snapharbor/internal/logging"
	"github.com/driftbyte/snapharbor/internal/restore"
	"github.com/driftbyte/snapharbor/internal/upstream"
	"github.com/driftbyte/snapharbor/internal/websocket"
)

// SetupRouter configures and returns the HTTP router
func SetupRouter(
	cfg *config.Config,
	store *database.Store,
	api upstream.API,
	gate *holds.Gate,
	manager *restore.Manager,
	dispatcher *restore.Dispatcher,
	compare *restore.CompareRegistry,
	activity *logging.ActivityLogger,
	hub *websocket.Hub,
	preflight handlers.TargetPreflight,
) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.Security.CORS))
	router.Use(middleware.RateLimit(cfg.Security.RateLimit.Enabled, cfg.Security.RateLimit.RequestsPerMinute))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.ContentSecurityPolicy(cfg.Logging.Level == "debug"))

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.Auth.JWTSecret,
		parseDuration(cfg.Auth.AccessTokenDuration),
	)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(store, jwtManager, activity, cfg.Auth.BcryptCost)
	snapshotHandler := handlers.NewSnapshotHandler(api, gate, compare)
	restoreHandler := handlers.NewRestoreHandler(api, manager, dispatcher, activity, preflight)
	holdHandler := handlers.NewHoldHandler(gate, activity)
	activityHandler := handlers.NewActivityHandler(activity)
	wsHandler := handlers.NewWSHandler(cfg, hub)

	// Public routes
	public := router.Group("/api/v1")
	{
		public.GET("/auth/setup-status", authHandler.SetupStatus)
		public.POST("/auth/setup", authHandler.SetupInitialAdmin)
		public.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := router.Group("/api/v1")
	protected.Use(middleware.Auth(jwtManager))
	{
		// Auth routes
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		// Agent and snapshot browsing
		protected.GET("/agents", snapshotHandler.ListAgents)
		snapshots := protected.Group("/snapshots")
		{
			snapshots.GET("", snapshotHandler.ListSnapshots)
			snapshots.GET(":id/files", snapshotHandler.ListSnapshotFiles)
			snapshots.POST(":id/compare", snapshotHandler.ToggleCompare)

			// Legal holds: listing is open, mutation is role-gated
			snapshots.POST(":id/legal-hold", middleware.RequireHoldManager(), holdHandler.PlaceHold)
			snapshots.DELETE(":id/legal-hold", middleware.RequireHoldManager(), holdHandler.RemoveHold)
		}
		protected.GET("/compare", snapshotHandler.GetCompare)
		protected.DELETE("/compare", snapshotHandler.ClearCompare)
		protected.GET("/legal-holds", holdHandler.ListHolds)

		// Audit trail, restricted like hold management
		protected.GET("/activity", middleware.RequireHoldManager(), activityHandler.ListActivities)

		// Restore workflow sessions
		sessions := protected.Group("/restore/sessions")
		{
			sessions.POST("", restoreHandler.OpenSession)
			sessions.GET(":id", restoreHandler.GetSession)
			sessions.GET(":id/files", restoreHandler.ListFiles)
			sessions.DELETE(":id", restoreHandler.CloseSession)
			sessions.PUT(":id/destination", restoreHandler.SetDestination)
			sessions.PUT(":id/type", restoreHandler.SetRestoreType)
			sessions.PUT(":id/cross-agent", restoreHandler.SetCrossAgent)
			sessions.PUT(":id/mappings", restoreHandler.SetMappings)
			sessions.PUT(":id/cloud-target", restoreHandler.SetCloudTarget)
			sessions.POST(":id/selection/toggle", restoreHandler.ToggleSelection)
			sessions.POST(":id/selection/all", restoreHandler.SelectAll)
			sessions.POST(":id/selection/clear", restoreHandler.ClearSelection)
			sessions.POST(":id/preview", restoreHandler.Preview)
			sessions.POST(":id/back", restoreHandler.Back)
			sessions.POST(":id/start", restoreHandler.Start)
		}

		// Dispatched jobs
		protected.GET("/restores", restoreHandler.ListRestores)
		protected.GET("/restores/:id/progress", restoreHandler.GetCloudProgress)

		// WebSocket routes (authentication handled in handler)
		protected.GET("/ws/restores/:id", wsHandler.HandleRestoreProgress)
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return router
}

// parseDuration is a helper to parse duration strings
// For now, we'll use a simple implementation
func parseDuration(duration string) time.Duration {
	d, err := time.ParseDuration(duration)
	if err != nil {
		return 15 * time.Minute // Default fallback
	}
	return d
}
