package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/api"
	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/db"
	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/holiday"
	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/logging"
	"github.com/daichi-okamoto/ai-shift-app-sub000/internal/schedule"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	log.SetOutput(os.Stdout)

	log.Printf("Schedule Service starting (GIT_SHA=%s BUILD_TIME=%s)", os.Getenv("GIT_SHA"), os.Getenv("BUILD_TIME"))

	// Initialize database connection (non-fatal; allow process to start for /live)
	database, err := db.NewDatabase()
	if err != nil {
		log.Printf("[WARN] Database initialization failed at startup: %v", err)
	}
	if database != nil {
		defer database.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := database.EnsureSchema(ctx); err != nil {
			log.Printf("[WARN] Schema bootstrap failed: %v", err)
		}
		cancel()
	}

	var store schedule.Store
	var healthCheck func(context.Context) error
	if database != nil {
		store = db.NewStore(database)
		healthCheck = database.Health
	}

	gateway := schedule.NewGatewayFromEnv()
	calendar := holiday.NewClient()
	svc := schedule.NewService(store, gateway, calendar)

	handler := api.NewHandler(store, svc, healthCheck)
	router := setupRouter(handler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := router.Run(":" + port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
}

func setupRouter(handler *api.Handler) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(logging.JSONLogger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Health and readiness endpoints
	router.GET("/live", func(c *gin.Context) { c.Status(200) })
	router.GET("/ready", handler.Health)
	router.GET("/health", handler.Health)

	v1 := router.Group("/api/v1")
	{
		v1.Use(api.OptionalAuthMiddleware())

		// Read endpoints
		v1.GET("/units/:id/shifts", handler.GetShifts)
		v1.GET("/organizations/:id/shift-types", handler.GetShiftTypes)

		// Mutating endpoints
		protected := v1.Group("")
		protected.Use(api.AuthMiddleware())
		{
			protected.POST("/units/:id/shifts/bulk", handler.BulkUpsertShifts)
			protected.DELETE("/units/:id/shifts", handler.DeleteShiftRange)
			protected.POST("/units/:id/schedule/generate", handler.GenerateSchedule)

			protected.POST("/organizations/:id/shift-types", handler.CreateShiftType)
			protected.POST("/organizations/:id/shift-types/defaults", handler.ProvisionDefaultShiftTypes)
			protected.PUT("/shift-types/:id", handler.UpdateShiftType)
			protected.DELETE("/shift-types/:id", handler.DeleteShiftType)
		}
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "schedule-service",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	return router
}

// corsMiddleware adds CORS headers to allow cross-origin requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
