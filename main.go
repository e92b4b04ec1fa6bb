// api/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"funnelboard/api/analytics"
	"funnelboard/api/database"
	"funnelboard/api/handlers"
	"funnelboard/api/insights"
	"funnelboard/api/middleware"
	"funnelboard/api/store"
)

func main() {
	// Load .env file at the very start
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env: %v", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Initialize PostgreSQL Database (users, projects, funnels) ---
	dbClient, err := database.NewPostgresDB()
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL database: %v", err)
	}
	defer dbClient.Close()

	// --- Initialize ClickHouse Database (tracked events) ---
	chClient, err := database.NewClickHouseDB()
	if err != nil {
		log.Fatalf("Failed to initialize ClickHouse database: %v", err)
	}
	defer chClient.Close()

	// --- Initialize Stores ---
	userStore := store.NewUserStore(dbClient.DB)
	projectStore := store.NewProjectStore(dbClient.DB)
	funnelStore := store.NewFunnelStore(dbClient.DB)
	eventStore := store.NewEventStore(chClient)

	// Bootstrap the default POC project so tracking works without setup.
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 5*time.Second)
	project, err := projectStore.EnsureDefaultProject(bootCtx, handlers.DefaultProjectID, "Inspiration-to-Action", "Home Feed")
	bootCancel()
	if err != nil {
		log.Printf("Warning: could not ensure default project: %v", err)
	} else {
		log.Printf("Default project ready: %s (%s)", project.Name, project.ID)
	}

	// --- Initialize Services & Handlers ---
	analyticsService := analytics.NewService(eventStore)
	insightsClient := insights.NewClientFromEnv()

	authHandlers := handlers.NewAuthHandlers(userStore)
	trackHandlers := handlers.NewTrackHandlers(eventStore, projectStore)
	projectHandlers := handlers.NewProjectHandlers(projectStore)
	funnelHandlers := handlers.NewFunnelHandlers(funnelStore)
	analyticsHandlers := handlers.NewAnalyticsHandlers(funnelStore, analyticsService, insightsClient)

	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")
	{
		// Authentication Endpoints (no authentication required)
		api.POST("/signup", authHandlers.Signup)
		api.POST("/login", authHandlers.Login)
		api.POST("/logout", authHandlers.Logout)

		// Tracking SDK endpoints authenticate via X-API-KEY per request.
		api.POST("/track", trackHandlers.TrackEvent)
		api.POST("/track/batch", trackHandlers.TrackBatch)

		// Protected Routes (require a valid JWT token)
		protected := api.Group("/")
		protected.Use(middleware.AuthRequired())
		{
			projectGroup := protected.Group("/projects")
			{
				projectGroup.GET("", projectHandlers.ListProjects)
				projectGroup.POST("", projectHandlers.CreateProject)
			}

			funnelGroup := protected.Group("/funnels")
			{
				funnelGroup.GET("", funnelHandlers.ListFunnels)
				funnelGroup.POST("", funnelHandlers.CreateFunnel)
				funnelGroup.GET("/:funnel_id", funnelHandlers.GetFunnel)
				funnelGroup.PUT("/:funnel_id", funnelHandlers.UpdateFunnel)
				funnelGroup.DELETE("/:funnel_id", funnelHandlers.DeleteFunnel)
			}

			protected.GET("/events/types", trackHandlers.GetEventTypes)

			analyticsGroup := protected.Group("/analytics")
			{
				analyticsGroup.GET("/funnel/:funnel_id", analyticsHandlers.GetFunnelAnalytics)
				analyticsGroup.GET("/funnel/:funnel_id/insights", analyticsHandlers.GetFunnelInsights)
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Printf("Funnelboard API server starting on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
