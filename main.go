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

	"sitepulse/api/database"
	"sitepulse/api/forwarder"
	"sitepulse/api/handlers"
	"sitepulse/api/middleware"
	"sitepulse/api/store"
)

func main() {
	// Load .env file at the very start
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env: %v", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Initialize the embedded SQLite database (KV substrate + users) ---
	dbClient, err := database.NewSQLiteDB()
	if err != nil {
		log.Fatalf("Failed to initialize SQLite database: %v", err)
	}
	defer dbClient.Close()

	// --- Resolve the durable visitor/session identity ---
	identity := store.NewIdentity(dbClient)
	userID, err := identity.UserID()
	if err != nil {
		log.Fatalf("Failed to resolve user id: %v", err)
	}
	sessionID, err := identity.SessionID()
	if err != nil {
		log.Fatalf("Failed to resolve session id: %v", err)
	}

	// --- Initialize the outbound GA forwarder ---
	gaForwarder, err := forwarder.New(dbClient, userID, sessionID, nil)
	if err != nil {
		log.Fatalf("Failed to initialize GA forwarder: %v", err)
	}
	gaForwarder.SetEndpoint(os.Getenv("GA_COLLECT_URL"))

	// --- Initialize Stores ---
	analyticsStore, err := store.NewAnalyticsStore(dbClient, gaForwarder)
	if err != nil {
		log.Fatalf("Failed to initialize analytics store: %v", err)
	}
	userStore := store.NewUserStore(dbClient.DB)

	// --- Initialize Handlers ---
	authHandlers := handlers.NewAuthHandlers(userStore)
	analyticsHandlers := handlers.NewAnalyticsHandlers(analyticsStore, gaForwarder)

	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")
	{
		// Authentication endpoints for the dashboard (no auth required)
		api.POST("/signup", authHandlers.Signup)
		api.POST("/login", authHandlers.Login)
		api.POST("/logout", authHandlers.Logout)

		// Capture surface: the tracked page posts raw signals anonymously.
		track := api.Group("/track")
		{
			track.POST("/pageview", analyticsHandlers.TrackPageView)
			track.POST("/click", analyticsHandlers.TrackClick)
			track.POST("/scroll", analyticsHandlers.TrackScroll)
			track.POST("/conversion", analyticsHandlers.TrackConversion)
			track.POST("/navigation", analyticsHandlers.TrackNavigation)
		}

		// Dashboard routes (require a valid JWT or the dashboard API key)
		protected := api.Group("/")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/report", analyticsHandlers.GetReport)
			protected.GET("/report/hourly", analyticsHandlers.GetHourlyHistogram)
			protected.GET("/report/heatmap", analyticsHandlers.GetHeatmap)

			protected.GET("/config/ga", analyticsHandlers.GetGAConfig)
			protected.POST("/config/ga", analyticsHandlers.SaveGAConfig)

			protected.GET("/forwarder/log", analyticsHandlers.GetForwarderLog)
			protected.DELETE("/forwarder/log", analyticsHandlers.ClearForwarderLog)
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
		log.Printf("SitePulse collector starting on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("SitePulse collector failed to start: %v", err)
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
