package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"integrity-analyze-service/auth"
	"integrity-analyze-service/config"
	"integrity-analyze-service/handlers"
	"integrity-analyze-service/metrics"
	"integrity-analyze-service/middleware"
	"integrity-analyze-service/service"
)

const (
	EndPointHealth  = "/health"
	EndPointMetrics = "/metrics"
	EndPointAnalyze = "/analyze"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.SetLevelFromString(cfg.LogLevel)

	// A missing key is not fatal: the analyze endpoint reports it per
	// request, matching clients that probe readiness via error bodies.
	if cfg.LLMProvider == "gemini" && cfg.GeminiAPIKey == "" {
		log.Warn("GOOGLE_API_KEY not set; /analyze will answer 500 until configured")
	}

	metrics.Register()

	// Initialize service
	analysisService := service.NewService(cfg)
	defer analysisService.Close()

	// Initialize handlers
	h := handlers.NewHandlers(analysisService)

	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.AuthServiceURL, cfg.AuthServiceAPIKey)
	if cfg.RequireAuth && !verifier.Configured() {
		log.Warn("REQUIRE_AUTH set but no JWT secret or auth service URL configured; auth disabled")
	}

	// Setup HTTP server
	router := gin.Default()
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	router.GET(EndPointHealth, h.HealthCheck)
	router.GET(EndPointMetrics, gin.WrapH(promhttp.Handler()))

	protected := router.Group("/")
	if cfg.RateLimitPerMinute > 0 {
		protected.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute, time.Minute))
	}
	if verifier.Configured() {
		protected.Use(middleware.AuthMiddleware(verifier, cfg.RequireAuth))
	}
	protected.POST(EndPointAnalyze, h.Analyze)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Create a deadline for server shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
