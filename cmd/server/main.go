package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/PettyFoot/stonks-two-sub010/internal/aggregate"
	"github.com/PettyFoot/stonks-two-sub010/internal/auth"
	"github.com/PettyFoot/stonks-two-sub010/internal/config"
	"github.com/PettyFoot/stonks-two-sub010/internal/database"
	"github.com/PettyFoot/stonks-two-sub010/internal/integrity"
	"github.com/PettyFoot/stonks-two-sub010/internal/orders"
	"github.com/PettyFoot/stonks-two-sub010/internal/recalc"
	"github.com/PettyFoot/stonks-two-sub010/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the trade reconciliation server with graceful
// shutdown support.
func main() {
	cfg := config.Load()

	db, err := database.NewDatabase(cfg.DBPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	aggregator, err := aggregate.NewAggregator(cfg.MarketTimezone)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize aggregator")
	}

	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials outside production
	if cfg.Env != "production" {
		authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)
	}

	orderService := orders.NewService(db)
	orderHandlers := orders.NewGinHandlers(orderService)

	recalcService := recalc.NewService(db, aggregator)
	recalcHandlers := recalc.NewGinHandlers(recalcService)

	integrityService := integrity.NewService(db, recalcService)
	integrityHandlers := integrity.NewGinHandlers(integrityService)

	// Setup middleware
	router.Use(middleware.RateLimit())

	setupRoutes(router, cfg.JWTSecret, authHandlers, orderHandlers, recalcHandlers, integrityHandlers)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding rebuilds 5 seconds to commit
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers:
// - Auth routes: public token endpoint
// - Order routes: ingestion of normalized executions and order reads
// - Trade routes: rebuilds, reads, annotations, deletion
// - /metrics: Prometheus exposition
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	orderHandlers *orders.GinHandlers,
	recalcHandlers *recalc.GinHandlers,
	integrityHandlers *integrity.GinHandlers,
) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order routes
		orderGroup := v1.Group("/orders")
		orderGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			orderGroup.POST("/import", orderHandlers.ImportOrdersHandler())
			orderGroup.GET("", orderHandlers.ListOrdersHandler())
		}

		// Trade routes
		tradeGroup := v1.Group("/trades")
		tradeGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			tradeGroup.POST("/build", recalcHandlers.BuildTradesHandler())
			tradeGroup.POST("/recalculate/:batch_id", recalcHandlers.RecalculateBatchHandler())
			tradeGroup.GET("", recalcHandlers.GetTradesHandler())
			tradeGroup.PUT("/:trade_ref/annotations", recalcHandlers.UpdateAnnotationsHandler())
			tradeGroup.POST("/validate-deletion", integrityHandlers.ValidateDeletionHandler())
			tradeGroup.POST("/delete", integrityHandlers.DeleteTradesHandler())
		}
	}
}
