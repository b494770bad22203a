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

	"github.com/ksred/fundledger/internal/auth"
	"github.com/ksred/fundledger/internal/database"
	"github.com/ksred/fundledger/internal/fees"
	"github.com/ksred/fundledger/internal/investor"
	"github.com/ksred/fundledger/internal/ledger"
	"github.com/ksred/fundledger/internal/operating"
	"github.com/ksred/fundledger/internal/returns"
	"github.com/ksred/fundledger/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the portfolio ledger API server with
// graceful shutdown support
func main() {
	// Initialize database
	db, err := database.NewDatabase(os.Getenv("DATABASE_PATH"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "fundledger-secret-key"
	}

	// Initialize services and handlers
	authService := auth.NewService(jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	investorService := investor.NewService(db)
	investorHandlers := investor.NewGinHandlers(investorService)

	ledgerService := ledger.NewService(db)
	ledgerHandlers := ledger.NewGinHandlers(ledgerService)

	operatingService := operating.NewService(db)
	operatingHandlers := operating.NewGinHandlers(operatingService)

	feeService := fees.NewService(db)
	feeHandlers := fees.NewGinHandlers(feeService)

	returnsService := returns.NewService(db)
	returnsHandlers := returns.NewGinHandlers(returnsService)

	// Create and start the pending entry processor
	pendingProcessor := ledger.NewProcessor(ledgerService.GetDB())
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go pendingProcessor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authHandlers, investorHandlers, ledgerHandlers, operatingHandlers, feeHandlers, returnsHandlers)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Everything else: Protected by JWT authentication carrying the
//   acting admin identity recorded as applied_by on engine writes
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	investorHandlers *investor.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
	operatingHandlers *operating.GinHandlers,
	feeHandlers *fees.GinHandlers,
	returnsHandlers *returns.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Investor directory and per-investor ledger routes
		investors := v1.Group("/investors")
		investors.Use(middleware.JWTAuth())
		{
			investors.POST("", investorHandlers.CreateInvestorHandler())
			investors.GET("", investorHandlers.ListInvestorsHandler())
			investors.GET("/:investor_id", investorHandlers.GetInvestorHandler())
			investors.PUT("/:investor_id/status", investorHandlers.SetStatusHandler())
			investors.PUT("/:investor_id/fee-settings", investorHandlers.SetFeeSettingsHandler())

			investors.POST("/:investor_id/deposits", ledgerHandlers.DepositHandler())
			investors.POST("/:investor_id/withdrawals", ledgerHandlers.WithdrawHandler())
			investors.POST("/:investor_id/referral-commissions", ledgerHandlers.ReferralCommissionHandler())
			investors.GET("/:investor_id/portfolio", ledgerHandlers.GetPortfolioHandler())
			investors.GET("/:investor_id/ledger", ledgerHandlers.GetHistoryHandler())
			investors.GET("/:investor_id/twr", returnsHandlers.GetTWRHandler())
			investors.GET("/:investor_id/trading-fees", feeHandlers.ListFeesHandler())
		}

		// Daily operating result engine
		results := v1.Group("/operating-results")
		results.Use(middleware.JWTAuth())
		{
			results.POST("/preview", operatingHandlers.PreviewHandler())
			results.POST("", operatingHandlers.ApplyHandler())
			results.GET("", operatingHandlers.ListResultsHandler())
		}

		// Trading fee engine
		tradingFees := v1.Group("/trading-fees")
		tradingFees.Use(middleware.JWTAuth())
		{
			tradingFees.POST("/calculate", feeHandlers.CalculateHandler())
			tradingFees.POST("", feeHandlers.ApplyHandler())
			tradingFees.PUT("/:fee_id", feeHandlers.EditHandler())
			tradingFees.POST("/:fee_id/void", feeHandlers.VoidHandler())
		}
	}
}
