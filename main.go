package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/config"
	"github.com/kendall-kelly/servicehub-api/controllers"
	"github.com/kendall-kelly/servicehub-api/middleware"
	"github.com/kendall-kelly/servicehub-api/models"
	"github.com/kendall-kelly/servicehub-api/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger := config.NewLogger(cfg)
	logger.Info().Msg("Starting ServiceHub API server...")

	if err := config.ConnectDatabase(cfg); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	db := config.GetDB()
	if err := config.Migrate(db, cfg); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := services.Options{}
	if cfg.NatsURL != "" {
		publisher, err := services.NewNATSPublisher(cfg.NatsURL, "servicehub", logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer publisher.Close()
		opts.Events = publisher
	}
	if cfg.AWSS3Bucket != "" {
		archive, err := services.NewS3DrawArchive(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialise draw archive")
		}
		opts.Archive = archive
	}

	svc, err := services.New(db, cfg, logger, opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialise services")
	}

	sweeper := services.NewExpirySweeper(svc.Requests, cfg.ExpirySweepInterval, logger.With().Str("component", "sweeper").Logger())
	sweeper.Start()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := controllers.NewHandler(db, cfg, svc, logger)
	router := setupRouter(cfg, handler, middleware.EnsureValidToken(cfg), logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("Server is running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := sweeper.Stop(); err != nil {
		logger.Error().Err(err).Msg("Expiry sweeper stopped with error")
	}
}

// setupRouter wires every route. auth guards the signed-in routes so tests
// can swap in a fake.
func setupRouter(cfg *config.Config, h *controllers.Handler, auth gin.HandlerFunc, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.Metrics())
	router.Use(cors.New(corsConfig(cfg)))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	customer := middleware.RequireRole(models.RoleCustomer)
	business := middleware.RequireRole(models.RoleBusiness)
	admin := middleware.RequireRole(models.RoleAdmin)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)

		// Public marketplace routes
		v1.POST("/service-requests", h.CreateServiceRequest)
		v1.GET("/my-requests", h.ListMyRequests)
		v1.GET("/my-requests/:id", h.GetMyRequest)
		v1.PUT("/my-requests/:id", h.UpdateMyRequest)

		authed := v1.Group("", auth)
		{
			authed.POST("/users", h.CreateUser)
			authed.GET("/users/me", h.GetMyProfile)
			authed.PUT("/users/me", h.UpdateMyProfile)

			authed.POST("/businesses", business, h.CreateBusiness)
			authed.GET("/businesses/me", business, h.GetMyBusiness)
			authed.PUT("/businesses/me", business, h.UpdateMyBusiness)

			authed.POST("/service-requests/:id/responses", business, h.SubmitServiceRequestResponse)
			authed.GET("/dashboard/service-requests", business, h.ListDashboardRequests)
			authed.PUT("/dashboard/service-requests/:id/responses/:responseId/reject", business, h.WithdrawResponse)
			authed.PUT("/dashboard/service-requests/:id/complete", business, h.CompleteServiceRequest)

			authed.POST("/appointments", customer, h.BookAppointment)
			authed.PUT("/appointments/:id/complete", business, h.CompleteAppointment)

			authed.GET("/raffle/data", customer, h.GetRaffleData)
			authed.POST("/raffle/participate", customer, h.ParticipateInRaffle)

			authed.POST("/internal/appointments/:id/completed", admin, h.RedeliverAppointmentCompleted)

			adminGroup := authed.Group("/admin", admin)
			{
				adminGroup.GET("/appointments", h.ListAppointments)
				adminGroup.POST("/service-requests/expire", h.ExpireServiceRequests)
				adminGroup.POST("/raffle/draws", h.CloseRaffleDraw)
				adminGroup.GET("/raffle/draws/:year/:month", h.GetRaffleDraw)
			}
		}
	}

	return router
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", controllers.LookupTokenHeader, middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = cfg.CORSAllowedOrigins
	c.AllowCredentials = true
	return c
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "ServiceHub API is running",
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

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	// Migrator works across postgres, mysql and sqlite
	tables, err := db.Migrator().GetTables()
	if err != nil {
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
		"dialect": db.Dialector.Name(),
		"tables":  tables,
	})
}
