package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dafibh/eventcore/internal/config"
	"github.com/dafibh/eventcore/internal/domain"
	"github.com/dafibh/eventcore/internal/handler"
	"github.com/dafibh/eventcore/internal/middleware"
	"github.com/dafibh/eventcore/internal/provider/paypal"
	"github.com/dafibh/eventcore/internal/repository/memory"
	"github.com/dafibh/eventcore/internal/repository/postgres"
	"github.com/dafibh/eventcore/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	blueprintRepo, instanceRepo, ledgerRepo, discountRepo, callerProvider, err := buildRepositories(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize repositories")
	}

	provider := paypal.NewClient(paypal.Mode(cfg.Provider.Mode), cfg.Provider.ClientID, cfg.Provider.ClientSecret)

	projectionService := service.NewProjectionService(instanceRepo)
	snapshotService := service.NewSnapshotService(cfg.SnapshotDir)
	refundService := service.NewRefundService(service.NewLedgerService(ledgerRepo), provider, instanceRepo)
	blueprintService := service.NewBlueprintService(blueprintRepo, projectionService, refundService, snapshotService)
	overrideService := service.NewOverrideService(blueprintRepo, instanceRepo)
	discountService := service.NewDiscountService(discountRepo)
	registrationService := service.NewRegistrationService(instanceRepo, blueprintRepo, overrideService, discountService, refundService)
	ledgerService := service.NewLedgerService(ledgerRepo)
	paymentService := service.NewPaymentService(registrationService, ledgerService, provider, cfg.FrontendBaseURL)

	authMiddleware, err := middleware.NewAuthMiddleware(cfg.Auth0Domain, cfg.Auth0Audience, callerProvider)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create auth middleware")
	}
	rateLimiter := middleware.NewRateLimiter()

	handlers := handler.Handlers{
		Blueprint: handler.NewBlueprintHandler(blueprintService),
		Instance: handler.NewInstanceHandler(projectionService, overrideService),
		Registration: handler.NewRegistrationHandler(registrationService),
		Payment: handler.NewPaymentHandler(paymentService),
		Refund: handler.NewRefundHandler(refundService),
		Discount: handler.NewDiscountHandler(discountService),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.RequestID())

	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
				AllowOrigins: cfg.CORSOrigins,
				AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
				AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
				AllowCredentials: true,
				MaxAge: 86400,
	}))

	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
				XSSProtection: "1; mode=block",
				ContentTypeNosniff: "nosniff",
				XFrameOptions: "DENY",
				HSTSMaxAge: 31536000,
				ContentSecurityPolicy: "default-src 'self'",
				ReferrerPolicy: "strict-origin-when-cross-origin",
	}))

	e.Use(zerologMiddleware())
	e.Use(echomiddleware.Recover())

	e.GET("/health", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	handler.RegisterRoutes(e, authMiddleware, rateLimiter, handlers)

	go func() {
		log.Info().Str("port", cfg.Port).Str("repository_driver", string(cfg.RepositoryDriver)).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// buildRepositories wires the domain repositories and the identity-boundary
// adapter per cfg.RepositoryDriver. The in-memory driver is the default for
// local development; REPOSITORY_DRIVER=postgres switches every repository to
// the pgx-backed implementation while still standing in a memory-backed
// caller provider, since the membership service has no Postgres analog.
func buildRepositories(cfg *config.Config) (domain.BlueprintRepository, domain.InstanceRepository, domain.LedgerRepository, domain.DiscountRepository, middleware.CallerProvider, error) {
	switch cfg.RepositoryDriver {
	case config.RepositoryDriverPostgres:
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			return nil, nil, nil, nil, nil, err
		}
		log.Info().Msg("Connected to database")

		blueprints := postgres.NewBlueprintRepository(pool)
		instances := postgres.NewInstanceRepository(pool)
		ledger := postgres.NewLedgerRepository(pool)
		discounts := postgres.NewDiscountRepository(pool)
		for _, ensure := range []func(context.Context) error{blueprints.EnsureSchema, instances.EnsureSchema, ledger.EnsureSchema, discounts.EnsureSchema} {
			if err := ensure(ctx); err != nil {
				return nil, nil, nil, nil, nil, err
			}
		}
		// Postgres carries no analog of the external membership service;
		// the in-memory caller provider stands in until one is wired.
		return blueprints, instances, ledger, discounts, memory.NewCallerProvider(), nil
	default:
		return memory.NewBlueprintRepository(),
		memory.NewInstanceRepository(),
		memory.NewLedgerRepository(),
		memory.NewDiscountRepository(),
		memory.NewCallerProvider(),
		nil
	}
}

// zerologMiddleware logs each request with zerolog after it completes.
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Int("status", res.Status).
			Dur("latency", time.Since(start)).
			Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
			Msg("request")

			return nil
		}
	}
}
