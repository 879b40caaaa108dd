package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/fleet-ledger/internal/config"
	"github.com/iliyamo/fleet-ledger/internal/database"
	"github.com/iliyamo/fleet-ledger/internal/handler"
	"github.com/iliyamo/fleet-ledger/internal/middleware"
	"github.com/iliyamo/fleet-ledger/internal/queue"
	"github.com/iliyamo/fleet-ledger/internal/repository"
	"github.com/iliyamo/fleet-ledger/internal/router"
	"github.com/iliyamo/fleet-ledger/internal/service"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.WithError(err).Fatal("open database")
	}
	defer db.Close()
	migrateCtx, cancel := context.WithTimeout(sigCtx, 30*time.Second)
	err = database.Migrate(migrateCtx, db)
	cancel()
	if err != nil {
		logger.WithError(err).Fatal("migrate schema")
	}
	store := repository.NewStore(db)

	rdb := config.NewRedisClient(logger)
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()

	deps := service.Deps{Store: store, Logger: logger}
	if rdb != nil {
		deps.Cache = middleware.NewRedisInvalidator(cacheCfg, rdb)
	}
	if cfg.RabbitURL != "" {
		pub := service.NewAMQPPublisher(cfg.RabbitURL, logger)
		defer pub.Close()
		deps.Events = pub

		audit := &queue.AuditConsumer{URL: cfg.RabbitURL, Dir: cfg.AuditLogDir, Logger: logger}
		go func() {
			if err := audit.Run(sigCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Error("audit consumer stopped")
			}
		}()
	} else {
		logger.Info("RABBITMQ_URL not set; ledger events disabled")
	}

	rec := service.NewReconciler(store, logger)
	fleet := service.NewFleetService(deps, cfg.BcryptCost)
	journeys := service.NewJourneyService(deps, rec)
	expenses := service.NewExpenseService(deps, rec)
	fin := service.NewFinanceService(deps)
	payroll := service.NewPayrollService(deps)
	emi := service.NewEmiService(deps)

	if cfg.AdminEmail != "" && cfg.AdminPass != "" {
		created, err := fleet.EnsureAdmin(sigCtx, cfg.AdminEmail, cfg.AdminPass)
		if err != nil {
			logger.WithError(err).Fatal("bootstrap admin")
		}
		if created {
			logger.WithField("email", cfg.AdminEmail).Info("bootstrap admin created")
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"request_id": v.RequestID,
			}).Info("request")
			return nil
		},
	}))

	h := router.Handlers{
		Auth:    handler.NewAuthHandler(cfg, fleet, store, logger),
		Journey: handler.NewJourneyHandler(journeys, expenses, logger),
		Fleet:   handler.NewFleetHandler(fleet, logger),
		Finance: handler.NewFinanceHandler(fin, payroll, emi, logger),
		Health:  handler.Health(db),
	}
	mw := router.Middlewares{
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger),
		Cache:     middleware.NewRedisCache(cacheCfg, rdb),
	}
	router.RegisterRoutes(e, h)
	router.RegisterAuth(e, h, mw)
	router.RegisterAPI(e, h, mw, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		logger.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-sigCtx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown")
	}
}
