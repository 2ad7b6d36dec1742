package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"taptapgo/internal/app"
	"taptapgo/internal/config"
	"taptapgo/internal/domain"
	"taptapgo/internal/handler"
	"taptapgo/internal/logger"
	internalRedis "taptapgo/internal/redis"
	"taptapgo/internal/repository/postgres"
	"taptapgo/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	if err := logger.Init(cfg.Log.Environment, cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if cfg.Log.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		var err error
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", zap.Error(err))
			nrApp = nil
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	if cfg.Database.AutoMigrate {
		if err := app.Migrate(db); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	publisher, nc, err := app.NewEventPublisher(cfg.NATS, cfg.NewRelic.AppName)
	if err != nil {
		logger.Fatal("failed to connect to NATS", zap.Error(err))
	}
	var eventPublisher service.EventPublisher
	if publisher != nil {
		eventPublisher = publisher
		defer nc.Drain()
		logger.Info("publishing events to NATS", zap.String("url", cfg.NATS.URL))
	}

	server := wireServer(db, redisClient, nrApp, eventPublisher, cfg)

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if nrApp != nil {
		nrApp.Shutdown(cfg.Server.ShutdownTimeout)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, publisher service.EventPublisher, cfg *config.Config) *http.Server {
	// Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Repositories.
	repos := postgres.NewRepositories(db)
	txManager := postgres.NewTxManager(db)

	// Services.
	notificationService := service.NewNotificationService(publisher)
	ledger := service.NewLedger(cfg.Wallet.HoldingPeriod, notificationService)
	pricingService := service.NewPricingService(repos.Tariffs, cacheStore)
	withdrawalService := service.NewWithdrawalService(
		txManager, repos, ledger, lockStore, notificationService,
		domain.WithdrawalRules{
			MontantMinimum:     cfg.Wallet.MontantMinimum,
			SeuilAutomatique:   cfg.Wallet.SeuilAutomatique,
			DelaiEntreRetraits: cfg.Wallet.DelaiEntreRetraits,
			FraisRetrait:       cfg.Wallet.FraisRetrait,
		},
		cfg.Wallet.Location(),
	)
	walletService := service.NewWalletService(txManager, repos, ledger, withdrawalService, notificationService)
	rideService := service.NewRideService(
		txManager, repos, pricingService, ledger, withdrawalService, notificationService,
		service.RidePolicy{
			Transitions:     domain.TransitionPolicy{AllowStartWithoutArrival: cfg.Ride.AllowStartWithoutArrival},
			CancellationFee: cfg.Ride.CancellationFee,
		},
	)

	// Handlers.
	router := app.NewRouter(app.RouterDeps{
		RideHandler:    handler.NewRideHandler(rideService),
		WalletHandler:  handler.NewWalletHandler(walletService, withdrawalService),
		AdminHandler:   handler.NewAdminHandler(withdrawalService, walletService),
		PricingHandler: handler.NewPricingHandler(pricingService),
		DB:             db,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		JWTSecret:      cfg.Auth.JWTSecret,
		CORSOrigins:    cfg.Server.CORSOrigins,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
