package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trmcontext "github.com/avito-tech/go-transaction-manager/trm/v2/context"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nanmu42/gzip"
	"github.com/redis/go-redis/v9"
	"github.com/shopworks/order-management-service/internal/config"
	"github.com/shopworks/order-management-service/internal/orders"
	"github.com/shopworks/order-management-service/internal/products"
	"github.com/shopworks/order-management-service/internal/taxes"
	"github.com/shopworks/order-management-service/pkg/accesslog"
	"github.com/shopworks/order-management-service/pkg/logger"
	"github.com/shopworks/order-management-service/pkg/unzip"
	sqldblogger "github.com/simukti/sqldb-logger"
)

// Version indicates the current version of the application.
var Version = "1.0.0"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Server run context.
	serverCtx, serverStopCtx := context.WithCancel(context.Background())
	defer serverStopCtx()

	// Load application configurations.
	cfg := config.MustLoad()

	// Create root logger tagged with server version.
	logger := logger.New(cfg).With(serverCtx, "version", Version)

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open the database: %w", err)
	}

	// Log every query to the database.
	db = sqldblogger.OpenDriver(cfg.DSN, db.Driver(), logger)

	// Check connectivity and DSN correctness.
	if err = db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to the database: %w", err)
	}

	// Close connection.
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error(err)
		}
		_ = logger.Sync()
	}()

	// Redis holds staged CSV rows between upload and confirmation.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err = rdb.Ping(serverCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() {
		if err = rdb.Close(); err != nil {
			logger.Error(err)
		}
	}()

	// Create default transaction manager for database/sql package.
	trManager := manager.Must(
		trmsql.NewDefaultFactory(db),
		manager.WithCtxManager(trmcontext.DefaultManager),
	)

	// Init staging store for shipment CSV review workflow.
	stagingStore, err := orders.NewRedisStagingStore(rdb, cfg.Redis.StagingTTL)
	if err != nil {
		return fmt.Errorf("failed to init staging store: %w", err)
	}

	// Init repository for product lookups.
	productRepo, err := products.NewRepository(db, logger)
	if err != nil {
		return fmt.Errorf("failed to init product repository: %w", err)
	}

	// Init repository for the order service.
	orderRepo, err := orders.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init order repository: %w", err)
	}

	// Init order service.
	orderService, err := orders.NewService(orderRepo, productRepo, stagingStore, trManager, logger)
	if err != nil {
		return fmt.Errorf("failed to init order service: %w", err)
	}

	// Init repository for the tax service.
	taxRepo, err := taxes.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init tax repository: %w", err)
	}

	// Init tax service.
	taxService, err := taxes.NewService(taxRepo, trManager, logger)
	if err != nil {
		return fmt.Errorf("failed to init tax service: %w", err)
	}

	// Create root router.
	router := initRootRouter(logger)

	// Register handlers for order and tax routes.
	orders.NewOrderController(orderService, logger, cfg, orders.ChiServerOptions{
		BaseURL:    "/api",
		BaseRouter: router,
	})
	taxes.NewTaxController(taxService, logger, taxes.ChiServerOptions{
		BaseURL:    "/api",
		BaseRouter: router,
	})

	// Build HTTP server.
	hs := &http.Server{
		Addr:              cfg.HTTPServer.Address,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
		Handler:           router,
	}

	// Graceful shutdown.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT,
			syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)

		signal := <-sig

		logger.With(serverCtx, "signal", signal.String()).
			Infof("Shutting down server with %s timeout",
				cfg.HTTPServer.ShutdownTimeout)

		if err = hs.Shutdown(serverCtx); err != nil {
			logger.Errorf("graceful shutdown failed: %s", err)
		}
		serverStopCtx()
	}()

	// Start the HTTP server with graceful shutdown.
	logger.Infof("Server %v is running at %v", Version, cfg.HTTPServer.Address)
	if err = hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("run server failed: %w", err)
	}

	// Wait for server context to be stopped or force exit if timeout exceeded.
	select {
	case <-serverCtx.Done():
	case <-time.After(cfg.HTTPServer.ShutdownTimeout):
		return errors.New("graceful shutdown timed out.. forcing exit")
	}

	return nil
}

func initRootRouter(logger logger.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(accesslog.Handler(logger))
	router.Use(middleware.Recoverer)
	router.Use(gzip.DefaultHandler().WrapHandler)
	router.Use(unzip.Middleware(logger))

	return router
}
