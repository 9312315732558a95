package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	api "battery-rental-backend/internal/api/grpc"
	"battery-rental-backend/internal/api/grpc/interceptor"
	httpapi "battery-rental-backend/internal/api/http"
	"battery-rental-backend/internal/availability"
	"battery-rental-backend/internal/config"
	"battery-rental-backend/internal/jobs"
	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/registry"
	"battery-rental-backend/internal/repository"
	"battery-rental-backend/internal/repository/memory"
	"battery-rental-backend/internal/repository/postgres"
	"battery-rental-backend/internal/scheduler"
	"battery-rental-backend/internal/security"
	"battery-rental-backend/internal/service"
)

// backend is the set of stores the services run on.
type backend struct {
	rentals   repository.RentalRepository
	accounts  repository.AccountRepository
	inventory repository.InventoryRepository
	cases     repository.ReconciliationRepository
	db        *sql.DB
}

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.example.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Battery Rental Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "grpc", cfg.GetGRPCAddress(), "http", cfg.GetHTTPAddress())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open backend", "error", err)
		log.Fatalf("Failed to open backend: %v", err)
	}
	if store.db != nil {
		defer store.db.Close()
	}

	// Restore the registry from the inventory store and the open ledger
	reg := registry.New()
	if err := service.LoadInventory(ctx, reg, store.inventory, store.rentals); err != nil {
		logger.Error("Failed to load inventory", "error", err)
		log.Fatalf("Failed to load inventory: %v", err)
	}
	index := availability.NewIndexFromRegistry(reg)

	// Initialize Services
	alerter := newAlerter(cfg)
	reconSvc := service.NewReconciliationService(store.cases, store.rentals, store.accounts, reg, store.inventory, alerter)
	rentalSvc := service.NewRentalService(reg, store.rentals, store.accounts, store.inventory, reconSvc, service.RentalOptions{
		MaxOpenPerUser:  cfg.Rental.MaxOpenPerUser,
		MinBalanceCents: cfg.Rental.MinBalanceCents,
		FeePolicy:       cfg.FeePolicy(),
	})
	stationSvc := service.NewStationService(index, reg, store.rentals, cfg.Rental.MaxSearchRadiusKm)
	adminSvc := service.NewAdminService(reg, index, store.rentals, store.inventory, reconSvc)

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)
	authInterceptor := interceptor.NewAuthInterceptor(tokenManager)

	// Set up gRPC server
	lis, err := net.Listen("tcp", cfg.GetGRPCAddress())
	if err != nil {
		logger.Error("Failed to listen", "error", err, "address", cfg.GetGRPCAddress())
		log.Fatalf("Failed to listen: %v", err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(authInterceptor.Unary()),
		grpc.StreamInterceptor(authInterceptor.Stream()),
	)
	api.RegisterRentalServiceServer(grpcServer, api.NewRentalHandler(rentalSvc, stationSvc, cfg.Currency.MinorUnits))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Set up HTTP server
	httpServer := &http.Server{
		Addr:              cfg.GetHTTPAddress(),
		Handler:           httpapi.NewRouter(httpapi.NewHandler(rentalSvc, stationSvc, adminSvc, cfg.Currency.MinorUnits), tokenManager),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Embedded scheduler for reconciliation retries and inventory audits
	var cronScheduler *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		jobRunner := jobs.NewJobRunner(&jobs.Services{Reconciliation: reconSvc, Admin: adminSvc}, cfg)
		cronScheduler, err = scheduler.NewScheduler(jobRunner)
		if err != nil {
			log.Fatalf("Failed to create scheduler: %v", err)
		}
		cronScheduler.Start()
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", "address", cfg.GetGRPCAddress())
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		logger.Info("HTTP server listening", "address", cfg.GetHTTPAddress())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		logger.Error("Server stopped unexpectedly", "error", err)
	}

	// Graceful shutdown; the registry closes last so in-flight flows can finish
	healthServer.Shutdown()
	if cronScheduler != nil {
		cronScheduler.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	grpcServer.GracefulStop()
	reg.Close()
	logger.Info("Battery Rental Backend stopped. Goodbye!")
}

// openBackend connects PostgreSQL when a database host is configured and
// falls back to the in-memory stores seeded from the inventory file.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	if !cfg.UseDatabase() {
		logger.Info("Using in-memory stores", "seed_file", cfg.Inventory.SeedFile)
		seed, err := memory.LoadSeed(cfg.Inventory.SeedFile)
		if err != nil {
			return nil, err
		}
		store := memory.NewStoreFromSeed(seed)
		return &backend{
			rentals:   store.RentalRepository,
			accounts:  store.Accounts,
			inventory: store.InventoryRepository,
			cases:     store.ReconciliationRepository,
		}, nil
	}

	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	db, err := postgres.Open(ctx, cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(db, cfg.Database.MigrationsPath); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Database connection established")

	store := postgres.NewStore(db)
	return &backend{
		rentals:   store.RentalRepository,
		accounts:  store.AccountRepository,
		inventory: store.InventoryRepository,
		cases:     store.ReconciliationRepository,
		db:        db,
	}, nil
}

func newAlerter(cfg *config.Config) service.Alerter {
	if cfg.Alert.SendGridAPIKey == "" {
		logger.Info("SendGrid not configured, alerts go to the log only")
		return service.NewLogAlerter()
	}
	logger.Info("SendGrid alerts enabled", "recipients", len(cfg.Alert.Recipients))
	return service.NewSendGridAlerter(cfg.Alert.SendGridAPIKey, cfg.Alert.FromEmail, cfg.Alert.FromName, cfg.Alert.Recipients, cfg.Currency.MinorUnits)
}
