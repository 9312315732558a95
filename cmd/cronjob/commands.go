package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"battery-rental-backend/internal/config"
	"battery-rental-backend/internal/jobs"
	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/registry"
	"battery-rental-backend/internal/repository/postgres"
	"battery-rental-backend/internal/scheduler"
	"battery-rental-backend/internal/service"
)

var (
	configPath string

	db        *sql.DB
	jobRunner *jobs.JobRunner
)

func execute() error {
	root := &cobra.Command{
		Use:           "cronjob",
		Short:         "Maintenance jobs for the battery rental backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if db != nil {
				db.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config/config.example.yaml", "Path to configuration file")

	root.AddCommand(retryReconciliationsCmd(), auditInventoryCmd(), runAllCmd(), serveCmd())
	return root.ExecuteContext(context.Background())
}

// setup loads configuration, connects to PostgreSQL and restores a registry
// from the persisted inventory so the jobs see the same state the server does.
func setup(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Battery Rental Cronjob Runner...", "log_level", cfg.Log.Level)

	if !cfg.UseDatabase() {
		return fmt.Errorf("cronjob requires a database; set database.host in %s", configPath)
	}

	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err = postgres.Open(ctx, cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		return err
	}
	logger.Info("Database connection established")

	store := postgres.NewStore(db)

	reg := registry.New()
	if err := service.LoadInventory(ctx, reg, store.InventoryRepository, store.RentalRepository); err != nil {
		return fmt.Errorf("failed to load inventory: %w", err)
	}

	var alerter service.Alerter
	if cfg.Alert.SendGridAPIKey != "" {
		alerter = service.NewSendGridAlerter(cfg.Alert.SendGridAPIKey, cfg.Alert.FromEmail, cfg.Alert.FromName, cfg.Alert.Recipients, cfg.Currency.MinorUnits)
	} else {
		alerter = service.NewLogAlerter()
	}

	reconSvc := service.NewReconciliationService(store.ReconciliationRepository, store.RentalRepository, store.AccountRepository, reg, store.InventoryRepository, alerter)
	// no availability index lives in this process
	adminSvc := service.NewAdminService(reg, nil, store.RentalRepository, store.InventoryRepository, reconSvc)

	jobRunner = jobs.NewJobRunner(&jobs.Services{Reconciliation: reconSvc, Admin: adminSvc}, cfg)
	return nil
}

func retryReconciliationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-reconciliations",
		Short: "Retry every open reconciliation case once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return jobRunner.RetryReconciliations()
		},
	}
}

func auditInventoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit-inventory",
		Short: "Compare open rentals against in-use batteries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return jobRunner.AuditInventory()
		},
	}
}

func runAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-all",
		Short: "Run every maintenance job once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return jobRunner.RunAll()
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the jobs on their cron schedules until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cronScheduler, err := scheduler.NewScheduler(jobRunner)
			if err != nil {
				return err
			}

			cronScheduler.Start()
			logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			<-sigChan

			logger.Info("Shutting down cronjob scheduler...")
			cronScheduler.Stop()
			logger.Info("Cronjob scheduler stopped. Goodbye!")
			return nil
		},
	}
}
