package jobs

import (
	"context"
	"fmt"
	"time"

	"battery-rental-backend/internal/config"
	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/service"
)

// jobTimeout bounds a single job run.
const jobTimeout = 2 * time.Minute

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	services *Services
	config   *config.Config
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Reconciliation service.ReconciliationService
	Admin          service.AdminService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		services: services,
		config:   cfg,
	}
}

// Config returns the configuration the runner was built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery and a timeout
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
			err = fmt.Errorf("job %s panicked: %v", jobName, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	logger.Info("Starting job", "job", jobName)
	if err := jobFunc(ctx); err != nil {
		logger.Error("Job failed", "job", jobName, "duration", time.Since(start), "error", err)
		return err
	}
	logger.Info("Job completed", "job", jobName, "duration", time.Since(start))
	return nil
}

// RetryReconciliations settles open PENDING_CHARGE and PENDING_CLOSE cases.
func (jr *JobRunner) RetryReconciliations() error {
	return jr.runWithRecovery("RetryReconciliations", func(ctx context.Context) error {
		summary, err := jr.services.Reconciliation.RetryOpen(ctx)
		if err != nil {
			return err
		}
		logger.Info("Reconciliation retry finished",
			"settled", summary.Settled, "failed", summary.Failed, "skipped", summary.Skipped)
		return nil
	})
}

// AuditInventory cross-checks open rentals against in-use batteries and
// rebuilds the availability index.
func (jr *JobRunner) AuditInventory() error {
	return jr.runWithRecovery("AuditInventory", func(ctx context.Context) error {
		report, err := jr.services.Admin.AuditInventory(ctx)
		if err != nil {
			return err
		}
		if !report.Consistent() {
			logger.Warn("Inventory audit found inconsistencies",
				"orphanedRentals", report.OrphanedRentals, "unaccountedBatteries", report.UnaccountedBatteries)
		}
		return nil
	})
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() error {
	err := jr.RetryReconciliations()
	if auditErr := jr.AuditInventory(); err == nil {
		err = auditErr
	}
	return err
}
