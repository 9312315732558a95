package service

import (
	"context"
	"errors"
	"fmt"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/repository"

	"github.com/google/uuid"
)

type reconciliationService struct {
	caseRepo   repository.ReconciliationRepository
	rentalRepo repository.RentalRepository
	accounts   repository.AccountRepository
	registry   StationRegistry
	batteries  batteryWriter
	alerter    Alerter
	claims     rentalClaims
}

func NewReconciliationService(
	caseRepo repository.ReconciliationRepository,
	rentalRepo repository.RentalRepository,
	accounts repository.AccountRepository,
	registry StationRegistry,
	inventory repository.InventoryRepository,
	alerter Alerter,
) ReconciliationService {
	return &reconciliationService{
		caseRepo:   caseRepo,
		rentalRepo: rentalRepo,
		accounts:   accounts,
		registry:   registry,
		batteries:  batteryWriter{registry: registry, inventory: inventory},
		alerter:    alerter,
	}
}

func (s *reconciliationService) Claim(rentalID domain.RentalID) (func(), bool) {
	return s.claims.acquire(rentalID)
}

func (s *reconciliationService) Record(ctx context.Context, c *domain.ReconciliationCase) string {
	ctx = context.WithoutCancel(ctx)
	if c.Ticket == "" {
		c.Ticket = uuid.NewString()
	}
	c.Status = domain.ReconciliationStatusOpen

	if err := s.caseRepo.Create(ctx, c); err != nil {
		// the log line is the only record left; keep every field
		logger.Error("Failed to store reconciliation case",
			"ticket", c.Ticket, "kind", c.Kind, "rentalID", c.RentalID, "userID", c.UserID,
			"batteryID", c.BatteryID, "feeCents", c.FeeCents, "lastError", c.LastError, "error", err)
	} else {
		logger.Warn("Reconciliation case opened", "caseID", c.ID, "ticket", c.Ticket, "kind", c.Kind, "rentalID", c.RentalID)
	}

	if s.alerter != nil {
		if err := s.alerter.Alert(ctx, *c); err != nil {
			logger.Error("Failed to send reconciliation alert", "ticket", c.Ticket, "error", err)
		}
	}
	return c.Ticket
}

func (s *reconciliationService) PendingFor(ctx context.Context, rentalID domain.RentalID) (*domain.ReconciliationCase, error) {
	return s.caseRepo.GetOpenByRental(ctx, rentalID)
}

func (s *reconciliationService) SettleByID(ctx context.Context, caseID int64) (*domain.ReturnReceipt, error) {
	c, err := s.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	release, ok := s.Claim(c.RentalID)
	if !ok {
		return nil, fmt.Errorf("%w: rental %d is being returned or settled", domain.ErrInvalidTransition, c.RentalID)
	}
	defer release()
	return s.Settle(ctx, c)
}

func (s *reconciliationService) Settle(ctx context.Context, c *domain.ReconciliationCase) (*domain.ReturnReceipt, error) {
	logger.EnterMethod("reconciliationService.Settle", "caseID", c.ID, "kind", c.Kind, "rentalID", c.RentalID)

	receipt, err := s.settle(ctx, c)
	if err != nil {
		exitMethod("reconciliationService.Settle", err, "caseID", c.ID, "rentalID", c.RentalID)
		return nil, err
	}

	logger.ExitMethod("reconciliationService.Settle", "caseID", c.ID, "feeCents", receipt.FeeCents)
	return receipt, nil
}

func (s *reconciliationService) settle(ctx context.Context, c *domain.ReconciliationCase) (*domain.ReturnReceipt, error) {
	if c.Kind == domain.ReconciliationInternal {
		return nil, fmt.Errorf("%w: case %d needs manual resolution (ticket %s)", domain.ErrReconciliationPending, c.ID, c.Ticket)
	}

	if c.Status == domain.ReconciliationStatusResolved {
		rental, err := s.rentalRepo.GetByID(ctx, c.RentalID)
		if err != nil {
			return nil, err
		}
		return receiptFromRental(rental)
	}

	if c.ReturnStationID == nil || c.ReturnedAt == nil {
		return nil, fmt.Errorf("%w: case %d has no return recorded", domain.ErrInvalidArgument, c.ID)
	}

	if c.Kind == domain.ReconciliationPendingCharge {
		if err := s.accounts.Debit(ctx, c.UserID, c.FeeCents, DebitReference(c.RentalID)); err != nil {
			s.recordAttempt(ctx, c, err)
			return nil, err
		}
	}

	rental, err := s.rentalRepo.Close(ctx, c.RentalID, *c.ReturnStationID, *c.ReturnedAt, c.FeeCents)
	closedHere := err == nil
	if errors.Is(err, domain.ErrAlreadyClosed) {
		rental, err = s.alreadyClosed(ctx, c)
	}
	if err != nil {
		s.recordAttempt(ctx, c, err)
		return nil, err
	}

	// The battery waited docked for this close. When an earlier attempt did
	// the close, the audit releases it once it sees no open rental.
	if closedHere {
		s.releaseDocked(ctx, c.BatteryID, *c.ReturnStationID)
	}

	c.Status = domain.ReconciliationStatusResolved
	c.Attempts++
	c.LastError = ""
	if err := s.caseRepo.Update(context.WithoutCancel(ctx), c); err != nil {
		logger.Error("Failed to mark reconciliation case resolved", "caseID", c.ID, "error", err)
	}
	return receiptFromRental(rental)
}

// alreadyClosed accepts a rental that some earlier attempt closed, as long as
// it was closed with the fee this case recorded.
func (s *reconciliationService) alreadyClosed(ctx context.Context, c *domain.ReconciliationCase) (*domain.Rental, error) {
	rental, err := s.rentalRepo.GetByID(ctx, c.RentalID)
	if err != nil {
		return nil, err
	}
	if rental.State != domain.RentalStateClosed || rental.FeeCents == nil || *rental.FeeCents != c.FeeCents {
		return nil, fmt.Errorf("%w: rental %d is %s, case %d expected it closed with fee %d",
			domain.ErrInternalConsistency, rental.ID, rental.State, c.ID, c.FeeCents)
	}
	return rental, nil
}

func (s *reconciliationService) releaseDocked(ctx context.Context, batteryID domain.BatteryID, stationID domain.StationID) {
	if err := s.registry.Release(batteryID, stationID); err != nil {
		logger.Error("Failed to release settled battery", "batteryID", batteryID, "stationID", stationID, "error", err)
		return
	}
	s.batteries.persist(ctx, batteryID)
}

func (s *reconciliationService) recordAttempt(ctx context.Context, c *domain.ReconciliationCase, cause error) {
	c.Attempts++
	c.LastError = cause.Error()
	if err := s.caseRepo.Update(context.WithoutCancel(ctx), c); err != nil {
		logger.Error("Failed to record reconciliation attempt", "caseID", c.ID, "error", err)
	}
}

// RetryOpen settles every retryable open case. A failing case does not stop
// the run.
func (s *reconciliationService) RetryOpen(ctx context.Context) (*RetrySummary, error) {
	logger.EnterMethod("reconciliationService.RetryOpen")

	cases, err := s.caseRepo.ListOpen(ctx)
	if err != nil {
		logger.ExitMethodWithError("reconciliationService.RetryOpen", err)
		return nil, err
	}

	summary := &RetrySummary{}
	for i := range cases {
		if err := ctx.Err(); err != nil {
			logger.ExitMethodWithError("reconciliationService.RetryOpen", err, "settled", summary.Settled)
			return summary, err
		}
		c := &cases[i]
		if !c.Retryable() {
			summary.Skipped++
			continue
		}
		release, ok := s.Claim(c.RentalID)
		if !ok {
			summary.Skipped++
			continue
		}
		_, err := s.Settle(ctx, c)
		release()
		if err != nil {
			summary.Failed++
			continue
		}
		summary.Settled++
	}

	logger.ExitMethod("reconciliationService.RetryOpen", "settled", summary.Settled, "failed", summary.Failed, "skipped", summary.Skipped)
	return summary, nil
}

func (s *reconciliationService) ListOpen(ctx context.Context) ([]domain.ReconciliationCase, error) {
	return s.caseRepo.ListOpen(ctx)
}
