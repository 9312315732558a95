package service

import (
	"context"
	"errors"
	"fmt"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/repository"
	"battery-rental-backend/internal/utils"
)

type rentalService struct {
	registry   StationRegistry
	rentalRepo repository.RentalRepository
	accounts   repository.AccountRepository
	recon      ReconciliationService
	batteries  batteryWriter
	opts       RentalOptions
}

func NewRentalService(
	registry StationRegistry,
	rentalRepo repository.RentalRepository,
	accounts repository.AccountRepository,
	inventory repository.InventoryRepository,
	recon ReconciliationService,
	opts RentalOptions,
) RentalService {
	return &rentalService{
		registry:   registry,
		rentalRepo: rentalRepo,
		accounts:   accounts,
		recon:      recon,
		batteries:  batteryWriter{registry: registry, inventory: inventory},
		opts:       opts.withDefaults(),
	}
}

// Checkout reserves a battery, opens a rental for it and hands the battery
// to the user. Each step that fails after the reservation is compensated.
func (s *rentalService) Checkout(ctx context.Context, userID domain.UserID, stationID domain.StationID) (*domain.RentalReceipt, error) {
	logger.EnterMethod("rentalService.Checkout", "userID", userID, "stationID", stationID)

	receipt, err := s.checkout(ctx, userID, stationID)
	if err != nil {
		exitMethod("rentalService.Checkout", err, "userID", userID, "stationID", stationID)
		return nil, err
	}

	logger.ExitMethod("rentalService.Checkout", "rentalID", receipt.RentalID, "batteryID", receipt.BatteryID)
	return receipt, nil
}

func (s *rentalService) checkout(ctx context.Context, userID domain.UserID, stationID domain.StationID) (*domain.RentalReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.opts.MinBalanceCents > 0 {
		balance, err := s.accounts.GetBalance(ctx, userID)
		if err != nil {
			return nil, err
		}
		if balance < s.opts.MinBalanceCents {
			return nil, fmt.Errorf("%w: balance %d, at least %d required to rent",
				domain.ErrInsufficientBalance, balance, s.opts.MinBalanceCents)
		}
	}

	// Fail before touching the registry when the limit is already reached.
	// Open re-checks under its own lock.
	open, err := s.rentalRepo.ListByUser(ctx, userID, domain.RentalStateOpen)
	if err != nil {
		return nil, err
	}
	if len(open) >= s.opts.MaxOpenPerUser {
		return nil, fmt.Errorf("%w: user %d holds %d open rentals", domain.ErrConcurrencyLimitExceeded, userID, len(open))
	}

	batteryID, err := s.registry.Reserve(stationID)
	if err != nil {
		return nil, err
	}

	now := s.opts.Clock()
	rental, err := s.rentalRepo.Open(ctx, userID, batteryID, stationID, now, s.opts.MaxOpenPerUser)
	if err != nil {
		if cerr := s.registry.CancelReservation(batteryID); cerr != nil {
			logger.Error("Failed to cancel reservation after rental open failed",
				"batteryID", batteryID, "stationID", stationID, "openError", err, "error", cerr)
		}
		return nil, err
	}

	if err := s.registry.MarkInUse(batteryID); err != nil {
		return nil, s.abortCheckout(ctx, rental, err)
	}
	s.batteries.persist(ctx, batteryID)

	return &domain.RentalReceipt{
		RentalID:     rental.ID,
		BatteryID:    batteryID,
		StationID:    stationID,
		RentedAt:     rental.RentedAt,
		EstimatedFee: utils.EstimateFeeRange(s.opts.FeePolicy),
	}, nil
}

// abortCheckout handles a reserved battery that could not be handed over
// after its rental was opened. The rental is abandoned, the battery taken
// out of service and the case raised for a human.
func (s *rentalService) abortCheckout(ctx context.Context, rental *domain.Rental, cause error) error {
	ctx = context.WithoutCancel(ctx)
	logger.Error("Battery could not be marked in use after rental was opened",
		"rentalID", rental.ID, "batteryID", rental.BatteryID, "userID", rental.UserID, "error", cause)

	if _, err := s.rentalRepo.Abandon(ctx, rental.ID, "checkout failed: "+cause.Error()); err != nil {
		logger.Error("Failed to abandon rental", "rentalID", rental.ID, "error", err)
	}
	if err := s.registry.Retire(rental.BatteryID); err != nil {
		logger.Error("Failed to retire battery", "batteryID", rental.BatteryID, "error", err)
	}
	s.batteries.persist(ctx, rental.BatteryID)

	return s.raiseInternal(ctx, rental, cause)
}

func (s *rentalService) raiseInternal(ctx context.Context, rental *domain.Rental, cause error) error {
	ticket := s.recon.Record(ctx, &domain.ReconciliationCase{
		Kind:      domain.ReconciliationInternal,
		RentalID:  rental.ID,
		UserID:    rental.UserID,
		BatteryID: rental.BatteryID,
		LastError: cause.Error(),
	})
	return &domain.InternalConsistencyError{Ticket: ticket, RentalID: rental.ID, Cause: cause}
}

// ReturnBattery docks the battery, charges the user, closes the rental and
// only then makes the battery available again. Only one flow per rental runs
// at a time; a concurrent duplicate return is rejected as already closed.
func (s *rentalService) ReturnBattery(ctx context.Context, userID domain.UserID, rentalID domain.RentalID, returnStationID domain.StationID) (*domain.ReturnReceipt, error) {
	logger.EnterMethod("rentalService.ReturnBattery", "userID", userID, "rentalID", rentalID, "returnStationID", returnStationID)

	release, ok := s.recon.Claim(rentalID)
	if !ok {
		err := fmt.Errorf("%w: rental %d is already being returned", domain.ErrAlreadyClosed, rentalID)
		exitMethod("rentalService.ReturnBattery", err, "rentalID", rentalID)
		return nil, err
	}
	defer release()

	receipt, err := s.returnBattery(ctx, userID, rentalID, returnStationID)
	if err != nil {
		exitMethod("rentalService.ReturnBattery", err, "userID", userID, "rentalID", rentalID)
		return nil, err
	}

	logger.ExitMethod("rentalService.ReturnBattery", "rentalID", rentalID, "feeCents", receipt.FeeCents)
	return receipt, nil
}

func (s *rentalService) returnBattery(ctx context.Context, userID domain.UserID, rentalID domain.RentalID, returnStationID domain.StationID) (*domain.ReturnReceipt, error) {
	rental, err := s.rentalRepo.GetByID(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if rental.UserID != userID {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotFound, rentalID)
	}

	pending, err := s.recon.PendingFor(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		if !pending.Retryable() {
			return nil, fmt.Errorf("%w: ticket %s", domain.ErrReconciliationPending, pending.Ticket)
		}
		logger.Info("Return retried for rental with pending reconciliation", "rentalID", rentalID, "caseID", pending.ID, "kind", pending.Kind)
		return s.recon.Settle(ctx, pending)
	}

	if !rental.IsOpen() {
		return nil, fmt.Errorf("%w: rental %d is %s", domain.ErrAlreadyClosed, rentalID, rental.State)
	}
	if _, err := s.registry.Station(returnStationID); err != nil {
		return nil, err
	}

	now := s.opts.Clock()
	fee, err := utils.ComputeFee(rental.RentedAt, now, s.opts.FeePolicy)
	if err != nil {
		return nil, err
	}

	if err := s.registry.Dock(rental.BatteryID, returnStationID); err != nil {
		return nil, s.abortReturn(ctx, rental, err)
	}
	s.batteries.persist(ctx, rental.BatteryID)

	// From here on the battery is back at a station but not rentable. Charge
	// and close failures leave it docked with a case behind; settling the
	// case releases it.
	ctx = context.WithoutCancel(ctx)
	pendingCase := &domain.ReconciliationCase{
		RentalID:        rental.ID,
		UserID:          rental.UserID,
		BatteryID:       rental.BatteryID,
		ReturnStationID: &returnStationID,
		ReturnedAt:      &now,
		FeeCents:        fee,
	}

	if err := s.accounts.Debit(ctx, userID, fee, DebitReference(rental.ID)); err != nil {
		pendingCase.Kind = domain.ReconciliationPendingCharge
		pendingCase.LastError = err.Error()
		ticket := s.recon.Record(ctx, pendingCase)
		logger.Warn("Charge failed after battery was returned", "rentalID", rental.ID, "feeCents", fee, "ticket", ticket, "error", err)
		return nil, err
	}

	closed, err := s.rentalRepo.Close(ctx, rental.ID, returnStationID, now, fee)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyClosed) {
			// charged for a rental another process finished; needs a refund decision
			pendingCase.Kind = domain.ReconciliationInternal
			pendingCase.LastError = "charged after rental left OPEN: " + err.Error()
			ticket := s.recon.Record(ctx, pendingCase)
			logger.Error("Rental left OPEN while its return was charged", "rentalID", rental.ID, "feeCents", fee, "ticket", ticket, "error", err)
			return nil, &domain.InternalConsistencyError{Ticket: ticket, RentalID: rental.ID, Cause: err}
		}
		pendingCase.Kind = domain.ReconciliationPendingClose
		pendingCase.LastError = err.Error()
		ticket := s.recon.Record(ctx, pendingCase)
		logger.Warn("Rental close failed after battery was returned and charged", "rentalID", rental.ID, "ticket", ticket, "error", err)
		return nil, err
	}

	if err := s.registry.Release(rental.BatteryID, returnStationID); err != nil {
		logger.Error("Failed to release returned battery", "rentalID", rental.ID, "batteryID", rental.BatteryID, "error", err)
	} else {
		s.batteries.persist(ctx, rental.BatteryID)
	}

	return receiptFromRental(closed)
}

// abortReturn handles a battery the registry refuses to dock although the
// ledger still has its rental open.
func (s *rentalService) abortReturn(ctx context.Context, rental *domain.Rental, cause error) error {
	ctx = context.WithoutCancel(ctx)
	logger.Error("Battery could not be docked for an open rental",
		"rentalID", rental.ID, "batteryID", rental.BatteryID, "error", cause)

	if _, err := s.rentalRepo.Abandon(ctx, rental.ID, "return failed: "+cause.Error()); err != nil {
		logger.Error("Failed to abandon rental", "rentalID", rental.ID, "error", err)
	}
	return s.raiseInternal(ctx, rental, cause)
}
