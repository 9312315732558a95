package service

import (
	"context"
	"errors"
	"fmt"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/repository"
)

type adminService struct {
	registry   StationRegistry
	index      StationIndex
	rentalRepo repository.RentalRepository
	recon      ReconciliationService
	batteries  batteryWriter
}

func NewAdminService(
	registry StationRegistry,
	index StationIndex,
	rentalRepo repository.RentalRepository,
	inventory repository.InventoryRepository,
	recon ReconciliationService,
) AdminService {
	return &adminService{
		registry:   registry,
		index:      index,
		rentalRepo: rentalRepo,
		recon:      recon,
		batteries:  batteryWriter{registry: registry, inventory: inventory},
	}
}

func (s *adminService) SetMaintenance(ctx context.Context, batteryID domain.BatteryID) (domain.Battery, error) {
	logger.EnterMethod("adminService.SetMaintenance", "batteryID", batteryID)

	if err := s.registry.SetMaintenance(batteryID); err != nil {
		exitMethod("adminService.SetMaintenance", err, "batteryID", batteryID)
		return domain.Battery{}, err
	}
	s.batteries.persist(ctx, batteryID)

	b, err := s.registry.Battery(batteryID)
	logger.ExitMethod("adminService.SetMaintenance", "batteryID", batteryID)
	return b, err
}

func (s *adminService) ClearMaintenance(ctx context.Context, batteryID domain.BatteryID, stationID domain.StationID) (domain.Battery, error) {
	logger.EnterMethod("adminService.ClearMaintenance", "batteryID", batteryID, "stationID", stationID)

	if err := s.registry.ClearMaintenance(batteryID, stationID); err != nil {
		exitMethod("adminService.ClearMaintenance", err, "batteryID", batteryID)
		return domain.Battery{}, err
	}
	s.batteries.persist(ctx, batteryID)

	b, err := s.registry.Battery(batteryID)
	logger.ExitMethod("adminService.ClearMaintenance", "batteryID", batteryID)
	return b, err
}

// AbandonRental closes an open rental without charging and takes its
// battery out of circulation. Rentals with an open reconciliation case must
// be settled first.
func (s *adminService) AbandonRental(ctx context.Context, rentalID domain.RentalID, reason string) (*domain.Rental, error) {
	logger.EnterMethod("adminService.AbandonRental", "rentalID", rentalID)

	rental, err := s.abandonRental(ctx, rentalID, reason)
	if err != nil {
		exitMethod("adminService.AbandonRental", err, "rentalID", rentalID)
		return nil, err
	}

	logger.ExitMethod("adminService.AbandonRental", "rentalID", rentalID, "batteryID", rental.BatteryID)
	return rental, nil
}

func (s *adminService) abandonRental(ctx context.Context, rentalID domain.RentalID, reason string) (*domain.Rental, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", domain.ErrInvalidArgument)
	}

	release, ok := s.recon.Claim(rentalID)
	if !ok {
		return nil, fmt.Errorf("%w: rental %d is being returned or settled", domain.ErrInvalidTransition, rentalID)
	}
	defer release()

	pending, err := s.recon.PendingFor(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, fmt.Errorf("%w: case %d (ticket %s)", domain.ErrReconciliationPending, pending.ID, pending.Ticket)
	}

	rental, err := s.rentalRepo.Abandon(ctx, rentalID, reason)
	if err != nil {
		return nil, err
	}

	if err := s.registry.Retire(rental.BatteryID); err != nil {
		if !errors.Is(err, domain.ErrInvalidTransition) {
			return nil, err
		}
		logger.Warn("Abandoned rental's battery was not in use", "rentalID", rentalID, "batteryID", rental.BatteryID, "error", err)
	}
	s.batteries.persist(ctx, rental.BatteryID)
	return rental, nil
}

func (s *adminService) ListReconciliations(ctx context.Context) ([]domain.ReconciliationCase, error) {
	return s.recon.ListOpen(ctx)
}

func (s *adminService) RetryReconciliation(ctx context.Context, caseID int64) (*domain.ReturnReceipt, error) {
	return s.recon.SettleByID(ctx, caseID)
}

// AuditInventory compares open rentals against in-use batteries and repairs
// the availability index from a fresh registry snapshot.
func (s *adminService) AuditInventory(ctx context.Context) (*AuditReport, error) {
	logger.EnterMethod("adminService.AuditInventory")

	open, err := s.rentalRepo.ListOpen(ctx)
	if err != nil {
		logger.ExitMethodWithError("adminService.AuditInventory", err)
		return nil, err
	}

	snap := s.registry.Snapshot()
	report := &AuditReport{OpenRentals: len(open)}

	// a checkout in progress holds its battery RESERVED with the rental open
	held := make(map[domain.BatteryID]bool)
	for _, b := range snap.Batteries {
		switch b.Status {
		case domain.BatteryStatusInUse:
			held[b.ID] = true
			report.InUseBatteries++
		case domain.BatteryStatusReserved:
			held[b.ID] = true
		}
	}

	rented := make(map[domain.BatteryID]bool, len(open))
	for _, rt := range open {
		rented[rt.BatteryID] = true
		if !held[rt.BatteryID] {
			report.OrphanedRentals = append(report.OrphanedRentals, rt.ID)
		}
	}
	var docked []domain.Battery
	for _, b := range snap.Batteries {
		if b.Status != domain.BatteryStatusInUse || rented[b.ID] {
			continue
		}
		if b.StationID != nil {
			docked = append(docked, b)
			continue
		}
		report.UnaccountedBatteries = append(report.UnaccountedBatteries, b.ID)
	}

	// A docked battery without an open rental was returned and its rental
	// settled elsewhere. The ledger is read again so a rental opened after
	// the first read keeps its battery.
	if len(docked) > 0 {
		reopened, err := s.rentalRepo.ListOpen(ctx)
		if err != nil {
			logger.ExitMethodWithError("adminService.AuditInventory", err)
			return nil, err
		}
		for _, rt := range reopened {
			rented[rt.BatteryID] = true
		}
		for _, b := range docked {
			if rented[b.ID] {
				continue
			}
			if s.releaseSettled(ctx, b) {
				report.ReleasedBatteries = append(report.ReleasedBatteries, b.ID)
				continue
			}
			report.UnaccountedBatteries = append(report.UnaccountedBatteries, b.ID)
		}
	}

	if len(report.ReleasedBatteries) > 0 {
		snap = s.registry.Snapshot()
	}
	if s.index != nil {
		s.index.Rebuild(snap)
	}

	if !report.Consistent() {
		logger.Warn("Inventory audit found inconsistencies",
			"orphanedRentals", report.OrphanedRentals, "unaccountedBatteries", report.UnaccountedBatteries)
	}
	logger.ExitMethod("adminService.AuditInventory", "openRentals", report.OpenRentals, "inUse", report.InUseBatteries,
		"released", len(report.ReleasedBatteries))
	return report, nil
}

func (s *adminService) releaseSettled(ctx context.Context, b domain.Battery) bool {
	if err := s.registry.Release(b.ID, *b.StationID); err != nil {
		logger.Warn("Failed to release docked battery", "batteryID", b.ID, "stationID", *b.StationID, "error", err)
		return false
	}
	s.batteries.persist(ctx, b.ID)
	logger.Info("Released docked battery without open rental", "batteryID", b.ID, "stationID", *b.StationID)
	return true
}
