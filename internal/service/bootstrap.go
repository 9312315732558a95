package service

import (
	"context"
	"fmt"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/registry"
	"battery-rental-backend/internal/repository"
)

// LoadInventory fills an empty registry from the inventory store. The ledger
// decides which batteries are out with users: a battery with an open rental
// is loaded IN_USE whatever the store says, and a battery the store marks in
// use without an open rental goes to MAINTENANCE for inspection. An IN_USE
// battery stored at a station was returned before its rental settled and is
// loaded docked there.
func LoadInventory(ctx context.Context, reg *registry.Registry, inventory repository.InventoryRepository, rentalRepo repository.RentalRepository) error {
	stations, err := inventory.ListStations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stations: %w", err)
	}
	for _, st := range stations {
		if err := reg.AddStation(st); err != nil {
			return fmt.Errorf("failed to register station %d: %w", st.ID, err)
		}
	}

	open, err := rentalRepo.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("failed to list open rentals: %w", err)
	}
	rented := make(map[domain.BatteryID]domain.RentalID, len(open))
	for _, rt := range open {
		rented[rt.BatteryID] = rt.ID
	}

	batteries, err := inventory.ListBatteries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list batteries: %w", err)
	}

	var inUse, quarantined int
	for _, b := range batteries {
		if _, ok := rented[b.ID]; ok {
			if b.Status != domain.BatteryStatusInUse {
				b.StationID = nil
			}
			b.Status = domain.BatteryStatusInUse
			inUse++
		} else if b.Status == domain.BatteryStatusInUse || b.Status == domain.BatteryStatusReserved {
			logger.Warn("Battery marked out without an open rental, loading as maintenance", "batteryID", b.ID, "status", b.Status)
			b.Status = domain.BatteryStatusMaintenance
			quarantined++
		}
		if err := reg.AddBattery(b); err != nil {
			return fmt.Errorf("failed to register battery %d: %w", b.ID, err)
		}
	}

	for batteryID, rentalID := range rented {
		if _, err := reg.Battery(batteryID); err != nil {
			logger.Warn("Open rental references unknown battery", "rentalID", rentalID, "batteryID", batteryID)
		}
	}

	logger.Info("Inventory loaded", "stations", len(stations), "batteries", len(batteries),
		"inUse", inUse, "quarantined", quarantined)
	return nil
}
