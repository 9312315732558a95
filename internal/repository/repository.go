package repository

import (
	"context"
	"time"

	"battery-rental-backend/internal/domain"
)

// RentalRepository is the rental ledger. Every state change is conditional
// on the rental still being OPEN, so concurrent closes of the same rental
// produce exactly one success.
type RentalRepository interface {
	// Open fails with ErrConcurrencyLimitExceeded when the user already holds
	// maxOpen open rentals and with ErrBatteryAlreadyRented when the battery
	// is on another open rental.
	Open(ctx context.Context, userID domain.UserID, batteryID domain.BatteryID, stationID domain.StationID, rentedAt time.Time, maxOpen int) (*domain.Rental, error)
	Close(ctx context.Context, id domain.RentalID, returnStationID domain.StationID, returnedAt time.Time, feeCents int64) (*domain.Rental, error)
	Abandon(ctx context.Context, id domain.RentalID, reason string) (*domain.Rental, error)
	GetByID(ctx context.Context, id domain.RentalID) (*domain.Rental, error)
	// ListByUser returns the user's rentals newest first. An empty state
	// returns rentals in every state.
	ListByUser(ctx context.Context, userID domain.UserID, state domain.RentalState) ([]domain.Rental, error)
	ListOpen(ctx context.Context) ([]domain.Rental, error)
}

// AccountRepository is the balance-holding collaborator.
type AccountRepository interface {
	GetBalance(ctx context.Context, userID domain.UserID) (int64, error)
	// Debit charges amountCents once per reference. Repeating a reference
	// that was already charged is a no-op.
	Debit(ctx context.Context, userID domain.UserID, amountCents int64, reference string) error
}

type InventoryRepository interface {
	ListStations(ctx context.Context) ([]domain.Station, error)
	ListBatteries(ctx context.Context) ([]domain.Battery, error)
	UpdateBattery(ctx context.Context, battery domain.Battery) error
}

type ReconciliationRepository interface {
	Create(ctx context.Context, c *domain.ReconciliationCase) error
	GetByID(ctx context.Context, id int64) (*domain.ReconciliationCase, error)
	// GetOpenByRental returns nil without error when the rental has no open case.
	GetOpenByRental(ctx context.Context, rentalID domain.RentalID) (*domain.ReconciliationCase, error)
	ListOpen(ctx context.Context) ([]domain.ReconciliationCase, error)
	Update(ctx context.Context, c *domain.ReconciliationCase) error
}
