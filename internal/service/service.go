package service

import (
	"context"
	"iter"
	"time"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/registry"
)

// StationRegistry is the inventory the coordinator mutates. It is satisfied
// by *registry.Registry.
type StationRegistry interface {
	Reserve(stationID domain.StationID) (domain.BatteryID, error)
	MarkInUse(batteryID domain.BatteryID) error
	Dock(batteryID domain.BatteryID, stationID domain.StationID) error
	Release(batteryID domain.BatteryID, stationID domain.StationID) error
	CancelReservation(batteryID domain.BatteryID) error
	SetMaintenance(batteryID domain.BatteryID) error
	ClearMaintenance(batteryID domain.BatteryID, stationID domain.StationID) error
	Retire(batteryID domain.BatteryID) error
	Battery(batteryID domain.BatteryID) (domain.Battery, error)
	Station(stationID domain.StationID) (domain.Station, error)
	Snapshot() registry.Snapshot
}

// StationIndex is satisfied by *availability.Index.
type StationIndex interface {
	Search(origin domain.Location, radiusKm float64) iter.Seq[domain.StationAvailability]
	Rebuild(snap registry.Snapshot)
}

type RentalService interface {
	Checkout(ctx context.Context, userID domain.UserID, stationID domain.StationID) (*domain.RentalReceipt, error)
	ReturnBattery(ctx context.Context, userID domain.UserID, rentalID domain.RentalID, returnStationID domain.StationID) (*domain.ReturnReceipt, error)
}

type StationService interface {
	SearchStations(ctx context.Context, origin domain.Location, radiusKm float64) (iter.Seq[domain.StationAvailability], error)
	GetHistory(ctx context.Context, userID domain.UserID) ([]domain.RentalSummary, error)
	ListStations(ctx context.Context) ([]domain.StationDetail, error)
	GetStation(ctx context.Context, stationID domain.StationID) (*domain.StationDetail, error)
}

type AdminService interface {
	SetMaintenance(ctx context.Context, batteryID domain.BatteryID) (domain.Battery, error)
	ClearMaintenance(ctx context.Context, batteryID domain.BatteryID, stationID domain.StationID) (domain.Battery, error)
	AbandonRental(ctx context.Context, rentalID domain.RentalID, reason string) (*domain.Rental, error)
	ListReconciliations(ctx context.Context) ([]domain.ReconciliationCase, error)
	RetryReconciliation(ctx context.Context, caseID int64) (*domain.ReturnReceipt, error)
	AuditInventory(ctx context.Context) (*AuditReport, error)
}

type ReconciliationService interface {
	// Claim gives the caller exclusive use of a rental's return, settle or
	// abandon flow. ok is false while another flow holds the rental.
	Claim(rentalID domain.RentalID) (release func(), ok bool)
	// Record stores an open case, alerts operators and returns the case ticket.
	// The ticket is returned even when storing fails so the caller can still
	// hand it to the user.
	Record(ctx context.Context, c *domain.ReconciliationCase) string
	PendingFor(ctx context.Context, rentalID domain.RentalID) (*domain.ReconciliationCase, error)
	// Settle runs the recovery path for a case: charge, then close. Settling a
	// case that is already resolved returns the same receipt again.
	Settle(ctx context.Context, c *domain.ReconciliationCase) (*domain.ReturnReceipt, error)
	SettleByID(ctx context.Context, caseID int64) (*domain.ReturnReceipt, error)
	RetryOpen(ctx context.Context) (*RetrySummary, error)
	ListOpen(ctx context.Context) ([]domain.ReconciliationCase, error)
}

// Alerter notifies operators about cases that need attention.
type Alerter interface {
	Alert(ctx context.Context, c domain.ReconciliationCase) error
}

// RentalOptions carries the rental policy.
type RentalOptions struct {
	MaxOpenPerUser  int
	MinBalanceCents int64
	FeePolicy       domain.FeePolicy
	Clock           func() time.Time
}

func (o RentalOptions) withDefaults() RentalOptions {
	if o.MaxOpenPerUser <= 0 {
		o.MaxOpenPerUser = 1
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

type RetrySummary struct {
	Settled int
	Failed  int
	Skipped int
}

// AuditReport lists disagreements between the ledger and the registry.
type AuditReport struct {
	OpenRentals          int
	InUseBatteries       int
	OrphanedRentals      []domain.RentalID  // open rental whose battery is not in use
	UnaccountedBatteries []domain.BatteryID // in-use battery without an open rental
	// docked batteries whose rental was settled elsewhere, now released
	ReleasedBatteries []domain.BatteryID
}

func (r *AuditReport) Consistent() bool {
	return len(r.OrphanedRentals) == 0 && len(r.UnaccountedBatteries) == 0
}
