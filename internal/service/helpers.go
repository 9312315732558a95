package service

import (
	"context"
	"fmt"
	"sync"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/repository"

	"github.com/google/uuid"
)

var debitNamespace = uuid.MustParse("5b7c3f0e-8a52-4d55-9c4e-2f0d8f6b1a90")

// DebitReference is the idempotency key for the charge of a rental. The same
// rental always maps to the same reference.
func DebitReference(rentalID domain.RentalID) string {
	return uuid.NewSHA1(debitNamespace, []byte(fmt.Sprintf("rental:%d", rentalID))).String()
}

// exitMethod logs business outcomes at debug level and faults at error level.
func exitMethod(method string, err error, args ...any) {
	switch {
	case err == nil:
		logger.ExitMethod(method, args...)
	case domain.IsExpected(err):
		logger.ExitMethod(method, append(args, "outcome", err.Error())...)
	default:
		logger.ExitMethodWithError(method, err, args...)
	}
}

// batteryWriter mirrors registry state into the inventory store. Failures
// are logged; the registry stays authoritative for the running process.
type batteryWriter struct {
	registry  StationRegistry
	inventory repository.InventoryRepository
}

func (w batteryWriter) persist(ctx context.Context, batteryID domain.BatteryID) {
	if w.inventory == nil {
		return
	}
	b, err := w.registry.Battery(batteryID)
	if err != nil {
		logger.Warn("Battery vanished before it could be persisted", "batteryID", batteryID, "error", err)
		return
	}
	if err := w.inventory.UpdateBattery(context.WithoutCancel(ctx), b); err != nil {
		logger.Warn("Failed to persist battery state", "batteryID", batteryID, "status", b.Status, "error", err)
	}
}

func receiptFromRental(rt *domain.Rental) (*domain.ReturnReceipt, error) {
	if rt.State != domain.RentalStateClosed || rt.ReturnedAt == nil || rt.FeeCents == nil || rt.ReturnStationID == nil {
		return nil, fmt.Errorf("%w: rental %d is %s", domain.ErrInvalidArgument, rt.ID, rt.State)
	}
	return &domain.ReturnReceipt{
		RentalID:        rt.ID,
		BatteryID:       rt.BatteryID,
		ReturnStationID: *rt.ReturnStationID,
		FeeCents:        *rt.FeeCents,
		Duration:        rt.ReturnedAt.Sub(rt.RentedAt),
		ReturnedAt:      *rt.ReturnedAt,
	}, nil
}

// rentalClaims serializes the flows that move a rental out of OPEN.
type rentalClaims struct {
	held sync.Map
}

func (c *rentalClaims) acquire(rentalID domain.RentalID) (func(), bool) {
	if _, busy := c.held.LoadOrStore(rentalID, struct{}{}); busy {
		return nil, false
	}
	return func() { c.held.Delete(rentalID) }, true
}
