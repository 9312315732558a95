package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/registry"
	"battery-rental-backend/internal/repository"

	"github.com/stretchr/testify/mock"
)

// MockAlerter
type MockAlerter struct {
	mock.Mock
}

func (m *MockAlerter) Alert(ctx context.Context, c domain.ReconciliationCase) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stuckRegistry refuses to hand over reserved batteries.
type stuckRegistry struct {
	*registry.Registry
}

func (r stuckRegistry) MarkInUse(batteryID domain.BatteryID) error {
	return domain.ErrInvalidTransition
}

// hookedRegistry runs onDock before docking a returned battery.
type hookedRegistry struct {
	*registry.Registry
	onDock func()
}

func (r *hookedRegistry) Dock(batteryID domain.BatteryID, stationID domain.StationID) error {
	if r.onDock != nil {
		r.onDock()
	}
	return r.Registry.Dock(batteryID, stationID)
}

var errLedgerDown = errors.New("ledger unavailable")

// flakyRentalRepo fails the next N calls of the chosen operations.
type flakyRentalRepo struct {
	repository.RentalRepository
	mu         sync.Mutex
	openFails  int
	closeFails int
}

func (r *flakyRentalRepo) Open(ctx context.Context, userID domain.UserID, batteryID domain.BatteryID, stationID domain.StationID, rentedAt time.Time, maxOpen int) (*domain.Rental, error) {
	r.mu.Lock()
	fail := r.openFails > 0
	if fail {
		r.openFails--
	}
	r.mu.Unlock()
	if fail {
		return nil, errLedgerDown
	}
	return r.RentalRepository.Open(ctx, userID, batteryID, stationID, rentedAt, maxOpen)
}

func (r *flakyRentalRepo) Close(ctx context.Context, id domain.RentalID, returnStationID domain.StationID, returnedAt time.Time, feeCents int64) (*domain.Rental, error) {
	r.mu.Lock()
	fail := r.closeFails > 0
	if fail {
		r.closeFails--
	}
	r.mu.Unlock()
	if fail {
		return nil, errLedgerDown
	}
	return r.RentalRepository.Close(ctx, id, returnStationID, returnedAt, feeCents)
}
