package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/repository"
)

type rentalRepository struct {
	mu      sync.Mutex
	nextID  domain.RentalID
	rentals map[domain.RentalID]*domain.Rental
}

func NewRentalRepository() repository.RentalRepository {
	return &rentalRepository{rentals: make(map[domain.RentalID]*domain.Rental)}
}

func (r *rentalRepository) Open(ctx context.Context, userID domain.UserID, batteryID domain.BatteryID, stationID domain.StationID, rentedAt time.Time, maxOpen int) (*domain.Rental, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	open := 0
	for _, rt := range r.rentals {
		if !rt.IsOpen() {
			continue
		}
		if rt.BatteryID == batteryID {
			return nil, fmt.Errorf("%w: battery %d on rental %d", domain.ErrBatteryAlreadyRented, batteryID, rt.ID)
		}
		if rt.UserID == userID {
			open++
		}
	}
	if open >= maxOpen {
		return nil, fmt.Errorf("%w: user %d holds %d open rentals", domain.ErrConcurrencyLimitExceeded, userID, open)
	}

	r.nextID++
	rt := &domain.Rental{
		ID:        r.nextID,
		UserID:    userID,
		BatteryID: batteryID,
		StationID: stationID,
		RentedAt:  rentedAt,
		State:     domain.RentalStateOpen,
	}
	r.rentals[rt.ID] = rt
	return copyRental(rt), nil
}

func (r *rentalRepository) Close(ctx context.Context, id domain.RentalID, returnStationID domain.StationID, returnedAt time.Time, feeCents int64) (*domain.Rental, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, err := r.openRental(id)
	if err != nil {
		return nil, err
	}
	rt.State = domain.RentalStateClosed
	rt.ReturnedAt = &returnedAt
	rt.ReturnStationID = &returnStationID
	rt.FeeCents = &feeCents
	return copyRental(rt), nil
}

func (r *rentalRepository) Abandon(ctx context.Context, id domain.RentalID, reason string) (*domain.Rental, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, err := r.openRental(id)
	if err != nil {
		return nil, err
	}
	rt.State = domain.RentalStateAbandoned
	rt.AbandonReason = reason
	return copyRental(rt), nil
}

// openRental must be called with r.mu held.
func (r *rentalRepository) openRental(id domain.RentalID) (*domain.Rental, error) {
	rt, ok := r.rentals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	if !rt.IsOpen() {
		return nil, fmt.Errorf("%w: rental %d is %s", domain.ErrAlreadyClosed, id, rt.State)
	}
	return rt, nil
}

func (r *rentalRepository) GetByID(ctx context.Context, id domain.RentalID) (*domain.Rental, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.rentals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	return copyRental(rt), nil
}

func (r *rentalRepository) ListByUser(ctx context.Context, userID domain.UserID, state domain.RentalState) ([]domain.Rental, error) {
	r.mu.Lock()
	var out []domain.Rental
	for _, rt := range r.rentals {
		if rt.UserID != userID || (state != "" && rt.State != state) {
			continue
		}
		out = append(out, *copyRental(rt))
	}
	r.mu.Unlock()

	sortNewestFirst(out)
	return out, nil
}

func (r *rentalRepository) ListOpen(ctx context.Context) ([]domain.Rental, error) {
	r.mu.Lock()
	var out []domain.Rental
	for _, rt := range r.rentals {
		if rt.IsOpen() {
			out = append(out, *copyRental(rt))
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func sortNewestFirst(rentals []domain.Rental) {
	sort.Slice(rentals, func(i, j int) bool {
		if rentals[i].RentedAt.Equal(rentals[j].RentedAt) {
			return rentals[i].ID > rentals[j].ID
		}
		return rentals[i].RentedAt.After(rentals[j].RentedAt)
	})
}

func copyRental(rt *domain.Rental) *domain.Rental {
	c := *rt
	if rt.ReturnedAt != nil {
		t := *rt.ReturnedAt
		c.ReturnedAt = &t
	}
	if rt.ReturnStationID != nil {
		s := *rt.ReturnStationID
		c.ReturnStationID = &s
	}
	if rt.FeeCents != nil {
		f := *rt.FeeCents
		c.FeeCents = &f
	}
	return &c
}
