package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/repository"
)

type inventoryRepository struct {
	mu        sync.Mutex
	stations  []domain.Station
	batteries map[domain.BatteryID]domain.Battery
}

// NewInventoryRepository serves a fixed station list and tracks battery
// updates in memory.
func NewInventoryRepository(stations []domain.Station, batteries []domain.Battery) repository.InventoryRepository {
	r := &inventoryRepository{
		stations:  append([]domain.Station(nil), stations...),
		batteries: make(map[domain.BatteryID]domain.Battery, len(batteries)),
	}
	for _, b := range batteries {
		r.batteries[b.ID] = b
	}
	return r
}

func (r *inventoryRepository) ListStations(ctx context.Context) ([]domain.Station, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Station(nil), r.stations...), nil
}

func (r *inventoryRepository) ListBatteries(ctx context.Context) ([]domain.Battery, error) {
	r.mu.Lock()
	out := make([]domain.Battery, 0, len(r.batteries))
	for _, b := range r.batteries {
		out = append(out, b)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *inventoryRepository) UpdateBattery(ctx context.Context, b domain.Battery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.batteries[b.ID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrBatteryNotFound, b.ID)
	}
	r.batteries[b.ID] = b
	return nil
}
