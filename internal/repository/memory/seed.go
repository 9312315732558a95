package memory

import (
	"fmt"
	"os"

	"battery-rental-backend/internal/domain"

	"gopkg.in/yaml.v3"
)

// Seed is the inventory file read by the memory backend.
type Seed struct {
	Stations  []domain.Station `yaml:"stations"`
	Batteries []domain.Battery `yaml:"batteries"`
	Accounts  []SeedAccount    `yaml:"accounts"`
}

type SeedAccount struct {
	UserID       domain.UserID `yaml:"user_id"`
	BalanceCents int64         `yaml:"balance_cents"`
}

// LoadSeed reads and checks a seed file. Batteries without a status are
// AVAILABLE.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	stations := make(map[domain.StationID]bool, len(seed.Stations))
	for _, st := range seed.Stations {
		if st.ID <= 0 || stations[st.ID] {
			return nil, fmt.Errorf("%w: duplicate or missing station id %d", domain.ErrInvalidArgument, st.ID)
		}
		stations[st.ID] = true
	}
	for i := range seed.Batteries {
		b := &seed.Batteries[i]
		if b.Status == "" {
			b.Status = domain.BatteryStatusAvailable
		}
		if !b.Status.Valid() {
			return nil, fmt.Errorf("%w: battery %d has status %q", domain.ErrInvalidArgument, b.ID, b.Status)
		}
		if b.StationID != nil && !stations[*b.StationID] {
			return nil, fmt.Errorf("%w: battery %d references station %d", domain.ErrStationNotFound, b.ID, *b.StationID)
		}
	}
	return &seed, nil
}

// NewStoreFromSeed builds a store holding the seed's inventory and balances.
func NewStoreFromSeed(seed *Seed) *Store {
	store := NewStore(NewInventoryRepository(seed.Stations, seed.Batteries))
	for _, a := range seed.Accounts {
		store.Accounts.SetBalance(a.UserID, a.BalanceCents)
	}
	return store
}
