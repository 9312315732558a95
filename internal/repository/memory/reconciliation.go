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

type reconciliationRepository struct {
	mu     sync.Mutex
	nextID int64
	cases  map[int64]domain.ReconciliationCase
}

func NewReconciliationRepository() repository.ReconciliationRepository {
	return &reconciliationRepository{cases: make(map[int64]domain.ReconciliationCase)}
}

func (r *reconciliationRepository) Create(ctx context.Context, c *domain.ReconciliationCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.Status == domain.ReconciliationStatusOpen {
		for _, existing := range r.cases {
			if existing.RentalID == c.RentalID && existing.Status == domain.ReconciliationStatusOpen {
				return fmt.Errorf("%w: rental %d has case %d", domain.ErrReconciliationPending, c.RentalID, existing.ID)
			}
		}
	}

	r.nextID++
	now := time.Now()
	c.ID = r.nextID
	c.CreatedAt = now
	c.UpdatedAt = now
	r.cases[c.ID] = *c
	return nil
}

func (r *reconciliationRepository) GetByID(ctx context.Context, id int64) (*domain.ReconciliationCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrCaseNotFound, id)
	}
	return &c, nil
}

func (r *reconciliationRepository) GetOpenByRental(ctx context.Context, rentalID domain.RentalID) (*domain.ReconciliationCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cases {
		if c.RentalID == rentalID && c.Status == domain.ReconciliationStatusOpen {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *reconciliationRepository) ListOpen(ctx context.Context) ([]domain.ReconciliationCase, error) {
	r.mu.Lock()
	var out []domain.ReconciliationCase
	for _, c := range r.cases {
		if c.Status == domain.ReconciliationStatusOpen {
			out = append(out, c)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *reconciliationRepository) Update(ctx context.Context, c *domain.ReconciliationCase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[c.ID]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrCaseNotFound, c.ID)
	}
	c.UpdatedAt = time.Now()
	r.cases[c.ID] = *c
	return nil
}
