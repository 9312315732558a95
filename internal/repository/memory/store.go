package memory

import "battery-rental-backend/internal/repository"

// Store bundles the in-memory repositories for running without a database.
type Store struct {
	repository.RentalRepository
	repository.InventoryRepository
	repository.ReconciliationRepository
	Accounts *AccountRepository
}

func NewStore(inventory repository.InventoryRepository) *Store {
	return &Store{
		RentalRepository:         NewRentalRepository(),
		InventoryRepository:      inventory,
		ReconciliationRepository: NewReconciliationRepository(),
		Accounts:                 NewAccountRepository(),
	}
}
