package postgres

import (
	"database/sql"
	"errors"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/repository"

	"github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.RentalRepository
	repository.AccountRepository
	repository.InventoryRepository
	repository.ReconciliationRepository
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:                       db,
		RentalRepository:         NewRentalRepository(db),
		AccountRepository:        NewAccountRepository(db),
		InventoryRepository:      NewInventoryRepository(db),
		ReconciliationRepository: NewReconciliationRepository(db),
	}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nullStationID(id *domain.StationID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}
