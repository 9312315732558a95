package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/repository"
)

const rentalColumns = `id, user_id, battery_id, station_id, rented_at, returned_at, return_station_id, fee_cents, state, abandon_reason`

type rentalRepository struct {
	db *sql.DB
}

func NewRentalRepository(db *sql.DB) repository.RentalRepository {
	return &rentalRepository{db: db}
}

func (r *rentalRepository) Open(ctx context.Context, userID domain.UserID, batteryID domain.BatteryID, stationID domain.StationID, rentedAt time.Time, maxOpen int) (*domain.Rental, error) {
	logger.EnterMethod("rentalRepository.Open", "userID", userID, "batteryID", batteryID, "stationID", stationID)

	rt, err := r.open(ctx, userID, batteryID, stationID, rentedAt, maxOpen)
	if err != nil {
		logger.ExitMethodWithError("rentalRepository.Open", err, "userID", userID, "batteryID", batteryID)
		return nil, err
	}

	logger.ExitMethod("rentalRepository.Open", "rentalID", rt.ID)
	return rt, nil
}

func (r *rentalRepository) open(ctx context.Context, userID domain.UserID, batteryID domain.BatteryID, stationID domain.StationID, rentedAt time.Time, maxOpen int) (*domain.Rental, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Locking the account row serializes concurrent opens by the same user,
	// so the count below cannot go stale before the insert.
	var locked int64
	err = tx.QueryRowContext(ctx, `SELECT user_id FROM accounts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", domain.ErrAccountNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	var open int
	err = tx.QueryRowContext(ctx, `SELECT count(*) FROM rentals WHERE user_id = $1 AND state = 'OPEN'`, userID).Scan(&open)
	if err != nil {
		return nil, err
	}
	if open >= maxOpen {
		return nil, fmt.Errorf("%w: user %d holds %d open rentals", domain.ErrConcurrencyLimitExceeded, userID, open)
	}

	rt := &domain.Rental{
		UserID:    userID,
		BatteryID: batteryID,
		StationID: stationID,
		RentedAt:  rentedAt,
		State:     domain.RentalStateOpen,
	}
	query := `INSERT INTO rentals (user_id, battery_id, station_id, rented_at, state) 
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err = tx.QueryRowContext(ctx, query, userID, batteryID, stationID, rentedAt, rt.State).Scan(&rt.ID)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: battery %d", domain.ErrBatteryAlreadyRented, batteryID)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rt, nil
}

func (r *rentalRepository) Close(ctx context.Context, id domain.RentalID, returnStationID domain.StationID, returnedAt time.Time, feeCents int64) (*domain.Rental, error) {
	logger.EnterMethod("rentalRepository.Close", "rentalID", id, "returnStationID", returnStationID, "feeCents", feeCents)

	query := `UPDATE rentals SET state = 'CLOSED', returned_at = $2, return_station_id = $3, fee_cents = $4 
	          WHERE id = $1 AND state = 'OPEN' RETURNING ` + rentalColumns
	rt, err := scanRental(r.db.QueryRowContext(ctx, query, id, returnedAt, returnStationID, feeCents))
	if errors.Is(err, sql.ErrNoRows) {
		err = r.notOpen(ctx, id)
	}
	if err != nil {
		logger.ExitMethodWithError("rentalRepository.Close", err, "rentalID", id)
		return nil, err
	}

	logger.ExitMethod("rentalRepository.Close", "rentalID", id)
	return rt, nil
}

func (r *rentalRepository) Abandon(ctx context.Context, id domain.RentalID, reason string) (*domain.Rental, error) {
	logger.EnterMethod("rentalRepository.Abandon", "rentalID", id)

	query := `UPDATE rentals SET state = 'ABANDONED', abandon_reason = $2 
	          WHERE id = $1 AND state = 'OPEN' RETURNING ` + rentalColumns
	rt, err := scanRental(r.db.QueryRowContext(ctx, query, id, reason))
	if errors.Is(err, sql.ErrNoRows) {
		err = r.notOpen(ctx, id)
	}
	if err != nil {
		logger.ExitMethodWithError("rentalRepository.Abandon", err, "rentalID", id)
		return nil, err
	}

	logger.ExitMethod("rentalRepository.Abandon", "rentalID", id)
	return rt, nil
}

// notOpen explains why a conditional update on an open rental matched nothing.
func (r *rentalRepository) notOpen(ctx context.Context, id domain.RentalID) error {
	var state domain.RentalState
	err := r.db.QueryRowContext(ctx, `SELECT state FROM rentals WHERE id = $1`, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: rental %d is %s", domain.ErrAlreadyClosed, id, state)
}

func (r *rentalRepository) GetByID(ctx context.Context, id domain.RentalID) (*domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1`
	rt, err := scanRental(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (r *rentalRepository) ListByUser(ctx context.Context, userID domain.UserID, state domain.RentalState) ([]domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE user_id = $1`
	args := []interface{}{userID}
	if state != "" {
		query += " AND state = $2"
		args = append(args, state)
	}
	query += " ORDER BY rented_at DESC, id DESC"

	logger.DatabaseCall("rentals.ListByUser", query, "userID", userID, "state", state)
	rentals, err := r.list(ctx, query, args...)
	logger.DatabaseResult("rentals.ListByUser", int64(len(rentals)), err)
	return rentals, err
}

func (r *rentalRepository) ListOpen(ctx context.Context) ([]domain.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE state = 'OPEN' ORDER BY id`
	return r.list(ctx, query)
}

func (r *rentalRepository) list(ctx context.Context, query string, args ...interface{}) ([]domain.Rental, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rentals []domain.Rental
	for rows.Next() {
		rt, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		rentals = append(rentals, *rt)
	}
	return rentals, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRental(row rowScanner) (*domain.Rental, error) {
	rt := &domain.Rental{}
	err := row.Scan(&rt.ID, &rt.UserID, &rt.BatteryID, &rt.StationID, &rt.RentedAt, &rt.ReturnedAt,
		&rt.ReturnStationID, &rt.FeeCents, &rt.State, &rt.AbandonReason)
	if err != nil {
		return nil, err
	}
	return rt, nil
}
