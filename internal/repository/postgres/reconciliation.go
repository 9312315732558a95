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

const caseColumns = `id, ticket, kind, status, rental_id, user_id, battery_id, return_station_id, returned_at, 
	fee_cents, attempts, last_error, created_at, updated_at`

type reconciliationRepository struct {
	db *sql.DB
}

func NewReconciliationRepository(db *sql.DB) repository.ReconciliationRepository {
	return &reconciliationRepository{db: db}
}

func (r *reconciliationRepository) Create(ctx context.Context, c *domain.ReconciliationCase) error {
	logger.EnterMethod("reconciliationRepository.Create", "rentalID", c.RentalID, "kind", c.Kind)

	query := `
		INSERT INTO reconciliation_cases (
			ticket, kind, status, rental_id, user_id, battery_id, return_station_id, returned_at,
			fee_cents, attempts, last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`
	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		c.Ticket, c.Kind, c.Status, c.RentalID, c.UserID, c.BatteryID, nullStationID(c.ReturnStationID), c.ReturnedAt,
		c.FeeCents, c.Attempts, c.LastError, now, now,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		err = fmt.Errorf("%w: rental %d", domain.ErrReconciliationPending, c.RentalID)
	}
	if err != nil {
		logger.ExitMethodWithError("reconciliationRepository.Create", err, "rentalID", c.RentalID)
		return err
	}

	logger.ExitMethod("reconciliationRepository.Create", "caseID", c.ID, "ticket", c.Ticket)
	return nil
}

func (r *reconciliationRepository) GetByID(ctx context.Context, id int64) (*domain.ReconciliationCase, error) {
	query := `SELECT ` + caseColumns + ` FROM reconciliation_cases WHERE id = $1`
	c, err := scanCase(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domain.ErrCaseNotFound, id)
	}
	return c, err
}

func (r *reconciliationRepository) GetOpenByRental(ctx context.Context, rentalID domain.RentalID) (*domain.ReconciliationCase, error) {
	query := `SELECT ` + caseColumns + ` FROM reconciliation_cases WHERE rental_id = $1 AND status = 'OPEN'`
	c, err := scanCase(r.db.QueryRowContext(ctx, query, rentalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *reconciliationRepository) ListOpen(ctx context.Context) ([]domain.ReconciliationCase, error) {
	query := `SELECT ` + caseColumns + ` FROM reconciliation_cases WHERE status = 'OPEN' ORDER BY id`
	logger.DatabaseCall("reconciliation_cases.ListOpen", query)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		logger.DatabaseResult("reconciliation_cases.ListOpen", 0, err)
		return nil, err
	}
	defer rows.Close()

	var cases []domain.ReconciliationCase
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, *c)
	}
	logger.DatabaseResult("reconciliation_cases.ListOpen", int64(len(cases)), rows.Err())
	return cases, rows.Err()
}

func (r *reconciliationRepository) Update(ctx context.Context, c *domain.ReconciliationCase) error {
	logger.EnterMethod("reconciliationRepository.Update", "caseID", c.ID, "status", c.Status)

	query := `UPDATE reconciliation_cases SET status = $1, attempts = $2, last_error = $3, updated_at = $4 WHERE id = $5`
	c.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx, query, c.Status, c.Attempts, c.LastError, c.UpdatedAt, c.ID)
	if err == nil {
		var n int64
		if n, err = res.RowsAffected(); err == nil && n == 0 {
			err = fmt.Errorf("%w: %d", domain.ErrCaseNotFound, c.ID)
		}
	}
	if err != nil {
		logger.ExitMethodWithError("reconciliationRepository.Update", err, "caseID", c.ID)
		return err
	}

	logger.ExitMethod("reconciliationRepository.Update", "caseID", c.ID)
	return nil
}

func scanCase(row rowScanner) (*domain.ReconciliationCase, error) {
	c := &domain.ReconciliationCase{}
	err := row.Scan(&c.ID, &c.Ticket, &c.Kind, &c.Status, &c.RentalID, &c.UserID, &c.BatteryID,
		&c.ReturnStationID, &c.ReturnedAt, &c.FeeCents, &c.Attempts, &c.LastError, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}
