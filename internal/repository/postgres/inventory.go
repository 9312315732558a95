package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/repository"
)

type inventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) repository.InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) ListStations(ctx context.Context) ([]domain.Station, error) {
	query := `SELECT id, name, lat, lng FROM stations ORDER BY id`
	logger.DatabaseCall("stations.List", query)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		logger.DatabaseResult("stations.List", 0, err)
		return nil, err
	}
	defer rows.Close()

	var stations []domain.Station
	for rows.Next() {
		var s domain.Station
		if err := rows.Scan(&s.ID, &s.Name, &s.Location.Lat, &s.Location.Lng); err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}
	logger.DatabaseResult("stations.List", int64(len(stations)), rows.Err())
	return stations, rows.Err()
}

func (r *inventoryRepository) ListBatteries(ctx context.Context) ([]domain.Battery, error) {
	query := `SELECT id, serial, status, station_id FROM batteries ORDER BY id`
	logger.DatabaseCall("batteries.List", query)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		logger.DatabaseResult("batteries.List", 0, err)
		return nil, err
	}
	defer rows.Close()

	var batteries []domain.Battery
	for rows.Next() {
		var b domain.Battery
		if err := rows.Scan(&b.ID, &b.Serial, &b.Status, &b.StationID); err != nil {
			return nil, err
		}
		batteries = append(batteries, b)
	}
	logger.DatabaseResult("batteries.List", int64(len(batteries)), rows.Err())
	return batteries, rows.Err()
}

func (r *inventoryRepository) UpdateBattery(ctx context.Context, b domain.Battery) error {
	query := `UPDATE batteries SET status = $1, station_id = $2, updated_at = $3 WHERE id = $4`
	logger.DatabaseCall("batteries.Update", query, "batteryID", b.ID, "status", b.Status)

	res, err := r.db.ExecContext(ctx, query, b.Status, nullStationID(b.StationID), time.Now(), b.ID)
	if err != nil {
		logger.DatabaseResult("batteries.Update", 0, err)
		return err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("batteries.Update", n, err)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", domain.ErrBatteryNotFound, b.ID)
	}
	return nil
}
