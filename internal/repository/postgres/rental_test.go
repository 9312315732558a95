package postgres_test

import (
	"context"
	"testing"
	"time"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/repository/postgres"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0          = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rentalCols  = []string{"id", "user_id", "battery_id", "station_id", "rented_at", "returned_at", "return_station_id", "fee_cents", "state", "abandon_reason"}
	lockAccount = "SELECT user_id FROM accounts WHERE user_id = \\$1 FOR UPDATE"
	countOpen   = "SELECT count\\(\\*\\) FROM rentals WHERE user_id = \\$1 AND state = 'OPEN'"
)

func TestRentalRepository_Open(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := postgres.NewRentalRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockAccount).WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(7))
		mock.ExpectQuery(countOpen).WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("INSERT INTO rentals").
			WithArgs(int64(7), int64(1), int64(3), t0, "OPEN").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
		mock.ExpectCommit()

		rt, err := repo.Open(ctx, 7, 1, 3, t0, 1)
		assert.NoError(t, err)
		require.NotNil(t, rt)
		assert.Equal(t, domain.RentalID(11), rt.ID)
		assert.Equal(t, domain.RentalStateOpen, rt.State)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Concurrency limit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := postgres.NewRentalRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockAccount).WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(7))
		mock.ExpectQuery(countOpen).WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectRollback()

		_, err = repo.Open(ctx, 7, 1, 3, t0, 1)
		assert.ErrorIs(t, err, domain.ErrConcurrencyLimitExceeded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Battery already on an open rental", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := postgres.NewRentalRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockAccount).WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(8))
		mock.ExpectQuery(countOpen).WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("INSERT INTO rentals").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "rentals_open_battery_uidx"})
		mock.ExpectRollback()

		_, err = repo.Open(ctx, 8, 1, 3, t0, 1)
		assert.ErrorIs(t, err, domain.ErrBatteryAlreadyRented)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Unknown account", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := postgres.NewRentalRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(lockAccount).WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
		mock.ExpectRollback()

		_, err = repo.Open(ctx, 9, 1, 3, t0, 1)
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRentalRepository_Close(t *testing.T) {
	ctx := context.Background()
	returnedAt := t0.Add(47 * time.Minute)

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := postgres.NewRentalRepository(db)

		mock.ExpectQuery("UPDATE rentals SET state = 'CLOSED'").
			WithArgs(int64(11), returnedAt, int64(2), int64(470)).
			WillReturnRows(sqlmock.NewRows(rentalCols).
				AddRow(11, 7, 1, 3, t0, returnedAt, 2, 470, "CLOSED", ""))

		rt, err := repo.Close(ctx, 11, 2, returnedAt, 470)
		assert.NoError(t, err)
		require.NotNil(t, rt)
		assert.Equal(t, domain.RentalStateClosed, rt.State)
		require.NotNil(t, rt.FeeCents)
		assert.Equal(t, int64(470), *rt.FeeCents)
		require.NotNil(t, rt.ReturnStationID)
		assert.Equal(t, domain.StationID(2), *rt.ReturnStationID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Already closed", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := postgres.NewRentalRepository(db)

		mock.ExpectQuery("UPDATE rentals SET state = 'CLOSED'").
			WillReturnRows(sqlmock.NewRows(rentalCols))
		mock.ExpectQuery("SELECT state FROM rentals WHERE id = \\$1").
			WithArgs(int64(11)).
			WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow("CLOSED"))

		_, err = repo.Close(ctx, 11, 2, returnedAt, 470)
		assert.ErrorIs(t, err, domain.ErrAlreadyClosed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := postgres.NewRentalRepository(db)

		mock.ExpectQuery("UPDATE rentals SET state = 'CLOSED'").
			WillReturnRows(sqlmock.NewRows(rentalCols))
		mock.ExpectQuery("SELECT state FROM rentals WHERE id = \\$1").
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"state"}))

		_, err = repo.Close(ctx, 99, 2, returnedAt, 470)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRentalRepository_Abandon(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewRentalRepository(db)

	mock.ExpectQuery("UPDATE rentals SET state = 'ABANDONED'").
		WithArgs(int64(11), "lost").
		WillReturnRows(sqlmock.NewRows(rentalCols).
			AddRow(11, 7, 1, 3, t0, nil, nil, nil, "ABANDONED", "lost"))

	rt, err := repo.Abandon(context.Background(), 11, "lost")
	assert.NoError(t, err)
	require.NotNil(t, rt)
	assert.Equal(t, domain.RentalStateAbandoned, rt.State)
	assert.Nil(t, rt.ReturnedAt)
	assert.Nil(t, rt.FeeCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRentalRepository_ListByUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewRentalRepository(db)

	later := t0.Add(2 * time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM rentals WHERE user_id = \\$1 AND state = \\$2 ORDER BY rented_at DESC").
		WithArgs(int64(7), "CLOSED").
		WillReturnRows(sqlmock.NewRows(rentalCols).
			AddRow(12, 7, 2, 3, later, later.Add(time.Minute), 3, 100, "CLOSED", "").
			AddRow(11, 7, 1, 3, t0, t0.Add(47*time.Minute), 2, 470, "CLOSED", ""))

	rentals, err := repo.ListByUser(context.Background(), 7, domain.RentalStateClosed)
	assert.NoError(t, err)
	require.Len(t, rentals, 2)
	assert.Equal(t, domain.RentalID(12), rentals[0].ID)
	assert.Equal(t, domain.RentalID(11), rentals[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRentalRepository_GetByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewRentalRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM rentals WHERE id = \\$1").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(rentalCols))

	_, err = repo.GetByID(context.Background(), 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
