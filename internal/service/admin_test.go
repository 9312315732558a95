package service_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"battery-rental-backend/internal/availability"
	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdmin(f *fixture, idx service.StationIndex) service.AdminService {
	return service.NewAdminService(f.reg, idx, f.store.RentalRepository, f.store.InventoryRepository, f.recon)
}

func storedBattery(t *testing.T, f *fixture, id domain.BatteryID) domain.Battery {
	t.Helper()
	batteries, err := f.store.InventoryRepository.ListBatteries(context.Background())
	require.NoError(t, err)
	for _, b := range batteries {
		if b.ID == id {
			return b
		}
	}
	t.Fatalf("battery %d not stored", id)
	return domain.Battery{}
}

func TestAdminService_Maintenance(t *testing.T) {
	f := newFixture(t, nil)
	admin := newAdmin(f, nil)
	ctx := context.Background()

	b, err := admin.SetMaintenance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.BatteryStatusMaintenance, b.Status)
	assert.Equal(t, domain.BatteryStatusMaintenance, storedBattery(t, f, 1).Status)

	_, err = f.svc.Checkout(ctx, user7, stationS)
	assert.ErrorIs(t, err, domain.ErrNoAvailableBattery)

	_, err = admin.SetMaintenance(ctx, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	b, err = admin.ClearMaintenance(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.BatteryStatusAvailable, b.Status)
	require.NotNil(t, b.StationID)
	assert.Equal(t, stationS, *b.StationID)

	stored := storedBattery(t, f, 1)
	assert.Equal(t, domain.BatteryStatusAvailable, stored.Status)

	_, err = admin.ClearMaintenance(ctx, 1, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = admin.SetMaintenance(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrBatteryNotFound)
}

func TestAdminService_AbandonRental(t *testing.T) {
	ctx := context.Background()

	t.Run("Abandon retires the battery", func(t *testing.T) {
		f := newFixture(t, nil)
		admin := newAdmin(f, nil)

		receipt, err := f.svc.Checkout(ctx, user7, stationS)
		require.NoError(t, err)

		_, err = admin.AbandonRental(ctx, receipt.RentalID, "")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		rental, err := admin.AbandonRental(ctx, receipt.RentalID, "battery reported stolen")
		require.NoError(t, err)
		assert.Equal(t, domain.RentalStateAbandoned, rental.State)
		assert.Equal(t, "battery reported stolen", rental.AbandonReason)

		b := f.battery(t, 1)
		assert.Equal(t, domain.BatteryStatusMaintenance, b.Status)
		assert.Nil(t, b.StationID)

		_, err = f.svc.ReturnBattery(ctx, user7, receipt.RentalID, stationT)
		assert.ErrorIs(t, err, domain.ErrAlreadyClosed)

		balance, _ := f.store.Accounts.GetBalance(ctx, user7)
		assert.Equal(t, int64(5000), balance)
		_, err = admin.AbandonRental(ctx, receipt.RentalID, "again")
		assert.ErrorIs(t, err, domain.ErrAlreadyClosed)
	})

	t.Run("Pending case blocks abandon", func(t *testing.T) {
		f := newFixture(t, nil)
		admin := newAdmin(f, nil)

		receipt, err := f.svc.Checkout(ctx, user7, stationS)
		require.NoError(t, err)
		f.store.Accounts.SetBalance(user7, 0)
		f.clock.Advance(20 * time.Minute)
		_, err = f.svc.ReturnBattery(ctx, user7, receipt.RentalID, stationT)
		require.ErrorIs(t, err, domain.ErrInsufficientBalance)

		_, err = admin.AbandonRental(ctx, receipt.RentalID, "write off")
		assert.ErrorIs(t, err, domain.ErrReconciliationPending)

		cases, err := admin.ListReconciliations(ctx)
		require.NoError(t, err)
		require.Len(t, cases, 1)
		assert.Equal(t, domain.ReconciliationPendingCharge, cases[0].Kind)
		assert.Equal(t, int64(200), cases[0].FeeCents)

		_, err = admin.RetryReconciliation(ctx, cases[0].ID)
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

		f.store.Accounts.SetBalance(user7, 200)
		ret, err := admin.RetryReconciliation(ctx, cases[0].ID)
		require.NoError(t, err)
		assert.Equal(t, int64(200), ret.FeeCents)

		cases, err = admin.ListReconciliations(ctx)
		require.NoError(t, err)
		assert.Empty(t, cases)

		_, err = admin.RetryReconciliation(ctx, 999)
		assert.ErrorIs(t, err, domain.ErrCaseNotFound)
	})
}

func TestAdminService_AuditInventory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// not subscribed: only the audit brings it up to date
	idx := availability.NewIndex()
	admin := newAdmin(f, idx)

	receipt, err := f.svc.Checkout(ctx, user7, stationS)
	require.NoError(t, err)

	report, err := admin.AuditInventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.OpenRentals)
	assert.Equal(t, 2, report.InUseBatteries)
	assert.Empty(t, report.OrphanedRentals)
	assert.Equal(t, []domain.BatteryID{2}, report.UnaccountedBatteries)
	assert.False(t, report.Consistent())

	// battery pulled from the field and docked at T by staff while its rental is still open
	require.NoError(t, f.reg.Retire(1))
	require.NoError(t, f.reg.ClearMaintenance(1, stationT))

	report, err = admin.AuditInventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.RentalID{receipt.RentalID}, report.OrphanedRentals)
	assert.Equal(t, 1, report.InUseBatteries)

	got := slices.Collect(idx.Search(alexanderplatz, 10))
	require.Len(t, got, 1)
	assert.Equal(t, stationT, got[0].StationID)
	assert.Equal(t, 1, got[0].AvailableCount)
}

func TestAdminService_AuditReleasesSettledDockedBattery(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	idx := availability.NewIndex()
	admin := newAdmin(f, idx)

	receipt, err := f.svc.Checkout(ctx, user7, stationS)
	require.NoError(t, err)
	f.store.Accounts.SetBalance(user7, 0)
	f.clock.Advance(20 * time.Minute)
	_, err = f.svc.ReturnBattery(ctx, user7, receipt.RentalID, stationT)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// open rental keeps its docked battery
	report, err := admin.AuditInventory(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.ReleasedBatteries)
	assert.Equal(t, domain.BatteryStatusInUse, f.battery(t, 1).Status)

	// a separate job process settled the rental against the shared ledger
	_, err = f.store.RentalRepository.Close(ctx, receipt.RentalID, stationT, t0.Add(20*time.Minute), 200)
	require.NoError(t, err)

	report, err = admin.AuditInventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.BatteryID{1}, report.ReleasedBatteries)
	assert.Equal(t, []domain.BatteryID{2}, report.UnaccountedBatteries)

	b := f.battery(t, 1)
	assert.Equal(t, domain.BatteryStatusAvailable, b.Status)
	assert.Equal(t, stationT, *b.StationID)
	assert.Equal(t, domain.BatteryStatusAvailable, storedBattery(t, f, 1).Status)

	got := slices.Collect(idx.Search(alexanderplatz, 10))
	require.Len(t, got, 1)
	assert.Equal(t, stationT, got[0].StationID)
}

func TestAuditReport_Consistent(t *testing.T) {
	assert.True(t, (&service.AuditReport{OpenRentals: 3, InUseBatteries: 3}).Consistent())
	assert.False(t, (&service.AuditReport{OrphanedRentals: []domain.RentalID{4}}).Consistent())
}
