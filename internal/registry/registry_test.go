package registry

import (
	"sync"
	"testing"

	"battery-rental-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	mu      sync.Mutex
	changes []StationChange
}

func (l *recordingListener) ApplyChange(c StationChange) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, c)
}

func (l *recordingListener) last() StationChange {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.changes[len(l.changes)-1]
}

func stationPtr(id domain.StationID) *domain.StationID { return &id }

// newStationS builds station 1 holding battery 1 (available) and battery 2
// (in use elsewhere).
func newStationS(t *testing.T) *Registry {
	t.Helper()
	r := New()
	require.NoError(t, r.AddStation(domain.Station{ID: 1, Name: "S", Location: domain.Location{Lat: 52.52, Lng: 13.40}}))
	require.NoError(t, r.AddStation(domain.Station{ID: 2, Name: "T", Location: domain.Location{Lat: 52.50, Lng: 13.45}}))
	require.NoError(t, r.AddBattery(domain.Battery{ID: 1, Serial: "B-001", Status: domain.BatteryStatusAvailable, StationID: stationPtr(1)}))
	require.NoError(t, r.AddBattery(domain.Battery{ID: 2, Serial: "B-002", Status: domain.BatteryStatusInUse}))
	return r
}

func TestRegistry_Reserve(t *testing.T) {
	t.Run("Lowest ID wins", func(t *testing.T) {
		r := New()
		require.NoError(t, r.AddStation(domain.Station{ID: 1}))
		for _, id := range []domain.BatteryID{7, 3, 5} {
			require.NoError(t, r.AddBattery(domain.Battery{ID: id, Status: domain.BatteryStatusAvailable, StationID: stationPtr(1)}))
		}

		got, err := r.Reserve(1)
		assert.NoError(t, err)
		assert.Equal(t, domain.BatteryID(3), got)

		b, err := r.Battery(3)
		require.NoError(t, err)
		assert.Equal(t, domain.BatteryStatusReserved, b.Status)
		assert.Nil(t, b.StationID)
	})

	t.Run("Empty station", func(t *testing.T) {
		r := newStationS(t)
		_, err := r.Reserve(2)
		assert.ErrorIs(t, err, domain.ErrNoAvailableBattery)
	})

	t.Run("Unknown station", func(t *testing.T) {
		r := newStationS(t)
		_, err := r.Reserve(99)
		assert.ErrorIs(t, err, domain.ErrStationNotFound)
	})

	t.Run("Second reserve of single battery fails", func(t *testing.T) {
		r := newStationS(t)
		_, err := r.Reserve(1)
		require.NoError(t, err)
		_, err = r.Reserve(1)
		assert.ErrorIs(t, err, domain.ErrNoAvailableBattery)
	})
}

func TestRegistry_ConcurrentReserveSingleBattery(t *testing.T) {
	r := newStationS(t)

	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Reserve(1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if assert.ErrorIs(t, err, domain.ErrNoAvailableBattery) {
				failures++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, failures)
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := newStationS(t)

	id, err := r.Reserve(1)
	require.NoError(t, err)
	require.Equal(t, domain.BatteryID(1), id)

	assert.NoError(t, r.MarkInUse(id))
	assert.ErrorIs(t, r.MarkInUse(id), domain.ErrInvalidTransition)

	b, _ := r.Battery(id)
	assert.Equal(t, domain.BatteryStatusInUse, b.Status)
	assert.Nil(t, b.StationID)

	assert.NoError(t, r.Release(id, 2))
	assert.ErrorIs(t, r.Release(id, 2), domain.ErrInvalidTransition)

	b, _ = r.Battery(id)
	assert.Equal(t, domain.BatteryStatusAvailable, b.Status)
	require.NotNil(t, b.StationID)
	assert.Equal(t, domain.StationID(2), *b.StationID)

	got, err := r.Reserve(2)
	assert.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestRegistry_Dock(t *testing.T) {
	r := newStationS(t)
	l := &recordingListener{}
	r.Subscribe(l)

	require.NoError(t, r.Dock(2, 1))
	assert.Empty(t, l.changes)

	b, _ := r.Battery(2)
	assert.Equal(t, domain.BatteryStatusInUse, b.Status)
	require.NotNil(t, b.StationID)
	assert.Equal(t, domain.StationID(1), *b.StationID)

	// a docked battery is not rentable
	id, err := r.Reserve(1)
	require.NoError(t, err)
	assert.Equal(t, domain.BatteryID(1), id)
	_, err = r.Reserve(1)
	assert.ErrorIs(t, err, domain.ErrNoAvailableBattery)
	assert.ErrorIs(t, r.SetMaintenance(2), domain.ErrInvalidTransition)

	require.NoError(t, r.Release(2, 1))
	got, err := r.Reserve(1)
	assert.NoError(t, err)
	assert.Equal(t, domain.BatteryID(2), got)

	assert.ErrorIs(t, r.Dock(1, 99), domain.ErrStationNotFound)
	assert.ErrorIs(t, r.Dock(99, 1), domain.ErrBatteryNotFound)
	assert.ErrorIs(t, r.Dock(1, 1), domain.ErrInvalidTransition)
}

func TestRegistry_ReleaseInvalid(t *testing.T) {
	r := newStationS(t)
	assert.ErrorIs(t, r.Release(1, 1), domain.ErrInvalidTransition)
	assert.ErrorIs(t, r.Release(99, 1), domain.ErrBatteryNotFound)
	assert.ErrorIs(t, r.Release(2, 99), domain.ErrStationNotFound)
}

func TestRegistry_CancelReservation(t *testing.T) {
	r := newStationS(t)

	id, err := r.Reserve(1)
	require.NoError(t, err)
	assert.NoError(t, r.CancelReservation(id))

	b, _ := r.Battery(id)
	assert.Equal(t, domain.BatteryStatusAvailable, b.Status)
	require.NotNil(t, b.StationID)
	assert.Equal(t, domain.StationID(1), *b.StationID)

	assert.ErrorIs(t, r.CancelReservation(id), domain.ErrInvalidTransition)
	assert.ErrorIs(t, r.CancelReservation(2), domain.ErrInvalidTransition)
}

func TestRegistry_Maintenance(t *testing.T) {
	r := newStationS(t)

	assert.NoError(t, r.SetMaintenance(1))
	_, err := r.Reserve(1)
	assert.ErrorIs(t, err, domain.ErrNoAvailableBattery)
	assert.ErrorIs(t, r.SetMaintenance(1), domain.ErrInvalidTransition)
	assert.ErrorIs(t, r.SetMaintenance(2), domain.ErrInvalidTransition)

	b, _ := r.Battery(1)
	assert.Equal(t, domain.BatteryStatusMaintenance, b.Status)
	require.NotNil(t, b.StationID)

	assert.NoError(t, r.ClearMaintenance(1, 0))
	got, err := r.Reserve(1)
	assert.NoError(t, err)
	assert.Equal(t, domain.BatteryID(1), got)

	assert.ErrorIs(t, r.ClearMaintenance(1, 0), domain.ErrInvalidArgument)
}

func TestRegistry_Retire(t *testing.T) {
	r := newStationS(t)

	assert.NoError(t, r.Retire(2))
	b, _ := r.Battery(2)
	assert.Equal(t, domain.BatteryStatusMaintenance, b.Status)
	assert.Nil(t, b.StationID)

	assert.ErrorIs(t, r.Retire(1), domain.ErrInvalidTransition)

	assert.ErrorIs(t, r.ClearMaintenance(2, 0), domain.ErrInvalidArgument)
	assert.NoError(t, r.ClearMaintenance(2, 2))
	got, err := r.Reserve(2)
	assert.NoError(t, err)
	assert.Equal(t, domain.BatteryID(2), got)
}

func TestRegistry_AddBattery(t *testing.T) {
	r := newStationS(t)

	assert.ErrorIs(t, r.AddBattery(domain.Battery{ID: 1, Status: domain.BatteryStatusAvailable, StationID: stationPtr(1)}), domain.ErrInvalidArgument)
	assert.ErrorIs(t, r.AddBattery(domain.Battery{ID: 3, Status: domain.BatteryStatusReserved}), domain.ErrInvalidTransition)
	assert.ErrorIs(t, r.AddBattery(domain.Battery{ID: 3, Status: domain.BatteryStatusAvailable}), domain.ErrInvalidArgument)
	assert.ErrorIs(t, r.AddBattery(domain.Battery{ID: 3, Status: domain.BatteryStatusAvailable, StationID: stationPtr(42)}), domain.ErrStationNotFound)

	// docked but unsettled batteries load at their station without becoming available
	require.NoError(t, r.AddBattery(domain.Battery{ID: 3, Status: domain.BatteryStatusInUse, StationID: stationPtr(2)}))
	_, err := r.Reserve(2)
	assert.ErrorIs(t, err, domain.ErrNoAvailableBattery)
	assert.ErrorIs(t, r.AddStation(domain.Station{ID: 1}), domain.ErrInvalidArgument)
}

func TestRegistry_ChangeNotifications(t *testing.T) {
	r := newStationS(t)
	l := &recordingListener{}
	r.Subscribe(l)

	id, err := r.Reserve(1)
	require.NoError(t, err)
	c := l.last()
	assert.Equal(t, domain.StationID(1), c.StationID)
	assert.Equal(t, 0, c.Available)
	first := c.Version

	require.NoError(t, r.MarkInUse(id))
	assert.Len(t, l.changes, 1)

	require.NoError(t, r.Release(id, 1))
	c = l.last()
	assert.Equal(t, 1, c.Available)
	assert.Greater(t, c.Version, first)
}

func TestRegistry_Snapshot(t *testing.T) {
	r := newStationS(t)

	snap := r.Snapshot()
	require.Len(t, snap.Stations, 2)
	assert.Equal(t, 1, snap.Stations[0].Available)
	assert.Equal(t, 0, snap.Stations[1].Available)
	require.Len(t, snap.Batteries, 2)
	assert.Equal(t, domain.BatteryStatusAvailable, snap.Batteries[0].Status)
	assert.Equal(t, domain.BatteryStatusInUse, snap.Batteries[1].Status)
}

func TestRegistry_Close(t *testing.T) {
	r := newStationS(t)
	r.Close()

	_, err := r.Reserve(1)
	assert.ErrorIs(t, err, ErrRegistryClosed)
	assert.ErrorIs(t, r.AddStation(domain.Station{ID: 5}), ErrRegistryClosed)
}
