package availability

import (
	"slices"
	"testing"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alexanderplatz = domain.Location{Lat: 52.5219, Lng: 13.4132}
	potsdamerPlatz = domain.Location{Lat: 52.5096, Lng: 13.3759}
	tempelhof      = domain.Location{Lat: 52.4731, Lng: 13.4039}
	hamburg        = domain.Location{Lat: 53.5511, Lng: 9.9937}
)

func stationPtr(id domain.StationID) *domain.StationID { return &id }

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	stations := []domain.Station{
		{ID: 1, Name: "Alexanderplatz", Location: alexanderplatz},
		{ID: 2, Name: "Potsdamer Platz", Location: potsdamerPlatz},
		{ID: 3, Name: "Tempelhof", Location: tempelhof},
		{ID: 4, Name: "Hamburg Hbf", Location: hamburg},
	}
	for _, s := range stations {
		require.NoError(t, r.AddStation(s))
	}
	batteries := []domain.Battery{
		{ID: 1, Status: domain.BatteryStatusAvailable, StationID: stationPtr(1)},
		{ID: 2, Status: domain.BatteryStatusAvailable, StationID: stationPtr(2)},
		{ID: 3, Status: domain.BatteryStatusAvailable, StationID: stationPtr(2)},
		{ID: 4, Status: domain.BatteryStatusMaintenance, StationID: stationPtr(3)},
		{ID: 5, Status: domain.BatteryStatusAvailable, StationID: stationPtr(4)},
	}
	for _, b := range batteries {
		require.NoError(t, r.AddBattery(b))
	}
	return r
}

func ids(seq []domain.StationAvailability) []domain.StationID {
	out := make([]domain.StationID, 0, len(seq))
	for _, s := range seq {
		out = append(out, s.StationID)
	}
	return out
}

func TestDistanceKm(t *testing.T) {
	assert.InDelta(t, 0, DistanceKm(alexanderplatz, alexanderplatz), 1e-9)
	assert.InDelta(t, 2.9, DistanceKm(alexanderplatz, potsdamerPlatz), 0.2)
	assert.InDelta(t, 255, DistanceKm(alexanderplatz, hamburg), 5)
}

func TestIndex_Search(t *testing.T) {
	r := newTestRegistry(t)
	idx := NewIndexFromRegistry(r)

	t.Run("Ordered by distance and filtered", func(t *testing.T) {
		got := slices.Collect(idx.Search(alexanderplatz, 10))
		assert.Equal(t, []domain.StationID{1, 2}, ids(got))
		assert.Equal(t, 1, got[0].AvailableCount)
		assert.Equal(t, 2, got[1].AvailableCount)
		assert.Equal(t, "Potsdamer Platz", got[1].Name)
		assert.LessOrEqual(t, got[0].DistanceKm, got[1].DistanceKm)
	})

	t.Run("Large radius", func(t *testing.T) {
		got := slices.Collect(idx.Search(alexanderplatz, 1000))
		assert.Equal(t, []domain.StationID{1, 2, 4}, ids(got))
	})

	t.Run("Nothing in range", func(t *testing.T) {
		got := slices.Collect(idx.Search(domain.Location{Lat: 0, Lng: 0}, 10))
		assert.Empty(t, got)
	})

	t.Run("Early stop", func(t *testing.T) {
		var got []domain.StationID
		for s := range idx.Search(alexanderplatz, 1000) {
			got = append(got, s.StationID)
			break
		}
		assert.Equal(t, []domain.StationID{1}, got)
	})
}

func TestIndex_FollowsRegistry(t *testing.T) {
	r := newTestRegistry(t)
	idx := NewIndexFromRegistry(r)

	seq := idx.Search(alexanderplatz, 10)
	assert.Equal(t, []domain.StationID{1, 2}, ids(slices.Collect(seq)))

	id, err := r.Reserve(1)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.AvailableCount(1))

	// the same sequence is restartable and reflects the new state
	assert.Equal(t, []domain.StationID{2}, ids(slices.Collect(seq)))

	require.NoError(t, r.MarkInUse(id))
	require.NoError(t, r.Release(id, 3))
	assert.Equal(t, []domain.StationID{2, 3}, ids(slices.Collect(idx.Search(alexanderplatz, 10))))
}

func TestIndex_SkipsStationEmptiedMidIteration(t *testing.T) {
	r := newTestRegistry(t)
	idx := NewIndexFromRegistry(r)

	var got []domain.StationID
	for s := range idx.Search(alexanderplatz, 10) {
		got = append(got, s.StationID)
		if s.StationID == 1 {
			_, err := r.Reserve(2)
			require.NoError(t, err)
			_, err = r.Reserve(2)
			require.NoError(t, err)
		}
	}
	assert.Equal(t, []domain.StationID{1}, got)
}

func TestIndex_StaleChangesDropped(t *testing.T) {
	idx := NewIndex()
	idx.Rebuild(registry.Snapshot{Stations: []registry.StationSnapshot{
		{Station: domain.Station{ID: 1, Location: alexanderplatz}, Available: 2, Version: 4},
	}})

	idx.ApplyChange(registry.StationChange{StationID: 1, Available: 5, Version: 3})
	assert.Equal(t, 2, idx.AvailableCount(1))

	idx.ApplyChange(registry.StationChange{StationID: 1, Available: 1, Version: 6})
	idx.ApplyChange(registry.StationChange{StationID: 1, Available: 0, Version: 5})
	assert.Equal(t, 1, idx.AvailableCount(1))

	idx.Rebuild(registry.Snapshot{Stations: []registry.StationSnapshot{
		{Station: domain.Station{ID: 1, Location: alexanderplatz}, Available: 9, Version: 2},
	}})
	assert.Equal(t, 1, idx.AvailableCount(1))
}

func TestValidLocation(t *testing.T) {
	assert.True(t, ValidLocation(alexanderplatz))
	assert.False(t, ValidLocation(domain.Location{Lat: 91}))
	assert.False(t, ValidLocation(domain.Location{Lng: -181}))
}
