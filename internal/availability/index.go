package availability

import (
	"container/heap"
	"iter"
	"sync"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/registry"
)

type stationState struct {
	station   domain.Station
	available int
	version   uint64
}

// Index answers "which stations near me have batteries" without touching
// registry locks. It is fed by registry change notifications and may lag the
// registry by the mutation currently being published.
type Index struct {
	mu       sync.RWMutex
	stations map[domain.StationID]*stationState
}

func NewIndex() *Index {
	return &Index{stations: make(map[domain.StationID]*stationState)}
}

// NewIndexFromRegistry builds an index from the registry's current state and
// subscribes it to further changes.
func NewIndexFromRegistry(r *registry.Registry) *Index {
	idx := NewIndex()
	r.Subscribe(idx)
	idx.Rebuild(r.Snapshot())
	return idx
}

// ApplyChange records a station's new available count. Changes carrying a
// version at or below the one already applied are dropped.
func (idx *Index) ApplyChange(c registry.StationChange) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	st, ok := idx.stations[c.StationID]
	if !ok {
		st = &stationState{station: domain.Station{ID: c.StationID}}
		idx.stations[c.StationID] = st
	}
	if c.Version <= st.version {
		return
	}
	st.available = c.Available
	st.version = c.Version
}

// Rebuild replaces station metadata from the snapshot and repairs any count
// the snapshot has a newer version for.
func (idx *Index) Rebuild(snap registry.Snapshot) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, s := range snap.Stations {
		st, ok := idx.stations[s.Station.ID]
		if !ok {
			st = &stationState{}
			idx.stations[s.Station.ID] = st
		}
		st.station = s.Station
		if s.Version >= st.version {
			st.available = s.Available
			st.version = s.Version
		}
	}
}

func (idx *Index) AvailableCount(id domain.StationID) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if st, ok := idx.stations[id]; ok {
		return st.available
	}
	return 0
}

// Search yields stations within radiusKm of origin that have at least one
// available battery, nearest first. Each range over the result takes a fresh
// snapshot of station positions; counts are re-read as each station is
// yielded, so a station emptied mid-iteration is skipped.
func (idx *Index) Search(origin domain.Location, radiusKm float64) iter.Seq[domain.StationAvailability] {
	return func(yield func(domain.StationAvailability) bool) {
		h := idx.candidates(origin, radiusKm)
		for h.Len() > 0 {
			c := heap.Pop(h).(candidate)

			idx.mu.RLock()
			st, ok := idx.stations[c.id]
			var available int
			var station domain.Station
			if ok {
				available = st.available
				station = st.station
			}
			idx.mu.RUnlock()

			if available <= 0 {
				continue
			}
			if !yield(domain.StationAvailability{
				StationID:      station.ID,
				Name:           station.Name,
				Location:       station.Location,
				DistanceKm:     c.distance,
				AvailableCount: available,
			}) {
				return
			}
		}
	}
}

func (idx *Index) candidates(origin domain.Location, radiusKm float64) *distanceHeap {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	h := make(distanceHeap, 0, len(idx.stations))
	for id, st := range idx.stations {
		if st.available <= 0 {
			continue
		}
		d := DistanceKm(origin, st.station.Location)
		if d > radiusKm {
			continue
		}
		h = append(h, candidate{id: id, distance: d})
	}
	heap.Init(&h)
	return &h
}

type candidate struct {
	id       domain.StationID
	distance float64
}

type distanceHeap []candidate

func (h distanceHeap) Len() int { return len(h) }

func (h distanceHeap) Less(i, j int) bool {
	if h[i].distance == h[j].distance {
		return h[i].id < h[j].id
	}
	return h[i].distance < h[j].distance
}

func (h distanceHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *distanceHeap) Push(x any) { *h = append(*h, x.(candidate)) }

func (h *distanceHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
