package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"battery-rental-backend/internal/domain"
)

var ErrRegistryClosed = errors.New("station registry is closed")

// StationChange is published after every mutation that changes a station's
// available set. Version increases monotonically per station, so consumers
// can discard changes that arrive out of order.
type StationChange struct {
	StationID domain.StationID
	Available int
	Version   uint64
}

type ChangeListener interface {
	ApplyChange(change StationChange)
}

// StationSnapshot is a consistent view of a single station.
type StationSnapshot struct {
	Station   domain.Station
	Available int
	Version   uint64
}

type Snapshot struct {
	Stations  []StationSnapshot
	Batteries []domain.Battery
}

type stationEntry struct {
	mu        sync.Mutex
	station   domain.Station
	available map[domain.BatteryID]struct{}
	version   uint64
}

type batteryEntry struct {
	mu           sync.Mutex
	id           domain.BatteryID
	serial       string
	status       domain.BatteryStatus
	stationID    domain.StationID // 0 while reserved, retired or out with a user
	reservedFrom domain.StationID
}

// Registry owns the authoritative status of every battery. Each station and
// each battery has its own lock; when both are needed the station lock is
// taken first. The index lock only guards the lookup maps and is never held
// across a battery transition.
type Registry struct {
	index     sync.RWMutex
	stations  map[domain.StationID]*stationEntry
	batteries map[domain.BatteryID]*batteryEntry
	listeners []ChangeListener
	closed    bool
}

func New() *Registry {
	return &Registry{
		stations:  make(map[domain.StationID]*stationEntry),
		batteries: make(map[domain.BatteryID]*batteryEntry),
	}
}

// Subscribe registers l for station changes. Listeners are called after the
// mutation they describe has been committed and its locks released.
func (r *Registry) Subscribe(l ChangeListener) {
	r.index.Lock()
	defer r.index.Unlock()
	r.listeners = append(r.listeners, l)
}

// Close detaches all listeners and rejects further mutations.
func (r *Registry) Close() {
	r.index.Lock()
	defer r.index.Unlock()
	r.closed = true
	r.listeners = nil
}

func (r *Registry) AddStation(st domain.Station) error {
	r.index.Lock()
	defer r.index.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	if st.ID <= 0 {
		return fmt.Errorf("%w: station id must be positive", domain.ErrInvalidArgument)
	}
	if _, ok := r.stations[st.ID]; ok {
		return fmt.Errorf("%w: station %d already registered", domain.ErrInvalidArgument, st.ID)
	}
	r.stations[st.ID] = &stationEntry{
		station:   st,
		available: make(map[domain.BatteryID]struct{}),
	}
	return nil
}

// AddBattery registers a battery in the given status. RESERVED is transient
// and cannot be loaded. An AVAILABLE battery needs a station; an IN_USE
// battery at a station is docked and waits for its rental to settle.
func (r *Registry) AddBattery(b domain.Battery) error {
	if b.ID <= 0 {
		return fmt.Errorf("%w: battery id must be positive", domain.ErrInvalidArgument)
	}

	var stationID domain.StationID
	if b.StationID != nil {
		stationID = *b.StationID
	}

	switch b.Status {
	case domain.BatteryStatusAvailable:
		if stationID == 0 {
			return fmt.Errorf("%w: available battery %d needs a station", domain.ErrInvalidArgument, b.ID)
		}
	case domain.BatteryStatusInUse, domain.BatteryStatusMaintenance:
	default:
		return fmt.Errorf("%w: cannot load battery %d as %s", domain.ErrInvalidTransition, b.ID, b.Status)
	}

	r.index.Lock()
	if r.closed {
		r.index.Unlock()
		return ErrRegistryClosed
	}
	if _, ok := r.batteries[b.ID]; ok {
		r.index.Unlock()
		return fmt.Errorf("%w: battery %d already registered", domain.ErrInvalidArgument, b.ID)
	}
	var st *stationEntry
	if stationID != 0 {
		var ok bool
		if st, ok = r.stations[stationID]; !ok {
			r.index.Unlock()
			return fmt.Errorf("%w: %d", domain.ErrStationNotFound, stationID)
		}
	}
	entry := &batteryEntry{id: b.ID, serial: b.Serial, status: b.Status, stationID: stationID}
	r.batteries[b.ID] = entry
	r.index.Unlock()

	if st == nil || b.Status != domain.BatteryStatusAvailable {
		return nil
	}

	st.mu.Lock()
	st.available[b.ID] = struct{}{}
	change := st.bump()
	st.mu.Unlock()

	r.publish(change)
	return nil
}

// Reserve takes the lowest-numbered available battery at the station.
func (r *Registry) Reserve(stationID domain.StationID) (domain.BatteryID, error) {
	st, err := r.station(stationID)
	if err != nil {
		return 0, err
	}

	st.mu.Lock()
	if len(st.available) == 0 {
		st.mu.Unlock()
		return 0, fmt.Errorf("%w: station %d", domain.ErrNoAvailableBattery, stationID)
	}

	ids := make([]domain.BatteryID, 0, len(st.available))
	for id := range st.available {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var reserved domain.BatteryID
	for _, id := range ids {
		b, err := r.battery(id)
		if err != nil {
			delete(st.available, id)
			continue
		}
		b.mu.Lock()
		if b.status == domain.BatteryStatusAvailable && b.stationID == stationID {
			b.status = domain.BatteryStatusReserved
			b.stationID = 0
			b.reservedFrom = stationID
			reserved = id
		}
		b.mu.Unlock()
		delete(st.available, id)
		if reserved != 0 {
			break
		}
	}
	change := st.bump()
	st.mu.Unlock()

	r.publish(change)
	if reserved == 0 {
		return 0, fmt.Errorf("%w: station %d", domain.ErrNoAvailableBattery, stationID)
	}
	return reserved, nil
}

// MarkInUse moves a RESERVED battery to IN_USE.
func (r *Registry) MarkInUse(batteryID domain.BatteryID) error {
	b, err := r.battery(batteryID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != domain.BatteryStatusReserved {
		return fmt.Errorf("%w: battery %d is %s, want %s", domain.ErrInvalidTransition,
			batteryID, b.status, domain.BatteryStatusReserved)
	}
	b.status = domain.BatteryStatusInUse
	b.reservedFrom = 0
	return nil
}

// Dock records an IN_USE battery as physically back at the station. It stays
// IN_USE and out of the available set until Release, so a rental that has
// not been settled never exposes its battery to checkout.
func (r *Registry) Dock(batteryID domain.BatteryID, stationID domain.StationID) error {
	if _, err := r.station(stationID); err != nil {
		return err
	}
	b, err := r.battery(batteryID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != domain.BatteryStatusInUse {
		return fmt.Errorf("%w: battery %d is %s, want %s", domain.ErrInvalidTransition,
			batteryID, b.status, domain.BatteryStatusInUse)
	}
	b.stationID = stationID
	return nil
}

// Release makes an IN_USE battery AVAILABLE at the station, docked or not.
func (r *Registry) Release(batteryID domain.BatteryID, stationID domain.StationID) error {
	return r.dock(batteryID, stationID, domain.BatteryStatusInUse)
}

// CancelReservation puts a RESERVED battery back at the station it was
// reserved from.
func (r *Registry) CancelReservation(batteryID domain.BatteryID) error {
	b, err := r.battery(batteryID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	status, from := b.status, b.reservedFrom
	b.mu.Unlock()
	if status != domain.BatteryStatusReserved || from == 0 {
		return fmt.Errorf("%w: battery %d is %s, want %s", domain.ErrInvalidTransition,
			batteryID, status, domain.BatteryStatusReserved)
	}

	return r.dock(batteryID, from, domain.BatteryStatusReserved)
}

func (r *Registry) dock(batteryID domain.BatteryID, stationID domain.StationID, from domain.BatteryStatus) error {
	st, err := r.station(stationID)
	if err != nil {
		return err
	}
	b, err := r.battery(batteryID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	b.mu.Lock()
	if b.status != from {
		status := b.status
		b.mu.Unlock()
		st.mu.Unlock()
		return fmt.Errorf("%w: battery %d is %s, want %s", domain.ErrInvalidTransition, batteryID, status, from)
	}
	b.status = domain.BatteryStatusAvailable
	b.stationID = stationID
	b.reservedFrom = 0
	b.mu.Unlock()

	st.available[batteryID] = struct{}{}
	change := st.bump()
	st.mu.Unlock()

	r.publish(change)
	return nil
}

// SetMaintenance takes an AVAILABLE battery out of service. It stays at its
// station but no longer counts as available.
func (r *Registry) SetMaintenance(batteryID domain.BatteryID) error {
	b, err := r.battery(batteryID)
	if err != nil {
		return err
	}

	for {
		b.mu.Lock()
		status, stationID := b.status, b.stationID
		b.mu.Unlock()
		if status != domain.BatteryStatusAvailable {
			return fmt.Errorf("%w: battery %d is %s, want %s", domain.ErrInvalidTransition,
				batteryID, status, domain.BatteryStatusAvailable)
		}

		st, err := r.station(stationID)
		if err != nil {
			return err
		}

		st.mu.Lock()
		b.mu.Lock()
		if b.status != domain.BatteryStatusAvailable || b.stationID != stationID {
			// moved between the two lock acquisitions
			b.mu.Unlock()
			st.mu.Unlock()
			continue
		}
		b.status = domain.BatteryStatusMaintenance
		b.mu.Unlock()

		delete(st.available, batteryID)
		change := st.bump()
		st.mu.Unlock()

		r.publish(change)
		return nil
	}
}

// ClearMaintenance returns a MAINTENANCE battery to service at stationID.
// A zero stationID keeps the battery at the station it is currently at.
func (r *Registry) ClearMaintenance(batteryID domain.BatteryID, stationID domain.StationID) error {
	b, err := r.battery(batteryID)
	if err != nil {
		return err
	}

	if stationID == 0 {
		b.mu.Lock()
		stationID = b.stationID
		b.mu.Unlock()
		if stationID == 0 {
			return fmt.Errorf("%w: battery %d has no station, one must be given", domain.ErrInvalidArgument, batteryID)
		}
	}

	st, err := r.station(stationID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	b.mu.Lock()
	if b.status != domain.BatteryStatusMaintenance {
		status := b.status
		b.mu.Unlock()
		st.mu.Unlock()
		return fmt.Errorf("%w: battery %d is %s, want %s", domain.ErrInvalidTransition,
			batteryID, status, domain.BatteryStatusMaintenance)
	}
	b.status = domain.BatteryStatusAvailable
	b.stationID = stationID
	b.mu.Unlock()

	st.available[batteryID] = struct{}{}
	change := st.bump()
	st.mu.Unlock()

	r.publish(change)
	return nil
}

// Retire moves a RESERVED or IN_USE battery to MAINTENANCE without a
// station. Used when a rental is abandoned and the battery is unaccounted for.
func (r *Registry) Retire(batteryID domain.BatteryID) error {
	b, err := r.battery(batteryID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != domain.BatteryStatusReserved && b.status != domain.BatteryStatusInUse {
		return fmt.Errorf("%w: battery %d is %s", domain.ErrInvalidTransition, batteryID, b.status)
	}
	b.status = domain.BatteryStatusMaintenance
	b.stationID = 0
	b.reservedFrom = 0
	return nil
}

func (r *Registry) Battery(batteryID domain.BatteryID) (domain.Battery, error) {
	b, err := r.battery(batteryID)
	if err != nil {
		return domain.Battery{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot(), nil
}

func (r *Registry) Station(stationID domain.StationID) (domain.Station, error) {
	st, err := r.station(stationID)
	if err != nil {
		return domain.Station{}, err
	}
	return st.station, nil
}

// Stations returns every registered station ordered by ID.
func (r *Registry) Stations() []domain.Station {
	r.index.RLock()
	out := make([]domain.Station, 0, len(r.stations))
	for _, st := range r.stations {
		out = append(out, st.station)
	}
	r.index.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot copies the registry. Each station is consistent with itself;
// the snapshot as a whole is not atomic across stations.
func (r *Registry) Snapshot() Snapshot {
	r.index.RLock()
	stations := make([]*stationEntry, 0, len(r.stations))
	for _, st := range r.stations {
		stations = append(stations, st)
	}
	batteries := make([]*batteryEntry, 0, len(r.batteries))
	for _, b := range r.batteries {
		batteries = append(batteries, b)
	}
	r.index.RUnlock()

	var snap Snapshot
	for _, st := range stations {
		st.mu.Lock()
		snap.Stations = append(snap.Stations, StationSnapshot{
			Station:   st.station,
			Available: len(st.available),
			Version:   st.version,
		})
		st.mu.Unlock()
	}
	for _, b := range batteries {
		b.mu.Lock()
		snap.Batteries = append(snap.Batteries, b.snapshot())
		b.mu.Unlock()
	}

	sort.Slice(snap.Stations, func(i, j int) bool { return snap.Stations[i].Station.ID < snap.Stations[j].Station.ID })
	sort.Slice(snap.Batteries, func(i, j int) bool { return snap.Batteries[i].ID < snap.Batteries[j].ID })
	return snap
}

func (r *Registry) station(id domain.StationID) (*stationEntry, error) {
	r.index.RLock()
	defer r.index.RUnlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	st, ok := r.stations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrStationNotFound, id)
	}
	return st, nil
}

func (r *Registry) battery(id domain.BatteryID) (*batteryEntry, error) {
	r.index.RLock()
	defer r.index.RUnlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	b, ok := r.batteries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrBatteryNotFound, id)
	}
	return b, nil
}

func (r *Registry) publish(change StationChange) {
	r.index.RLock()
	listeners := r.listeners
	r.index.RUnlock()

	for _, l := range listeners {
		l.ApplyChange(change)
	}
}

// bump must be called with st.mu held.
func (st *stationEntry) bump() StationChange {
	st.version++
	return StationChange{
		StationID: st.station.ID,
		Available: len(st.available),
		Version:   st.version,
	}
}

func (b *batteryEntry) snapshot() domain.Battery {
	out := domain.Battery{ID: b.id, Serial: b.serial, Status: b.status}
	if b.stationID != 0 {
		id := b.stationID
		out.StationID = &id
	}
	return out
}
