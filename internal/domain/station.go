package domain

type StationID int64

// Location is a WGS84 coordinate in decimal degrees.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

type Station struct {
	ID       StationID `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	Location Location  `json:"location" yaml:"location"`
}

// StationAvailability is one entry of a station search result.
type StationAvailability struct {
	StationID      StationID `json:"station_id"`
	Name           string    `json:"name"`
	Location       Location  `json:"location"`
	DistanceKm     float64   `json:"distance_km"`
	AvailableCount int       `json:"available_count"`
}

// StationDetail is a station with its stock. Batteries lists every battery
// docked there, rentable or not, and is left empty in station listings.
type StationDetail struct {
	Station
	AvailableCount int       `json:"available_count"`
	Batteries      []Battery `json:"batteries,omitempty"`
}
