package domain

type BatteryID int64

type BatteryStatus string

const (
	BatteryStatusAvailable   BatteryStatus = "AVAILABLE"
	BatteryStatusReserved    BatteryStatus = "RESERVED"
	BatteryStatusInUse       BatteryStatus = "IN_USE"
	BatteryStatusMaintenance BatteryStatus = "MAINTENANCE"
)

// Battery is a point-in-time copy of a registry entry. StationID is nil
// while the battery is reserved or with a user.
type Battery struct {
	ID        BatteryID     `json:"id" yaml:"id"`
	Serial    string        `json:"serial" yaml:"serial"`
	Status    BatteryStatus `json:"status" yaml:"status"`
	StationID *StationID    `json:"station_id,omitempty" yaml:"station_id,omitempty"`
}

func (s BatteryStatus) Valid() bool {
	switch s {
	case BatteryStatusAvailable, BatteryStatusReserved, BatteryStatusInUse, BatteryStatusMaintenance:
		return true
	}
	return false
}
