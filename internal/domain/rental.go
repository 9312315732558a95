package domain

import "time"

type RentalID int64

type RentalState string

const (
	RentalStateOpen      RentalState = "OPEN"
	RentalStateClosed    RentalState = "CLOSED"
	RentalStateAbandoned RentalState = "ABANDONED"
)

type Rental struct {
	ID              RentalID    `json:"id"`
	UserID          UserID      `json:"user_id"`
	BatteryID       BatteryID   `json:"battery_id"`
	StationID       StationID   `json:"station_id"`
	RentedAt        time.Time   `json:"rented_at"`
	ReturnedAt      *time.Time  `json:"returned_at,omitempty"`
	ReturnStationID *StationID  `json:"return_station_id,omitempty"`
	FeeCents        *int64      `json:"fee_cents,omitempty"`
	State           RentalState `json:"state"`
	AbandonReason   string      `json:"abandon_reason,omitempty"`
}

func (r *Rental) IsOpen() bool {
	return r.State == RentalStateOpen
}

// FeeRange is the span of fees a rental can end up costing under a policy.
// Max is nil when the policy has no cap.
type FeeRange struct {
	Min int64  `json:"min"`
	Max *int64 `json:"max,omitempty"`
}

type RentalReceipt struct {
	RentalID     RentalID  `json:"rental_id"`
	BatteryID    BatteryID `json:"battery_id"`
	StationID    StationID `json:"station_id"`
	RentedAt     time.Time `json:"rented_at"`
	EstimatedFee FeeRange  `json:"estimated_fee"`
}

type ReturnReceipt struct {
	RentalID        RentalID      `json:"rental_id"`
	BatteryID       BatteryID     `json:"battery_id"`
	ReturnStationID StationID     `json:"return_station_id"`
	FeeCents        int64         `json:"fee_cents"`
	Duration        time.Duration `json:"duration"`
	ReturnedAt      time.Time     `json:"returned_at"`
}

// RentalSummary is a history row; serial and station name are joined in
// when the inventory still knows them.
type RentalSummary struct {
	RentalID          RentalID   `json:"rental_id"`
	BatteryID         BatteryID  `json:"battery_id"`
	BatterySerial     string     `json:"battery_serial,omitempty"`
	StationID         StationID  `json:"station_id"`
	StationName       string     `json:"station_name,omitempty"`
	ReturnStationID   *StationID `json:"return_station_id,omitempty"`
	ReturnStationName string     `json:"return_station_name,omitempty"`
	RentedAt          time.Time  `json:"rented_at"`
	ReturnedAt        time.Time  `json:"returned_at"`
	FeeCents          int64      `json:"fee_cents"`
}
