package grpc

import (
	"time"

	"battery-rental-backend/internal/domain"
)

type CheckoutRequest struct {
	StationID domain.StationID `json:"station_id"`
}

type CheckoutResponse struct {
	RentalID     domain.RentalID  `json:"rental_id"`
	BatteryID    domain.BatteryID `json:"battery_id"`
	StationID    domain.StationID `json:"station_id"`
	RentedAt     time.Time        `json:"rented_at"`
	EstimatedFee domain.FeeRange  `json:"estimated_fee"`
}

type ReturnBatteryRequest struct {
	RentalID  domain.RentalID  `json:"rental_id"`
	StationID domain.StationID `json:"station_id"`
}

type ReturnBatteryResponse struct {
	RentalID        domain.RentalID  `json:"rental_id"`
	BatteryID       domain.BatteryID `json:"battery_id"`
	ReturnStationID domain.StationID `json:"return_station_id"`
	FeeCents        int64            `json:"fee_cents"`
	Fee             string           `json:"fee"`
	DurationSeconds int64            `json:"duration_seconds"`
	ReturnedAt      time.Time        `json:"returned_at"`
}

type SearchStationsRequest struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	RadiusKm float64 `json:"radius_km"`
	Limit    int     `json:"limit,omitempty"`
}

// StationAvailability is one message of the SearchStations stream.
type StationAvailability = domain.StationAvailability

type GetHistoryRequest struct{}

type GetHistoryResponse struct {
	Rentals []domain.RentalSummary `json:"rentals"`
}
