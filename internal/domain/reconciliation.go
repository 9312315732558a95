package domain

import "time"

type ReconciliationKind string

const (
	// ReconciliationPendingCharge: battery returned, debit failed.
	ReconciliationPendingCharge ReconciliationKind = "PENDING_CHARGE"
	// ReconciliationPendingClose: battery returned and charged, ledger close failed.
	ReconciliationPendingClose ReconciliationKind = "PENDING_CLOSE"
	// ReconciliationInternal: registry and ledger disagree and need a human.
	ReconciliationInternal ReconciliationKind = "INTERNAL_CONSISTENCY"
)

type ReconciliationStatus string

const (
	ReconciliationStatusOpen     ReconciliationStatus = "OPEN"
	ReconciliationStatusResolved ReconciliationStatus = "RESOLVED"
)

type ReconciliationCase struct {
	ID              int64                `json:"id"`
	Ticket          string               `json:"ticket"`
	Kind            ReconciliationKind   `json:"kind"`
	Status          ReconciliationStatus `json:"status"`
	RentalID        RentalID             `json:"rental_id"`
	UserID          UserID               `json:"user_id"`
	BatteryID       BatteryID            `json:"battery_id"`
	ReturnStationID *StationID           `json:"return_station_id,omitempty"`
	ReturnedAt      *time.Time           `json:"returned_at,omitempty"`
	FeeCents        int64                `json:"fee_cents"`
	Attempts        int                  `json:"attempts"`
	LastError       string               `json:"last_error,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// Retryable reports whether the recovery path can settle the case without
// a human.
func (c *ReconciliationCase) Retryable() bool {
	return c.Status == ReconciliationStatusOpen &&
		(c.Kind == ReconciliationPendingCharge || c.Kind == ReconciliationPendingClose)
}
