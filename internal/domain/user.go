package domain

import "time"

type UserID int64

// Account is the slice of the user record the rental core reads. Everything
// else about users belongs to the account-management service.
type Account struct {
	UserID       UserID    `json:"user_id"`
	BalanceCents int64     `json:"balance_cents"`
	CreatedAt    time.Time `json:"created_at"`
}
