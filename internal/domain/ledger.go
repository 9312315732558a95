package domain

import "time"

// FeePolicy configures how a finished rental is charged. All amounts are in
// the smallest currency unit. MaxFee <= 0 means the fee is uncapped.
type FeePolicy struct {
	BaseFee       int64 `json:"base_fee" yaml:"base_fee"`
	PerMinuteRate int64 `json:"per_minute_rate" yaml:"per_minute_rate"`
	FreeMinutes   int64 `json:"free_minutes" yaml:"free_minutes"`
	MaxFee        int64 `json:"max_fee" yaml:"max_fee"`
}

// Debit is one charge against an account. Reference makes charges
// idempotent: a second debit with the same reference is a no-op.
type Debit struct {
	UserID      UserID    `json:"user_id"`
	AmountCents int64     `json:"amount_cents"`
	Reference   string    `json:"reference"`
	ChargedAt   time.Time `json:"charged_at"`
}
