package utils

import (
	"fmt"
	"math"
	"time"

	"battery-rental-backend/internal/domain"
)

// FeeBreakdown provides a detailed view of how a fee was computed
type FeeBreakdown struct {
	Minutes         int64
	BillableMinutes int64
	BaseFee         int64
	TimeFee         int64
	Capped          bool
	TotalFee        int64
}

// BilledMinutes returns the rental duration in whole minutes, rounding any
// partial minute up
func BilledMinutes(rentTime, returnTime time.Time) (int64, error) {
	if returnTime.Before(rentTime) {
		return 0, fmt.Errorf("%w: rented %s, returned %s", domain.ErrInvalidInterval,
			rentTime.Format(time.RFC3339), returnTime.Format(time.RFC3339))
	}

	d := returnTime.Sub(rentTime)
	minutes := int64(d / time.Minute)
	if d%time.Minute > 0 {
		minutes++
	}
	return minutes, nil
}

// ComputeFee calculates the fee for a rental:
// min(maxFee, baseFee + perMinuteRate * max(0, ceil(minutes) - freeMinutes))
func ComputeFee(rentTime, returnTime time.Time, policy domain.FeePolicy) (int64, error) {
	b, err := ComputeFeeWithBreakdown(rentTime, returnTime, policy)
	if err != nil {
		return 0, err
	}
	return b.TotalFee, nil
}

// ComputeFeeWithBreakdown is ComputeFee with every intermediate value exposed
func ComputeFeeWithBreakdown(rentTime, returnTime time.Time, policy domain.FeePolicy) (FeeBreakdown, error) {
	minutes, err := BilledMinutes(rentTime, returnTime)
	if err != nil {
		return FeeBreakdown{}, err
	}

	billable := minutes - policy.FreeMinutes
	if billable < 0 {
		billable = 0
	}

	b := FeeBreakdown{
		Minutes:         minutes,
		BillableMinutes: billable,
		BaseFee:         policy.BaseFee,
		TimeFee:         saturatingMul(policy.PerMinuteRate, billable),
	}
	b.TotalFee = saturatingAdd(b.BaseFee, b.TimeFee)

	if policy.MaxFee > 0 && b.TotalFee > policy.MaxFee {
		b.TotalFee = policy.MaxFee
		b.Capped = true
	}
	if b.TotalFee < 0 {
		b.TotalFee = 0
	}

	return b, nil
}

// saturatingMul multiplies non-negative amounts, pinning to MaxInt64 instead
// of wrapping. Negative operands are left to ValidatePolicy.
func saturatingMul(a, b int64) int64 {
	if a > 0 && b > 0 && a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

func saturatingAdd(a, b int64) int64 {
	if a > 0 && b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// EstimateFeeRange returns the cheapest and most expensive outcome of a
// rental under the policy. Max is nil for uncapped policies.
func EstimateFeeRange(policy domain.FeePolicy) domain.FeeRange {
	min := policy.BaseFee
	if policy.MaxFee > 0 && min > policy.MaxFee {
		min = policy.MaxFee
	}
	if min < 0 {
		min = 0
	}

	r := domain.FeeRange{Min: min}
	if policy.MaxFee > 0 {
		max := policy.MaxFee
		r.Max = &max
	}
	return r
}

// ValidatePolicy rejects policies that could produce a negative fee
func ValidatePolicy(policy domain.FeePolicy) error {
	if policy.BaseFee < 0 {
		return fmt.Errorf("base fee must be >= 0")
	}
	if policy.PerMinuteRate < 0 {
		return fmt.Errorf("per-minute rate must be >= 0")
	}
	if policy.FreeMinutes < 0 {
		return fmt.Errorf("free minutes must be >= 0")
	}
	if policy.MaxFee < 0 {
		return fmt.Errorf("max fee must be >= 0")
	}
	return nil
}
