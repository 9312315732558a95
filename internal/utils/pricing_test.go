package utils

import (
	"math"
	"testing"
	"time"

	"battery-rental-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var standardPolicy = domain.FeePolicy{
	BaseFee:       100,
	PerMinuteRate: 10,
	FreeMinutes:   10,
	MaxFee:        500,
}

func TestBilledMinutes(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		duration time.Duration
		expected int64
	}{
		{"Zero duration", 0, 0},
		{"One second rounds up", time.Second, 1},
		{"Exact minute", time.Minute, 1},
		{"Minute and a nanosecond", time.Minute + time.Nanosecond, 2},
		{"47 minutes", 47 * time.Minute, 47},
		{"Two hours", 2 * time.Hour, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minutes, err := BilledMinutes(t0, t0.Add(tt.duration))
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, minutes)
		})
	}

	t.Run("Return before rent", func(t *testing.T) {
		_, err := BilledMinutes(t0, t0.Add(-time.Second))
		assert.ErrorIs(t, err, domain.ErrInvalidInterval)
	})
}

func TestComputeFee(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("47 minute rental", func(t *testing.T) {
		fee, err := ComputeFee(t0, t0.Add(47*time.Minute), standardPolicy)
		assert.NoError(t, err)
		assert.Equal(t, int64(470), fee) // 100 + 10*(47-10)
	})

	t.Run("Zero duration yields base fee", func(t *testing.T) {
		fee, err := ComputeFee(t0, t0, standardPolicy)
		assert.NoError(t, err)
		assert.Equal(t, int64(100), fee)
	})

	t.Run("Within free minutes yields base fee", func(t *testing.T) {
		fee, err := ComputeFee(t0, t0.Add(9*time.Minute+30*time.Second), standardPolicy)
		assert.NoError(t, err)
		assert.Equal(t, int64(100), fee)
	})

	t.Run("First billable minute", func(t *testing.T) {
		fee, err := ComputeFee(t0, t0.Add(10*time.Minute+time.Second), standardPolicy)
		assert.NoError(t, err)
		assert.Equal(t, int64(110), fee)
	})

	t.Run("Exceeding cap yields max fee", func(t *testing.T) {
		fee, err := ComputeFee(t0, t0.Add(5*time.Hour), standardPolicy)
		assert.NoError(t, err)
		assert.Equal(t, int64(500), fee)
	})

	t.Run("Exactly at cap", func(t *testing.T) {
		fee, err := ComputeFee(t0, t0.Add(50*time.Minute), standardPolicy)
		assert.NoError(t, err)
		assert.Equal(t, int64(500), fee)
	})

	t.Run("Uncapped policy", func(t *testing.T) {
		policy := standardPolicy
		policy.MaxFee = 0
		fee, err := ComputeFee(t0, t0.Add(5*time.Hour), policy)
		assert.NoError(t, err)
		assert.Equal(t, int64(100+10*290), fee)
	})

	t.Run("Huge rate saturates instead of wrapping", func(t *testing.T) {
		policy := standardPolicy
		policy.PerMinuteRate = math.MaxInt64 / 4
		policy.FreeMinutes = 0

		fee, err := ComputeFee(t0, t0.Add(47*time.Minute), policy)
		assert.NoError(t, err)
		assert.Equal(t, int64(500), fee)

		policy.MaxFee = 0
		fee, err = ComputeFee(t0, t0.Add(47*time.Minute), policy)
		assert.NoError(t, err)
		assert.Equal(t, int64(math.MaxInt64), fee)
	})

	t.Run("Invalid interval", func(t *testing.T) {
		_, err := ComputeFee(t0, t0.Add(-time.Minute), standardPolicy)
		assert.ErrorIs(t, err, domain.ErrInvalidInterval)
	})

	t.Run("Deterministic", func(t *testing.T) {
		a, errA := ComputeFee(t0, t0.Add(33*time.Minute), standardPolicy)
		b, errB := ComputeFee(t0, t0.Add(33*time.Minute), standardPolicy)
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, a, b)
	})
}

func TestComputeFeeWithBreakdown(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	b, err := ComputeFeeWithBreakdown(t0, t0.Add(2*time.Hour), standardPolicy)
	assert.NoError(t, err)
	assert.Equal(t, int64(120), b.Minutes)
	assert.Equal(t, int64(110), b.BillableMinutes)
	assert.Equal(t, int64(100), b.BaseFee)
	assert.Equal(t, int64(1100), b.TimeFee)
	assert.True(t, b.Capped)
	assert.Equal(t, int64(500), b.TotalFee)
}

func TestEstimateFeeRange(t *testing.T) {
	t.Run("Capped", func(t *testing.T) {
		r := EstimateFeeRange(standardPolicy)
		assert.Equal(t, int64(100), r.Min)
		require.NotNil(t, r.Max)
		assert.Equal(t, int64(500), *r.Max)
	})

	t.Run("Uncapped", func(t *testing.T) {
		r := EstimateFeeRange(domain.FeePolicy{BaseFee: 50, PerMinuteRate: 5})
		assert.Equal(t, int64(50), r.Min)
		assert.Nil(t, r.Max)
	})

	t.Run("Base fee above cap", func(t *testing.T) {
		r := EstimateFeeRange(domain.FeePolicy{BaseFee: 800, MaxFee: 500})
		assert.Equal(t, int64(500), r.Min)
	})
}

func TestValidatePolicy(t *testing.T) {
	assert.NoError(t, ValidatePolicy(standardPolicy))
	assert.Error(t, ValidatePolicy(domain.FeePolicy{BaseFee: -1}))
	assert.Error(t, ValidatePolicy(domain.FeePolicy{PerMinuteRate: -1}))
	assert.Error(t, ValidatePolicy(domain.FeePolicy{FreeMinutes: -1}))
	assert.Error(t, ValidatePolicy(domain.FeePolicy{MaxFee: -1}))
}

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "4.70", FormatMinor(470, 2))
	assert.Equal(t, "470", FormatMinor(470, 0))
	assert.Equal(t, "0.05", FormatMinor(5, 2))
	assert.Equal(t, "-1.00", FormatMinor(-100, 2))
}
