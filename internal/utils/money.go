package utils

import "github.com/shopspring/decimal"

// FormatMinor renders an amount held in minor units as a major-unit string,
// e.g. FormatMinor(470, 2) == "4.70" and FormatMinor(470, 0) == "470".
func FormatMinor(amount int64, minorUnits int32) string {
	return decimal.New(amount, -minorUnits).StringFixed(minorUnits)
}
