package domain

// All balances and transaction amounts are stored in minor units (paise).
// The gateway also reports amounts in minor units; the HTTP layer is the
// only place where rupees appear.
//
// Example: 1050 paise is Rs 10.50.

// ToMajor converts minor units to major units (divide by 100).
func ToMajor(minor int64) float64 {
	return float64(minor) / 100
}

// ToMinor converts a major-unit amount to minor units, rounding to the
// nearest paisa to absorb float noise from JSON decoding.
func ToMinor(major float64) int64 {
	if major < 0 {
		return int64(major*100 - 0.5)
	}
	return int64(major*100 + 0.5)
}

// AbsDiff returns |a - b| for minor-unit amounts.
func AbsDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
