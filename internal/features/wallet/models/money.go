package models

import "math"

// Money is stored as integer cents to keep ledger arithmetic exact; the API
// boundary speaks decimal dollars.

func CentsToDollars(cents int64) float64 {
	return float64(cents) / 100
}

func DollarsToCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}
