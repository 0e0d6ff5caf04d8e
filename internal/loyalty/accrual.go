// Package loyalty computes and books loyalty points.
//
// Accrual is a pure function of the suite and the nights stayed.  Booking
// goes through an append-only ledger: the account balance is only moved by
// appending an entry, and a checkout accrual is written at most once per
// reservation.
package loyalty

import "github.com/iliyamo/hotel-reservation-engine/internal/model"

// Points earned per complete block of two nights.
var rates = map[model.SuiteType]int64{
	model.SuiteLuxo:   3,
	model.SuiteMaster: 4,
	model.SuiteDouble: 4,
	model.SuiteRoyal:  5,
}

// Rate returns the points earned per two-night block for suite.
func Rate(suite model.SuiteType) int64 { return rates[suite] }

// ComputePoints returns floor(nights/2) * rate.  Nights beyond the last
// complete pair earn nothing; unknown suites earn nothing.
func ComputePoints(suite model.SuiteType, nights int) int64 {
	if nights < 2 {
		return 0
	}
	return int64(nights/2) * rates[suite]
}
