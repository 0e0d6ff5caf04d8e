// Package repository persists reservations, stays, payments, transition
// history and the loyalty ledger.  Two backends implement Store: SQLStore
// (MySQL in production, SQLite for development and tests) and MemoryStore.
//
// The sentinel values below let higher layers distinguish failure
// scenarios.  They wrap the apperr kinds so the HTTP layer maps them
// without knowing about this package.
package repository

import "github.com/iliyamo/hotel-reservation-engine/internal/apperr"

// ErrConflict is returned when an optimistic version check fails, meaning
// a row was changed by a writer that bypassed the reservation lock.
var ErrConflict error = &apperr.Error{
	Kind:    apperr.ErrConsistency,
	Code:    "concurrent_modification",
	Message: "row was modified concurrently",
}

// ErrDuplicate is returned when a unique key (reservation code, checkout
// accrual) already exists.
var ErrDuplicate error = &apperr.Error{
	Kind:    apperr.ErrConsistency,
	Code:    "duplicate_key",
	Message: "unique key already exists",
}

func reservationNotFound(id string) error {
	return apperr.NotFound("reservation_not_found", "reservation %s not found", id)
}
