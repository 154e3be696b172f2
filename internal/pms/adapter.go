// Package pms defines the capability contract every Property Management
// System integration implements, the error taxonomy shared by adapters, and a
// permanent-error aware [Retry] helper for their network calls.
//
// Concrete adapters live in sub-packages ([mock] and [qloapps]); the
// provider table that selects one by configuration id lives in the registry
// package.
package pms

import (
	"context"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
)

// Adapter pulls reservations and guest profiles from one external PMS and
// normalizes them into the canonical model.
//
// Implementations are not safe for concurrent Init calls; once initialized,
// the pull methods may be called from multiple goroutines.
type Adapter interface {
	// Init validates tenant credentials and the endpoint and prepares the
	// adapter for use. It fails with [ErrConfig] when a required field is
	// missing or malformed and performs no network I/O.
	Init(credentials map[string]string, endpoint string) error

	// PullReservations returns every reservation whose stay overlaps the
	// inclusive window [startDate, endDate] (YYYY-MM-DD). It fails with
	// [ErrIntegration] when the upstream listing cannot be fetched; malformed
	// or unenrichable items are skipped, not fatal.
	PullReservations(ctx context.Context, startDate, endDate string) ([]model.AdapterReservation, error)

	// PullGuest returns one guest profile, or (nil, nil) when the upstream
	// system reports the guest does not exist.
	PullGuest(ctx context.Context, externalGuestID string) (*model.AdapterGuest, error)

	// MapStatus maps a native status code onto the canonical enumeration.
	// It is pure and total: unknown codes yield [model.StatusPreArrival].
	MapStatus(native string) model.Status
}
