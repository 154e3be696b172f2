// Package model defines the canonical guest and reservation types shared by
// every PMS adapter, the sync service and the storage backends.
package model

import (
	"strings"
	"time"
)

// Status is the canonical reservation lifecycle state. Every adapter maps its
// native status vocabulary onto exactly one of these values.
type Status string

const (
	// StatusPreArrival is a confirmed booking whose guest has not arrived yet.
	// It is also the fallback for unrecognized native codes.
	StatusPreArrival Status = "pre-arrival"
	// StatusOnStay means the guest is checked in.
	StatusOnStay Status = "on-stay"
	// StatusCheckedOut means the stay is over.
	StatusCheckedOut Status = "checked-out"
	// StatusCancelled covers cancelled and invalidated bookings.
	StatusCancelled Status = "cancelled"
)

// Statuses lists the canonical statuses in lifecycle order.
var Statuses = []Status{StatusPreArrival, StatusOnStay, StatusCheckedOut, StatusCancelled}

// Valid reports whether s is one of the four canonical statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPreArrival, StatusOnStay, StatusCheckedOut, StatusCancelled:
		return true
	default:
		return false
	}
}

// ParseStatus returns the canonical status named by s, or StatusPreArrival if
// s is not one of them.
func ParseStatus(s string) Status {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if st.Valid() {
		return st
	}
	return StatusPreArrival
}

// AdapterGuest is a guest profile as returned by an adapter. It is never
// persisted as-is; the sync service maps it into a [Guest].
type AdapterGuest struct {
	ExternalGuestID string
	Name            string
	Email           string
	Phone           string
	Country         string
}

// AdapterReservation is a reservation as returned by an adapter. CheckInDate
// and CheckOutDate are calendar dates in YYYY-MM-DD form. ExternalStatus is
// the provider's native status code, mapped later via the adapter's MapStatus.
type AdapterReservation struct {
	ExternalReservationID string
	ExternalGuestID       string
	RoomNumber            string
	CheckInDate           string
	CheckOutDate          string
	ExternalStatus        string

	// Amount is nil when the provider reports no monetary value.
	Amount *float64
	Source string
}

// Overlaps reports whether the reservation's stay intersects the inclusive
// window [startDate, endDate].
func (r AdapterReservation) Overlaps(startDate, endDate string) bool {
	return Overlaps(r.CheckInDate, r.CheckOutDate, startDate, endDate)
}

// Guest is a tenant-owned guest row. (TenantID, ExternalGuestID) is the merge
// key; ID is the storage-assigned identifier.
type Guest struct {
	ID              string
	TenantID        string
	ExternalGuestID string
	Name            string
	Email           string
	Phone           string
	Country         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Reservation is a tenant-owned reservation row. (TenantID,
// ExternalReservationID) is the merge key. GuestID references a [Guest] of
// the same tenant.
type Reservation struct {
	ID                    string
	TenantID              string
	GuestID               string
	ExternalReservationID string
	RoomNumber            string
	CheckInDate           string
	CheckOutDate          string
	Status                Status
	Amount                *float64
	Source                string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ReservationView is a reservation joined with the guest fields shown in
// listings.
type ReservationView struct {
	Reservation
	GuestName  string
	GuestEmail string
	GuestPhone string
}

// NewGuest maps an adapter guest into a persisted guest for tenantID.
func NewGuest(tenantID string, g *AdapterGuest) *Guest {
	return &Guest{
		TenantID:        tenantID,
		ExternalGuestID: g.ExternalGuestID,
		Name:            g.Name,
		Email:           g.Email,
		Phone:           g.Phone,
		Country:         g.Country,
	}
}

// NewReservation maps an adapter reservation into a persisted reservation
// owned by tenantID and linked to guestID.
func NewReservation(tenantID, guestID string, r AdapterReservation, status Status) *Reservation {
	return &Reservation{
		TenantID:              tenantID,
		GuestID:               guestID,
		ExternalReservationID: r.ExternalReservationID,
		RoomNumber:            r.RoomNumber,
		CheckInDate:           r.CheckInDate,
		CheckOutDate:          r.CheckOutDate,
		Status:                status,
		Amount:                r.Amount,
		Source:                r.Source,
	}
}

// Float returns a pointer to v. Handy for optional amounts.
func Float(v float64) *float64 { return &v }
