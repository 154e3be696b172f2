// Package store holds the types shared by the tenant-scoped storage
// backends. Every read and write in a backend is keyed by tenant id.
package store

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("store: not found")

// DefaultGuestLimit is the number of guests ListGuests returns when the
// caller passes no limit.
const DefaultGuestLimit = 50

// Tenant is a hotel property.
type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Member links a user to a tenant with a role.
type Member struct {
	TenantID string
	UserID   string
	Role     string
}

// PMSConfig is a tenant's PMS connection settings. There is at most one per
// tenant.
type PMSConfig struct {
	TenantID    string
	PMSType     string
	Endpoint    string
	Credentials map[string]string
	IsActive    bool
	UpdatedAt   time.Time
}

// ReservationFilter narrows ListReservations.
type ReservationFilter struct {
	// Status is a canonical status, or "" / "all" for no filter.
	Status string
}

// StatusFilter returns the status to filter by and whether a filter applies.
func (f ReservationFilter) StatusFilter() (model.Status, bool) {
	s := strings.ToLower(strings.TrimSpace(f.Status))
	if s == "" || s == "all" {
		return "", false
	}
	return model.Status(s), true
}

// NewID returns a fresh row id.
func NewID() string {
	return uuid.NewString()
}
