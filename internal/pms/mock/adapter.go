// Package mock provides a PMS adapter that serves deterministic fixtures. It
// ignores credentials and never touches the network, which makes it the
// demo provider and the registry's fallback.
package mock

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
	"github.com/mhdraihanr/loyalinn-pms/internal/pms"
)

// DefaultEndpoint is used when Init receives an empty endpoint.
const DefaultEndpoint = "mock://api"

// Fixture identifiers.
const (
	ReservationA = "MOCK-RES-001"
	ReservationB = "MOCK-RES-002"
	GuestA       = "MOCK-GUEST-A"
	GuestB       = "MOCK-GUEST-B"
)

var _ pms.Adapter = (*Adapter)(nil)

var statusMap = map[string]model.Status{
	"confirmed":  model.StatusPreArrival,
	"inhouse":    model.StatusOnStay,
	"checkedout": model.StatusCheckedOut,
	"canceled":   model.StatusCancelled,
	"cancelled":  model.StatusCancelled,
}

var guests = map[string]model.AdapterGuest{
	GuestA: {
		ExternalGuestID: GuestA,
		Name:            "John Doe",
		Email:           "john.doe@example.com",
		Phone:           "+1234567890",
		Country:         "US",
	},
	GuestB: {
		ExternalGuestID: GuestB,
		Name:            "Jane Smith",
		Email:           "jane.smith@example.com",
		Phone:           "+0987654321",
		Country:         "UK",
	},
}

// Adapter is the fixture-backed [pms.Adapter].
type Adapter struct {
	endpoint string
	log      *slog.Logger
}

// New returns an uninitialized mock adapter. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{log: logger}
}

// Init records the endpoint and ignores credentials. It never fails.
func (a *Adapter) Init(_ map[string]string, endpoint string) error {
	a.endpoint = strings.TrimSpace(endpoint)
	if a.endpoint == "" {
		a.endpoint = DefaultEndpoint
	}
	a.log.Debug("mock adapter initialised", "endpoint", a.endpoint)
	return nil
}

// Endpoint returns the endpoint recorded by Init.
func (a *Adapter) Endpoint() string { return a.endpoint }

// PullReservations returns two fixed reservations spanning the whole window.
func (a *Adapter) PullReservations(ctx context.Context, startDate, endDate string) ([]model.AdapterReservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []model.AdapterReservation{
		{
			ExternalReservationID: ReservationA,
			ExternalGuestID:       GuestA,
			RoomNumber:            "101",
			CheckInDate:           startDate,
			CheckOutDate:          endDate,
			ExternalStatus:        "confirmed",
			Amount:                model.Float(1500.00),
			Source:                "Booking.com",
		},
		{
			ExternalReservationID: ReservationB,
			ExternalGuestID:       GuestB,
			RoomNumber:            "204",
			CheckInDate:           startDate,
			CheckOutDate:          endDate,
			ExternalStatus:        "inhouse",
			Amount:                model.Float(850.50),
			Source:                "Direct",
		},
	}, nil
}

// PullGuest returns the fixture guest for id, or nil for any other id.
func (a *Adapter) PullGuest(ctx context.Context, id string) (*model.AdapterGuest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g, ok := guests[id]
	if !ok {
		return nil, nil //nolint:nilnil // absent guest is not an error
	}
	return &g, nil
}

// MapStatus maps the mock vocabulary case-insensitively.
func (a *Adapter) MapStatus(native string) model.Status {
	if s, ok := statusMap[strings.ToLower(strings.TrimSpace(native))]; ok {
		return s
	}
	return model.StatusPreArrival
}
