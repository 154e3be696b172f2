// Package qloapps implements a PMS adapter for the QloApps (PrestaShop)
// webservice. Reservations come from room_bookings enriched by their parent
// order; guests come from customers enriched by their first address and its
// country.
package qloapps

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
	"github.com/mhdraihanr/loyalinn-pms/internal/pms"
)

const (
	// DefaultTimeout bounds a single webservice call.
	DefaultTimeout = 15 * time.Second

	// DefaultRatePerSecond caps outbound requests per adapter instance.
	DefaultRatePerSecond = 5.0
)

var _ pms.Adapter = (*Adapter)(nil)

// Option configures an [Adapter].
type Option func(*Adapter)

// WithHTTPClient sets the transport used for webservice calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *Adapter) { a.hc = hc }
}

// WithTimeout sets the per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// WithMaxAttempts sets how many times a retryable call is tried.
func WithMaxAttempts(n int) Option {
	return func(a *Adapter) { a.maxAttempts = n }
}

// WithRateLimit caps outbound requests per second. Zero or less disables the
// limiter.
func WithRateLimit(perSecond float64) Option {
	return func(a *Adapter) { a.ratePerSecond = perSecond }
}

// WithClient injects a webservice client, bypassing the one Init would build.
// Intended for tests.
func WithClient(c Client) Option {
	return func(a *Adapter) { a.client = c }
}

// Adapter is the QloApps [pms.Adapter]. Create one with [New] and call
// [Adapter.Init] before pulling.
type Adapter struct {
	client   Client
	injected bool
	endpoint string
	log      *slog.Logger

	hc            *http.Client
	timeout       time.Duration
	maxAttempts   int
	ratePerSecond float64
}

// New returns an uninitialized QloApps adapter. A nil logger uses slog.Default.
func New(logger *slog.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		log:           logger.With("pms_type", "qloapps"),
		timeout:       DefaultTimeout,
		maxAttempts:   pms.DefaultMaxAttempts,
		ratePerSecond: DefaultRatePerSecond,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.injected = a.client != nil
	return a
}

// Init validates the endpoint and api_key credential and prepares the client.
func (a *Adapter) Init(credentials map[string]string, endpoint string) error {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return pms.ConfigErrorf("qloapps: endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return pms.ConfigErrorf("qloapps: endpoint %q is not an http(s) URL", endpoint)
	}
	apiKey := strings.TrimSpace(credentials["api_key"])
	if apiKey == "" {
		return pms.ConfigErrorf("qloapps: credentials.api_key is required")
	}

	a.endpoint = endpoint
	if !a.injected {
		var limiter *rate.Limiter
		if a.ratePerSecond > 0 {
			limiter = rate.NewLimiter(rate.Limit(a.ratePerSecond), 1)
		}
		a.client = newHTTPClient(endpoint, apiKey, a.hc, limiter, a.timeout)
	}
	a.log.Debug("qloapps adapter initialised", "endpoint", endpoint)
	return nil
}

// PullReservations lists every room booking, keeps those whose order has
// payment accepted and whose stay overlaps [startDate, endDate]. A booking
// whose order cannot be fetched is logged and skipped.
func (a *Adapter) PullReservations(ctx context.Context, startDate, endDate string) ([]model.AdapterReservation, error) {
	if a.client == nil {
		return nil, pms.ConfigErrorf("qloapps: adapter not initialised")
	}

	var resp roomBookingsResponse
	if err := a.get(ctx, resourceRoomBookings, url.Values{"display": {"full"}}, &resp); err != nil {
		return nil, fmt.Errorf("list room bookings: %w", err)
	}

	orders := make(map[string]*order)
	out := make([]model.AdapterReservation, 0, len(resp.Bookings))
	for _, b := range resp.Bookings {
		if reason := b.validate(); reason != "" {
			a.log.Warn("skipping malformed room booking", "booking_id", b.ID.String(), "reason", reason)
			continue
		}
		in, outDate := b.stayDates()
		if !model.Overlaps(in, outDate, startDate, endDate) {
			continue
		}

		o, err := a.fetchOrder(ctx, orders, b.IDOrder.String())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.log.Warn("skipping room booking, order unavailable",
				"reservation", b.reservationID(), "error", err)
			continue
		}
		if !o.paymentComplete() {
			a.log.Debug("skipping room booking, payment incomplete",
				"reservation", b.reservationID(), "order_state", o.CurrentState.String())
			continue
		}
		out = append(out, toReservation(b, o))
	}
	return out, nil
}

// fetchOrder fetches an order once per pull; several booked rooms share one order.
func (a *Adapter) fetchOrder(ctx context.Context, cache map[string]*order, id string) (*order, error) {
	if o, ok := cache[id]; ok {
		return o, nil
	}
	var resp orderResponse
	if err := a.get(ctx, resourceOrders+"/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	if resp.Order == nil {
		return nil, fmt.Errorf("get order %s: %w: empty response", id, pms.ErrIntegration)
	}
	cache[id] = resp.Order
	return resp.Order, nil
}

// PullGuest returns the customer enriched with phone and country from their
// first address. An unknown customer yields (nil, nil); address and country
// lookups are best-effort.
func (a *Adapter) PullGuest(ctx context.Context, externalGuestID string) (*model.AdapterGuest, error) {
	if a.client == nil {
		return nil, pms.ConfigErrorf("qloapps: adapter not initialised")
	}

	var cr customerResponse
	err := a.get(ctx, resourceCustomers+"/"+url.PathEscape(externalGuestID), nil, &cr)
	if pms.IsNotFound(err) {
		return nil, nil //nolint:nilnil // absent guest is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("get customer %s: %w", externalGuestID, err)
	}
	if cr.Customer == nil {
		return nil, nil //nolint:nilnil // absent guest is not an error
	}

	g := &model.AdapterGuest{
		ExternalGuestID: externalGuestID,
		Name:            cr.Customer.fullName(),
		Email:           cr.Customer.Email.String(),
		Phone:           cr.Customer.Phone.String(),
	}

	addr, err := a.primaryAddress(ctx, externalGuestID)
	if err != nil {
		a.log.Warn("customer address unavailable", "guest", externalGuestID, "error", err)
		return g, nil
	}
	if addr == nil {
		return g, nil
	}
	if p := addr.phone(); p != "" {
		g.Phone = p
	}
	if id := addr.IDCountry.String(); id != "" && id != "0" {
		name, err := a.countryName(ctx, id)
		if err != nil {
			a.log.Warn("country unavailable", "guest", externalGuestID, "country_id", id, "error", err)
		} else {
			g.Country = name
		}
	}
	return g, nil
}

// primaryAddress returns the first address on file for the customer, or nil
// when there is none.
func (a *Adapter) primaryAddress(ctx context.Context, customerID string) (*address, error) {
	var resp addressesResponse
	q := url.Values{
		"display":             {"full"},
		"filter[id_customer]": {"[" + customerID + "]"},
	}
	if err := a.get(ctx, resourceAddresses, q, &resp); err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	if len(resp.Addresses) == 0 {
		return nil, nil //nolint:nilnil // no address on file
	}
	first := resp.Addresses[0]
	return &first, nil
}

func (a *Adapter) countryName(ctx context.Context, id string) (string, error) {
	var resp countryResponse
	if err := a.get(ctx, resourceCountries+"/"+url.PathEscape(id), nil, &resp); err != nil {
		return "", fmt.Errorf("get country %s: %w", id, err)
	}
	if resp.Country == nil {
		return "", nil
	}
	return localizedName(resp.Country.Name), nil
}

// MapStatus maps QloApps booking status ids onto the canonical statuses.
func (a *Adapter) MapStatus(native string) model.Status {
	return mapStatus(native)
}

// get performs one webservice call under the retry policy.
func (a *Adapter) get(ctx context.Context, resource string, query url.Values, out any) error {
	return pms.Retry(ctx, a.maxAttempts, func() error {
		return a.client.Get(ctx, resource, query, out)
	})
}
