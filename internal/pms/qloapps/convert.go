package qloapps

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
)

// QloApps webservice resources.
const (
	resourceRoomBookings = "room_bookings"
	resourceOrders       = "orders"
	resourceCustomers    = "customers"
	resourceAddresses    = "addresses"
	resourceCountries    = "countries"

	// orderStatePaymentAccepted is PrestaShop's "Payment accepted" order state.
	orderStatePaymentAccepted = "2"

	// defaultLanguageID is the shop's default language in localized fields.
	defaultLanguageID = "1"

	// defaultSource is used when an order carries no payment module name.
	defaultSource = "QloApps Web"
)

// text is a JSON scalar that PrestaShop may encode either as a string or as a
// number. It decodes both into their string form.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
	default:
		*t = text(b)
	}
	return nil
}

func (t text) String() string { return strings.TrimSpace(string(t)) }

// oneOrMany decodes a PrestaShop collection that is an array when it holds
// several entries but a bare object when it holds exactly one.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`""`)) {
		*o = nil
		return nil
	}
	if b[0] == '[' {
		var many []T
		if err := json.Unmarshal(b, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*o = oneOrMany[T]{one}
	return nil
}

// roomBooking is one entry of /api/room_bookings?display=full.
type roomBooking struct {
	ID         text `json:"id"`
	IDOrder    text `json:"id_order"`
	IDRoom     text `json:"id_room"`
	IDCustomer text `json:"id_customer"`
	IDStatus   text `json:"id_status"`
	RoomNum    text `json:"room_num"`
	DateFrom   text `json:"date_from"`
	DateTo     text `json:"date_to"`
	CheckIn    text `json:"check_in"`
	CheckOut   text `json:"check_out"`
}

type roomBookingsResponse struct {
	Bookings oneOrMany[roomBooking] `json:"bookings"`
}

// stayDates returns the actual check-in/out dates when recorded, falling back
// to the planned date_from/date_to, truncated to YYYY-MM-DD.
func (b roomBooking) stayDates() (checkIn, checkOut string) {
	checkIn = model.DateOnly(b.CheckIn.String())
	if checkIn == "" {
		checkIn = model.DateOnly(b.DateFrom.String())
	}
	checkOut = model.DateOnly(b.CheckOut.String())
	if checkOut == "" {
		checkOut = model.DateOnly(b.DateTo.String())
	}
	return checkIn, checkOut
}

// reservationID is the composite key of a booked room within an order.
func (b roomBooking) reservationID() string {
	return "O" + b.IDOrder.String() + "-R" + b.IDRoom.String()
}

// validate reports why a booking cannot be converted, or "" if it can.
func (b roomBooking) validate() string {
	switch {
	case b.IDOrder.String() == "":
		return "missing id_order"
	case b.IDRoom.String() == "":
		return "missing id_room"
	case b.IDCustomer.String() == "":
		return "missing id_customer"
	}
	in, out := b.stayDates()
	if !model.ValidDate(in) || !model.ValidDate(out) {
		return "invalid stay dates"
	}
	return ""
}

// order is the subset of /api/orders/{id} the adapter reads.
type order struct {
	ID               text `json:"id"`
	TotalPaidTaxIncl text `json:"total_paid_tax_incl"`
	Module           text `json:"module"`
	CurrentState     text `json:"current_state"`
}

type orderResponse struct {
	Order *order `json:"order"`
}

// paymentComplete reports whether the order reached "Payment accepted".
func (o *order) paymentComplete() bool {
	return o.CurrentState.String() == orderStatePaymentAccepted
}

// amount parses the paid total; nil when missing or unparsable.
func (o *order) amount() *float64 {
	v, err := strconv.ParseFloat(o.TotalPaidTaxIncl.String(), 64)
	if err != nil {
		return nil
	}
	return &v
}

func (o *order) source() string {
	if m := o.Module.String(); m != "" {
		return m
	}
	return defaultSource
}

// toReservation converts a booking enriched by its parent order.
func toReservation(b roomBooking, o *order) model.AdapterReservation {
	in, out := b.stayDates()
	return model.AdapterReservation{
		ExternalReservationID: b.reservationID(),
		ExternalGuestID:       b.IDCustomer.String(),
		RoomNumber:            b.RoomNum.String(),
		CheckInDate:           in,
		CheckOutDate:          out,
		ExternalStatus:        b.IDStatus.String(),
		Amount:                o.amount(),
		Source:                o.source(),
	}
}

// customer is the subset of /api/customers/{id} the adapter reads.
type customer struct {
	ID        text `json:"id"`
	Firstname text `json:"firstname"`
	Lastname  text `json:"lastname"`
	Email     text `json:"email"`
	Phone     text `json:"phone"`
}

type customerResponse struct {
	Customer *customer `json:"customer"`
}

func (c *customer) fullName() string {
	return strings.TrimSpace(c.Firstname.String() + " " + c.Lastname.String())
}

type address struct {
	IDCountry   text `json:"id_country"`
	Phone       text `json:"phone"`
	PhoneMobile text `json:"phone_mobile"`
}

type addressesResponse struct {
	Addresses oneOrMany[address] `json:"addresses"`
}

// phone prefers the mobile number.
func (a address) phone() string {
	if p := a.PhoneMobile.String(); p != "" {
		return p
	}
	return a.Phone.String()
}

type country struct {
	Name json.RawMessage `json:"name"`
}

type countryResponse struct {
	Country *country `json:"country"`
}

// localized is one translation of a multilingual PrestaShop field.
type localized struct {
	ID    text `json:"id"`
	Value text `json:"value"`
}

// localizedName extracts a display name from a multilingual field. The field
// may be a plain string, an array of translations, or an object holding one
// or many translations under "language". The default language wins, then the
// first translation.
func localizedName(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var list []localized
	if err := json.Unmarshal(raw, &list); err == nil {
		return pickLanguage(list)
	}

	var wrapped struct {
		Language oneOrMany[localized] `json:"language"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Language) > 0 {
		return pickLanguage(wrapped.Language)
	}

	return strings.Trim(string(raw), `"`)
}

func pickLanguage(list []localized) string {
	for _, l := range list {
		if l.ID.String() == defaultLanguageID && l.Value.String() != "" {
			return l.Value.String()
		}
	}
	if len(list) > 0 {
		return list[0].Value.String()
	}
	return ""
}

// mapStatus maps QloApps room booking states:
// 1 awaiting check-in, 2 checked in, 3 checked out, 4/6 cancelled or invalid.
func mapStatus(native string) model.Status {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "1":
		return model.StatusPreArrival
	case "2":
		return model.StatusOnStay
	case "3":
		return model.StatusCheckedOut
	case "4", "6", "canceled", "cancelled":
		return model.StatusCancelled
	default:
		return model.StatusPreArrival
	}
}
