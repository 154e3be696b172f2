package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/mhdraihanr/loyalinn-pms/internal/auth"
	"github.com/mhdraihanr/loyalinn-pms/internal/model"
	"github.com/mhdraihanr/loyalinn-pms/internal/redisx"
	"github.com/mhdraihanr/loyalinn-pms/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

type syncResponse struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (a *api) triggerSync(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), a.syncTimeout)
	defer cancel()
	res := a.syncer.Run(ctx, userID(r.Context()))
	body := syncResponse{Success: res.Success, Message: res.Message, Error: res.Error}

	switch {
	case res.Success:
		writeJSON(w, http.StatusOK, body)
	case errors.Is(res.Err, auth.ErrUnauthorized), errors.Is(res.Err, auth.ErrForbidden):
		writeJSON(w, http.StatusForbidden, body)
	default:
		writeJSON(w, http.StatusUnprocessableEntity, body)
	}
}

func (a *api) syncStatus(w http.ResponseWriter, r *http.Request) {
	m, ok := a.membership(w, r, auth.PermReservationsRead)
	if !ok {
		return
	}
	if a.status == nil {
		writeError(w, http.StatusNotFound, "no sync result recorded")
		return
	}
	run, err := a.status.Last(r.Context(), m.TenantID)
	if errors.Is(err, redisx.ErrNoResult) {
		writeError(w, http.StatusNotFound, "no sync result recorded")
		return
	}
	if err != nil {
		a.log.Error("loading sync status failed", "tenant_id", m.TenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type guestSummary struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type reservationResponse struct {
	ID                    string       `json:"id"`
	ExternalReservationID string       `json:"external_reservation_id"`
	RoomNumber            string       `json:"room_number,omitempty"`
	CheckInDate           string       `json:"check_in_date"`
	CheckOutDate          string       `json:"check_out_date"`
	Status                model.Status `json:"status"`
	Amount                *float64     `json:"amount"`
	Source                string       `json:"source,omitempty"`
	Guest                 guestSummary `json:"guest"`
}

func (a *api) listReservations(w http.ResponseWriter, r *http.Request) {
	m, ok := a.membership(w, r, auth.PermReservationsRead)
	if !ok {
		return
	}
	filter := store.ReservationFilter{Status: r.URL.Query().Get("status")}
	if st, on := filter.StatusFilter(); on && !st.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status "+strings.TrimSpace(filter.Status))
		return
	}

	views, err := a.store.ListReservations(r.Context(), m.TenantID, filter)
	if err != nil {
		a.log.Error("listing reservations failed", "tenant_id", m.TenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	out := make([]reservationResponse, 0, len(views))
	for _, v := range views {
		out = append(out, reservationResponse{
			ID:                    v.ID,
			ExternalReservationID: v.ExternalReservationID,
			RoomNumber:            v.RoomNumber,
			CheckInDate:           v.CheckInDate,
			CheckOutDate:          v.CheckOutDate,
			Status:                v.Status,
			Amount:                v.Amount,
			Source:                v.Source,
			Guest:                 guestSummary{Name: v.GuestName, Email: v.GuestEmail, Phone: v.GuestPhone},
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type guestResponse struct {
	ID              string    `json:"id"`
	ExternalGuestID string    `json:"external_guest_id"`
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	Country         string    `json:"country,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (a *api) listGuests(w http.ResponseWriter, r *http.Request) {
	m, ok := a.membership(w, r, auth.PermGuestsRead)
	if !ok {
		return
	}
	guests, err := a.store.ListGuests(r.Context(), m.TenantID, store.DefaultGuestLimit)
	if err != nil {
		a.log.Error("listing guests failed", "tenant_id", m.TenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	out := make([]guestResponse, 0, len(guests))
	for _, g := range guests {
		out = append(out, guestResponse{
			ID:              g.ID,
			ExternalGuestID: g.ExternalGuestID,
			Name:            g.Name,
			Email:           g.Email,
			Phone:           g.Phone,
			Country:         g.Country,
			CreatedAt:       g.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// pmsSettingsRequest is the body of PUT /api/settings/pms. The custom
// provider serves fixtures and needs neither endpoint nor key.
type pmsSettingsRequest struct {
	PMSType     string            `json:"pms_type" validate:"required,oneof=cloudbeds mews custom qloapps"`
	Endpoint    string            `json:"endpoint" validate:"required_unless=PMSType custom,omitempty,http_url"`
	APIKey      string            `json:"api_key" validate:"required_unless=PMSType custom"`
	Credentials map[string]string `json:"credentials"`
	IsActive    *bool             `json:"is_active"`
}

func (a *api) savePMSSettings(w http.ResponseWriter, r *http.Request) {
	uid := userID(r.Context())
	members, err := a.store.TenantsForUser(r.Context(), uid)
	if err != nil {
		a.log.Error("loading memberships failed", "user_id", uid, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	tenantID, err := auth.OwnedTenant(members)
	if err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	var req pmsSettingsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	creds := make(map[string]string, len(req.Credentials)+1)
	for k, v := range req.Credentials {
		creds[k] = v
	}
	if req.APIKey != "" {
		creds["api_key"] = req.APIKey
	}
	cfg := &store.PMSConfig{
		TenantID:    tenantID,
		PMSType:     req.PMSType,
		Endpoint:    strings.TrimSpace(req.Endpoint),
		Credentials: creds,
		IsActive:    req.IsActive == nil || *req.IsActive,
	}
	if err := a.store.SavePMSConfig(r.Context(), cfg); err != nil {
		a.log.Error("saving PMS config failed", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}
	a.log.Info("PMS config saved", "tenant_id", tenantID, "pms_type", cfg.PMSType, "is_active", cfg.IsActive)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "pms_type": cfg.PMSType, "is_active": cfg.IsActive})
}

// validationMessage names the first failing field in the request's JSON
// vocabulary.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := map[string]string{
		"PMSType":  "pms_type",
		"Endpoint": "endpoint",
		"APIKey":   "api_key",
	}[fe.Field()]
	if field == "" {
		field = fe.Field()
	}
	switch fe.Tag() {
	case "required", "required_unless":
		return field + " is required"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "http_url":
		return field + " must be an http or https URL"
	default:
		return field + " is invalid"
	}
}
