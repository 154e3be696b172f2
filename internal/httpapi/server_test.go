package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhdraihanr/loyalinn-pms/internal/auth"
	"github.com/mhdraihanr/loyalinn-pms/internal/model"
	"github.com/mhdraihanr/loyalinn-pms/internal/redisx"
	"github.com/mhdraihanr/loyalinn-pms/internal/store"
	pmssync "github.com/mhdraihanr/loyalinn-pms/internal/sync"
)

const (
	testSecret = "test-secret"
	tenantA    = "tenant-a"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSyncer struct {
	result pmssync.TriggerResult
	calls  []string

	// ctxErr and deadline describe the context of the last Run.
	ctxErr   error
	deadline time.Time
}

func (f *fakeSyncer) Run(ctx context.Context, userID string) pmssync.TriggerResult {
	f.calls = append(f.calls, userID)
	f.ctxErr = ctx.Err()
	f.deadline, _ = ctx.Deadline()
	return f.result
}

type fakeStore struct {
	mu           sync.Mutex
	members      map[string][]store.Member
	reservations []model.ReservationView
	guests       []model.Guest
	saved        []store.PMSConfig
	filters      []store.ReservationFilter
	guestLimit   int
	err          error
}

func newFakeStore() *fakeStore {
	return &fakeStore{members: map[string][]store.Member{
		"owner": {{TenantID: tenantA, UserID: "owner", Role: "owner"}},
		"admin": {{TenantID: tenantA, UserID: "admin", Role: "admin"}},
		"agent": {{TenantID: tenantA, UserID: "agent", Role: "agent"}},
		"multi": {
			{TenantID: tenantA, UserID: "multi", Role: "agent"},
			{TenantID: "tenant-b", UserID: "multi", Role: "agent"},
		},
	}}
}

func (f *fakeStore) TenantsForUser(_ context.Context, userID string) ([]store.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.members[userID], nil
}

func (f *fakeStore) ListReservations(_ context.Context, tenantID string, flt store.ReservationFilter) ([]model.ReservationView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, flt)
	var out []model.ReservationView
	for _, v := range f.reservations {
		if v.TenantID != tenantID {
			continue
		}
		if st, on := flt.StatusFilter(); on && v.Status != st {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeStore) ListGuests(_ context.Context, tenantID string, limit int) ([]model.Guest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.guestLimit = limit
	var out []model.Guest
	for _, g := range f.guests {
		if g.TenantID == tenantID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeStore) SavePMSConfig(_ context.Context, c *store.PMSConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *c)
	return nil
}

type fakeStatus struct {
	runs map[string]model.SyncRun
	err  error
}

func (f *fakeStatus) Last(_ context.Context, tenantID string) (*model.SyncRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	run, ok := f.runs[tenantID]
	if !ok {
		return nil, redisx.ErrNoResult
	}
	return &run, nil
}

type harness struct {
	srv      *httptest.Server
	store    *fakeStore
	syncer   *fakeSyncer
	verifier *auth.Verifier
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	v, err := auth.NewVerifier(testSecret, "")
	require.NoError(t, err)
	h := &harness{store: newFakeStore(), syncer: &fakeSyncer{}, verifier: v}
	h.srv = httptest.NewServer(NewRouter(h.syncer, h.store, v, testLogger, opts...))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path, user, body string) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(t, err)
	if user != "" {
		tok, err := h.verifier.Sign(user, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func (h *harness) list(t *testing.T, path, user string) (int, []map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, h.srv.URL+path, nil)
	require.NoError(t, err)
	tok, err := h.verifier.Sign(user, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out []map[string]any
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	resp, err := http.Get(h.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodPost, "/api/sync", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized", body["error"])

	req, _ := http.NewRequest(http.MethodPost, h.srv.URL+"/api/sync", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)

	assert.Empty(t, h.syncer.calls)
}

func TestTriggerSync(t *testing.T) {
	tests := []struct {
		name     string
		result   pmssync.TriggerResult
		wantCode int
		wantKey  string
		wantVal  any
	}{
		{
			name:     "success",
			result:   pmssync.TriggerResult{Success: true, Message: "Successfully synced 2 reservations."},
			wantCode: http.StatusOK,
			wantKey:  "message",
			wantVal:  "Successfully synced 2 reservations.",
		},
		{
			name:     "not owner",
			result:   pmssync.TriggerResult{Error: "unauthorized: caller does not own a tenant", Err: fmt.Errorf("%w: x", auth.ErrUnauthorized)},
			wantCode: http.StatusForbidden,
			wantKey:  "error",
			wantVal:  "unauthorized: caller does not own a tenant",
		},
		{
			name:     "not configured",
			result:   pmssync.TriggerResult{Error: "PMS Sync is not configured or is inactive.", Err: pmssync.ErrNotConfigured},
			wantCode: http.StatusUnprocessableEntity,
			wantKey:  "error",
			wantVal:  "PMS Sync is not configured or is inactive.",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.syncer.result = tc.result

			resp, body := h.do(t, http.MethodPost, "/api/sync", "owner", "")

			assert.Equal(t, tc.wantCode, resp.StatusCode)
			assert.Equal(t, tc.wantVal, body[tc.wantKey])
			assert.Equal(t, []string{"owner"}, h.syncer.calls)
		})
	}
}

func TestTriggerSync_SuccessBodyShape(t *testing.T) {
	h := newHarness(t)
	h.syncer.result = pmssync.TriggerResult{Success: true, Message: "No reservations found"}

	_, body := h.do(t, http.MethodPost, "/api/sync", "owner", "")

	assert.Equal(t, map[string]any{"success": true, "message": "No reservations found"}, body)
}

func TestTriggerSync_OutlivesRequestTimeout(t *testing.T) {
	h := newHarness(t)
	h.syncer.result = pmssync.TriggerResult{Success: true, Message: "Successfully synced 1 reservations."}

	start := time.Now()
	resp, _ := h.do(t, http.MethodPost, "/api/sync", "owner", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.False(t, h.syncer.deadline.IsZero(), "sync context has no deadline")
	assert.Greater(t, h.syncer.deadline.Sub(start), RequestTimeout)
	assert.LessOrEqual(t, h.syncer.deadline.Sub(start), SyncTimeout+time.Second)
}

func TestTriggerSync_DetachedFromClientCancel(t *testing.T) {
	syncer := &fakeSyncer{result: pmssync.TriggerResult{Success: true}}
	v, err := auth.NewVerifier(testSecret, "")
	require.NoError(t, err)
	router := NewRouter(syncer, newFakeStore(), v, testLogger, WithSyncTimeout(time.Minute))

	tok, err := v.Sign("owner", time.Hour)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequestWithContext(ctx, http.MethodPost, "/api/sync", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, []string{"owner"}, syncer.calls)
	assert.NoError(t, syncer.ctxErr, "client cancellation reached the sync")
	assert.WithinDuration(t, time.Now().Add(time.Minute), syncer.deadline, 5*time.Second)
}

func TestListReservations(t *testing.T) {
	h := newHarness(t)
	h.store.reservations = []model.ReservationView{
		{
			Reservation: model.Reservation{ID: "r1", TenantID: tenantA, ExternalReservationID: "R-1", CheckInDate: "2024-03-10", CheckOutDate: "2024-03-12", Status: model.StatusOnStay, Amount: model.Float(120)},
			GuestName:   "Ann",
		},
		{
			Reservation: model.Reservation{ID: "r2", TenantID: tenantA, ExternalReservationID: "R-2", Status: model.StatusPreArrival},
			GuestName:   "Bob",
		},
		{
			Reservation: model.Reservation{ID: "r3", TenantID: "tenant-b", ExternalReservationID: "R-3", Status: model.StatusOnStay},
		},
	}

	code, all := h.list(t, "/api/reservations", "agent")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, all, 2)

	code, onStay := h.list(t, "/api/reservations?status=on-stay", "agent")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, onStay, 1)
	assert.Equal(t, "R-1", onStay[0]["external_reservation_id"])
	assert.Equal(t, 120.0, onStay[0]["amount"])
	assert.Equal(t, "Ann", onStay[0]["guest"].(map[string]any)["name"])

	code, _ = h.list(t, "/api/reservations?status=all", "agent")
	assert.Equal(t, http.StatusOK, code)

	code, _ = h.list(t, "/api/reservations?status=lost", "agent")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListReservations_RequiresSingleTenant(t *testing.T) {
	h := newHarness(t)

	code, _ := h.list(t, "/api/reservations", "multi")
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = h.list(t, "/api/reservations", "stranger")
	assert.Equal(t, http.StatusForbidden, code)
}

func TestListGuests(t *testing.T) {
	h := newHarness(t)
	h.store.guests = []model.Guest{
		{ID: "g1", TenantID: tenantA, ExternalGuestID: "G-1", Name: "Ann"},
		{ID: "g2", TenantID: "tenant-b", ExternalGuestID: "G-2", Name: "Bob"},
	}

	code, guests := h.list(t, "/api/guests", "agent")

	require.Equal(t, http.StatusOK, code)
	require.Len(t, guests, 1)
	assert.Equal(t, "Ann", guests[0]["name"])
	assert.Equal(t, store.DefaultGuestLimit, h.store.guestLimit)
}

func TestListGuests_EmptyIsArray(t *testing.T) {
	h := newHarness(t)
	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/api/guests", nil)
	tok, _ := h.verifier.Sign("agent", time.Hour)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	assert.Equal(t, "[]", strings.TrimSpace(string(raw)))
}

func TestSyncStatus(t *testing.T) {
	status := &fakeStatus{runs: map[string]model.SyncRun{
		tenantA: {TenantID: tenantA, Success: true, Count: 4, Origin: model.OriginSchedule},
	}}
	h := newHarness(t, WithStatus(status))

	resp, body := h.do(t, http.MethodGet, "/api/sync/status", "agent", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4.0, body["count"])
	assert.Equal(t, "schedule", body["origin"])

	delete(status.runs, tenantA)
	resp, _ = h.do(t, http.MethodGet, "/api/sync/status", "agent", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	status.err = errors.New("redis down")
	resp, _ = h.do(t, http.MethodGet, "/api/sync/status", "agent", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestSyncStatus_Disabled(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(t, http.MethodGet, "/api/sync/status", "agent", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSavePMSSettings(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodPut, "/api/settings/pms", "owner",
		`{"pms_type":"qloapps","endpoint":"https://hotel.example.com","api_key":"SECRET","credentials":{"region":"id"}}`)

	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.Len(t, h.store.saved, 1)
	saved := h.store.saved[0]
	assert.Equal(t, tenantA, saved.TenantID)
	assert.Equal(t, "qloapps", saved.PMSType)
	assert.Equal(t, "https://hotel.example.com", saved.Endpoint)
	assert.Equal(t, map[string]string{"api_key": "SECRET", "region": "id"}, saved.Credentials)
	assert.True(t, saved.IsActive)
}

func TestSavePMSSettings_Deactivate(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, http.MethodPut, "/api/settings/pms", "owner", `{"pms_type":"custom","is_active":false}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, h.store.saved[0].IsActive)
}

func TestSavePMSSettings_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"unknown provider", `{"pms_type":"opera","endpoint":"https://x.example","api_key":"k"}`, "pms_type must be one of: cloudbeds mews custom qloapps"},
		{"missing type", `{"endpoint":"https://x.example","api_key":"k"}`, "pms_type is required"},
		{"missing endpoint", `{"pms_type":"qloapps","api_key":"k"}`, "endpoint is required"},
		{"bad endpoint", `{"pms_type":"qloapps","endpoint":"ftp://x.example","api_key":"k"}`, "endpoint must be an http or https URL"},
		{"missing key", `{"pms_type":"qloapps","endpoint":"https://x.example"}`, "api_key is required"},
		{"unknown field", `{"pms_type":"custom","colour":"blue"}`, "invalid json"},
		{"not json", `pms_type=custom`, "invalid json"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)

			resp, body := h.do(t, http.MethodPut, "/api/settings/pms", "owner", tc.body)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tc.wantErr, body["error"])
			assert.Empty(t, h.store.saved)
		})
	}
}

func TestSavePMSSettings_OwnerOnly(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, http.MethodPut, "/api/settings/pms", "admin", `{"pms_type":"custom"}`)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, h.store.saved)
}

func TestStoreErrorIs500(t *testing.T) {
	h := newHarness(t)
	h.store.err = errors.New("database is locked")

	code, _ := h.list(t, "/api/guests", "agent")

	assert.Equal(t, http.StatusInternalServerError, code)
}
