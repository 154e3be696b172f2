package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
	"github.com/mhdraihanr/loyalinn-pms/internal/pms"
	"github.com/mhdraihanr/loyalinn-pms/internal/store"
)

// --- Mock Adapter ------------------------------------------------------------

type mockAdapter struct {
	mu           sync.Mutex
	reservations []model.AdapterReservation
	guests       map[string]*model.AdapterGuest
	pullErr      error
	guestErr     map[string]error
	initErr      error
	panicOnPull  bool
	inits        int
}

func newMockAdapter(reservations ...model.AdapterReservation) *mockAdapter {
	return &mockAdapter{
		reservations: reservations,
		guests:       make(map[string]*model.AdapterGuest),
		guestErr:     make(map[string]error),
	}
}

func (m *mockAdapter) withGuest(id, name string) *mockAdapter {
	m.guests[id] = &model.AdapterGuest{ExternalGuestID: id, Name: name}
	return m
}

func (m *mockAdapter) Init(_ map[string]string, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inits++
	return m.initErr
}

func (m *mockAdapter) PullReservations(ctx context.Context, _, _ string) ([]model.AdapterReservation, error) {
	if m.panicOnPull {
		panic("adapter exploded")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.pullErr != nil {
		return nil, m.pullErr
	}
	return append([]model.AdapterReservation(nil), m.reservations...), nil
}

func (m *mockAdapter) PullGuest(_ context.Context, id string) (*model.AdapterGuest, error) {
	if err := m.guestErr[id]; err != nil {
		return nil, err
	}
	g, ok := m.guests[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (m *mockAdapter) MapStatus(native string) model.Status {
	if native == "inhouse" {
		return model.StatusOnStay
	}
	return model.StatusPreArrival
}

func res(id, guestID string) model.AdapterReservation {
	return model.AdapterReservation{
		ExternalReservationID: id,
		ExternalGuestID:       guestID,
		CheckInDate:           "2024-01-01",
		CheckOutDate:          "2024-01-08",
		ExternalStatus:        "confirmed",
	}
}

// --- Mock Store --------------------------------------------------------------

type guestKey struct{ tenant, ext string }

type mockStore struct {
	mu           sync.Mutex
	guests       map[guestKey]*model.Guest
	reservations map[guestKey]*model.Reservation
	members      map[string][]store.Member
	configs      map[string]*store.PMSConfig
	failRes      map[string]bool // external reservation ids whose upsert fails
	failGuest    map[string]bool // external guest ids whose upsert fails
	nextID       int
	order        []string // write log: "guest:<ext>" / "res:<ext>"
}

func newMockStore() *mockStore {
	return &mockStore{
		guests:       make(map[guestKey]*model.Guest),
		reservations: make(map[guestKey]*model.Reservation),
		members:      make(map[string][]store.Member),
		configs:      make(map[string]*store.PMSConfig),
		failRes:      make(map[string]bool),
		failGuest:    make(map[string]bool),
	}
}

func (m *mockStore) UpsertGuest(_ context.Context, g *model.Guest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failGuest[g.ExternalGuestID] {
		return "", errors.New("simulated guest constraint violation")
	}
	k := guestKey{g.TenantID, g.ExternalGuestID}
	if existing, ok := m.guests[k]; ok {
		cp := *g
		cp.ID = existing.ID
		m.guests[k] = &cp
	} else {
		m.nextID++
		cp := *g
		cp.ID = fmt.Sprintf("g-%d", m.nextID)
		m.guests[k] = &cp
	}
	m.order = append(m.order, "guest:"+g.ExternalGuestID)
	return m.guests[k].ID, nil
}

func (m *mockStore) UpsertReservation(_ context.Context, r *model.Reservation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failRes[r.ExternalReservationID] {
		return "", errors.New("simulated reservation constraint violation")
	}
	if !m.guestExists(r.TenantID, r.GuestID) {
		return "", fmt.Errorf("guest %s does not belong to tenant %s", r.GuestID, r.TenantID)
	}
	k := guestKey{r.TenantID, r.ExternalReservationID}
	cp := *r
	if existing, ok := m.reservations[k]; ok {
		cp.ID = existing.ID
	} else {
		m.nextID++
		cp.ID = fmt.Sprintf("r-%d", m.nextID)
	}
	m.reservations[k] = &cp
	m.order = append(m.order, "res:"+r.ExternalReservationID)
	return cp.ID, nil
}

func (m *mockStore) guestExists(tenantID, guestID string) bool {
	for k, g := range m.guests {
		if k.tenant == tenantID && g.ID == guestID {
			return true
		}
	}
	return false
}

func (m *mockStore) TenantsForUser(_ context.Context, userID string) ([]store.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.members[userID], nil
}

func (m *mockStore) GetPMSConfig(_ context.Context, tenantID string) (*store.PMSConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[tenantID]
	if !ok {
		return nil, fmt.Errorf("PMS config for tenant %s: %w", tenantID, store.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (m *mockStore) ActivePMSTenants(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, c := range m.configs {
		if c.IsActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *mockStore) addOwner(userID, tenantID string) {
	m.members[userID] = append(m.members[userID], store.Member{TenantID: tenantID, UserID: userID, Role: "owner"})
}

func (m *mockStore) counts(tenantID string) (guests, reservations int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.guests {
		if k.tenant == tenantID {
			guests++
		}
	}
	for k := range m.reservations {
		if k.tenant == tenantID {
			reservations++
		}
	}
	return guests, reservations
}

// --- Mock Resolver -----------------------------------------------------------

type mockResolver struct {
	mu       sync.Mutex
	adapters map[string]pms.Adapter
	resolved []string
}

func (m *mockResolver) Resolve(providerID string) pms.Adapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved = append(m.resolved, providerID)
	return m.adapters[providerID]
}

// --- Mock Recorder / Publisher -------------------------------------------------

type mockSink struct {
	mu   sync.Mutex
	runs []model.SyncRun
	err  error
}

func (m *mockSink) Record(_ context.Context, run model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return m.err
}

func (m *mockSink) PublishSynced(ctx context.Context, run model.SyncRun) error {
	return m.Record(ctx, run)
}

func (m *mockSink) all() []model.SyncRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SyncRun(nil), m.runs...)
}
