// Package postgres is the PostgreSQL storage backend. It mirrors the SQLite
// backend's tenant-scoped API on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
	"github.com/mhdraihanr/loyalinn-pms/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS tenants (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tenant_members (
    tenant_id TEXT NOT NULL REFERENCES tenants (id),
    user_id   TEXT NOT NULL,
    role      TEXT NOT NULL CHECK (role IN ('owner', 'admin', 'agent')),
    PRIMARY KEY (tenant_id, user_id)
);

CREATE TABLE IF NOT EXISTS pms_configurations (
    tenant_id   TEXT PRIMARY KEY REFERENCES tenants (id),
    pms_type    TEXT        NOT NULL,
    endpoint    TEXT        NOT NULL DEFAULT '',
    credentials JSONB       NOT NULL DEFAULT '{}'::jsonb,
    is_active   BOOLEAN     NOT NULL DEFAULT false,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS guests (
    id                TEXT PRIMARY KEY,
    tenant_id         TEXT NOT NULL REFERENCES tenants (id),
    external_guest_id TEXT NOT NULL,
    name              TEXT NOT NULL,
    email             TEXT,
    phone             TEXT,
    country           TEXT,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (tenant_id, external_guest_id),
    UNIQUE (id, tenant_id)
);

CREATE TABLE IF NOT EXISTS reservations (
    id                      TEXT PRIMARY KEY,
    tenant_id               TEXT NOT NULL REFERENCES tenants (id),
    guest_id                TEXT NOT NULL,
    external_reservation_id TEXT NOT NULL,
    room_number             TEXT,
    check_in_date           DATE NOT NULL,
    check_out_date          DATE NOT NULL,
    status                  TEXT NOT NULL CHECK (status IN ('pre-arrival', 'on-stay', 'checked-out', 'cancelled')),
    amount                  NUMERIC(12, 2),
    source                  TEXT,
    created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (tenant_id, external_reservation_id),
    FOREIGN KEY (guest_id, tenant_id) REFERENCES guests (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_tenant_members_user   ON tenant_members (user_id);
CREATE INDEX IF NOT EXISTS idx_guests_tenant_created ON guests (tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_reservations_check_in ON reservations (tenant_id, check_in_date DESC);
`

// Store is the PostgreSQL-backed repository.
type Store struct {
	db *pgxpool.Pool
}

// Connect opens a pool for dsn, verifies it with a ping and applies the
// schema.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: pool}, nil
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

// CreateTenant inserts a tenant with a fresh id.
func (s *Store) CreateTenant(ctx context.Context, name string) (*store.Tenant, error) {
	t := &store.Tenant{ID: store.NewID(), Name: name}
	err := s.db.QueryRow(ctx,
		`INSERT INTO tenants (id, name) VALUES ($1, $2) RETURNING created_at`,
		t.ID, t.Name).Scan(&t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating tenant %q: %w", name, err)
	}
	return t, nil
}

// AddMember links a user to a tenant, replacing any previous role.
func (s *Store) AddMember(ctx context.Context, m store.Member) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tenant_members (tenant_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		m.TenantID, m.UserID, m.Role)
	if err != nil {
		return fmt.Errorf("adding member %q to tenant %s: %w", m.UserID, m.TenantID, err)
	}
	return nil
}

// TenantsForUser returns every membership of userID.
func (s *Store) TenantsForUser(ctx context.Context, userID string) ([]store.Member, error) {
	rows, err := s.db.Query(ctx,
		`SELECT tenant_id, user_id, role FROM tenant_members WHERE user_id = $1 ORDER BY tenant_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying memberships for %q: %w", userID, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Member, error) {
		var m store.Member
		err := row.Scan(&m.TenantID, &m.UserID, &m.Role)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning memberships: %w", err)
	}
	return out, nil
}

// SavePMSConfig inserts or replaces the tenant's PMS configuration.
func (s *Store) SavePMSConfig(ctx context.Context, c *store.PMSConfig) error {
	creds := c.Credentials
	if creds == nil {
		creds = map[string]string{}
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO pms_configurations (tenant_id, pms_type, endpoint, credentials, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (tenant_id) DO UPDATE SET
		    pms_type    = EXCLUDED.pms_type,
		    endpoint    = EXCLUDED.endpoint,
		    credentials = EXCLUDED.credentials,
		    is_active   = EXCLUDED.is_active,
		    updated_at  = EXCLUDED.updated_at
		RETURNING updated_at`,
		c.TenantID, c.PMSType, c.Endpoint, creds, c.IsActive).Scan(&c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving PMS config for tenant %s: %w", c.TenantID, err)
	}
	return nil
}

// GetPMSConfig returns the tenant's PMS configuration or [store.ErrNotFound].
func (s *Store) GetPMSConfig(ctx context.Context, tenantID string) (*store.PMSConfig, error) {
	var c store.PMSConfig
	err := s.db.QueryRow(ctx, `
		SELECT tenant_id, pms_type, endpoint, credentials, is_active, updated_at
		FROM pms_configurations WHERE tenant_id = $1`, tenantID).
		Scan(&c.TenantID, &c.PMSType, &c.Endpoint, &c.Credentials, &c.IsActive, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("PMS config for tenant %s: %w", tenantID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying PMS config for tenant %s: %w", tenantID, err)
	}
	return &c, nil
}

// ActivePMSTenants returns the ids of tenants with an active PMS config.
func (s *Store) ActivePMSTenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT tenant_id FROM pms_configurations WHERE is_active ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("querying active PMS tenants: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning tenant ids: %w", err)
	}
	return ids, nil
}

// UpsertGuest inserts or updates the guest keyed on (tenant_id,
// external_guest_id) and returns the persisted row id. g.ID is set as well.
func (s *Store) UpsertGuest(ctx context.Context, g *model.Guest) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		INSERT INTO guests (id, tenant_id, external_guest_id, name, email, phone, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id, external_guest_id) DO UPDATE SET
		    name       = EXCLUDED.name,
		    email      = EXCLUDED.email,
		    phone      = EXCLUDED.phone,
		    country    = EXCLUDED.country,
		    updated_at = now()
		RETURNING id`,
		store.NewID(), g.TenantID, g.ExternalGuestID, g.Name,
		nullable(g.Email), nullable(g.Phone), nullable(g.Country),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting guest %q: %w", g.ExternalGuestID, err)
	}
	g.ID = id
	return id, nil
}

// UpsertReservation inserts or updates the reservation keyed on (tenant_id,
// external_reservation_id) and returns the persisted row id. r.ID is set as
// well. The guest must belong to the same tenant.
func (s *Store) UpsertReservation(ctx context.Context, r *model.Reservation) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		INSERT INTO reservations
		    (id, tenant_id, guest_id, external_reservation_id, room_number,
		     check_in_date, check_out_date, status, amount, source)
		VALUES ($1, $2, $3, $4, $5, $6::text::date, $7::text::date, $8, $9, $10)
		ON CONFLICT (tenant_id, external_reservation_id) DO UPDATE SET
		    guest_id       = EXCLUDED.guest_id,
		    room_number    = EXCLUDED.room_number,
		    check_in_date  = EXCLUDED.check_in_date,
		    check_out_date = EXCLUDED.check_out_date,
		    status         = EXCLUDED.status,
		    amount         = EXCLUDED.amount,
		    source         = EXCLUDED.source,
		    updated_at     = now()
		RETURNING id`,
		store.NewID(), r.TenantID, r.GuestID, r.ExternalReservationID, nullable(r.RoomNumber),
		r.CheckInDate, r.CheckOutDate, string(r.Status), r.Amount, nullable(r.Source),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upserting reservation %q: %w", r.ExternalReservationID, err)
	}
	r.ID = id
	return id, nil
}

// ListReservations returns the tenant's reservations joined with their guest,
// newest check-in first.
func (s *Store) ListReservations(ctx context.Context, tenantID string, f store.ReservationFilter) ([]model.ReservationView, error) {
	q := `
		SELECT r.id, r.tenant_id, r.guest_id, r.external_reservation_id, r.room_number,
		       to_char(r.check_in_date, 'YYYY-MM-DD'), to_char(r.check_out_date, 'YYYY-MM-DD'),
		       r.status, r.amount::float8, r.source, r.created_at, r.updated_at,
		       g.name, g.email, g.phone
		FROM reservations r
		JOIN guests g ON g.id = r.guest_id AND g.tenant_id = r.tenant_id
		WHERE r.tenant_id = $1`
	args := []any{tenantID}
	if status, ok := f.StatusFilter(); ok {
		q += ` AND r.status = $2`
		args = append(args, string(status))
	}
	q += ` ORDER BY r.check_in_date DESC, r.external_reservation_id`

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reservations for tenant %s: %w", tenantID, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ReservationView, error) {
		var (
			v                        model.ReservationView
			room, source, email, tel *string
			status                   string
		)
		err := row.Scan(&v.ID, &v.TenantID, &v.GuestID, &v.ExternalReservationID, &room,
			&v.CheckInDate, &v.CheckOutDate, &status, &v.Amount, &source,
			&v.CreatedAt, &v.UpdatedAt, &v.GuestName, &email, &tel)
		v.Status = model.Status(status)
		v.RoomNumber, v.Source = deref(room), deref(source)
		v.GuestEmail, v.GuestPhone = deref(email), deref(tel)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning reservations: %w", err)
	}
	return out, nil
}

// ListGuests returns the tenant's most recently created guests. A limit of
// zero or less uses [store.DefaultGuestLimit].
func (s *Store) ListGuests(ctx context.Context, tenantID string, limit int) ([]model.Guest, error) {
	if limit <= 0 {
		limit = store.DefaultGuestLimit
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, tenant_id, external_guest_id, name, email, phone, country, created_at, updated_at
		FROM guests WHERE tenant_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying guests for tenant %s: %w", tenantID, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Guest, error) {
		var (
			g                     model.Guest
			email, phone, country *string
		)
		err := row.Scan(&g.ID, &g.TenantID, &g.ExternalGuestID, &g.Name,
			&email, &phone, &country, &g.CreatedAt, &g.UpdatedAt)
		g.Email, g.Phone, g.Country = deref(email), deref(phone), deref(country)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning guests: %w", err)
	}
	return out, nil
}

// Counts returns how many guest and reservation rows the tenant owns.
func (s *Store) Counts(ctx context.Context, tenantID string) (guests, reservations int, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM guests WHERE tenant_id = $1),
		       (SELECT COUNT(*) FROM reservations WHERE tenant_id = $1)`, tenantID).
		Scan(&guests, &reservations)
	if err != nil {
		return 0, 0, fmt.Errorf("counting rows for tenant %s: %w", tenantID, err)
	}
	return guests, reservations, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
