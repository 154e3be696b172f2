// Package sqlite is the embedded, tenant-scoped storage backend for guests,
// reservations, tenants and PMS configurations.
//
// Only this package may open or query the database. All other packages receive
// a [*Store] and call its methods.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
	"github.com/mhdraihanr/loyalinn-pms/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS tenants (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS tenant_members (
    tenant_id TEXT NOT NULL REFERENCES tenants (id),
    user_id   TEXT NOT NULL,
    role      TEXT NOT NULL CHECK (role IN ('owner', 'admin', 'agent')),
    PRIMARY KEY (tenant_id, user_id)
);

CREATE TABLE IF NOT EXISTS pms_configurations (
    tenant_id   TEXT PRIMARY KEY REFERENCES tenants (id),
    pms_type    TEXT    NOT NULL,
    endpoint    TEXT    NOT NULL DEFAULT '',
    credentials TEXT    NOT NULL DEFAULT '{}',
    is_active   INTEGER NOT NULL DEFAULT 0,
    updated_at  TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS guests (
    id                TEXT PRIMARY KEY,
    tenant_id         TEXT NOT NULL REFERENCES tenants (id),
    external_guest_id TEXT NOT NULL,
    name              TEXT NOT NULL,
    email             TEXT,
    phone             TEXT,
    country           TEXT,
    created_at        TEXT NOT NULL DEFAULT '',
    updated_at        TEXT NOT NULL DEFAULT '',
    UNIQUE (tenant_id, external_guest_id),
    UNIQUE (id, tenant_id)
);

CREATE TABLE IF NOT EXISTS reservations (
    id                      TEXT PRIMARY KEY,
    tenant_id               TEXT NOT NULL REFERENCES tenants (id),
    guest_id                TEXT NOT NULL,
    external_reservation_id TEXT NOT NULL,
    room_number             TEXT,
    check_in_date           TEXT NOT NULL,
    check_out_date          TEXT NOT NULL,
    status                  TEXT NOT NULL CHECK (status IN ('pre-arrival', 'on-stay', 'checked-out', 'cancelled')),
    amount                  REAL,
    source                  TEXT,
    created_at              TEXT NOT NULL DEFAULT '',
    updated_at              TEXT NOT NULL DEFAULT '',
    UNIQUE (tenant_id, external_reservation_id),
    FOREIGN KEY (guest_id, tenant_id) REFERENCES guests (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_tenant_members_user    ON tenant_members (user_id);
CREATE INDEX IF NOT EXISTS idx_guests_tenant_created  ON guests (tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_reservations_check_in  ON reservations (tenant_id, check_in_date);
`

// Store is the SQLite-backed repository.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DefaultDBPath returns the default path for the database:
// ~/.local/share/loyalinn/loyalinn.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "loyalinn", "loyalinn.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies the schema, and
// configures WAL mode with foreign keys enforced.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the schema DDL idempotently (CREATE IF NOT EXISTS).
func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// --- tenants ------------------------------------------------------------------

// CreateTenant inserts a tenant with a fresh id.
func (s *Store) CreateTenant(ctx context.Context, name string) (*store.Tenant, error) {
	t := &store.Tenant{ID: store.NewID(), Name: name, CreatedAt: s.now().UTC()}
	const q = `INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, t.ID, t.Name, formatTime(t.CreatedAt)); err != nil {
		return nil, fmt.Errorf("creating tenant %q: %w", name, err)
	}
	return t, nil
}

// AddMember links a user to a tenant, replacing any previous role.
func (s *Store) AddMember(ctx context.Context, m store.Member) error {
	const q = `
		INSERT INTO tenant_members (tenant_id, user_id, role) VALUES (?, ?, ?)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET role = excluded.role`
	if _, err := s.db.ExecContext(ctx, q, m.TenantID, m.UserID, m.Role); err != nil {
		return fmt.Errorf("adding member %q to tenant %s: %w", m.UserID, m.TenantID, err)
	}
	return nil
}

// TenantsForUser returns every membership of userID.
func (s *Store) TenantsForUser(ctx context.Context, userID string) ([]store.Member, error) {
	const q = `SELECT tenant_id, user_id, role FROM tenant_members WHERE user_id = ? ORDER BY tenant_id`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("querying memberships for %q: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.Member
	for rows.Next() {
		var m store.Member
		if err := rows.Scan(&m.TenantID, &m.UserID, &m.Role); err != nil {
			return nil, fmt.Errorf("scanning membership row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- PMS configuration --------------------------------------------------------

// SavePMSConfig inserts or replaces the tenant's PMS configuration.
func (s *Store) SavePMSConfig(ctx context.Context, c *store.PMSConfig) error {
	creds, err := json.Marshal(nonNilMap(c.Credentials))
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	c.UpdatedAt = s.now().UTC()

	const q = `
		INSERT INTO pms_configurations (tenant_id, pms_type, endpoint, credentials, is_active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO UPDATE SET
		    pms_type    = excluded.pms_type,
		    endpoint    = excluded.endpoint,
		    credentials = excluded.credentials,
		    is_active   = excluded.is_active,
		    updated_at  = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, q,
		c.TenantID, c.PMSType, c.Endpoint, string(creds), c.IsActive, formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving PMS config for tenant %s: %w", c.TenantID, err)
	}
	return nil
}

// GetPMSConfig returns the tenant's PMS configuration or [store.ErrNotFound].
func (s *Store) GetPMSConfig(ctx context.Context, tenantID string) (*store.PMSConfig, error) {
	const q = `
		SELECT tenant_id, pms_type, endpoint, credentials, is_active, updated_at
		FROM pms_configurations WHERE tenant_id = ?`
	var (
		c              store.PMSConfig
		creds, updated string
	)
	err := s.db.QueryRowContext(ctx, q, tenantID).Scan(
		&c.TenantID, &c.PMSType, &c.Endpoint, &creds, &c.IsActive, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("PMS config for tenant %s: %w", tenantID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying PMS config for tenant %s: %w", tenantID, err)
	}
	if err := json.Unmarshal([]byte(creds), &c.Credentials); err != nil {
		return nil, fmt.Errorf("decoding credentials for tenant %s: %w", tenantID, err)
	}
	c.UpdatedAt, _ = parseTime(updated)
	return &c, nil
}

// ActivePMSTenants returns the ids of tenants with an active PMS config.
func (s *Store) ActivePMSTenants(ctx context.Context) ([]string, error) {
	const q = `SELECT tenant_id FROM pms_configurations WHERE is_active = 1 ORDER BY tenant_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying active PMS tenants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- guests and reservations --------------------------------------------------

// UpsertGuest inserts or updates the guest keyed on (tenant_id,
// external_guest_id) and returns the persisted row id. g.ID is set as well.
func (s *Store) UpsertGuest(ctx context.Context, g *model.Guest) (string, error) {
	now := formatTime(s.now())
	const q = `
		INSERT INTO guests
		    (id, tenant_id, external_guest_id, name, email, phone, country, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, external_guest_id) DO UPDATE SET
		    name       = excluded.name,
		    email      = excluded.email,
		    phone      = excluded.phone,
		    country    = excluded.country,
		    updated_at = excluded.updated_at
		RETURNING id`

	var id string
	err := s.db.QueryRowContext(ctx, q,
		store.NewID(), g.TenantID, g.ExternalGuestID, g.Name,
		nullString(g.Email), nullString(g.Phone), nullString(g.Country),
		now, now,
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
	now := formatTime(s.now())
	const q = `
		INSERT INTO reservations
		    (id, tenant_id, guest_id, external_reservation_id, room_number,
		     check_in_date, check_out_date, status, amount, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, external_reservation_id) DO UPDATE SET
		    guest_id       = excluded.guest_id,
		    room_number    = excluded.room_number,
		    check_in_date  = excluded.check_in_date,
		    check_out_date = excluded.check_out_date,
		    status         = excluded.status,
		    amount         = excluded.amount,
		    source         = excluded.source,
		    updated_at     = excluded.updated_at
		RETURNING id`

	var id string
	err := s.db.QueryRowContext(ctx, q,
		store.NewID(), r.TenantID, r.GuestID, r.ExternalReservationID, nullString(r.RoomNumber),
		r.CheckInDate, r.CheckOutDate, string(r.Status), nullFloat(r.Amount), nullString(r.Source),
		now, now,
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
		       r.check_in_date, r.check_out_date, r.status, r.amount, r.source,
		       r.created_at, r.updated_at, g.name, g.email, g.phone
		FROM reservations r
		JOIN guests g ON g.id = r.guest_id AND g.tenant_id = r.tenant_id
		WHERE r.tenant_id = ?`
	args := []any{tenantID}
	if status, ok := f.StatusFilter(); ok {
		q += ` AND r.status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY r.check_in_date DESC, r.external_reservation_id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reservations for tenant %s: %w", tenantID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.ReservationView
	for rows.Next() {
		v, err := scanReservationView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// ListGuests returns the tenant's most recently created guests. A limit of
// zero or less uses [store.DefaultGuestLimit].
func (s *Store) ListGuests(ctx context.Context, tenantID string, limit int) ([]model.Guest, error) {
	if limit <= 0 {
		limit = store.DefaultGuestLimit
	}
	const q = `
		SELECT id, tenant_id, external_guest_id, name, email, phone, country, created_at, updated_at
		FROM guests WHERE tenant_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying guests for tenant %s: %w", tenantID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Guest
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// Counts returns how many guest and reservation rows the tenant owns.
func (s *Store) Counts(ctx context.Context, tenantID string) (guests, reservations int, err error) {
	const q = `
		SELECT (SELECT COUNT(*) FROM guests WHERE tenant_id = ?),
		       (SELECT COUNT(*) FROM reservations WHERE tenant_id = ?)`
	if err := s.db.QueryRowContext(ctx, q, tenantID, tenantID).Scan(&guests, &reservations); err != nil {
		return 0, 0, fmt.Errorf("counting rows for tenant %s: %w", tenantID, err)
	}
	return guests, reservations, nil
}

// --- helpers -----------------------------------------------------------------

// scanner matches both *sql.Row and *sql.Rows so scan helpers can be reused.
type scanner interface {
	Scan(dest ...any) error
}

func scanGuest(s scanner) (*model.Guest, error) {
	var (
		g                     model.Guest
		email, phone, country sql.NullString
		created, updated      string
	)
	err := s.Scan(&g.ID, &g.TenantID, &g.ExternalGuestID, &g.Name,
		&email, &phone, &country, &created, &updated)
	if err != nil {
		return nil, fmt.Errorf("scanning guest row: %w", err)
	}
	g.Email, g.Phone, g.Country = email.String, phone.String, country.String
	g.CreatedAt, _ = parseTime(created)
	g.UpdatedAt, _ = parseTime(updated)
	return &g, nil
}

func scanReservationView(s scanner) (*model.ReservationView, error) {
	var (
		v                        model.ReservationView
		room, source             sql.NullString
		amount                   sql.NullFloat64
		status, created, updated string
		guestEmail, guestPhone   sql.NullString
	)
	err := s.Scan(&v.ID, &v.TenantID, &v.GuestID, &v.ExternalReservationID, &room,
		&v.CheckInDate, &v.CheckOutDate, &status, &amount, &source,
		&created, &updated, &v.GuestName, &guestEmail, &guestPhone)
	if err != nil {
		return nil, fmt.Errorf("scanning reservation row: %w", err)
	}
	v.RoomNumber, v.Source = room.String, source.String
	v.Status = model.Status(status)
	if amount.Valid {
		v.Amount = model.Float(amount.Float64)
	}
	v.GuestEmail, v.GuestPhone = guestEmail.String, guestPhone.String
	v.CreatedAt, _ = parseTime(created)
	v.UpdatedAt, _ = parseTime(updated)
	return &v, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// timeLayout is fixed-width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
