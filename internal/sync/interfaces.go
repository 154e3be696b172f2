// Package sync implements the PMS synchronization engine. It pulls
// reservations and guests from a tenant's PMS through an adapter and upserts
// them into tenant-scoped storage.
//
// The package contains three components:
//
//   - [Service] reconciles one adapter's output into storage.
//   - [Trigger] is the owner-gated entry point that loads a tenant's PMS
//     configuration, resolves its adapter and runs the Service.
//   - [Engine] runs the Trigger's tenant sync on a cron schedule for every
//     tenant with an active configuration.
package sync

import (
	"context"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
	"github.com/mhdraihanr/loyalinn-pms/internal/pms"
	"github.com/mhdraihanr/loyalinn-pms/internal/store"
)

// Writer persists guests and reservations with upsert semantics keyed on
// (tenant_id, external id). Implemented by [sqlite.Store] and
// [postgres.Store].
type Writer interface {
	UpsertGuest(ctx context.Context, g *model.Guest) (string, error)
	UpsertReservation(ctx context.Context, r *model.Reservation) (string, error)
}

// Store is everything the Trigger and Engine read or write.
type Store interface {
	Writer
	TenantsForUser(ctx context.Context, userID string) ([]store.Member, error)
	GetPMSConfig(ctx context.Context, tenantID string) (*store.PMSConfig, error)
	ActivePMSTenants(ctx context.Context) ([]string, error)
}

// Resolver maps a provider id to a fresh adapter.
// Implemented by [registry.Registry].
type Resolver interface {
	Resolve(providerID string) pms.Adapter
}

// ResultRecorder keeps the latest run per tenant.
// Implemented by [redisx.LastResultStore].
type ResultRecorder interface {
	Record(ctx context.Context, run model.SyncRun) error
}

// Publisher announces finished runs to downstream consumers.
// Implemented by [events.Producer].
type Publisher interface {
	PublishSynced(ctx context.Context, run model.SyncRun) error
}
