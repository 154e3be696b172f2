package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mhdraihanr/loyalinn-pms/internal/auth"
	"github.com/mhdraihanr/loyalinn-pms/internal/model"
	"github.com/mhdraihanr/loyalinn-pms/internal/store"
)

// DefaultWindowDays is how far before and after today a sync reaches.
const DefaultWindowDays = 7

const (
	msgNotConfigured = "PMS Sync is not configured or is inactive."
	msgSyncFailed    = "Failed to synchronize reservations."
)

// ErrNotConfigured is returned when a tenant has no PMS configuration or it
// is inactive.
var ErrNotConfigured = errors.New(msgNotConfigured) //nolint:staticcheck // user-facing message

// TriggerResult is the user-facing outcome of a manual sync: either
// {success, message} or {error}.
type TriggerResult struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	// Err is the underlying failure, for callers that map error kinds.
	Err error `json:"-"`
}

// TriggerOption configures a [Trigger].
type TriggerOption func(*Trigger)

// WithRecorder stores every finished run, best-effort.
func WithRecorder(r ResultRecorder) TriggerOption {
	return func(t *Trigger) { t.recorder = r }
}

// WithPublisher announces every finished run, best-effort.
func WithPublisher(p Publisher) TriggerOption {
	return func(t *Trigger) { t.publisher = p }
}

// WithWindowDays sets the half-width of the sync window in days.
func WithWindowDays(days int) TriggerOption {
	return func(t *Trigger) {
		if days > 0 {
			t.windowDays = days
		}
	}
}

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) TriggerOption {
	return func(t *Trigger) { t.now = now }
}

// Trigger loads a tenant's PMS configuration, resolves and initialises its
// adapter, computes the sync window and runs the [Service].
type Trigger struct {
	store     Store
	resolver  Resolver
	service   *Service
	recorder  ResultRecorder
	publisher Publisher

	windowDays int
	now        func() time.Time
	log        *slog.Logger
	inst       instruments
}

// NewTrigger creates a Trigger.
func NewTrigger(store Store, resolver Resolver, service *Service, logger *slog.Logger, opts ...TriggerOption) *Trigger {
	t := &Trigger{
		store:      store,
		resolver:   resolver,
		service:    service,
		windowDays: DefaultWindowDays,
		now:        time.Now,
		log:        logger,
		inst:       newInstruments(logger),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run is the manual, owner-only sync. The caller must own exactly one
// tenant; otherwise it fails before any configuration is read. Every failure
// is reported in the result, never returned.
func (t *Trigger) Run(ctx context.Context, userID string) TriggerResult {
	members, err := t.store.TenantsForUser(ctx, userID)
	if err != nil {
		t.log.Error("resolving caller tenant failed", "user_id", userID, "error", err)
		return TriggerResult{Error: "An unexpected error occurred.", Err: err}
	}
	tenantID, err := auth.OwnedTenant(members)
	if err != nil {
		t.log.Warn("sync trigger refused", "user_id", userID, "error", err)
		return TriggerResult{Error: err.Error(), Err: err}
	}

	res, err := t.SyncTenant(ctx, tenantID, model.OriginUser)
	if err != nil {
		return TriggerResult{Error: err.Error(), Err: err}
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = msgSyncFailed
		}
		return TriggerResult{Error: msg, Err: errors.New(msg)}
	}
	return TriggerResult{Success: true, Message: res.Message}
}

// SyncTenant syncs one tenant without any caller check. It returns an error
// when the run cannot start (missing or inactive configuration, adapter
// initialisation failure); once started, the outcome is in the Result.
func (t *Trigger) SyncTenant(ctx context.Context, tenantID, origin string) (Result, error) {
	ctx, span := t.inst.tracer.Start(ctx, spanTenant)
	defer span.End()
	span.SetAttributes(attribute.String("tenant_id", tenantID), attribute.String("sync.origin", origin))

	run := model.SyncRun{TenantID: tenantID, Origin: origin, StartedAt: t.now().UTC()}
	log := t.log.With("tenant_id", tenantID, "origin", origin)

	res, err := t.syncTenant(ctx, log, &run)
	if err != nil {
		span.RecordError(err)
		run.Error = err.Error()
	} else {
		run.Success, run.Count, run.Skipped, run.Failed = res.Success, res.Count, res.Skipped, res.Failed
		run.Message, run.Error = res.Message, res.Error
	}
	run.FinishedAt = t.now().UTC()
	t.announce(ctx, log, run)
	return res, err
}

func (t *Trigger) syncTenant(ctx context.Context, log *slog.Logger, run *model.SyncRun) (Result, error) {
	cfg, err := t.store.GetPMSConfig(ctx, run.TenantID)
	if errors.Is(err, store.ErrNotFound) {
		log.Info("PMS sync not configured")
		return Result{}, ErrNotConfigured
	}
	if err != nil {
		log.Error("loading PMS config failed", "error", err)
		return Result{}, fmt.Errorf("load PMS config: %w", err)
	}
	if !cfg.IsActive {
		log.Info("PMS sync inactive", "pms_type", cfg.PMSType)
		return Result{}, ErrNotConfigured
	}
	run.PMSType = cfg.PMSType

	adapter := t.resolver.Resolve(cfg.PMSType)
	if err := adapter.Init(cfg.Credentials, cfg.Endpoint); err != nil {
		log.Error("adapter init failed", "pms_type", cfg.PMSType, "error", err)
		return Result{}, fmt.Errorf("initialise %s adapter: %w", cfg.PMSType, err)
	}

	start, end := model.Window(t.now(), t.windowDays)
	run.WindowStart, run.WindowEnd = start, end
	log.Info("starting sync", "pms_type", cfg.PMSType, "start", start, "end", end)

	return t.service.SyncReservations(ctx, run.TenantID, adapter, start, end), nil
}

// announce records and publishes the run. Failures are logged only.
func (t *Trigger) announce(ctx context.Context, log *slog.Logger, run model.SyncRun) {
	if t.recorder != nil {
		if err := t.recorder.Record(ctx, run); err != nil {
			log.Warn("recording sync result failed", "error", err)
		}
	}
	if t.publisher != nil {
		if err := t.publisher.PublishSynced(ctx, run); err != nil {
			log.Warn("publishing sync event failed", "error", err)
		}
	}
}
