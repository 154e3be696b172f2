package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
)

const (
	// DefaultSchedule is the cron spec used when none is configured.
	DefaultSchedule = "@every 30m"

	// DefaultMaxParallelTenants bounds concurrent tenant syncs.
	DefaultMaxParallelTenants = 4
)

// TenantLister lists the tenants the Engine syncs.
type TenantLister interface {
	ActivePMSTenants(ctx context.Context) ([]string, error)
}

// PassStats summarizes one Engine pass over all active tenants.
type PassStats struct {
	Tenants   int
	Succeeded int
	Failed    int
	Synced    int
}

// Engine runs a scheduled sync for every tenant with an active PMS
// configuration. Create one with [NewEngine] and start it with [Engine.Run].
type Engine struct {
	trigger     *Trigger
	tenants     TenantLister
	schedule    cron.Schedule
	spec        string
	maxParallel int
	log         *slog.Logger
	inst        instruments
}

// NewEngine creates an Engine. An empty spec uses [DefaultSchedule]; spec
// accepts standard five-field cron expressions and descriptors such as
// "@hourly" or "@every 15m".
func NewEngine(trigger *Trigger, tenants TenantLister, spec string, maxParallel int, logger *slog.Logger) (*Engine, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", spec, err)
	}
	if maxParallel < 1 {
		maxParallel = DefaultMaxParallelTenants
	}
	return &Engine{
		trigger:     trigger,
		tenants:     tenants,
		schedule:    sched,
		spec:        spec,
		maxParallel: maxParallel,
		log:         logger,
		inst:        newInstruments(logger),
	}, nil
}

// RunOnce syncs every active tenant once, at most maxParallel at a time.
// Per-tenant failures are logged and counted; only failing to list tenants
// is returned.
func (e *Engine) RunOnce(ctx context.Context) (PassStats, error) {
	ctx, span := e.inst.tracer.Start(ctx, spanPass)
	defer span.End()

	ids, err := e.tenants.ActivePMSTenants(ctx)
	if err != nil {
		span.RecordError(err)
		return PassStats{}, fmt.Errorf("listing active tenants: %w", err)
	}

	var (
		mu    gosync.Mutex
		stats = PassStats{Tenants: len(ids)}
		g     errgroup.Group
	)
	g.SetLimit(e.maxParallel)
	for _, id := range ids {
		g.Go(func() error {
			res, err := e.trigger.SyncTenant(ctx, id, model.OriginSchedule)

			mu.Lock()
			defer mu.Unlock()
			if err != nil || !res.Success {
				stats.Failed++
				return nil
			}
			stats.Succeeded++
			stats.Synced += res.Count
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(
		attribute.Int("sync.tenants", stats.Tenants),
		attribute.Int("sync.tenants_failed", stats.Failed),
		attribute.Int("sync.synced", stats.Synced),
	)
	e.log.Info("sync pass complete",
		"tenants", stats.Tenants,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"synced", stats.Synced,
	)
	return stats, nil
}

// Run performs an immediate pass, then one per schedule tick, skipping a
// tick while the previous pass is still running. It blocks until ctx is
// cancelled and waits for an in-flight pass to finish.
func (e *Engine) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{e.log})))
	c.Schedule(e.schedule, cron.FuncJob(func() {
		if _, err := e.RunOnce(ctx); err != nil {
			e.log.Error("scheduled sync pass failed", "error", err)
		}
	}))

	if _, err := e.RunOnce(ctx); err != nil {
		e.log.Error("initial sync pass failed", "error", err)
	}

	c.Start()
	e.log.Info("sync engine started", "schedule", e.spec, "max_parallel_tenants", e.maxParallel)

	<-ctx.Done()
	e.log.Info("sync engine shutting down")
	<-c.Stop().Done()
	return ctx.Err()
}

// cronLogger adapts slog to cron's logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
