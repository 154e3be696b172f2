package sync

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
	"github.com/mhdraihanr/loyalinn-pms/internal/pms"
)

const msgNoReservations = "No reservations found"

// Result is the outcome of one SyncReservations call. Count covers only
// reservations confirmed written.
type Result struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	// Skipped reservations had no resolvable guest.
	Skipped int `json:"skipped"`
	// Failed reservations hit a storage error on the guest or the
	// reservation upsert.
	Failed int `json:"failed"`
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// Service reconciles one adapter's reservations into tenant-scoped storage.
// It is stateless between calls; all persistent state lives in the [Writer].
type Service struct {
	store Writer
	log   *slog.Logger
	inst  instruments
}

// NewService creates a Service writing through store.
func NewService(store Writer, logger *slog.Logger) *Service {
	return &Service{store: store, log: logger, inst: newInstruments(logger)}
}

// SyncReservations pulls reservations overlapping [startDate, endDate] and,
// for each, resolves and upserts its guest before upserting the reservation.
// A reservation without a resolvable guest is skipped and a storage failure
// only loses its own row. It never panics or returns an error: every failure
// is reported through the Result.
func (s *Service) SyncReservations(ctx context.Context, tenantID string, adapter pms.Adapter, startDate, endDate string) (res Result) {
	ctx, span := s.inst.tracer.Start(ctx, spanReservations)
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("sync.window_start", startDate),
		attribute.String("sync.window_end", endDate),
	)

	log := s.log.With("tenant_id", tenantID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("sync panicked", "panic", r)
			res = Result{Success: false, Error: fmt.Sprintf("sync panicked: %v", r), Count: res.Count}
		}
		s.record(ctx, res)
		span.SetAttributes(
			attribute.Int("sync.synced", res.Count),
			attribute.Int("sync.skipped", res.Skipped),
			attribute.Int("sync.failed", res.Failed),
		)
		if !res.Success {
			span.SetStatus(codes.Error, res.Error)
		}
	}()

	reservations, err := adapter.PullReservations(ctx, startDate, endDate)
	if err != nil {
		log.Error("pulling reservations failed", "error", err)
		span.RecordError(err)
		return failure(fmt.Errorf("pull reservations: %w", err))
	}
	if len(reservations) == 0 {
		log.Info("no reservations in window", "start", startDate, "end", endDate)
		return Result{Success: true, Message: msgNoReservations}
	}

	for _, r := range reservations {
		if err := ctx.Err(); err != nil {
			log.Warn("sync interrupted", "synced", res.Count, "error", err)
			res.Success = false
			res.Error = fmt.Sprintf("sync interrupted after %d reservations: %v", res.Count, err)
			return res
		}

		switch s.syncOne(ctx, log, tenantID, adapter, r) {
		case outcomeWritten:
			res.Count++
		case outcomeSkipped:
			res.Skipped++
		case outcomeFailed:
			res.Failed++
		}
	}

	log.Info("sync complete",
		"synced", res.Count,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	res.Success = true
	res.Message = fmt.Sprintf("Successfully synced %d reservations.", res.Count)
	return res
}

type outcome int

const (
	outcomeWritten outcome = iota
	outcomeSkipped
	outcomeFailed
)

// syncOne writes a single reservation, guest first.
func (s *Service) syncOne(ctx context.Context, log *slog.Logger, tenantID string, adapter pms.Adapter, r model.AdapterReservation) outcome {
	log = log.With("reservation_id", r.ExternalReservationID, "guest_id", r.ExternalGuestID)

	g, err := adapter.PullGuest(ctx, r.ExternalGuestID)
	if err != nil {
		log.Warn("pulling guest failed, skipping reservation", "error", err)
		return outcomeSkipped
	}
	if g == nil {
		log.Info("guest not found, skipping reservation")
		return outcomeSkipped
	}
	if g.ExternalGuestID == "" {
		g.ExternalGuestID = r.ExternalGuestID
	}

	guestID, err := s.store.UpsertGuest(ctx, model.NewGuest(tenantID, g))
	if err != nil {
		log.Error("upserting guest failed, skipping reservation", "error", err)
		return outcomeFailed
	}

	status := adapter.MapStatus(r.ExternalStatus)
	if _, err := s.store.UpsertReservation(ctx, model.NewReservation(tenantID, guestID, r, status)); err != nil {
		log.Error("upserting reservation failed", "error", err)
		return outcomeFailed
	}

	log.Debug("reservation synced", "status", status)
	return outcomeWritten
}

// record adds the run's tallies to the OTel counters.
func (s *Service) record(ctx context.Context, res Result) {
	if res.Count > 0 {
		s.inst.cntSynced.Add(ctx, int64(res.Count))
	}
	if res.Skipped > 0 {
		s.inst.cntSkipped.Add(ctx, int64(res.Skipped))
	}
	if res.Failed > 0 {
		s.inst.cntFailed.Add(ctx, int64(res.Failed))
	}
	s.inst.cntRuns.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", res.Success)))
}
