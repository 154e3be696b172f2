package sync

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const (
	otelScope = "loyalinn/sync"

	spanReservations = "sync.reservations"
	spanTenant       = "sync.tenant"
	spanPass         = "sync.pass"

	metricSynced  = "loyalinn.sync.reservations.synced"
	metricSkipped = "loyalinn.sync.reservations.skipped"
	metricFailed  = "loyalinn.sync.reservations.failed"
	metricRuns    = "loyalinn.sync.runs"
)

// instruments holds the OTel tracer and counters. They are always non-nil
// (no-op when telemetry is disabled).
type instruments struct {
	tracer     trace.Tracer
	cntSynced  metric.Int64Counter
	cntSkipped metric.Int64Counter
	cntFailed  metric.Int64Counter
	cntRuns    metric.Int64Counter
}

func newInstruments(logger *slog.Logger) instruments {
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return instruments{
		tracer:     otel.Tracer(otelScope),
		cntSynced:  mustCounter(metricSynced, "Number of reservations written during sync"),
		cntSkipped: mustCounter(metricSkipped, "Number of reservations skipped for lack of a guest"),
		cntFailed:  mustCounter(metricFailed, "Number of reservations lost to storage errors"),
		cntRuns:    mustCounter(metricRuns, "Number of tenant sync runs by outcome"),
	}
}
