package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log/global"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type spanRecorder struct {
	mu        sync.Mutex
	names     []string
	resources []*resource.Resource
}

func (s *spanRecorder) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sp := range spans {
		s.names = append(s.names, sp.Name())
		s.resources = append(s.resources, sp.Resource())
	}
	return nil
}

func (s *spanRecorder) Shutdown(context.Context) error { return nil }

type metricRecorder struct {
	mu        sync.Mutex
	names     []string
	resources []*resource.Resource
}

func (m *metricRecorder) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (m *metricRecorder) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (m *metricRecorder) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = append(m.resources, rm.Resource)
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			m.names = append(m.names, md.Name)
		}
	}
	return nil
}

func (m *metricRecorder) ForceFlush(context.Context) error { return nil }
func (m *metricRecorder) Shutdown(context.Context) error   { return nil }

// restoreGlobals puts the OTel globals back after a test installs its own.
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp, mp, lp := otel.GetTracerProvider(), otel.GetMeterProvider(), global.GetLoggerProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		global.SetLoggerProvider(lp)
	})
}

func attr(res *resource.Resource, key attribute.Key) string {
	if res == nil {
		return ""
	}
	v, _ := res.Set().Value(key)
	return v.Emit()
}

func TestNewResource_Attributes(t *testing.T) {
	res, err := newResource(Config{
		ServiceVersion: "1.4.0",
		Environment:    "staging",
		Producer:       "loyalinn-eu",
	})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	want := map[attribute.Key]string{
		semconv.ServiceNameKey:           DefaultServiceName,
		semconv.ServiceVersionKey:        "1.4.0",
		semconv.DeploymentEnvironmentKey: "staging",
		AttrProducer:                     "loyalinn-eu",
	}
	for k, v := range want {
		if got := attr(res, k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestNewResource_OmitsEmptyIdentity(t *testing.T) {
	res, err := newResource(Config{ServiceName: "loyalinn-worker"})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	if got := attr(res, semconv.ServiceNameKey); got != "loyalinn-worker" {
		t.Errorf("service.name = %q, want loyalinn-worker", got)
	}
	for _, k := range []attribute.Key{semconv.DeploymentEnvironmentKey, AttrProducer} {
		if _, ok := res.Set().Value(k); ok {
			t.Errorf("%s set without configuration", k)
		}
	}
}

func TestStart_SignalsShareResource(t *testing.T) {
	restoreGlobals(t)
	spans, metrics, logs := &spanRecorder{}, &metricRecorder{}, &fakeExporter{}
	closed := false
	exp := exporters{spans: spans, metrics: metrics, logs: logs, close: func() error { closed = true; return nil }}

	var buf bytes.Buffer
	console := slog.NewTextHandler(&buf, nil)
	h, shutdown, err := start(Config{Environment: "production", Producer: "loyalinn"}, exp, console)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx := context.Background()
	_, span := otel.Tracer("test").Start(ctx, "sync.tenant")
	span.End()
	counter, err := otel.Meter("test").Int64Counter("loyalinn.sync.runs")
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	counter.Add(ctx, 1)
	slog.New(h).Info("sync complete", "tenant_id", "t-1")

	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !closed {
		t.Error("shared connection not closed on shutdown")
	}

	if !strings.Contains(buf.String(), "sync complete") {
		t.Errorf("console output = %q, want the record", buf.String())
	}
	if len(spans.names) != 1 || spans.names[0] != "sync.tenant" {
		t.Fatalf("spans = %v, want [sync.tenant]", spans.names)
	}
	if got := attr(spans.resources[0], semconv.DeploymentEnvironmentKey); got != "production" {
		t.Errorf("span deployment.environment = %q, want production", got)
	}
	if !contains(metrics.names, "loyalinn.sync.runs") {
		t.Fatalf("metrics = %v, want loyalinn.sync.runs", metrics.names)
	}
	if got := attr(metrics.resources[len(metrics.resources)-1], AttrProducer); got != "loyalinn" {
		t.Errorf("metric %s = %q, want loyalinn", AttrProducer, got)
	}
	records := logs.all()
	if len(records) != 1 {
		t.Fatalf("exported %d log records, want 1", len(records))
	}
	if got := attr(records[0].resource, semconv.DeploymentEnvironmentKey); got != "production" {
		t.Errorf("log deployment.environment = %q, want production", got)
	}
}

func TestSetup_RequiresEndpoint(t *testing.T) {
	console := slog.NewTextHandler(&bytes.Buffer{}, nil)
	h, shutdown, err := Setup(context.Background(), Config{}, console)
	if err == nil {
		t.Fatal("expected error for empty endpoint, got nil")
	}
	if h != console {
		t.Error("handler should be the console handler when setup fails")
	}
	if shutdown == nil {
		t.Fatal("shutdown func is nil, want a no-op")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("noop shutdown returned %v", err)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
