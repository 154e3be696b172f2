// Package telemetry exports the sync engine's spans, counters and logs to an
// OTLP gRPC collector.
//
// [Setup] starts the three pipelines on one shared connection and returns a
// slog.Handler that mirrors every console record into the log pipeline, so
// the process logger is built once from its result. Every signal carries the
// same resource: service name and version, deployment environment and the
// producer name used in sync events.
//
// Without telemetry the global providers stay no-ops.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// DefaultServiceName is the service.name reported when none is configured.
const DefaultServiceName = "loyalinn"

// AttrProducer is the resource attribute naming the event producer, matching
// the producer field of ReservationsSynced envelopes.
const AttrProducer = attribute.Key("loyalinn.producer")

// Config is the resolved telemetry block plus process identity.
type Config struct {
	// OTLPEndpoint is the collector's gRPC host:port, e.g. "localhost:4317".
	OTLPEndpoint string

	// Insecure disables TLS for local collectors.
	Insecure bool

	// Headers are sent as gRPC metadata on every export, typically
	// {"Authorization": "Bearer <token>"}.
	Headers map[string]string

	// ServiceName defaults to [DefaultServiceName].
	ServiceName string

	// ServiceVersion is the build version, omitted when empty.
	ServiceVersion string

	// Environment is reported as deployment.environment ("production",
	// "staging"), omitted when empty.
	Environment string

	// Producer is reported as [AttrProducer], omitted when empty.
	Producer string
}

// ShutdownFunc flushes and closes the pipelines. Call it with a fresh
// context; the main one is usually cancelled by then.
type ShutdownFunc func(context.Context) error

// exporters are the three signal sinks and the cleanup of whatever they
// share.
type exporters struct {
	spans   sdktrace.SpanExporter
	metrics sdkmetric.Exporter
	logs    sdklog.Exporter
	close   func() error
}

// Setup dials the collector, installs the global trace, metric and log
// providers, and returns console wrapped so that records also reach the log
// pipeline. On error it returns console unchanged and a no-op ShutdownFunc,
// so callers can always build their logger from the result and defer the
// shutdown.
func Setup(ctx context.Context, cfg Config, console slog.Handler) (slog.Handler, ShutdownFunc, error) {
	if cfg.OTLPEndpoint == "" {
		return console, noopShutdown, errors.New("telemetry: OTLP endpoint is required")
	}
	exp, err := dial(ctx, cfg)
	if err != nil {
		return console, noopShutdown, err
	}
	h, shutdown, err := start(cfg, exp, console)
	if err != nil {
		_ = exp.close()
		return console, noopShutdown, err
	}
	return h, shutdown, nil
}

// newResource describes this process. NewSchemaless avoids a schema URL
// clash between resource.Default and the semconv version imported here.
func newResource(cfg Config) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	if cfg.Producer != "" {
		attrs = append(attrs, AttrProducer.String(cfg.Producer))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("building OTel resource: %w", err)
	}
	return res, nil
}

// dial opens one gRPC connection to the collector and builds the three OTLP
// exporters on it.
func dial(ctx context.Context, cfg Config) (exporters, error) {
	creds := credentials.NewTLS(nil)
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	}
	conn, err := grpc.NewClient(cfg.OTLPEndpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return exporters{}, fmt.Errorf("dialling OTLP collector at %q: %w", cfg.OTLPEndpoint, err)
	}

	spans, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn), otlptracegrpc.WithHeaders(cfg.Headers))
	if err != nil {
		_ = conn.Close()
		return exporters{}, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}
	metrics, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn), otlpmetricgrpc.WithHeaders(cfg.Headers))
	if err != nil {
		_ = spans.Shutdown(ctx)
		_ = conn.Close()
		return exporters{}, fmt.Errorf("creating OTLP metric exporter: %w", err)
	}
	logs, err := otlploggrpc.New(ctx, otlploggrpc.WithGRPCConn(conn), otlploggrpc.WithHeaders(cfg.Headers))
	if err != nil {
		_ = spans.Shutdown(ctx)
		_ = metrics.Shutdown(ctx)
		_ = conn.Close()
		return exporters{}, fmt.Errorf("creating OTLP log exporter: %w", err)
	}
	return exporters{spans: spans, metrics: metrics, logs: logs, close: conn.Close}, nil
}

// start installs providers over exp as the OTel globals and bridges console
// into the log provider.
func start(cfg Config, exp exporters, console slog.Handler) (slog.Handler, ShutdownFunc, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp.spans), sdktrace.WithResource(res))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp.metrics)),
		sdkmetric.WithResource(res),
	)
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp.logs)),
		sdklog.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	global.SetLoggerProvider(lp)

	shutdown := func(ctx context.Context) error {
		var errs []error
		if err := tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
		if err := mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric provider shutdown: %w", err))
		}
		if err := lp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log provider shutdown: %w", err))
		}
		if exp.close != nil {
			if err := exp.close(); err != nil {
				errs = append(errs, fmt.Errorf("closing OTLP connection: %w", err))
			}
		}
		return errors.Join(errs...)
	}
	return NewLogHandler(console, lp), shutdown, nil
}

func noopShutdown(_ context.Context) error { return nil }
