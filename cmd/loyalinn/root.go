package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhdraihanr/loyalinn-pms/internal/config"
	"github.com/mhdraihanr/loyalinn-pms/internal/events"
	"github.com/mhdraihanr/loyalinn-pms/internal/httpapi"
	"github.com/mhdraihanr/loyalinn-pms/internal/pms/qloapps"
	"github.com/mhdraihanr/loyalinn-pms/internal/redisx"
	"github.com/mhdraihanr/loyalinn-pms/internal/registry"
	"github.com/mhdraihanr/loyalinn-pms/internal/store"
	"github.com/mhdraihanr/loyalinn-pms/internal/store/postgres"
	"github.com/mhdraihanr/loyalinn-pms/internal/store/sqlite"
	pmssync "github.com/mhdraihanr/loyalinn-pms/internal/sync"
	"github.com/mhdraihanr/loyalinn-pms/internal/telemetry"
)

var (
	cfgPath   string
	verbose   bool
	logFormat string
	dotEnv    string
)

var rootCmd = &cobra.Command{
	Use:   "loyalinn",
	Short: "Multi-tenant hotel PMS sync engine",
	Long: `Loyalinn pulls reservations and guests from each tenant's property
management system and upserts them into tenant-scoped storage.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config.yaml (default ~/.config/loyalinn/config.yaml if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dotEnv, "env-file", ".env", "dotenv file loaded before the config")
}

// backend is what every command needs from the storage layer. Implemented by
// [sqlite.Store] and [postgres.Store].
type backend interface {
	pmssync.Store
	httpapi.Store
	CreateTenant(ctx context.Context, name string) (*store.Tenant, error)
	AddMember(ctx context.Context, m store.Member) error
	Counts(ctx context.Context, tenantID string) (guests, reservations int, err error)
	Close() error
}

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  backend

	closers []func()
}

// loadConfig resolves configuration from the dotenv file, then --config, the
// default path, or the environment alone.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(dotEnv); err != nil {
		return nil, err
	}
	path := cfgPath
	if path == "" {
		def, err := config.DefaultPath()
		if err == nil {
			if _, statErr := os.Stat(def); statErr == nil {
				path = def
			} else if !errors.Is(statErr, fs.ErrNotExist) {
				return nil, fmt.Errorf("checking %q: %w", def, statErr)
			}
		}
	}
	if path == "" {
		return config.FromEnv()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w", path, err)
	}
	return cfg, nil
}

// newConsoleHandler builds the stderr handler from the log config and the
// --verbose and --log-format flags.
func newConsoleHandler(cfg config.LogConfig, w io.Writer) (slog.Handler, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	format := cfg.Format
	if logFormat != "" {
		format = logFormat
	}

	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	case "text", "":
		return slog.NewTextHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// telemetryConfig resolves the OTel identity of this process. The producer
// name matches the one stamped on sync events.
func telemetryConfig(cfg *config.Config) telemetry.Config {
	producer := events.DefaultProducer
	if cfg.Kafka != nil {
		producer = cfg.Kafka.Producer
	}
	return telemetry.Config{
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Headers:        cfg.Telemetry.Headers,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		Producer:       producer,
	}
}

// newApp loads config, starts telemetry, opens the store and returns the
// wired app. Call app.Close when done.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	console, err := newConsoleHandler(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}

	// --- Telemetry (optional) ------------------------------------------------

	handler := console
	var telErr error
	if cfg.Telemetry != nil {
		var shutdownTel telemetry.ShutdownFunc
		handler, shutdownTel, telErr = telemetry.Setup(ctx, telemetryConfig(cfg), console)
		a.closers = append(a.closers, func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTel(flushCtx); err != nil {
				slog.New(console).Error("telemetry shutdown error", "error", err)
			}
		})
	}
	a.logger = slog.New(handler)
	switch {
	case telErr != nil:
		a.logger.Error("telemetry setup failed, continuing without telemetry", "error", telErr)
	case cfg.Telemetry != nil:
		a.logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint, "environment", cfg.Telemetry.Environment)
	}
	slog.SetDefault(a.logger)

	// --- Store ---------------------------------------------------------------

	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, func() {
		if err := st.Close(); err != nil {
			a.logger.Error("closing store", "error", err)
		}
	})
	a.logger.Debug("store opened", "driver", cfg.Database.Driver)

	return a, nil
}

func openStore(ctx context.Context, db config.DatabaseConfig) (backend, error) {
	switch db.Driver {
	case config.DriverPostgres:
		st, err := postgres.Connect(ctx, db.DSN)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		return st, nil
	default:
		path := db.DSN
		if path == "" {
			def, err := sqlite.DefaultDBPath()
			if err != nil {
				return nil, err
			}
			path = def
		}
		st, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store at %q: %w", path, err)
		}
		return st, nil
	}
}

// Close runs the registered cleanups in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// registry builds the adapter registry with the configured QloApps client
// limits.
func (a *app) registry() *registry.Registry {
	q := a.cfg.QloApps
	return registry.New(a.logger, registry.WithQloAppsOptions(
		qloapps.WithTimeout(q.Timeout),
		qloapps.WithMaxAttempts(q.MaxAttempts),
		qloapps.WithRateLimit(q.RatePerSecond),
	))
}

// lastResults connects the Redis result cache, or returns nil when Redis is
// not configured.
func (a *app) lastResults(ctx context.Context) (*redisx.LastResultStore, error) {
	rc := a.cfg.Redis
	if rc == nil {
		return nil, nil
	}
	rdb, err := redisx.New(ctx, rc.Addr, rc.Password, rc.DB)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", rc, err)
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	a.logger.Info("sync result cache enabled", "redis", rc.String())
	return redisx.NewLastResultStore(rdb, rc.TTL), nil
}

// producer starts the Kafka publisher, or returns nil when Kafka is not
// configured. The producer drains when ctx ends or the app closes.
func (a *app) producer(ctx context.Context) *events.Producer {
	kc := a.cfg.Kafka
	if kc == nil {
		return nil
	}
	p := events.NewProducer(kc.Brokers, kc.Topic, kc.Producer, events.DefaultBuffer, a.logger)
	p.Start(ctx)
	a.closers = append(a.closers, p.Close)
	a.logger.Info("sync events enabled", "topic", kc.Topic, "brokers", len(kc.Brokers))
	return p
}

// trigger wires the sync Service and Trigger with the optional result cache
// and event publisher. The returned cache is nil when Redis is disabled.
func (a *app) trigger(ctx context.Context) (*pmssync.Trigger, *redisx.LastResultStore, error) {
	opts := []pmssync.TriggerOption{pmssync.WithWindowDays(a.cfg.Sync.WindowDays)}

	results, err := a.lastResults(ctx)
	if err != nil {
		return nil, nil, err
	}
	if results != nil {
		opts = append(opts, pmssync.WithRecorder(results))
	}
	if p := a.producer(ctx); p != nil {
		opts = append(opts, pmssync.WithPublisher(p))
	}

	svc := pmssync.NewService(a.store, a.logger)
	return pmssync.NewTrigger(a.store, a.registry(), svc, a.logger, opts...), results, nil
}

// engine wraps t in the scheduled multi-tenant runner.
func (a *app) engine(t *pmssync.Trigger) (*pmssync.Engine, error) {
	return pmssync.NewEngine(t, a.store, a.cfg.Sync.Schedule, a.cfg.Sync.MaxParallelTenants, a.logger)
}
