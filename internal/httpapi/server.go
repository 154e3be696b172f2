// Package httpapi exposes the sync trigger, sync status, tenant listings and
// PMS settings over HTTP. Every route except /healthz requires a bearer
// token; tenant scoping and role checks happen per handler.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
	"github.com/mhdraihanr/loyalinn-pms/internal/store"
	pmssync "github.com/mhdraihanr/loyalinn-pms/internal/sync"
)

const (
	// RequestTimeout bounds every request except POST /api/sync.
	RequestTimeout = 60 * time.Second

	// SyncTimeout bounds a manual sync. The sync runs detached from the
	// request, so a client disconnect does not abort it halfway.
	SyncTimeout = 10 * time.Minute
)

// Syncer runs the owner-gated manual sync. Implemented by [pmssync.Trigger].
type Syncer interface {
	Run(ctx context.Context, userID string) pmssync.TriggerResult
}

// Store is the tenant data the API reads and the settings it writes.
type Store interface {
	TenantsForUser(ctx context.Context, userID string) ([]store.Member, error)
	ListReservations(ctx context.Context, tenantID string, f store.ReservationFilter) ([]model.ReservationView, error)
	ListGuests(ctx context.Context, tenantID string, limit int) ([]model.Guest, error)
	SavePMSConfig(ctx context.Context, c *store.PMSConfig) error
}

// StatusReader returns a tenant's latest sync run.
// Implemented by [redisx.LastResultStore].
type StatusReader interface {
	Last(ctx context.Context, tenantID string) (*model.SyncRun, error)
}

// TokenVerifier maps a bearer token to a user id.
// Implemented by [auth.Verifier].
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Option configures the API.
type Option func(*api)

// WithSyncTimeout overrides [SyncTimeout].
func WithSyncTimeout(d time.Duration) Option {
	return func(a *api) { a.syncTimeout = d }
}

// WithStatus enables GET /api/sync/status. Without it the route answers 404.
func WithStatus(r StatusReader) Option {
	return func(a *api) { a.status = r }
}

type api struct {
	syncer   Syncer
	store    Store
	status   StatusReader
	verifier TokenVerifier
	validate *validator.Validate
	log      *slog.Logger

	syncTimeout time.Duration
}

// NewRouter builds the HTTP handler.
func NewRouter(syncer Syncer, st Store, verifier TokenVerifier, logger *slog.Logger, opts ...Option) http.Handler {
	a := &api{
		syncer:   syncer,
		store:    st,
		verifier: verifier,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      logger,

		syncTimeout: SyncTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(logger), middleware.Recoverer)

	r.With(middleware.Timeout(RequestTimeout)).Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(a.authenticate)
		r.Post("/sync", a.triggerSync)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(RequestTimeout))
			r.Get("/sync/status", a.syncStatus)
			r.Get("/reservations", a.listReservations)
			r.Get("/guests", a.listGuests)
			r.Put("/settings/pms", a.savePMSSettings)
		})
	})
	return r
}

// requestLogger logs one line per request at Info, or Warn for 5xx.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
