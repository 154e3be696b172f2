package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mhdraihanr/loyalinn-pms/internal/auth"
	"github.com/mhdraihanr/loyalinn-pms/internal/httpapi"
)

const shutdownTimeout = 15 * time.Second

var noScheduler bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled sync",
	Long: `Starts the HTTP API (manual sync trigger, reservation and guest reads,
PMS settings) and, unless --no-scheduler is set, the scheduled sync of every
tenant with an active PMS configuration.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the scheduled sync without the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runDaemon,
}

func init() {
	serveCmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without the scheduled sync")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	verifier, err := auth.NewVerifier(a.cfg.Auth.JWTSecret, a.cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("configuring token verification: %w", err)
	}
	trigger, results, err := a.trigger(ctx)
	if err != nil {
		return err
	}

	var opts []httpapi.Option
	if results != nil {
		opts = append(opts, httpapi.WithStatus(results))
	}
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(trigger, a.store, verifier, a.logger, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http api listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if !noScheduler {
		engine, err := a.engine(trigger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := engine.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("sync engine: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("shutdown complete")
	return nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	trigger, _, err := a.trigger(ctx)
	if err != nil {
		return err
	}
	engine, err := a.engine(trigger)
	if err != nil {
		return err
	}

	a.logger.Info("daemon starting", "schedule", a.cfg.Sync.Schedule)
	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sync engine: %w", err)
	}
	a.logger.Info("shutdown complete")
	return nil
}
