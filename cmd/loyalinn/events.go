package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mhdraihanr/loyalinn-pms/internal/events"
	"github.com/mhdraihanr/loyalinn-pms/internal/model"
)

var consumerGroup string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect ReservationsSynced events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow ReservationsSynced events until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runEventsTail,
}

func init() {
	eventsTailCmd.Flags().StringVar(&consumerGroup, "group", "loyalinn-tail", "Kafka consumer group")
	eventsCmd.AddCommand(eventsTailCmd)
	rootCmd.AddCommand(eventsCmd)
}

func runEventsTail(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Kafka == nil {
		return errors.New("kafka is not configured")
	}
	console, err := newConsoleHandler(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	logger := slog.New(console)

	c := events.NewConsumer(cfg.Kafka.Brokers, consumerGroup, cfg.Kafka.Topic, logger)
	cmd.Printf("Following %s (group %s)...\n", cfg.Kafka.Topic, consumerGroup)
	return c.Run(ctx, func(_ context.Context, env events.Envelope, run model.SyncRun) error {
		cmd.Printf("%s %s tenant=%s origin=%s success=%t count=%d\n",
			env.OccurredAt.Format("15:04:05"), env.EventType, run.TenantID, run.Origin, run.Success, run.Count)
		return nil
	})
}
