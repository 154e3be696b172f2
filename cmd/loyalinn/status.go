package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
	"github.com/mhdraihanr/loyalinn-pms/internal/redisx"
)

var statusCmd = &cobra.Command{
	Use:   "status <tenant-id>",
	Short: "Show a tenant's last sync result and stored row counts",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tenantID := args[0]
	cmd.Printf("Tenant %s\n", tenantID)

	guests, reservations, err := a.store.Counts(ctx, tenantID)
	if err != nil {
		return err
	}
	cmd.Printf("  Guests:        %d\n", guests)
	cmd.Printf("  Reservations:  %d\n", reservations)

	results, err := a.lastResults(ctx)
	if err != nil {
		return err
	}
	if results == nil {
		cmd.Println("  Last sync:     unknown (redis not configured)")
		return nil
	}
	run, err := results.Last(ctx, tenantID)
	if errors.Is(err, redisx.ErrNoResult) {
		cmd.Println("  Last sync:     none recorded")
		return nil
	}
	if err != nil {
		return err
	}
	printRun(cmd, run)
	return nil
}

func printRun(cmd *cobra.Command, run *model.SyncRun) {
	outcome := "ok"
	if !run.Success {
		outcome = "failed: " + run.Error
	}
	cmd.Printf("  Last sync:     %s (%s, %s)\n", run.FinishedAt.Format("2006-01-02 15:04:05Z07:00"), run.Origin, outcome)
	if run.WindowStart != "" {
		cmd.Printf("  Window:        %s to %s\n", run.WindowStart, run.WindowEnd)
	}
	cmd.Printf("  Synced:        %d (skipped %d, failed %d) in %s\n", run.Count, run.Skipped, run.Failed, run.Duration())
}
