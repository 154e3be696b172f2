package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mhdraihanr/loyalinn-pms/internal/model"
)

var syncCmd = &cobra.Command{
	Use:   "sync [tenant-id]",
	Short: "Run one sync pass and exit",
	Long: `Synchronises one tenant's reservations from its configured PMS.
Without a tenant ID, every tenant with an active PMS configuration is
synchronised once.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
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

	if len(args) == 1 {
		tenantID := args[0]
		cmd.Printf("Synchronising tenant %s...\n", tenantID)
		res, err := trigger.SyncTenant(ctx, tenantID, model.OriginCLI)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		if !res.Success {
			return errors.New("sync failed: " + res.Error)
		}
		cmd.Println(res.Message)
		if res.Skipped > 0 || res.Failed > 0 {
			cmd.Printf("Skipped %d, failed %d.\n", res.Skipped, res.Failed)
		}
		return nil
	}

	engine, err := a.engine(trigger)
	if err != nil {
		return err
	}
	cmd.Println("Synchronising all tenants...")
	stats, err := engine.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	cmd.Printf("Tenants: %d, succeeded: %d, failed: %d, reservations: %d\n",
		stats.Tenants, stats.Succeeded, stats.Failed, stats.Synced)
	if stats.Failed > 0 {
		return fmt.Errorf("%d tenant(s) failed to sync", stats.Failed)
	}
	return nil
}
