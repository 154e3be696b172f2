package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mhdraihanr/loyalinn-pms/internal/setup"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively onboard a hotel and connect its PMS",
	Args:  cobra.NoArgs,
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, _ []string) error {
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

	wiz := setup.NewWizard(cmd.InOrStdin(), cmd.OutOrStdout(), a.store, a.registry(), trigger, a.logger)
	_, err = wiz.Run(ctx)
	return err
}
