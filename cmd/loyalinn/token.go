package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mhdraihanr/loyalinn-pms/internal/auth"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a bearer token for local testing",
	Long: `Signs a token with the configured jwt_secret. Production tokens come
from the identity provider; use this against a local API only.`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if tokenTTL <= 0 {
		return fmt.Errorf("--ttl must be positive, got %s", tokenTTL)
	}
	v, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	token, err := v.Sign(args[0], tokenTTL)
	if err != nil {
		return err
	}
	cmd.Println(token)
	return nil
}
