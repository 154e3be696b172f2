// Loyalinn synchronizes hotel reservations and guests from each tenant's
// property management system into tenant-scoped storage.
//
// Usage:
//
//	loyalinn serve [--no-scheduler]         # HTTP API plus scheduled sync
//	loyalinn daemon                         # scheduled sync only
//	loyalinn sync [tenant-id]               # one pass then exit
//	loyalinn setup                          # interactive hotel onboarding
//	loyalinn tenant create --name ... --owner ...
//	loyalinn tenant add-member <tenant-id> <user-id> --role agent
//	loyalinn tenant pms <tenant-id> --type qloapps --endpoint ... --api-key ...
//	loyalinn token <user-id> [--ttl 24h]    # mint a bearer token for testing
//	loyalinn status <tenant-id>             # last cached sync result
//	loyalinn events tail [--group ...]      # follow ReservationsSynced events
//	loyalinn version
//
// Configuration is read from --config, the default path
// ~/.config/loyalinn/config.yaml when it exists, or the environment. A .env
// file in the working directory is loaded first.
package main

import (
	"log/slog"
	"os"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}
