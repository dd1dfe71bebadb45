package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/Rollcall/server/internal/config"
	"github.com/BrandonDHaskell/Rollcall/server/internal/db"
)

var seedTimezone string

var seedDevCmd = &cobra.Command{
	Use:   "seed-dev",
	Short: "Create the demo site, workers and configured scanners",
	Args:  cobra.NoArgs,
	RunE:  runSeedDev,
}

func init() {
	seedDevCmd.Flags().StringVar(&seedTimezone, "timezone", "", "IANA timezone of the demo site (default: ROLLCALL_SITE_TIMEZONE)")
}

func runSeedDev(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if seedTimezone == "" {
		seedTimezone = cfg.SiteTimezone
	}
	ctx := context.Background()

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := db.SeedDev(ctx, conn, db.SeedDevOptions{
		KnownScanners: cfg.KnownScanners,
		Timezone:      seedTimezone,
	}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %s (site_main, %d scanners)\n", cfg.DBPath, len(cfg.KnownScanners))
	return nil
}
