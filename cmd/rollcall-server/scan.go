package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/Rollcall/server/internal/config"
	"github.com/BrandonDHaskell/Rollcall/server/internal/grpcapi"
	"github.com/BrandonDHaskell/Rollcall/server/internal/httpapi"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/scan"
)

var (
	scanSite      string
	scanScannerID string
	scanProbes    string
	scanServer    string
	scanGRPC      string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a scanning session against a file of probe signatures",
	Long: `scan loads the site roster from the server, builds the signature gallery
and replays a JSON-lines probe file through the detection loop. Admitted
matches are submitted as "auto" attendance events.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanSite, "site", "", "Site whose roster is scanned (required)")
	scanCmd.Flags().StringVar(&scanScannerID, "scanner", "", "Scanner id reported with every event (required)")
	scanCmd.Flags().StringVar(&scanProbes, "probes", "", "JSON-lines probe file (required)")
	scanCmd.Flags().StringVar(&scanServer, "server", "", "HTTP API base URL (default: ROLLCALL_SERVER_URL)")
	scanCmd.Flags().StringVar(&scanGRPC, "grpc", "", "Submit events over gRPC to this address instead of HTTP")
	_ = scanCmd.MarkFlagRequired("site")
	_ = scanCmd.MarkFlagRequired("scanner")
	_ = scanCmd.MarkFlagRequired("probes")
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if scanServer == "" {
		scanServer = cfg.ServerURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := httpapi.NewClient(scanServer, nil)
	roster, err := client.Roster(ctx, scanSite)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}

	var dispatcher scan.Dispatcher = client
	if scanGRPC != "" {
		conn, err := grpcapi.Dial(scanGRPC)
		if err != nil {
			return fmt.Errorf("grpc dial: %w", err)
		}
		defer conn.Close()
		dispatcher = grpcapi.NewClient(conn)
	}

	gallery := scan.NewGallery(roster.Workers)
	logger.Info("gallery loaded", "site_id", scanSite, "workers", len(roster.Workers), "signatures", gallery.Len())

	session := scan.NewSession(scan.Config{
		ScannerID:      scanScannerID,
		SiteID:         scanSite,
		Threshold:      cfg.MatchThreshold,
		Interval:       cfg.SampleInterval,
		SuppressWindow: cfg.SuppressWindow,
	}, scan.Deps{
		Gallery: gallery,
		Scorer:  scan.EuclideanScorer{},
		OpenSource: func(context.Context) (scan.FrameSource, error) {
			src, err := scan.OpenProbeFile(scanProbes)
			if err != nil {
				return nil, err
			}
			return src, nil
		},
		Dispatcher: dispatcher,
		Reporter:   client,
		Logger:     logger,
	})

	runErr := session.Run(ctx)
	st := session.Stats()
	fmt.Fprintf(cmd.OutOrStdout(),
		"session %s: %d iterations, %d dispatched, %d rejected, %d suppressed, %d no match, %d errors\n",
		session.ID(), st.Iterations, st.Dispatched, st.Rejected, st.Suppressed, st.NoMatch, st.Errors)

	if errors.Is(runErr, scan.ErrCapabilityUnavailable) {
		return fmt.Errorf("scanner %s disabled: %w", scanScannerID, runErr)
	}
	return runErr
}
