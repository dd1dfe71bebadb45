package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/Rollcall/server/internal/config"
	"github.com/BrandonDHaskell/Rollcall/server/internal/db"
	"github.com/BrandonDHaskell/Rollcall/server/internal/grpcapi"
	"github.com/BrandonDHaskell/Rollcall/server/internal/httpapi"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/attendance"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/notify"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/service"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and gRPC APIs",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer conn.Close()

	writer := db.NewWorker(conn)
	defer writer.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, conn, db.SeedDevOptions{
			KnownScanners: cfg.KnownScanners,
			Timezone:      cfg.SiteTimezone,
		}); err != nil {
			return fmt.Errorf("seed dev: %w", err)
		}
	}

	// Stores
	rules := attendance.Rules{MinDwell: cfg.MinDwell}
	attendanceStore := sqlite.NewAttendanceStore(conn, writer, rules)
	rosterStore := sqlite.NewRosterStore(conn, writer)
	scanEventStore := sqlite.NewScanEventStore(conn, writer)
	scannerStore := sqlite.NewScannerStore(conn, writer)
	for _, id := range cfg.KnownScanners {
		if err := scannerStore.Enable(ctx, id, ""); err != nil {
			return fmt.Errorf("enable scanner %s: %w", id, err)
		}
	}

	// Broadcast
	var publisher notify.Publisher = notify.Nop{}
	if cfg.MQTT.Broker != "" {
		mq, err := notify.DialMQTT(ctx, notify.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		}, logger)
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer mq.Close()
		publisher = mq
	} else {
		logger.Info("mqtt broadcast disabled", "reason", "no broker configured")
	}

	// Services
	roster := service.NewRoster(rosterStore, cfg.Location())
	attendanceSvc := service.NewAttendanceService(service.AttendanceDeps{
		Roster:       roster,
		Store:        attendanceStore,
		Events:       scanEventStore,
		Notifier:     publisher,
		Logger:       logger,
		MaxClockSkew: cfg.MaxClockSkew,
	})
	scannerSvc := service.NewScannerService(service.NewScannerRegistry(scannerStore), logger)

	pruner := service.NewScanEventPruner(scanEventStore, service.PrunerConfig{
		RetentionDays: cfg.ScanEventRetentionDays,
		Interval:      time.Duration(cfg.PruneIntervalHours) * time.Hour,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	// HTTP
	httpSrv := httpapi.NewServer(httpapi.Dependencies{
		Logger:      logger,
		Addr:        cfg.HTTPAddr,
		CORSOrigins: cfg.CORSOrigins,
		Attendance:  attendanceSvc,
		Roster:      roster,
		Scanners:    scannerSvc,
	})
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	// gRPC
	var grpcSrv *grpcapi.Server
	if cfg.GRPCAddr != "" {
		grpcSrv = grpcapi.NewServer(grpcapi.Dependencies{
			Logger:     logger,
			Addr:       cfg.GRPCAddr,
			Attendance: attendanceSvc,
		})
		go func() {
			logger.Info("grpc listening", "addr", cfg.GRPCAddr)
			if err := grpcSrv.Start(); err != nil {
				logger.Error("grpc server error", "err", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if grpcSrv != nil {
		_ = grpcSrv.Shutdown(shutdownCtx)
	}
	return httpSrv.Shutdown(shutdownCtx)
}
