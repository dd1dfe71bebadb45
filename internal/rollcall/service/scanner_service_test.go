package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/service"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store/memory"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/types"
)

func newTestScannerService(known ...string) (*service.ScannerService, *memory.ScannerStore) {
	ss := memory.NewScannerStore(known)
	return service.NewScannerService(service.NewScannerRegistry(ss), silentLogger()), ss
}

func TestHeartbeat_KnownScanner(t *testing.T) {
	svc, ss := newTestScannerService("scanner-01")

	resp, err := svc.Heartbeat(context.Background(), types.ScannerHeartbeatRequest{
		ScannerID:   "scanner-01",
		SessionID:   "sess-1",
		State:       "Running",
		GallerySize: 4,
	})
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if !resp.OK || !resp.Known {
		t.Errorf("unexpected response %+v", resp)
	}

	snap, ok := ss.Last("scanner-01")
	if !ok {
		t.Fatal("expected snapshot to be recorded")
	}
	if snap.State != "running" || snap.GallerySize != 4 || snap.SessionID != "sess-1" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestHeartbeat_UnknownScannerStillRecorded(t *testing.T) {
	svc, ss := newTestScannerService("scanner-01")

	resp, err := svc.Heartbeat(context.Background(), types.ScannerHeartbeatRequest{
		ScannerID: "rogue",
		State:     "disabled",
		Reason:    "capability unavailable",
	})
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if resp.Known {
		t.Error("expected known=false")
	}
	if snap, ok := ss.Last("rogue"); !ok || snap.Reason != "capability unavailable" {
		t.Errorf("expected disabled snapshot, got %+v %v", snap, ok)
	}
}

func TestHeartbeat_Validation(t *testing.T) {
	svc, _ := newTestScannerService()
	ctx := context.Background()

	if _, err := svc.Heartbeat(ctx, types.ScannerHeartbeatRequest{State: "running"}); !errors.Is(err, service.ErrInvalidScannerID) {
		t.Errorf("expected ErrInvalidScannerID, got %v", err)
	}
	if _, err := svc.Heartbeat(ctx, types.ScannerHeartbeatRequest{ScannerID: "s", State: "dancing"}); !errors.Is(err, service.ErrInvalidScannerState) {
		t.Errorf("expected ErrInvalidScannerState, got %v", err)
	}
}
