package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/types"
)

var (
	ErrInvalidScannerID    = errors.New("scannerId is required")
	ErrInvalidScannerState = errors.New("state must be one of running, disabled, stopped")
)

type ScannerRegistry struct {
	store store.ScannerStore
}

func NewScannerRegistry(st store.ScannerStore) *ScannerRegistry {
	return &ScannerRegistry{store: st}
}

func (r *ScannerRegistry) IsKnown(ctx context.Context, scannerID string) (bool, error) {
	scannerID = strings.TrimSpace(scannerID)
	if scannerID == "" {
		return false, nil
	}
	return r.store.IsKnown(ctx, scannerID)
}

func (r *ScannerRegistry) NoteSeen(ctx context.Context, snap store.ScannerSnapshot) error {
	snap.ScannerID = strings.TrimSpace(snap.ScannerID)
	if snap.ScannerID == "" {
		return nil
	}
	return r.store.RecordHeartbeat(ctx, snap)
}

type ScannerService struct {
	registry *ScannerRegistry
	logger   *slog.Logger
}

func NewScannerService(reg *ScannerRegistry, logger *slog.Logger) *ScannerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScannerService{registry: reg, logger: logger}
}

// Heartbeat records the scanner's reported state. Unknown scanners are
// recorded too; the response tells them they are not enabled.
func (s *ScannerService) Heartbeat(ctx context.Context, req types.ScannerHeartbeatRequest) (types.ScannerHeartbeatResponse, error) {
	scannerID := strings.TrimSpace(req.ScannerID)
	if scannerID == "" {
		return types.ScannerHeartbeatResponse{}, ErrInvalidScannerID
	}
	state := strings.ToLower(strings.TrimSpace(req.State))
	switch state {
	case "running", "disabled", "stopped":
	default:
		return types.ScannerHeartbeatResponse{}, fmt.Errorf("%w: %q", ErrInvalidScannerState, req.State)
	}

	known, err := s.registry.IsKnown(ctx, scannerID)
	if err != nil {
		return types.ScannerHeartbeatResponse{}, err
	}

	now := time.Now().UTC()
	if err := s.registry.NoteSeen(ctx, store.ScannerSnapshot{
		ScannerID:   scannerID,
		SiteID:      strings.TrimSpace(req.SiteID),
		SessionID:   strings.TrimSpace(req.SessionID),
		State:       state,
		Reason:      req.Reason,
		GallerySize: req.GallerySize,
		ReceivedAt:  now,
	}); err != nil {
		return types.ScannerHeartbeatResponse{}, err
	}

	if state == "disabled" {
		s.logger.Warn("scanner disabled", "scanner_id", scannerID, "session_id", req.SessionID, "reason", req.Reason)
	}
	if !known {
		s.logger.Info("heartbeat from unknown scanner", "scanner_id", scannerID)
	}

	return types.ScannerHeartbeatResponse{
		OK:         true,
		Known:      known,
		ScannerID:  scannerID,
		ServerTime: now.Format(time.RFC3339Nano),
	}, nil
}
