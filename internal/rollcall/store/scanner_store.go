package store

import (
	"context"
	"time"
)

// ScannerSnapshot is the last reported state of a scanning device.
type ScannerSnapshot struct {
	ScannerID   string
	SiteID      string
	SessionID   string
	State       string
	Reason      string
	GallerySize int
	ReceivedAt  time.Time
}

type ScannerStore interface {
	IsKnown(ctx context.Context, scannerID string) (bool, error)
	RecordHeartbeat(ctx context.Context, snap ScannerSnapshot) error
}
