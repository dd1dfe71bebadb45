package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/Rollcall/server/internal/db"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store"
)

type ScannerStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewScannerStore(db *sql.DB, writer *dbpkg.Worker) *ScannerStore {
	return &ScannerStore{db: db, writer: writer}
}

// IsKnown: a scanner is known once an admin (or the config) has enabled it.
func (s *ScannerStore) IsKnown(ctx context.Context, scannerID string) (bool, error) {
	scannerID = strings.TrimSpace(scannerID)
	if scannerID == "" {
		return false, nil
	}

	var enabled int
	err := s.db.QueryRowContext(ctx, `
SELECT enabled FROM scanners WHERE scanner_id = ?;
`, scannerID).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("IsKnown query: %w", err)
	}
	return enabled == 1, nil
}

// Enable registers scannerID for siteID and marks it known.
func (s *ScannerStore) Enable(ctx context.Context, scannerID, siteID string) error {
	scannerID = strings.TrimSpace(scannerID)
	if scannerID == "" {
		return nil
	}
	nowMs := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureScanner(ctx, tx, scannerID, nowMs); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE scanners
SET enabled = 1,
    site_id = COALESCE(?, site_id),
    updated_at_ms = ?
WHERE scanner_id = ?;
`, nullString(siteID), nowMs, scannerID); err != nil {
			return fmt.Errorf("Enable %s: %w", scannerID, err)
		}
		return nil
	})
}

// RecordHeartbeat makes sure the scanner row exists (unknown scanners start
// disabled) and overwrites its last-reported snapshot.
func (s *ScannerStore) RecordHeartbeat(ctx context.Context, snap store.ScannerSnapshot) error {
	snap.ScannerID = strings.TrimSpace(snap.ScannerID)
	if snap.ScannerID == "" {
		return nil
	}
	if snap.ReceivedAt.IsZero() {
		snap.ReceivedAt = time.Now().UTC()
	}
	ms := snap.ReceivedAt.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureScanner(ctx, tx, snap.ScannerID, ms); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE scanners
SET site_id           = COALESCE(?, site_id),
    last_seen_at_ms   = ?,
    last_session_id   = ?,
    last_state        = ?,
    last_reason       = ?,
    last_gallery_size = ?,
    updated_at_ms     = ?
WHERE scanner_id = ?;
`, nullString(snap.SiteID), ms, nullString(snap.SessionID), snap.State,
			nullString(snap.Reason), snap.GallerySize, ms, snap.ScannerID); err != nil {
			return fmt.Errorf("RecordHeartbeat update snapshot: %w", err)
		}
		return nil
	})
}

// ensureScanner inserts a disabled row for scannerID if none exists.
// Must be called inside an existing transaction.
func ensureScanner(ctx context.Context, tx *sql.Tx, scannerID string, nowMs int64) error {
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO scanners(scanner_id, enabled, created_at_ms, updated_at_ms)
VALUES (?, 0, ?, ?);
`, scannerID, nowMs, nowMs); err != nil {
		return fmt.Errorf("ensureScanner %s: %w", scannerID, err)
	}
	return nil
}
