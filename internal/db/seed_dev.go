package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type SeedDevOptions struct {
	// KnownScanners are registered as enabled scanners of the demo site.
	KnownScanners []string
	Timezone      string
}

// SeedDev creates a demo site with two workers: one with a signature on
// file and one without, so both auto-scan and manual flows can be tried.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()
	tz := opt.Timezone
	if tz == "" {
		tz = "UTC"
	}

	if _, err := db.ExecContext(ctx, `
INSERT INTO sites(site_id, name, timezone, created_at_ms, updated_at_ms)
VALUES ('site_main', 'Main Site', ?, ?, ?)
ON CONFLICT(site_id) DO UPDATE SET
  timezone = excluded.timezone,
  updated_at_ms = excluded.updated_at_ms;`, tz, now, now); err != nil {
		return fmt.Errorf("seed site: %w", err)
	}

	sig := EncodeSignature([]float32{0.11, 0.42, 0.73, 0.05})
	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO workers(worker_id, site_id, name, signature, created_at_ms, updated_at_ms)
VALUES ('worker-001', 'site_main', 'Dev Worker (scannable)', ?, ?, ?),
       ('worker-002', 'site_main', 'Dev Worker (manual only)', NULL, ?, ?);`,
		sig, now, now, now, now); err != nil {
		return fmt.Errorf("seed workers: %w", err)
	}

	for _, id := range opt.KnownScanners {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, `
INSERT INTO scanners(scanner_id, site_id, display_name, enabled, created_at_ms, updated_at_ms)
VALUES (?, 'site_main', ?, 1, ?, ?)
ON CONFLICT(scanner_id) DO UPDATE SET
  enabled = 1,
  updated_at_ms = excluded.updated_at_ms;`, id, id, now, now); err != nil {
			return fmt.Errorf("seed scanner %s: %w", id, err)
		}
	}

	return nil
}
