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

type RosterStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewRosterStore(db *sql.DB, writer *dbpkg.Worker) *RosterStore {
	return &RosterStore{db: db, writer: writer}
}

func (s *RosterStore) UpsertSite(ctx context.Context, site store.SiteRecord) error {
	site.SiteID = strings.TrimSpace(site.SiteID)
	if site.SiteID == "" {
		return fmt.Errorf("UpsertSite: empty site id")
	}
	tz := strings.TrimSpace(site.Timezone)
	if tz == "" {
		tz = "UTC"
	}
	nowMs := time.Now().UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO sites(site_id, name, timezone, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(site_id) DO UPDATE SET
  name          = excluded.name,
  timezone      = excluded.timezone,
  updated_at_ms = excluded.updated_at_ms;
`, site.SiteID, site.Name, tz, nowMs, nowMs); err != nil {
			return fmt.Errorf("UpsertSite %s: %w", site.SiteID, err)
		}
		return nil
	})
}

func (s *RosterStore) GetSite(ctx context.Context, siteID string) (store.SiteRecord, error) {
	var site store.SiteRecord
	err := s.db.QueryRowContext(ctx, `
SELECT site_id, name, timezone FROM sites WHERE site_id = ?;
`, siteID).Scan(&site.SiteID, &site.Name, &site.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return store.SiteRecord{}, fmt.Errorf("site %q: %w", siteID, store.ErrNotFound)
	}
	if err != nil {
		return store.SiteRecord{}, fmt.Errorf("GetSite query: %w", err)
	}
	return site, nil
}

func (s *RosterStore) UpsertWorker(ctx context.Context, w store.WorkerRecord) error {
	w.WorkerID = strings.TrimSpace(w.WorkerID)
	if w.WorkerID == "" {
		return fmt.Errorf("UpsertWorker: empty worker id")
	}
	nowMs := time.Now().UTC().UnixMilli()
	sig := dbpkg.EncodeSignature(w.Signature)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO workers(worker_id, site_id, name, signature, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(worker_id) DO UPDATE SET
  site_id       = excluded.site_id,
  name          = excluded.name,
  signature     = excluded.signature,
  updated_at_ms = excluded.updated_at_ms;
`, w.WorkerID, w.SiteID, w.Name, sig, nowMs, nowMs)
		if isForeignKeyViolation(err) {
			return fmt.Errorf("UpsertWorker %s: site %q: %w", w.WorkerID, w.SiteID, store.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("UpsertWorker %s: %w", w.WorkerID, err)
		}
		return nil
	})
}

func (s *RosterStore) GetWorker(ctx context.Context, workerID string) (store.WorkerRecord, error) {
	w, err := scanWorker(s.db.QueryRowContext(ctx, `
SELECT worker_id, site_id, name, signature FROM workers WHERE worker_id = ?;
`, workerID))
	if errors.Is(err, sql.ErrNoRows) {
		return store.WorkerRecord{}, fmt.Errorf("worker %q: %w", workerID, store.ErrNotFound)
	}
	if err != nil {
		return store.WorkerRecord{}, fmt.Errorf("GetWorker: %w", err)
	}
	return w, nil
}

func (s *RosterStore) ListWorkers(ctx context.Context, siteID string) ([]store.WorkerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT worker_id, site_id, name, signature
FROM workers
WHERE site_id = ?
ORDER BY worker_id;
`, siteID)
	if err != nil {
		return nil, fmt.Errorf("ListWorkers query: %w", err)
	}
	defer rows.Close()

	var out []store.WorkerRecord
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("ListWorkers scan: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// DeleteWorker removes the worker; its attendance rows go with it through
// ON DELETE CASCADE.
func (s *RosterStore) DeleteWorker(ctx context.Context, workerID string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM workers WHERE worker_id = ?;`, workerID)
		if err != nil {
			return fmt.Errorf("DeleteWorker %s: %w", workerID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("worker %q: %w", workerID, store.ErrNotFound)
		}
		return nil
	})
}

func scanWorker(row rowScanner) (store.WorkerRecord, error) {
	var (
		w   store.WorkerRecord
		sig []byte
	)
	if err := row.Scan(&w.WorkerID, &w.SiteID, &w.Name, &sig); err != nil {
		return store.WorkerRecord{}, err
	}
	v, err := dbpkg.DecodeSignature(sig)
	if err != nil {
		return store.WorkerRecord{}, fmt.Errorf("worker %s: %w", w.WorkerID, err)
	}
	w.Signature = v
	return w, nil
}
