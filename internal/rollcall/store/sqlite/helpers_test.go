package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/Rollcall/server/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production.  The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Each test gets its own named in-memory database; shared cache keeps it
	// alive for the lifetime of the pool.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_txlock=immediate",
		name,
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn.  The worker is closed
// automatically when the test finishes.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// seedWorkers inserts a site and the given workers so FK constraints on
// attendance are satisfied.
func seedWorkers(t *testing.T, conn *sql.DB, siteID string, workerIDs ...string) {
	t.Helper()
	nowMs := time.Now().UTC().UnixMilli()
	ctx := context.Background()

	if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO sites(site_id, name, timezone, created_at_ms, updated_at_ms)
VALUES (?, ?, 'UTC', ?, ?);`, siteID, siteID, nowMs, nowMs); err != nil {
		t.Fatalf("seed site %s: %v", siteID, err)
	}
	for _, id := range workerIDs {
		if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO workers(worker_id, site_id, name, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?);`, id, siteID, id, nowMs, nowMs); err != nil {
			t.Fatalf("seed worker %s: %v", id, err)
		}
	}
}
