package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	dbpkg "github.com/BrandonDHaskell/Rollcall/server/internal/db"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/attendance"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store"
)

// openSchemaTx opens a migrated in-memory database with one site and worker
// "w-1" and returns a transaction on it. The transaction is rolled back when
// the test finishes.
func openSchemaTx(t *testing.T) *sql.Tx {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:internal_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", name))
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	if err := dbpkg.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	nowMs := time.Now().UTC().UnixMilli()
	if _, err := conn.ExecContext(ctx, `
INSERT INTO sites(site_id, name, timezone, created_at_ms, updated_at_ms) VALUES ('site-a', 'Site A', 'UTC', ?, ?);`, nowMs, nowMs); err != nil {
		t.Fatalf("seed site: %v", err)
	}
	if _, err := conn.ExecContext(ctx, `
INSERT INTO workers(worker_id, site_id, name, created_at_ms, updated_at_ms) VALUES ('w-1', 'site-a', 'Ana', ?, ?);`, nowMs, nowMs); err != nil {
		t.Fatalf("seed worker: %v", err)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	t.Cleanup(func() { _ = tx.Rollback() })
	return tx
}

func checkedIn(workerID string) attendance.Record {
	at := time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)
	return attendance.Record{
		WorkerID:  workerID,
		Day:       "2026-02-15",
		Status:    attendance.StatusCheckedIn,
		CheckInAt: &at,
		Version:   1,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestClassifyWriteErr_DuplicateKeyIsConflict(t *testing.T) {
	tx := openSchemaTx(t)
	ctx := context.Background()
	rec := checkedIn("w-1")

	if err := insertRecord(ctx, tx, rec); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	// The raw driver error must be recognised as a UNIQUE violation.
	_, raw := tx.ExecContext(ctx, `
INSERT INTO attendance(`+attendanceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
		rec.WorkerID, string(rec.Day), string(rec.Status), formatTime(rec.CheckInAt), nil, 1, 0, 0)
	if raw == nil {
		t.Fatal("expected the duplicate (worker, day) insert to fail")
	}
	if !isUniqueViolation(raw) {
		t.Fatalf("expected a UNIQUE violation, got %v", raw)
	}
	if err := classifyWriteErr("insert", rec.Key(), raw); !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	if err := insertRecord(ctx, tx, rec); !errors.Is(err, store.ErrConflict) {
		t.Errorf("insertRecord: expected ErrConflict, got %v", err)
	}
}

func TestClassifyWriteErr_OtherConstraints(t *testing.T) {
	tx := openSchemaTx(t)
	ctx := context.Background()

	if err := insertRecord(ctx, tx, checkedIn("w-404")); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown worker: expected ErrNotFound, got %v", err)
	}

	bad := checkedIn("w-1")
	bad.Status = attendance.StatusPresent // no check-out
	err := insertRecord(ctx, tx, bad)
	if !errors.Is(err, attendance.ErrInvariant) {
		t.Errorf("present without check-out: expected ErrInvariant, got %v", err)
	}
	if errors.Is(err, store.ErrConflict) {
		t.Error("a CHECK failure must not be retried as a conflict")
	}
}

func TestClassifyWriteErr_Nil(t *testing.T) {
	if err := classifyWriteErr("insert", attendance.Key{WorkerID: "w-1", Day: "2026-02-15"}, nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
