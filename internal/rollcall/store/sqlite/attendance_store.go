package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/Rollcall/server/internal/db"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/attendance"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store"
)

const attendanceColumns = `worker_id, day, status, check_in_at, check_out_at, version, created_at_ms, updated_at_ms`

type AttendanceStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
	rules  attendance.Rules
	now    func() time.Time
}

func NewAttendanceStore(db *sql.DB, writer *dbpkg.Worker, rules attendance.Rules) *AttendanceStore {
	return &AttendanceStore{db: db, writer: writer, rules: rules, now: time.Now}
}

// WithClock sets the clock used to stamp created_at_ms and updated_at_ms.
func (s *AttendanceStore) WithClock(now func() time.Time) *AttendanceStore {
	s.now = now
	return s
}

// ApplyEvent reads the (worker, day) row, runs the transition engine and
// writes the result inside one writer transaction. Inserts rely on the
// UNIQUE(worker_id, day) constraint; updates are guarded by the row version.
// Either failing means another process won the race: the whole sequence is
// retried once against the fresh row.
func (s *AttendanceStore) ApplyEvent(ctx context.Context, key attendance.Key, ev attendance.Event) (store.Applied, error) {
	key.WorkerID = strings.TrimSpace(key.WorkerID)
	if key.WorkerID == "" || key.Day == "" {
		return store.Applied{}, fmt.Errorf("ApplyEvent: incomplete key %q", key)
	}
	return store.RetryOnConflict(ctx, func(ctx context.Context) (store.Applied, error) {
		return s.applyOnce(ctx, key, ev)
	})
}

func (s *AttendanceStore) applyOnce(ctx context.Context, key attendance.Key, ev attendance.Event) (store.Applied, error) {
	var out store.Applied

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		cur, err := scanRecord(tx.QueryRowContext(ctx, `
SELECT `+attendanceColumns+`
FROM attendance
WHERE worker_id = ? AND day = ?;
`, key.WorkerID, string(key.Day)))
		if errors.Is(err, sql.ErrNoRows) {
			cur = nil
		} else if err != nil {
			return fmt.Errorf("ApplyEvent read %s: %w", key, err)
		}

		d := attendance.Decide(cur, key, ev, s.rules)
		out = store.Applied{Outcome: d.Outcome, Record: cur, Previous: cur}
		if d.Next == nil {
			return nil
		}

		next := d.Next.Clone()
		if err := next.Validate(); err != nil {
			return fmt.Errorf("ApplyEvent %s: %w", key, err)
		}
		next.UpdatedAt = s.now().UTC().Truncate(time.Millisecond)

		if cur == nil {
			next.Version = 1
			next.CreatedAt = next.UpdatedAt
			err = insertRecord(ctx, tx, next)
		} else {
			next.Version = cur.Version + 1
			err = updateRecord(ctx, tx, next, cur.Version)
		}
		if err != nil {
			return err
		}

		out.Record = &next
		return nil
	})
	if err != nil {
		return store.Applied{}, err
	}
	return out, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, r attendance.Record) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO attendance(`+attendanceColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`, r.WorkerID, string(r.Day), string(r.Status),
		formatTime(r.CheckInAt), formatTime(r.CheckOutAt), r.Version,
		r.CreatedAt.UTC().UnixMilli(), r.UpdatedAt.UTC().UnixMilli())
	return classifyWriteErr("insert", r.Key(), err)
}

func updateRecord(ctx context.Context, tx *sql.Tx, r attendance.Record, expectVersion int64) error {
	res, err := tx.ExecContext(ctx, `
UPDATE attendance
SET status        = ?,
    check_in_at   = ?,
    check_out_at  = ?,
    version       = ?,
    updated_at_ms = ?
WHERE worker_id = ? AND day = ? AND version = ?;
`, string(r.Status), formatTime(r.CheckInAt), formatTime(r.CheckOutAt), r.Version,
		r.UpdatedAt.UTC().UnixMilli(), r.WorkerID, string(r.Day), expectVersion)
	if err != nil {
		return classifyWriteErr("update", r.Key(), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ApplyEvent update %s: version %d is stale: %w", r.Key(), expectVersion, store.ErrConflict)
	}
	return nil
}

func classifyWriteErr(op string, key attendance.Key, err error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return fmt.Errorf("ApplyEvent %s %s: %w", op, key, store.ErrConflict)
	case isForeignKeyViolation(err):
		return fmt.Errorf("ApplyEvent %s %s: worker: %w", op, key, store.ErrNotFound)
	case isCheckViolation(err):
		return fmt.Errorf("ApplyEvent %s %s: %w: %v", op, key, attendance.ErrInvariant, err)
	default:
		return fmt.Errorf("ApplyEvent %s %s: %w", op, key, err)
	}
}

func (s *AttendanceStore) GetForDay(ctx context.Context, workerIDs []string, day attendance.Day) ([]attendance.Record, error) {
	return s.GetForRange(ctx, workerIDs, day, day)
}

func (s *AttendanceStore) GetForRange(ctx context.Context, workerIDs []string, start, end attendance.Day) ([]attendance.Record, error) {
	if len(workerIDs) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(workerIDs)+2)
	args = append(args, string(start), string(end))
	for _, id := range workerIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(workerIDs)), ",")

	rows, err := s.db.QueryContext(ctx, `
SELECT `+attendanceColumns+`
FROM attendance
WHERE day BETWEEN ? AND ?
  AND worker_id IN (`+placeholders+`)
ORDER BY day, worker_id;
`, args...)
	if err != nil {
		return nil, fmt.Errorf("GetForRange query: %w", err)
	}
	defer rows.Close()

	var out []attendance.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("GetForRange scan: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*attendance.Record, error) {
	var (
		r                    attendance.Record
		day, status          string
		checkIn, checkOut    sql.NullString
		createdMs, updatedMs int64
	)
	if err := row.Scan(&r.WorkerID, &day, &status, &checkIn, &checkOut, &r.Version, &createdMs, &updatedMs); err != nil {
		return nil, err
	}
	r.Day = attendance.Day(day)
	r.Status = attendance.Status(status)
	r.CreatedAt = time.UnixMilli(createdMs).UTC()
	r.UpdatedAt = time.UnixMilli(updatedMs).UTC()

	var err error
	if r.CheckInAt, err = parseTime(checkIn); err != nil {
		return nil, err
	}
	if r.CheckOutAt, err = parseTime(checkOut); err != nil {
		return nil, err
	}
	return &r, nil
}

// Timestamps keep the offset they were recorded with (the site's), so a
// check-in reads back as the local wall-clock time it happened at.
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp %q: %w", v.String, err)
	}
	return &t, nil
}
