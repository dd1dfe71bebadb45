package store

import (
	"context"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/attendance"
)

// Applied is the result of one ApplyEvent call.
type Applied struct {
	Outcome attendance.Outcome

	// Record is the stored record after the event, nil if the worker still
	// has none for the day.
	Record *attendance.Record

	// Previous is the record as read before the event was applied.
	Previous *attendance.Record
}

// AttendanceStore persists one record per (worker, day).
//
// ApplyEvent performs read -> attendance.Decide -> write as one atomic unit
// with respect to every other ApplyEvent for the same key. Uniqueness of
// (worker, day) is enforced by the storage itself; a writer that loses the
// race re-reads and re-decides once before giving up with ErrConflict.
//
// Reads are snapshot reads and take no locks.
type AttendanceStore interface {
	ApplyEvent(ctx context.Context, key attendance.Key, ev attendance.Event) (Applied, error)
	GetForDay(ctx context.Context, workerIDs []string, day attendance.Day) ([]attendance.Record, error)
	GetForRange(ctx context.Context, workerIDs []string, start, end attendance.Day) ([]attendance.Record, error)
}
