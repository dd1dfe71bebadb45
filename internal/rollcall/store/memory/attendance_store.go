package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/attendance"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store"
)

// AttendanceStore keeps attendance records in a map keyed by (worker, day).
// Writes are optimistic: the current record is read, decided on outside the
// lock, and committed only if the key still holds the version that was read.
// It is intended for use in tests and dev environments.
type AttendanceStore struct {
	mu      sync.RWMutex
	rules   attendance.Rules
	records map[attendance.Key]attendance.Record
	now     func() time.Time

	// beforeCommit runs between decide and commit. Tests use it to
	// interleave a competing writer.
	beforeCommit func(key attendance.Key)
}

func NewAttendanceStore(rules attendance.Rules) *AttendanceStore {
	return &AttendanceStore{
		rules:   rules,
		records: make(map[attendance.Key]attendance.Record),
		now:     time.Now,
	}
}

// WithClock sets the clock used to stamp CreatedAt and UpdatedAt.
func (s *AttendanceStore) WithClock(now func() time.Time) *AttendanceStore {
	s.now = now
	return s
}

func (s *AttendanceStore) ApplyEvent(ctx context.Context, key attendance.Key, ev attendance.Event) (store.Applied, error) {
	return store.RetryOnConflict(ctx, func(context.Context) (store.Applied, error) {
		return s.applyOnce(key, ev)
	})
}

func (s *AttendanceStore) applyOnce(key attendance.Key, ev attendance.Event) (store.Applied, error) {
	s.mu.RLock()
	stored, exists := s.records[key]
	s.mu.RUnlock()

	var cur *attendance.Record
	if exists {
		c := stored.Clone()
		cur = &c
	}

	d := attendance.Decide(cur, key, ev, s.rules)
	out := store.Applied{Outcome: d.Outcome, Record: cur, Previous: cur}
	if d.Next == nil {
		return out, nil
	}
	if err := d.Next.Validate(); err != nil {
		return store.Applied{}, fmt.Errorf("ApplyEvent %s: %w", key, err)
	}

	if s.beforeCommit != nil {
		s.beforeCommit(key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now, stillExists := s.records[key]
	switch {
	case !exists && stillExists:
		// Unique (worker, day): someone inserted first.
		return store.Applied{}, fmt.Errorf("ApplyEvent insert %s: %w", key, store.ErrConflict)
	case exists && (!stillExists || now.Version != stored.Version):
		return store.Applied{}, fmt.Errorf("ApplyEvent update %s: %w", key, store.ErrConflict)
	}

	next := d.Next.Clone()
	next.Version = stored.Version + 1
	next.UpdatedAt = s.now().UTC()
	if exists {
		next.CreatedAt = stored.CreatedAt
	} else {
		next.CreatedAt = next.UpdatedAt
	}
	s.records[key] = next

	committed := next.Clone()
	out.Record = &committed
	return out, nil
}

func (s *AttendanceStore) GetForDay(ctx context.Context, workerIDs []string, day attendance.Day) ([]attendance.Record, error) {
	return s.GetForRange(ctx, workerIDs, day, day)
}

func (s *AttendanceStore) GetForRange(_ context.Context, workerIDs []string, start, end attendance.Day) ([]attendance.Record, error) {
	if len(workerIDs) == 0 {
		return nil, nil
	}
	want := make(map[string]struct{}, len(workerIDs))
	for _, id := range workerIDs {
		want[id] = struct{}{}
	}

	s.mu.RLock()
	var out []attendance.Record
	for k, r := range s.records {
		if _, ok := want[k.WorkerID]; !ok {
			continue
		}
		if k.Day.Before(start) || end.Before(k.Day) {
			continue
		}
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		return out[i].WorkerID < out[j].WorkerID
	})
	return out, nil
}

// PurgeWorker drops every record of workerID. Called by the roster store
// when a worker is deleted.
func (s *AttendanceStore) PurgeWorker(workerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.records {
		if k.WorkerID == workerID {
			delete(s.records, k)
		}
	}
}

// Len returns the number of stored records. Test-only helper.
func (s *AttendanceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
