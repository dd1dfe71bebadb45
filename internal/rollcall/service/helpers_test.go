package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/attendance"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/notify"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/service"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store/memory"
)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type testEnv struct {
	svc      *service.AttendanceService
	roster   *service.Roster
	records  *memory.AttendanceStore
	rosterDB *memory.RosterStore
	events   *memory.ScanEventStore
	changes  *notify.Recorder
	clock    *fakeClock
}

// newTestEnv builds an AttendanceService over in-memory stores with one UTC
// site, a scannable worker "w-1" and a manual-only worker "w-2".
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	records := memory.NewAttendanceStore(attendance.DefaultRules())
	rosterDB := memory.NewRosterStore(records)
	ctx := context.Background()

	if err := rosterDB.UpsertSite(ctx, store.SiteRecord{SiteID: "site-a", Name: "Site A", Timezone: "UTC"}); err != nil {
		t.Fatalf("seed site: %v", err)
	}
	for _, w := range []store.WorkerRecord{
		{WorkerID: "w-1", SiteID: "site-a", Name: "Ana", Signature: []float32{0.1, 0.2}},
		{WorkerID: "w-2", SiteID: "site-a", Name: "Budi"},
	} {
		if err := rosterDB.UpsertWorker(ctx, w); err != nil {
			t.Fatalf("seed worker: %v", err)
		}
	}

	env := &testEnv{
		records:  records,
		rosterDB: rosterDB,
		events:   memory.NewScanEventStore(),
		changes:  &notify.Recorder{},
		clock:    &fakeClock{now: time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)},
	}
	env.roster = service.NewRoster(rosterDB, time.UTC)
	env.svc = service.NewAttendanceService(service.AttendanceDeps{
		Roster:   env.roster,
		Store:    records,
		Events:   env.events,
		Notifier: env.changes,
		Logger:   silentLogger(),
		Now:      env.clock.Now,
	})
	return env
}
