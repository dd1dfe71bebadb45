package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/attendance"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/service"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/types"
)

var nineAM = time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)

// ── Submit ───────────────────────────────────────────────────────────────────

func TestSubmit_EndToEndScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	submit := func(action string, at time.Time) types.EventResponse {
		t.Helper()
		env.clock.Set(at)
		resp, err := env.svc.Submit(ctx, types.EventRequest{
			WorkerID: "w-1",
			Action:   action,
			At:       at.Format(time.RFC3339),
		})
		if err != nil {
			t.Fatalf("Submit %s at %s: %v", action, at, err)
		}
		return resp
	}

	r := submit("auto", nineAM)
	if r.Status != "ok" || r.NewState != "checked-in" || !r.Changed {
		t.Fatalf("event1: %+v", r)
	}
	if r.Record == nil || r.Record.CheckInTime == nil || *r.Record.CheckInTime != "2026-02-15T09:00:00Z" {
		t.Fatalf("event1: unexpected record %+v", r.Record)
	}

	r = submit("auto", nineAM.Add(3*time.Minute))
	if r.Status != "rejected" || r.Reason != "too-soon" {
		t.Fatalf("event2: %+v", r)
	}

	r = submit("auto", nineAM.Add(6*time.Minute))
	if r.NewState != "present" || *r.Record.CheckOutTime != "2026-02-15T09:06:00Z" {
		t.Fatalf("event3: %+v", r)
	}

	r = submit("manual-absent", nineAM.Add(10*time.Minute))
	if r.Status != "ok" || r.NewState != "absent" {
		t.Fatalf("event4: %+v", r)
	}
	if r.Record.CheckInTime != nil || r.Record.CheckOutTime != nil {
		t.Errorf("event4: expected cleared timings, got %+v", r.Record)
	}

	r = submit("auto", nineAM.Add(15*time.Minute))
	if r.Status != "rejected" || r.Reason != "already-completed" {
		t.Fatalf("event5: %+v", r)
	}
}

func TestSubmit_DefaultsToServerTimeAndSiteDay(t *testing.T) {
	env := newTestEnv(t)
	env.clock.Set(time.Date(2026, 2, 15, 23, 59, 0, 0, time.UTC))

	resp, err := env.svc.Submit(context.Background(), types.EventRequest{WorkerID: "w-1", Action: "auto"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Record.Date != "2026-02-15" {
		t.Errorf("expected day 2026-02-15, got %s", resp.Record.Date)
	}
}

func TestSubmit_DayFromSiteTimezone(t *testing.T) {
	env := newTestEnv(t)
	if _, err := time.LoadLocation("Asia/Jakarta"); err != nil {
		t.Skipf("tzdata not available: %v", err)
	}
	ctx := context.Background()
	if _, err := env.roster.PutSite(ctx, types.Site{SiteID: "site-a", Name: "Site A", Timezone: "Asia/Jakarta"}); err != nil {
		t.Fatalf("PutSite: %v", err)
	}

	// 20:00 UTC on the 14th is 03:00 on the 15th in Jakarta.
	env.clock.Set(time.Date(2026, 2, 14, 20, 0, 0, 0, time.UTC))
	resp, err := env.svc.Submit(ctx, types.EventRequest{
		WorkerID: "w-1",
		Action:   "auto",
		At:       "2026-02-14T20:00:00Z",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Record.Date != "2026-02-15" {
		t.Errorf("expected site-local day 2026-02-15, got %s", resp.Record.Date)
	}
	if *resp.Record.CheckInTime != "2026-02-15T03:00:00+07:00" {
		t.Errorf("expected site-local check-in time, got %s", *resp.Record.CheckInTime)
	}
}

func TestSubmit_ExplicitDay(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.svc.Submit(context.Background(), types.EventRequest{
		WorkerID: "w-2",
		Day:      "2026-02-10",
		Action:   "manual-absent",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Record.Date != "2026-02-10" || resp.NewState != "absent" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSubmit_SkewedTimestampRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Submit(ctx, types.EventRequest{WorkerID: "w-1", Action: "auto"}); err != nil {
		t.Fatalf("check in: %v", err)
	}

	// 30 real seconds later a scanner with a fast clock claims 09:10.
	env.clock.Set(nineAM.Add(30 * time.Second))
	_, err := env.svc.Submit(ctx, types.EventRequest{WorkerID: "w-1", Action: "auto", At: nineAM.Add(10 * time.Minute).Format(time.RFC3339)})
	if !errors.Is(err, service.ErrInvalidTimestamp) {
		t.Fatalf("expected ErrInvalidTimestamp, got %v", err)
	}

	_, err = env.svc.Submit(ctx, types.EventRequest{WorkerID: "w-2", Action: "manual-absent", At: nineAM.Add(72 * time.Hour).Format(time.RFC3339)})
	if !errors.Is(err, service.ErrInvalidTimestamp) {
		t.Fatalf("expected ErrInvalidTimestamp for a future absence, got %v", err)
	}

	recs, err := env.svc.GetForRange(ctx, []string{"w-1", "w-2"}, "2026-02-15", "2026-02-20")
	if err != nil {
		t.Fatalf("GetForRange: %v", err)
	}
	if len(recs.Records) != 1 || recs.Records[0].Status != "checked-in" {
		t.Errorf("expected only the original check-in, got %+v", recs.Records)
	}
}

func TestSubmit_AutoScanUsesServerClockForDwell(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Submit(ctx, types.EventRequest{WorkerID: "w-1", Action: "auto"}); err != nil {
		t.Fatalf("check in: %v", err)
	}

	// Inside the skew window, but only 4 real minutes have passed.
	env.clock.Set(nineAM.Add(4 * time.Minute))
	resp, err := env.svc.Submit(ctx, types.EventRequest{WorkerID: "w-1", Action: "auto", At: nineAM.Add(5*time.Minute + 30*time.Second).Format(time.RFC3339)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Status != "rejected" || resp.Reason != "too-soon" {
		t.Fatalf("expected too-soon on server time, got %+v", resp)
	}

	env.clock.Set(nineAM.Add(5*time.Minute + time.Second))
	resp, err = env.svc.Submit(ctx, types.EventRequest{WorkerID: "w-1", Action: "auto", At: nineAM.Add(4 * time.Minute).Format(time.RFC3339)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.NewState != "present" || *resp.Record.CheckOutTime != "2026-02-15T09:05:01Z" {
		t.Fatalf("expected check-out stamped with server time, got %+v", resp.Record)
	}
}

func TestSubmit_ExplicitDayBounds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  types.EventRequest
	}{
		{"future absence", types.EventRequest{WorkerID: "w-2", Action: "manual-absent", Day: "2026-02-18"}},
		{"auto on another day", types.EventRequest{WorkerID: "w-1", Action: "auto", Day: "2026-02-14"}},
	}
	for _, tc := range cases {
		if _, err := env.svc.Submit(ctx, tc.req); !errors.Is(err, service.ErrInvalidDay) {
			t.Errorf("%s: expected ErrInvalidDay, got %v", tc.name, err)
		}
	}
	if env.records.Len() != 0 {
		t.Errorf("expected nothing stored, got %d records", env.records.Len())
	}
}

func TestSubmit_CustomClockSkew(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewAttendanceService(service.AttendanceDeps{
		Roster:       env.roster,
		Store:        env.records,
		Events:       env.events,
		Logger:       silentLogger(),
		Now:          env.clock.Now,
		MaxClockSkew: 10 * time.Second,
	})
	ctx := context.Background()

	late := nineAM.Add(-30 * time.Second).Format(time.RFC3339)
	if _, err := svc.Submit(ctx, types.EventRequest{WorkerID: "w-2", Action: "manual-absent", At: late}); !errors.Is(err, service.ErrInvalidTimestamp) {
		t.Fatalf("expected ErrInvalidTimestamp past a 10s window, got %v", err)
	}
	// The default window accepts the same request.
	if _, err := env.svc.Submit(ctx, types.EventRequest{WorkerID: "w-2", Action: "manual-absent", At: late}); err != nil {
		t.Fatalf("default window: %v", err)
	}
}

func TestSubmit_NoSignatureRejected(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.svc.Submit(context.Background(), types.EventRequest{WorkerID: "w-2", Action: "auto"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Status != "rejected" || resp.Reason != "no-signature" {
		t.Fatalf("expected no-signature rejection, got %+v", resp)
	}
	if resp.Record != nil {
		t.Error("expected no record")
	}
	if env.records.Len() != 0 {
		t.Error("expected nothing stored")
	}
}

func TestSubmit_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  types.EventRequest
		want error
	}{
		{"missing worker", types.EventRequest{Action: "auto"}, service.ErrInvalidWorkerID},
		{"bad action", types.EventRequest{WorkerID: "w-1", Action: "teleport"}, service.ErrInvalidAction},
		{"bad day", types.EventRequest{WorkerID: "w-1", Action: "auto", Day: "15-02-2026"}, service.ErrInvalidDay},
		{"bad at", types.EventRequest{WorkerID: "w-1", Action: "auto", At: "yesterday"}, service.ErrInvalidTimestamp},
		{"unknown worker", types.EventRequest{WorkerID: "ghost", Action: "auto"}, service.ErrUnknownWorker},
	}
	for _, tc := range cases {
		if _, err := env.svc.Submit(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	if n := len(env.events.Events()); n != 0 {
		t.Errorf("expected no audit events for invalid requests, got %d", n)
	}
}

func TestSubmit_AuditsEveryOutcome(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _ = env.svc.Submit(ctx, types.EventRequest{WorkerID: "w-1", Action: "auto", ScannerID: "scanner-01", SessionID: "s-1"})
	_, _ = env.svc.Submit(ctx, types.EventRequest{WorkerID: "w-1", Action: "auto", ScannerID: "scanner-01", SessionID: "s-1"})

	events := env.events.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 audit events, got %d", len(events))
	}
	if events[0].Result != "ok" || events[0].Status != "checked-in" {
		t.Errorf("event0: %+v", events[0])
	}
	if events[1].Result != "rejected" || events[1].Reason != "too-soon" {
		t.Errorf("event1: %+v", events[1])
	}
	if events[1].ScannerID != "scanner-01" || events[1].SessionID != "s-1" {
		t.Errorf("expected source to be recorded, got %+v", events[1])
	}
}

func TestSubmit_PublishesOnlyAppliedChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	absent := types.EventRequest{WorkerID: "w-2", Action: "manual-absent"}
	_, _ = env.svc.Submit(ctx, absent)
	_, _ = env.svc.Submit(ctx, absent)
	_, _ = env.svc.Submit(ctx, types.EventRequest{WorkerID: "w-2", Action: "manual-checkout"})

	changes := env.changes.Changes()
	if len(changes) != 1 {
		t.Fatalf("expected exactly one broadcast, got %d", len(changes))
	}
	c := changes[0]
	if c.SiteID != "site-a" || c.WorkerID != "w-2" || c.Status != "absent" || c.Action != "manual-absent" {
		t.Errorf("unexpected change %+v", c)
	}
}

func TestSubmit_IdempotentAbsence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	req := types.EventRequest{WorkerID: "w-1", Action: "manual-absent"}

	first, err := env.svc.Submit(ctx, req)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := env.svc.Submit(ctx, req)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !first.Changed || second.Changed {
		t.Errorf("expected changed then unchanged, got %v then %v", first.Changed, second.Changed)
	}
	if second.Status != "ok" || second.NewState != "absent" {
		t.Errorf("unexpected second response %+v", second)
	}
}

func TestSubmit_CancelledContextStillWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := env.svc.Submit(ctx, types.EventRequest{WorkerID: "w-1", Action: "auto"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.NewState != "checked-in" {
		t.Errorf("expected the write to complete, got %+v", resp)
	}
}

// conflictStore always reports a lost race.
type conflictStore struct{ store.AttendanceStore }

func (conflictStore) ApplyEvent(context.Context, attendance.Key, attendance.Event) (store.Applied, error) {
	return store.Applied{}, store.ErrConflict
}

func TestSubmit_ConflictSurfacedAndAudited(t *testing.T) {
	env := newTestEnv(t)
	svc := service.NewAttendanceService(service.AttendanceDeps{
		Roster: env.roster,
		Store:  conflictStore{},
		Events: env.events,
		Logger: silentLogger(),
	})

	_, err := svc.Submit(context.Background(), types.EventRequest{WorkerID: "w-1", Action: "auto"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	events := env.events.Events()
	if len(events) != 1 || events[0].Result != "error" {
		t.Errorf("expected one error audit event, got %+v", events)
	}
}

// ── Queries ──────────────────────────────────────────────────────────────────

func TestGetForDayAndRange(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, req := range []types.EventRequest{
		{WorkerID: "w-1", Action: "auto", At: "2026-02-14T09:00:00Z"},
		{WorkerID: "w-2", Action: "manual-absent", Day: "2026-02-14"},
		{WorkerID: "w-1", Action: "auto", At: "2026-02-15T09:00:00Z"},
	} {
		if req.At != "" {
			at, _ := time.Parse(time.RFC3339, req.At)
			env.clock.Set(at)
		}
		if _, err := env.svc.Submit(ctx, req); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	day, err := env.svc.GetForDay(ctx, []string{"w-1", "w-2", "w-1", " "}, "2026-02-14")
	if err != nil {
		t.Fatalf("GetForDay: %v", err)
	}
	if len(day.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(day.Records))
	}
	if day.Records[1].WorkerID != "w-2" || day.Records[1].CheckInTime != nil {
		t.Errorf("unexpected absent view %+v", day.Records[1])
	}

	rng, err := env.svc.GetForRange(ctx, []string{"w-1"}, "2026-02-01", "2026-02-28")
	if err != nil {
		t.Fatalf("GetForRange: %v", err)
	}
	if len(rng.Records) != 2 || rng.Records[0].Date != "2026-02-14" || rng.Records[1].Date != "2026-02-15" {
		t.Errorf("unexpected range result %+v", rng.Records)
	}
}

func TestGetForRange_Invalid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.svc.GetForRange(ctx, []string{"w-1"}, "2026-02-15", "2026-02-14"); !errors.Is(err, service.ErrInvalidRange) {
		t.Errorf("reversed range: expected ErrInvalidRange, got %v", err)
	}
	if _, err := env.svc.GetForRange(ctx, []string{"w-1"}, "2024-01-01", "2026-01-01"); !errors.Is(err, service.ErrInvalidRange) {
		t.Errorf("long range: expected ErrInvalidRange, got %v", err)
	}
	if _, err := env.svc.GetForDay(ctx, []string{"w-1"}, "nope"); !errors.Is(err, service.ErrInvalidDay) {
		t.Errorf("bad day: expected ErrInvalidDay, got %v", err)
	}
}
