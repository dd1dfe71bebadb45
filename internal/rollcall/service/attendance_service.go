package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/attendance"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/notify"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/types"
)

// MaxRangeDays bounds a single GetForRange query.
const MaxRangeDays = 366

// DefaultMaxClockSkew is how far a client-supplied timestamp may be from
// the server clock.
const DefaultMaxClockSkew = 2 * time.Minute

var (
	ErrInvalidAction    = attendance.ErrInvalidAction
	ErrInvalidDay       = attendance.ErrInvalidDay
	ErrInvalidTimestamp = errors.New("at must be an RFC3339 timestamp close to server time")
	ErrInvalidRange     = errors.New("start must not be after end and the range must not exceed 366 days")
)

type AttendanceDeps struct {
	Roster   *Roster
	Store    store.AttendanceStore
	Events   store.ScanEventStore
	Notifier notify.Publisher
	Logger   *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	// MaxClockSkew bounds |at - server time|. Zero means DefaultMaxClockSkew.
	MaxClockSkew time.Duration
}

type AttendanceService struct {
	roster   *Roster
	store    store.AttendanceStore
	events   store.ScanEventStore
	notifier notify.Publisher
	logger   *slog.Logger
	now      func() time.Time
	skew     time.Duration
}

func NewAttendanceService(d AttendanceDeps) *AttendanceService {
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MaxClockSkew <= 0 {
		d.MaxClockSkew = DefaultMaxClockSkew
	}
	return &AttendanceService{
		roster:   d.Roster,
		store:    d.Store,
		events:   d.Events,
		notifier: d.Notifier,
		logger:   d.Logger,
		now:      d.Now,
		skew:     d.MaxClockSkew,
	}
}

// Submit applies one attendance event. Rejections come back as a response
// with status "rejected" and a nil error; an error means the request was
// invalid or the write could not be completed.
func (s *AttendanceService) Submit(ctx context.Context, req types.EventRequest) (types.EventResponse, error) {
	received := s.now()

	workerID := strings.TrimSpace(req.WorkerID)
	if workerID == "" {
		return types.EventResponse{}, ErrInvalidWorkerID
	}
	action, err := attendance.ParseAction(req.Action)
	if err != nil {
		return types.EventResponse{}, err
	}
	at, err := s.eventTime(req.At, action, received)
	if err != nil {
		return types.EventResponse{}, err
	}

	worker, siteID, loc, err := s.roster.resolveWorker(ctx, workerID)
	if err != nil {
		return types.EventResponse{}, err
	}
	at = at.In(loc)

	day := attendance.DayOf(at, loc)
	if strings.TrimSpace(req.Day) != "" {
		explicit, err := attendance.ParseDay(req.Day)
		if err != nil {
			return types.EventResponse{}, err
		}
		switch {
		case action == attendance.ActionAutoScan && explicit != day:
			return types.EventResponse{}, fmt.Errorf("%w: an auto scan belongs to %s, not %s", ErrInvalidDay, day, explicit)
		case attendance.DayOf(received, loc).Before(explicit):
			return types.EventResponse{}, fmt.Errorf("%w: %s is in the future", ErrInvalidDay, explicit)
		}
		day = explicit
	}

	key := attendance.Key{WorkerID: workerID, Day: day}
	ev := attendance.Event{Action: action, At: at, SignatureOnFile: worker.HasSignature()}

	// A submission that reached the store is finished even if the caller
	// goes away: a scanner shutting down must not leave half an event.
	applied, err := s.store.ApplyEvent(context.WithoutCancel(ctx), key, ev)
	if err != nil {
		s.logFailure(key, ev, err)
		s.audit(ctx, req, key, action, "error", "", "", received)
		return types.EventResponse{}, err
	}

	out := applied.Outcome
	s.audit(ctx, req, key, action, string(out.Result), string(out.Reason), string(out.Status), received)

	if !out.OK() {
		s.logger.Info("attendance event rejected",
			"worker_id", workerID, "day", day, "action", action,
			"reason", out.Reason, "status", out.Status, "scanner_id", req.ScannerID)
	}
	if out.Changed && applied.Record != nil {
		s.publish(ctx, siteID, action, at, *applied.Record)
	}

	resp := types.EventResponse{
		Status:     string(out.Result),
		Reason:     string(out.Reason),
		Changed:    out.Changed,
		ServerTime: s.now().UTC().Format(time.RFC3339Nano),
	}
	if out.OK() {
		resp.NewState = string(out.Status)
	}
	if applied.Record != nil {
		v := toView(*applied.Record)
		resp.Record = &v
	}
	return resp, nil
}

// eventTime resolves the time an event happened at. A client timestamp must
// be within the skew window of the server clock. Automatic scans are always
// stamped with the receive time, so the dwell guard runs on the server clock.
func (s *AttendanceService) eventTime(raw string, action attendance.Action, received time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return received, nil
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
	}
	if d := at.Sub(received); d > s.skew || d < -s.skew {
		return time.Time{}, fmt.Errorf("%w: %q is %s from server time", ErrInvalidTimestamp, raw, d.Round(time.Second))
	}
	if action == attendance.ActionAutoScan {
		return received, nil
	}
	return at, nil
}

func (s *AttendanceService) logFailure(key attendance.Key, ev attendance.Event, err error) {
	switch {
	case errors.Is(err, store.ErrConflict):
		s.logger.Warn("attendance write conflict persisted after retry",
			"key", key.String(), "action", ev.Action, "error", err)
	case errors.Is(err, attendance.ErrInvariant):
		s.logger.Error("attendance invariant violated, write refused",
			"key", key.String(), "action", ev.Action, "at", ev.At, "error", err)
	case errors.Is(err, store.ErrNotFound):
		s.logger.Info("attendance event for missing worker", "key", key.String(), "error", err)
	default:
		s.logger.Error("attendance write failed", "key", key.String(), "action", ev.Action, "error", err)
	}
}

// audit appends to the scan event log. Failures are logged and otherwise
// ignored: the submitter already has its answer.
func (s *AttendanceService) audit(
	ctx context.Context,
	req types.EventRequest,
	key attendance.Key,
	action attendance.Action,
	result, reason, status string,
	received time.Time,
) {
	if s.events == nil {
		return
	}
	rec := store.ScanEventRecord{
		WorkerID:   key.WorkerID,
		Day:        string(key.Day),
		Action:     string(action),
		ScannerID:  strings.TrimSpace(req.ScannerID),
		SessionID:  strings.TrimSpace(req.SessionID),
		Result:     result,
		Reason:     reason,
		Status:     status,
		ReceivedAt: received.UTC(),
		DecidedAt:  s.now().UTC(),
	}
	if err := s.events.RecordEvent(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("scan event audit write failed", "key", key.String(), "error", err)
	}
}

func (s *AttendanceService) publish(ctx context.Context, siteID string, action attendance.Action, at time.Time, rec attendance.Record) {
	c := notify.Change{
		SiteID:   siteID,
		WorkerID: rec.WorkerID,
		Day:      string(rec.Day),
		Status:   string(rec.Status),
		Action:   string(action),
		At:       at.Format(time.RFC3339Nano),
	}
	if rec.CheckInAt != nil {
		c.CheckInAt = rec.CheckInAt.Format(time.RFC3339Nano)
	}
	if rec.CheckOutAt != nil {
		c.CheckOutAt = rec.CheckOutAt.Format(time.RFC3339Nano)
	}
	if err := s.notifier.Publish(context.WithoutCancel(ctx), c); err != nil {
		s.logger.Warn("attendance change broadcast failed", "key", rec.Key().String(), "error", err)
	}
}

func (s *AttendanceService) GetForDay(ctx context.Context, workerIDs []string, day string) (types.AttendanceList, error) {
	d, err := attendance.ParseDay(day)
	if err != nil {
		return types.AttendanceList{}, err
	}
	recs, err := s.store.GetForDay(ctx, cleanIDs(workerIDs), d)
	if err != nil {
		return types.AttendanceList{}, err
	}
	return toList(recs), nil
}

func (s *AttendanceService) GetForRange(ctx context.Context, workerIDs []string, start, end string) (types.AttendanceList, error) {
	from, err := attendance.ParseDay(start)
	if err != nil {
		return types.AttendanceList{}, err
	}
	to, err := attendance.ParseDay(end)
	if err != nil {
		return types.AttendanceList{}, err
	}
	if to.Before(from) || from.AddDays(MaxRangeDays).Before(to) {
		return types.AttendanceList{}, fmt.Errorf("%w: %s..%s", ErrInvalidRange, from, to)
	}

	recs, err := s.store.GetForRange(ctx, cleanIDs(workerIDs), from, to)
	if err != nil {
		return types.AttendanceList{}, err
	}
	return toList(recs), nil
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toList(recs []attendance.Record) types.AttendanceList {
	out := types.AttendanceList{Records: make([]types.AttendanceView, 0, len(recs))}
	for _, r := range recs {
		out.Records = append(out.Records, toView(r))
	}
	return out
}

func toView(r attendance.Record) types.AttendanceView {
	return types.AttendanceView{
		WorkerID:     r.WorkerID,
		Date:         string(r.Day),
		Status:       string(r.Status),
		CheckInTime:  formatOptional(r.CheckInAt),
		CheckOutTime: formatOptional(r.CheckOutAt),
	}
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339Nano)
	return &s
}
