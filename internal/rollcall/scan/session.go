package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/types"
)

// DefaultInterval is the fixed pause between two iterations.
const DefaultInterval = 500 * time.Millisecond

// ErrCapabilityUnavailable means the scorer or the frame source could not be
// brought up. The session reports itself disabled; manual actions are
// unaffected.
var ErrCapabilityUnavailable = errors.New("scanning capability unavailable")

type State string

const (
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateStopped  State = "stopped"
)

// Dispatcher delivers an admitted detection to the attendance service.
type Dispatcher interface {
	Submit(ctx context.Context, req types.EventRequest) (types.EventResponse, error)
}

// StatusReporter receives session state changes.
type StatusReporter interface {
	Heartbeat(ctx context.Context, req types.ScannerHeartbeatRequest) (types.ScannerHeartbeatResponse, error)
}

type Config struct {
	ScannerID      string
	SiteID         string
	Threshold      float64       // defaults to DefaultThreshold
	Interval       time.Duration // defaults to DefaultInterval
	SuppressWindow time.Duration // defaults to DefaultSuppressWindow
}

type Deps struct {
	Gallery *Gallery
	Scorer  Scorer

	// OpenSource brings up the frame source. A failure here disables the
	// session instead of crashing it.
	OpenSource func(ctx context.Context) (FrameSource, error)

	Dispatcher Dispatcher
	Reporter   StatusReporter // optional
	Logger     *slog.Logger

	Now func() time.Time
}

// Stats counts what a session did. Every iteration ends in exactly one of
// Skipped, NoMatch, Suppressed or Dispatched, except the final one that finds
// a finite source exhausted, which is counted only in Iterations.
type Stats struct {
	Iterations int
	Skipped    int
	NoMatch    int
	Suppressed int
	Dispatched int
	Rejected   int
	Errors     int
}

// Session is one Detection Loop run: a frame source, a private Gate and a
// shared read-only Gallery.
type Session struct {
	id   string
	cfg  Config
	deps Deps
	gate *Gate
	now  func() time.Time

	mu    sync.Mutex
	state State
	stats Stats
}

func NewSession(cfg Config, deps Deps) *Session {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Gallery == nil {
		deps.Gallery = NewGallery(nil)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		id:   uuid.NewString(),
		cfg:  cfg,
		deps: deps,
		gate: NewGate(cfg.SuppressWindow),
		now:  now,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run drives the loop until ctx is cancelled or the source is exhausted.
// It returns nil in both cases, and an error wrapping
// ErrCapabilityUnavailable when the session could not start.
func (s *Session) Run(ctx context.Context) error {
	log := s.deps.Logger.With("scanner_id", s.cfg.ScannerID, "session_id", s.id)

	if s.deps.Scorer == nil || s.deps.OpenSource == nil {
		return s.disable(ctx, log, errors.New("no scorer or frame source configured"))
	}
	src, err := s.deps.OpenSource(ctx)
	if err != nil {
		return s.disable(ctx, log, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("frame source close failed", "error", err)
		}
		s.setState(context.WithoutCancel(ctx), StateStopped, "")
		log.Info("scan session stopped", "stats", s.Stats())
	}()

	s.setState(ctx, StateRunning, "")
	log.Info("scan session started", "gallery_size", s.deps.Gallery.Len(), "threshold", s.cfg.Threshold)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if done := s.step(ctx, log, src); done {
			return nil
		}
		if !sleep(ctx, s.cfg.Interval) {
			return nil
		}
	}
}

// step runs one iteration. It reports true once the source is exhausted.
func (s *Session) step(ctx context.Context, log *slog.Logger, src FrameSource) bool {
	s.count(func(st *Stats) { st.Iterations++ })

	if !src.Ready() {
		s.count(func(st *Stats) { st.Skipped++ })
		return false
	}
	frame, err := src.Next(ctx)
	switch {
	case errors.Is(err, io.EOF):
		return true
	case errors.Is(err, ErrNoFrame), errors.Is(err, context.Canceled):
		s.count(func(st *Stats) { st.Skipped++ })
		return false
	case err != nil:
		log.Warn("frame read failed", "error", err)
		s.count(func(st *Stats) { st.Skipped++; st.Errors++ })
		return false
	}

	m, err := s.deps.Scorer.Match(frame.Probe, s.deps.Gallery)
	if err != nil {
		log.Warn("scorer failed", "error", err)
		s.count(func(st *Stats) { st.Skipped++; st.Errors++ })
		return false
	}
	if !m.Found() || m.Distance > s.cfg.Threshold || !s.deps.Gallery.HasSignature(m.WorkerID) {
		s.count(func(st *Stats) { st.NoMatch++ })
		return false
	}

	at := frame.CapturedAt
	if at.IsZero() {
		at = s.now()
	}
	if !s.gate.Admit(m.WorkerID, at) {
		s.count(func(st *Stats) { st.Suppressed++ })
		return false
	}

	s.dispatch(ctx, log, m, at)
	return false
}

// dispatch sends the auto-scan. It is not aborted by cancellation: a stop
// request lets the in-flight event finish.
func (s *Session) dispatch(ctx context.Context, log *slog.Logger, m Match, at time.Time) {
	s.count(func(st *Stats) { st.Dispatched++ })

	resp, err := s.deps.Dispatcher.Submit(context.WithoutCancel(ctx), types.EventRequest{
		WorkerID:  m.WorkerID,
		Action:    "auto",
		At:        at.Format(time.RFC3339Nano),
		ScannerID: s.cfg.ScannerID,
		SessionID: s.id,
	})
	if err != nil {
		log.Error("auto-scan dispatch failed", "worker_id", m.WorkerID, "error", err)
		s.count(func(st *Stats) { st.Errors++ })
		return
	}
	if resp.Status != "ok" {
		s.count(func(st *Stats) { st.Rejected++ })
		log.Info("auto-scan rejected", "worker_id", m.WorkerID, "reason", resp.Reason, "distance", m.Distance)
		return
	}
	log.Info("auto-scan applied", "worker_id", m.WorkerID, "new_state", resp.NewState, "changed", resp.Changed, "distance", m.Distance)
}

func (s *Session) disable(ctx context.Context, log *slog.Logger, cause error) error {
	err := fmt.Errorf("%w: %v", ErrCapabilityUnavailable, cause)
	log.Error("scan session disabled", "error", cause)
	s.setState(ctx, StateDisabled, cause.Error())
	return err
}

func (s *Session) setState(ctx context.Context, st State, reason string) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()

	if s.deps.Reporter == nil {
		return
	}
	_, err := s.deps.Reporter.Heartbeat(ctx, types.ScannerHeartbeatRequest{
		ScannerID:   s.cfg.ScannerID,
		SiteID:      s.cfg.SiteID,
		SessionID:   s.id,
		State:       string(st),
		Reason:      reason,
		GallerySize: s.deps.Gallery.Len(),
	})
	if err != nil {
		s.deps.Logger.Warn("scanner status report failed", "state", st, "error", err)
	}
}

func (s *Session) count(f func(*Stats)) {
	s.mu.Lock()
	f(&s.stats)
	s.mu.Unlock()
}

// sleep waits d or until ctx is done. It reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
