// Package notify broadcasts applied attendance transitions to collaborators
// (payroll, dashboards) that do not poll the attendance store.
package notify

import (
	"context"
	"sync"
)

// Change is one applied transition. Rejections and no-ops are never
// published.
type Change struct {
	SiteID     string `json:"siteId"`
	WorkerID   string `json:"workerId"`
	Day        string `json:"day"`
	Status     string `json:"status"`
	CheckInAt  string `json:"checkInAt,omitempty"`
	CheckOutAt string `json:"checkOutAt,omitempty"`
	Action     string `json:"action"`
	At         string `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Nop drops every change.
type Nop struct{}

func (Nop) Publish(context.Context, Change) error { return nil }

// Recorder keeps published changes in memory. Used by tests and by the dev
// server when no broker is configured.
type Recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *Recorder) Publish(_ context.Context, c Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
	return nil
}

// Changes returns a copy of everything published so far.
func (r *Recorder) Changes() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Change, len(r.changes))
	copy(out, r.changes)
	return out
}
