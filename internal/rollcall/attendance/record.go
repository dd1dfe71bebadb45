package attendance

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvariant marks a record that must never be written: a present row
// without a check-out, an absent row that still carries timings, and so on.
// Seeing it means the engine or a storage constraint is broken.
var ErrInvariant = errors.New("attendance invariant violated")

type Status string

const (
	StatusCheckedIn Status = "checked-in"
	StatusPresent   Status = "present"
	StatusAbsent    Status = "absent"
)

func (s Status) Valid() bool {
	switch s {
	case StatusCheckedIn, StatusPresent, StatusAbsent:
		return true
	}
	return false
}

// Terminal reports whether no automatic event may change a record in s
// for the rest of the day. Only manual-absent still applies to a present
// day.
func (s Status) Terminal() bool {
	return s == StatusPresent || s == StatusAbsent
}

// Key identifies the single record a worker may have on a given day.
type Key struct {
	WorkerID string
	Day      Day
}

func (k Key) String() string { return k.WorkerID + "@" + string(k.Day) }

// Record is the attendance row for one worker on one site-local day.
type Record struct {
	WorkerID   string
	Day        Day
	Status     Status
	CheckInAt  *time.Time
	CheckOutAt *time.Time

	// CreatedAt and UpdatedAt are stamped by the store from its own clock
	// when it commits a write, never from the event time.
	CreatedAt time.Time
	UpdatedAt time.Time

	// Version is bumped by the store on every write and used as the
	// compare-and-swap token for updates. The engine never touches it.
	Version int64
}

func (r Record) Key() Key { return Key{WorkerID: r.WorkerID, Day: r.Day} }

// Validate checks the per-record invariants:
//
//   - checkOutAt is set if and only if status is present
//   - an absent record has neither checkInAt nor checkOutAt
//   - a checked-in or present record has a checkInAt
func (r Record) Validate() error {
	if r.WorkerID == "" || r.Day == "" {
		return fmt.Errorf("%w: record without key", ErrInvariant)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: %s has unknown status %q", ErrInvariant, r.Key(), r.Status)
	}
	if (r.Status == StatusPresent) != (r.CheckOutAt != nil) {
		return fmt.Errorf("%w: %s status=%s with checkOutAt set=%t",
			ErrInvariant, r.Key(), r.Status, r.CheckOutAt != nil)
	}
	switch r.Status {
	case StatusAbsent:
		if r.CheckInAt != nil {
			return fmt.Errorf("%w: %s absent with checkInAt set", ErrInvariant, r.Key())
		}
	case StatusCheckedIn, StatusPresent:
		if r.CheckInAt == nil {
			return fmt.Errorf("%w: %s %s without checkInAt", ErrInvariant, r.Key(), r.Status)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can hand records across goroutines.
func (r Record) Clone() Record {
	out := r
	if r.CheckInAt != nil {
		t := *r.CheckInAt
		out.CheckInAt = &t
	}
	if r.CheckOutAt != nil {
		t := *r.CheckOutAt
		out.CheckOutAt = &t
	}
	return out
}
