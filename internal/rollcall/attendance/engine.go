package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultMinDwell is the minimum time between check-in and an automatic
// check-out.
const DefaultMinDwell = 5 * time.Minute

var ErrInvalidAction = errors.New("action must be one of auto, manual-checkout, manual-absent")

type Action string

const (
	ActionAutoScan       Action = "auto"
	ActionManualCheckout Action = "manual-checkout"
	ActionManualAbsent   Action = "manual-absent"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionAutoScan, ActionManualCheckout, ActionManualAbsent:
		return a, nil
	case "auto-scan":
		return ActionAutoScan, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

func (a Action) Manual() bool { return a == ActionManualCheckout || a == ActionManualAbsent }

// Event is one intent to change a worker's attendance for a day.
type Event struct {
	Action Action
	At     time.Time

	// SignatureOnFile is only consulted for automatic scans: a worker with
	// no biometric signature cannot have been matched by a scanner.
	SignatureOnFile bool
}

type Result string

const (
	ResultOK       Result = "ok"
	ResultRejected Result = "rejected"
)

// Reason explains a rejection. Rejections are business outcomes, not errors.
type Reason string

const (
	ReasonTooSoon          Reason = "too-soon"
	ReasonAlreadyCompleted Reason = "already-completed"
	ReasonNoSignature      Reason = "no-signature"
	ReasonNotCheckedIn     Reason = "not-checked-in"
)

// Outcome is what the caller learns about an event.
type Outcome struct {
	Result Result
	// Status after the event. Empty when the worker still has no record
	// for the day.
	Status Status
	Reason Reason
	// Changed is false for rejections and for idempotent repeats.
	Changed bool
}

func (o Outcome) OK() bool { return o.Result == ResultOK }

// Rules holds the tunable guards of the engine.
type Rules struct {
	MinDwell time.Duration
}

func DefaultRules() Rules { return Rules{MinDwell: DefaultMinDwell} }

// Decision is the engine's answer. Next is nil when nothing has to be
// written.
type Decision struct {
	Outcome Outcome
	Next    *Record
}

// Decide is the transition function. cur is the stored record for key, or
// nil when the worker has no record for that day yet. Decide never mutates
// cur.
//
//	no-record  + auto            -> checked-in (checkInAt = at)
//	no-record  + manual-absent   -> absent
//	no-record  + manual-checkout -> rejected not-checked-in
//	checked-in + auto            -> present if dwell elapsed, else rejected too-soon
//	checked-in + manual-checkout -> present (dwell bypassed)
//	checked-in + manual-absent   -> absent (timings cleared)
//	present    + manual-absent   -> absent (timings cleared)
//	present    + auto/checkout   -> rejected already-completed
//	absent     + manual-absent   -> absent, no-op
//	absent     + auto/checkout   -> rejected already-completed
func Decide(cur *Record, key Key, ev Event, rules Rules) Decision {
	if ev.Action == ActionAutoScan && !ev.SignatureOnFile {
		return reject(cur, ReasonNoSignature)
	}

	if cur == nil {
		switch ev.Action {
		case ActionAutoScan:
			at := ev.At
			return accept(&Record{
				WorkerID:  key.WorkerID,
				Day:       key.Day,
				Status:    StatusCheckedIn,
				CheckInAt: &at,
			})
		case ActionManualAbsent:
			return accept(&Record{
				WorkerID: key.WorkerID,
				Day:      key.Day,
				Status:   StatusAbsent,
			})
		default:
			return reject(nil, ReasonNotCheckedIn)
		}
	}

	switch cur.Status {
	case StatusCheckedIn:
		switch ev.Action {
		case ActionAutoScan:
			if cur.CheckInAt == nil || ev.At.Sub(*cur.CheckInAt) < rules.MinDwell {
				return reject(cur, ReasonTooSoon)
			}
			return accept(checkOut(cur, ev.At))
		case ActionManualCheckout:
			return accept(checkOut(cur, ev.At))
		case ActionManualAbsent:
			return accept(markAbsent(cur))
		}
	case StatusPresent:
		// A completed day is closed to scans and check-outs, but an operator
		// can still override it.
		if ev.Action == ActionManualAbsent {
			return accept(markAbsent(cur))
		}
	case StatusAbsent:
		if ev.Action == ActionManualAbsent {
			return Decision{Outcome: Outcome{Result: ResultOK, Status: StatusAbsent}}
		}
	}

	return reject(cur, ReasonAlreadyCompleted)
}

func checkOut(cur *Record, at time.Time) *Record {
	next := cur.Clone()
	next.Status = StatusPresent
	next.CheckOutAt = &at
	return &next
}

func markAbsent(cur *Record) *Record {
	next := cur.Clone()
	next.Status = StatusAbsent
	next.CheckInAt = nil
	next.CheckOutAt = nil
	return &next
}

func accept(next *Record) Decision {
	return Decision{
		Outcome: Outcome{Result: ResultOK, Status: next.Status, Changed: true},
		Next:    next,
	}
}

func reject(cur *Record, reason Reason) Decision {
	o := Outcome{Result: ResultRejected, Reason: reason}
	if cur != nil {
		o.Status = cur.Status
	}
	return Decision{Outcome: o}
}
