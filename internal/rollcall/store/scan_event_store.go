package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScanEventRecord is one line of the submission audit log: every event the
// service saw, including rejections and storage failures.
type ScanEventRecord struct {
	EventID    uuid.UUID
	WorkerID   string
	Day        string
	Action     string
	ScannerID  string // empty for manual actions from the console
	SessionID  string
	Result     string // ok | rejected | error
	Reason     string
	Status     string // status after the event, if any
	ReceivedAt time.Time
	DecidedAt  time.Time
}

// ScanEventStore persists the audit log. It is append-only apart from
// retention pruning.
type ScanEventStore interface {
	RecordEvent(ctx context.Context, rec ScanEventRecord) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
