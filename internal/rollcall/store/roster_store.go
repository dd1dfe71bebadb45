package store

import (
	"context"
	"time"
)

type SiteRecord struct {
	SiteID   string
	Name     string
	Timezone string // IANA name, e.g. "Asia/Jakarta"
}

// Location resolves the site's timezone, falling back to fallback (or UTC)
// when it is empty or unknown.
func (s SiteRecord) Location(fallback *time.Location) *time.Location {
	if s.Timezone != "" {
		if loc, err := time.LoadLocation(s.Timezone); err == nil {
			return loc
		}
	}
	if fallback != nil {
		return fallback
	}
	return time.UTC
}

type WorkerRecord struct {
	WorkerID  string
	SiteID    string
	Name      string
	Signature []float32 // nil when no biometric signature is on file
}

func (w WorkerRecord) HasSignature() bool { return len(w.Signature) > 0 }

// RosterStore holds sites and their workers. It is written by the
// employee-management collaborator and only read by the attendance core.
// Deleting a worker also deletes its attendance records.
type RosterStore interface {
	UpsertSite(ctx context.Context, site SiteRecord) error
	GetSite(ctx context.Context, siteID string) (SiteRecord, error)

	UpsertWorker(ctx context.Context, w WorkerRecord) error
	GetWorker(ctx context.Context, workerID string) (WorkerRecord, error)
	ListWorkers(ctx context.Context, siteID string) ([]WorkerRecord, error)
	DeleteWorker(ctx context.Context, workerID string) error
}
