package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store"
	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/types"
)

var (
	ErrInvalidSiteID   = errors.New("siteId is required")
	ErrInvalidWorkerID = errors.New("workerId is required")
	ErrInvalidTimezone = errors.New("timezone is not a known IANA zone")
	ErrUnknownWorker   = errors.New("unknown worker")
	ErrUnknownSite     = errors.New("unknown site")
)

// Roster is the attendance core's view of the worker collaborator's data.
type Roster struct {
	store      store.RosterStore
	defaultLoc *time.Location
}

// NewRoster wraps st. defaultLoc is used for sites whose timezone cannot be
// resolved; nil means UTC.
func NewRoster(st store.RosterStore, defaultLoc *time.Location) *Roster {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &Roster{store: st, defaultLoc: defaultLoc}
}

func (r *Roster) PutSite(ctx context.Context, site types.Site) (types.Site, error) {
	site.SiteID = strings.TrimSpace(site.SiteID)
	if site.SiteID == "" {
		return types.Site{}, ErrInvalidSiteID
	}
	site.Timezone = strings.TrimSpace(site.Timezone)
	if site.Timezone == "" {
		site.Timezone = r.defaultLoc.String()
	}
	if _, err := time.LoadLocation(site.Timezone); err != nil {
		return types.Site{}, fmt.Errorf("%w: %q", ErrInvalidTimezone, site.Timezone)
	}

	if err := r.store.UpsertSite(ctx, store.SiteRecord{
		SiteID:   site.SiteID,
		Name:     site.Name,
		Timezone: site.Timezone,
	}); err != nil {
		return types.Site{}, err
	}
	return site, nil
}

func (r *Roster) PutWorker(ctx context.Context, w types.Worker) (types.Worker, error) {
	w.WorkerID = strings.TrimSpace(w.WorkerID)
	w.SiteID = strings.TrimSpace(w.SiteID)
	if w.WorkerID == "" {
		return types.Worker{}, ErrInvalidWorkerID
	}
	if w.SiteID == "" {
		return types.Worker{}, ErrInvalidSiteID
	}

	err := r.store.UpsertWorker(ctx, store.WorkerRecord{
		WorkerID:  w.WorkerID,
		SiteID:    w.SiteID,
		Name:      w.Name,
		Signature: w.Signature,
	})
	if errors.Is(err, store.ErrNotFound) {
		return types.Worker{}, fmt.Errorf("%w: %q", ErrUnknownSite, w.SiteID)
	}
	if err != nil {
		return types.Worker{}, err
	}
	return w, nil
}

// DeleteWorker removes the worker and every attendance record it has. It is
// the only way to clear a day marked absent.
func (r *Roster) DeleteWorker(ctx context.Context, workerID string) error {
	workerID = strings.TrimSpace(workerID)
	if workerID == "" {
		return ErrInvalidWorkerID
	}
	err := r.store.DeleteWorker(ctx, workerID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %q", ErrUnknownWorker, workerID)
	}
	return err
}

// Get returns the site and all of its workers, signatures included. This is
// what a scanner loads its gallery from.
func (r *Roster) Get(ctx context.Context, siteID string) (types.Roster, error) {
	siteID = strings.TrimSpace(siteID)
	if siteID == "" {
		return types.Roster{}, ErrInvalidSiteID
	}
	site, err := r.store.GetSite(ctx, siteID)
	if errors.Is(err, store.ErrNotFound) {
		return types.Roster{}, fmt.Errorf("%w: %q", ErrUnknownSite, siteID)
	}
	if err != nil {
		return types.Roster{}, err
	}

	workers, err := r.store.ListWorkers(ctx, siteID)
	if err != nil {
		return types.Roster{}, err
	}

	out := types.Roster{
		Site:    types.Site{SiteID: site.SiteID, Name: site.Name, Timezone: site.Timezone},
		Workers: make([]types.Worker, 0, len(workers)),
	}
	for _, w := range workers {
		out.Workers = append(out.Workers, types.Worker{
			WorkerID:  w.WorkerID,
			SiteID:    w.SiteID,
			Name:      w.Name,
			Signature: w.Signature,
		})
	}
	return out, nil
}

// resolveWorker returns the worker and the location its site-local day is
// computed in.
func (r *Roster) resolveWorker(ctx context.Context, workerID string) (store.WorkerRecord, string, *time.Location, error) {
	w, err := r.store.GetWorker(ctx, workerID)
	if errors.Is(err, store.ErrNotFound) {
		return store.WorkerRecord{}, "", nil, fmt.Errorf("%w: %q", ErrUnknownWorker, workerID)
	}
	if err != nil {
		return store.WorkerRecord{}, "", nil, err
	}

	site, err := r.store.GetSite(ctx, w.SiteID)
	if errors.Is(err, store.ErrNotFound) {
		return w, w.SiteID, r.defaultLoc, nil
	}
	if err != nil {
		return store.WorkerRecord{}, "", nil, err
	}
	return w, site.SiteID, site.Location(r.defaultLoc), nil
}
