package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store"
)

// WorkerPurger is told when a worker is deleted so dependent data can go
// with it.
type WorkerPurger interface {
	PurgeWorker(workerID string)
}

type RosterStore struct {
	mu      sync.RWMutex
	sites   map[string]store.SiteRecord
	workers map[string]store.WorkerRecord
	purgers []WorkerPurger
}

func NewRosterStore(purgers ...WorkerPurger) *RosterStore {
	return &RosterStore{
		sites:   make(map[string]store.SiteRecord),
		workers: make(map[string]store.WorkerRecord),
		purgers: purgers,
	}
}

func (s *RosterStore) UpsertSite(_ context.Context, site store.SiteRecord) error {
	site.SiteID = strings.TrimSpace(site.SiteID)
	if site.SiteID == "" {
		return fmt.Errorf("UpsertSite: empty site id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sites[site.SiteID] = site
	return nil
}

func (s *RosterStore) GetSite(_ context.Context, siteID string) (store.SiteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	site, ok := s.sites[siteID]
	if !ok {
		return store.SiteRecord{}, fmt.Errorf("site %q: %w", siteID, store.ErrNotFound)
	}
	return site, nil
}

func (s *RosterStore) UpsertWorker(_ context.Context, w store.WorkerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sites[w.SiteID]; !ok {
		return fmt.Errorf("UpsertWorker %s: site %q: %w", w.WorkerID, w.SiteID, store.ErrNotFound)
	}
	w.Signature = slices.Clone(w.Signature)
	s.workers[w.WorkerID] = w
	return nil
}

func (s *RosterStore) GetWorker(_ context.Context, workerID string) (store.WorkerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workers[workerID]
	if !ok {
		return store.WorkerRecord{}, fmt.Errorf("worker %q: %w", workerID, store.ErrNotFound)
	}
	w.Signature = slices.Clone(w.Signature)
	return w, nil
}

func (s *RosterStore) ListWorkers(_ context.Context, siteID string) ([]store.WorkerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.WorkerRecord
	for _, w := range s.workers {
		if w.SiteID == siteID {
			w.Signature = slices.Clone(w.Signature)
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkerID < out[j].WorkerID })
	return out, nil
}

func (s *RosterStore) DeleteWorker(_ context.Context, workerID string) error {
	s.mu.Lock()
	_, ok := s.workers[workerID]
	delete(s.workers, workerID)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("worker %q: %w", workerID, store.ErrNotFound)
	}
	for _, p := range s.purgers {
		p.PurgeWorker(workerID)
	}
	return nil
}
