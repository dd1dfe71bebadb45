package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store"
)

type ScannerStore struct {
	mu    sync.RWMutex
	known map[string]struct{}
	last  map[string]store.ScannerSnapshot
}

func NewScannerStore(knownScanners []string) *ScannerStore {
	k := make(map[string]struct{}, len(knownScanners))
	for _, id := range knownScanners {
		id = strings.TrimSpace(id)
		if id != "" {
			k[id] = struct{}{}
		}
	}
	return &ScannerStore{
		known: k,
		last:  make(map[string]store.ScannerSnapshot),
	}
}

func (s *ScannerStore) IsKnown(_ context.Context, scannerID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.known[scannerID]
	return ok, nil
}

func (s *ScannerStore) RecordHeartbeat(_ context.Context, snap store.ScannerSnapshot) error {
	if snap.ReceivedAt.IsZero() {
		snap.ReceivedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[snap.ScannerID] = snap
	return nil
}

// Last returns the latest snapshot for scannerID.  Test-only helper.
func (s *ScannerStore) Last(scannerID string) (store.ScannerSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.last[scannerID]
	return snap, ok
}
