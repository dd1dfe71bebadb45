package scan

import (
	"slices"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/types"
)

// Entry is one labelled reference signature.
type Entry struct {
	WorkerID  string
	Signature []float32
}

// Gallery holds one reference signature per worker of a site. It is built
// once per session and never modified, so it can be read from any
// goroutine.
type Gallery struct {
	entries []Entry
	index   map[string]int
}

// NewGallery keeps the workers that have a signature on file. A later entry
// for the same worker replaces an earlier one.
func NewGallery(workers []types.Worker) *Gallery {
	g := &Gallery{index: make(map[string]int, len(workers))}
	for _, w := range workers {
		if len(w.Signature) == 0 || w.WorkerID == "" {
			continue
		}
		e := Entry{WorkerID: w.WorkerID, Signature: slices.Clone(w.Signature)}
		if i, ok := g.index[w.WorkerID]; ok {
			g.entries[i] = e
			continue
		}
		g.index[w.WorkerID] = len(g.entries)
		g.entries = append(g.entries, e)
	}
	return g
}

func (g *Gallery) Len() int { return len(g.entries) }

// Entries returns the gallery contents. Callers must not modify them.
func (g *Gallery) Entries() []Entry { return g.entries }

func (g *Gallery) HasSignature(workerID string) bool {
	_, ok := g.index[workerID]
	return ok
}
