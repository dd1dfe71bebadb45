package scan

import (
	"errors"
	"math"
)

// DefaultThreshold is the largest normalized distance accepted as a match.
const DefaultThreshold = 0.4

var ErrEmptyProbe = errors.New("empty probe")

// Match is a scorer's best guess. WorkerID is empty when the gallery had
// nothing comparable.
type Match struct {
	WorkerID string
	Distance float64
}

func (m Match) Found() bool { return m.WorkerID != "" }

// Scorer compares a live probe against a gallery. Implementations must
// return distances on a 0..1 scale where smaller is closer.
type Scorer interface {
	Match(probe []float32, g *Gallery) (Match, error)
}

// EuclideanScorer is a nearest-neighbour scorer over unit-normalized
// vectors. The Euclidean distance between two unit vectors lies in [0, 2];
// it is halved to land on the 0..1 scale. Entries whose dimension differs
// from the probe are ignored.
type EuclideanScorer struct{}

func (EuclideanScorer) Match(probe []float32, g *Gallery) (Match, error) {
	p, ok := unit(probe)
	if !ok {
		return Match{}, ErrEmptyProbe
	}

	best := Match{Distance: math.Inf(1)}
	for _, e := range g.Entries() {
		if len(e.Signature) != len(p) {
			continue
		}
		ref, ok := unit(e.Signature)
		if !ok {
			continue
		}
		var sum float64
		for i := range p {
			d := p[i] - ref[i]
			sum += d * d
		}
		if dist := math.Sqrt(sum) / 2; dist < best.Distance {
			best = Match{WorkerID: e.WorkerID, Distance: dist}
		}
	}
	return best, nil
}

func unit(v []float32) ([]float64, bool) {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return nil, false
	}
	norm = math.Sqrt(norm)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x) / norm
	}
	return out, true
}
