package scan

import "time"

// DefaultSuppressWindow is how long a worker stays suppressed after an
// admitted detection.
const DefaultSuppressWindow = 30 * time.Second

// Gate throttles repeated detections of the same worker within one session.
// It is owned by a single Session and is not safe for concurrent use.
type Gate struct {
	window time.Duration
	last   map[string]time.Time
}

func NewGate(window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultSuppressWindow
	}
	return &Gate{window: window, last: make(map[string]time.Time)}
}

// Admit reports whether a detection of workerID at now should become an
// event. A worker never seen before is always admitted.
func (g *Gate) Admit(workerID string, now time.Time) bool {
	if prev, ok := g.last[workerID]; ok && now.Sub(prev) < g.window {
		return false
	}
	g.last[workerID] = now
	return true
}

func (g *Gate) Len() int { return len(g.last) }
