package scan

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrNoFrame means the source had nothing to offer this iteration.
var ErrNoFrame = errors.New("no frame available")

// Frame is one live probe.
type Frame struct {
	Probe      []float32
	CapturedAt time.Time // zero means "now"
}

// FrameSource feeds a Session. Next returns io.EOF once the source is
// exhausted and ErrNoFrame when it is merely idle. Close releases the
// underlying device or file and must be safe to call more than once.
type FrameSource interface {
	Ready() bool
	Next(ctx context.Context) (Frame, error)
	Close() error
}

type probeLine struct {
	Probe []float32 `json:"probe"`
	At    string    `json:"at,omitempty"`
}

// ProbeFile replays probes recorded as JSON lines:
//
//	{"probe":[0.11,0.42,0.73,0.05],"at":"2026-02-15T09:00:00+07:00"}
//
// Blank lines and lines starting with # are skipped.
type ProbeFile struct {
	mu     sync.Mutex
	f      *os.File
	sc     *bufio.Scanner
	line   int
	closed bool
}

func OpenProbeFile(path string) (*ProbeFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open probe file: %w", err)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &ProbeFile{f: f, sc: sc}, nil
}

func (p *ProbeFile) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

func (p *ProbeFile) Next(ctx context.Context) (Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return Frame{}, io.EOF
	}
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if !p.sc.Scan() {
			if err := p.sc.Err(); err != nil {
				return Frame{}, fmt.Errorf("probe file line %d: %w", p.line+1, err)
			}
			return Frame{}, io.EOF
		}
		p.line++

		text := strings.TrimSpace(p.sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var pl probeLine
		if err := json.Unmarshal([]byte(text), &pl); err != nil {
			return Frame{}, fmt.Errorf("probe file line %d: %w", p.line, err)
		}
		fr := Frame{Probe: pl.Probe}
		if pl.At != "" {
			t, err := time.Parse(time.RFC3339Nano, pl.At)
			if err != nil {
				return Frame{}, fmt.Errorf("probe file line %d: at: %w", p.line, err)
			}
			fr.CapturedAt = t
		}
		return fr, nil
	}
}

func (p *ProbeFile) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.f.Close()
}
