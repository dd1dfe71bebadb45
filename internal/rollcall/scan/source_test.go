package scan_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/scan"
)

func writeProbeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "probes.jsonl")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write probes: %v", err)
	}
	return path
}

func TestProbeFile_ReadsFrames(t *testing.T) {
	path := writeProbeFile(t, `# recorded at gate 2
{"probe":[1,0,0],"at":"2026-02-15T09:00:00+07:00"}

{"probe":[0,1,0]}
`)
	pf, err := scan.OpenProbeFile(path)
	if err != nil {
		t.Fatalf("OpenProbeFile: %v", err)
	}
	defer pf.Close()
	ctx := context.Background()

	f1, err := pf.Next(ctx)
	if err != nil {
		t.Fatalf("frame 1: %v", err)
	}
	if len(f1.Probe) != 3 || f1.CapturedAt.IsZero() {
		t.Errorf("unexpected frame 1 %+v", f1)
	}
	if _, off := f1.CapturedAt.Zone(); off != 7*3600 {
		t.Errorf("expected +07:00 offset, got %d", off)
	}

	f2, err := pf.Next(ctx)
	if err != nil {
		t.Fatalf("frame 2: %v", err)
	}
	if !f2.CapturedAt.IsZero() || f2.Probe[1] != 1 {
		t.Errorf("unexpected frame 2 %+v", f2)
	}

	if _, err := pf.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestProbeFile_BadLine(t *testing.T) {
	pf, err := scan.OpenProbeFile(writeProbeFile(t, "{not json}\n"))
	if err != nil {
		t.Fatalf("OpenProbeFile: %v", err)
	}
	defer pf.Close()

	if _, err := pf.Next(context.Background()); err == nil || errors.Is(err, io.EOF) {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestProbeFile_CloseIsIdempotent(t *testing.T) {
	pf, err := scan.OpenProbeFile(writeProbeFile(t, `{"probe":[1]}`))
	if err != nil {
		t.Fatalf("OpenProbeFile: %v", err)
	}
	if err := pf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := pf.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if pf.Ready() {
		t.Error("closed source must not be ready")
	}
	if _, err := pf.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after close, got %v", err)
	}
}

func TestOpenProbeFile_Missing(t *testing.T) {
	if _, err := scan.OpenProbeFile(filepath.Join(t.TempDir(), "nope.jsonl")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
