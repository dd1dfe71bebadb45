package scan_test

import (
	"testing"
	"time"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/scan"
)

var t0 = time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC)

func TestGate_SuppressesWithinWindow(t *testing.T) {
	g := scan.NewGate(30 * time.Second)

	if !g.Admit("w-1", t0) {
		t.Fatal("first detection must be admitted")
	}
	if g.Admit("w-1", t0.Add(500*time.Millisecond)) {
		t.Error("expected suppression at +500ms")
	}
	if g.Admit("w-1", t0.Add(29*time.Second)) {
		t.Error("expected suppression at +29s")
	}
	if !g.Admit("w-1", t0.Add(30*time.Second)) {
		t.Error("expected admission once the window has passed")
	}
	if g.Admit("w-1", t0.Add(45*time.Second)) {
		t.Error("expected the window to restart from the last admission")
	}
}

func TestGate_WorkersAreIndependent(t *testing.T) {
	g := scan.NewGate(0)

	if !g.Admit("w-1", t0) || !g.Admit("w-2", t0) {
		t.Fatal("distinct workers must not suppress each other")
	}
	if g.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", g.Len())
	}
}

func TestGate_SessionsDoNotShareState(t *testing.T) {
	a := scan.NewGate(scan.DefaultSuppressWindow)
	b := scan.NewGate(scan.DefaultSuppressWindow)

	a.Admit("w-1", t0)
	if !b.Admit("w-1", t0.Add(time.Second)) {
		t.Error("a second gate must not see the first gate's admissions")
	}
}
