package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestRootCommands(t *testing.T) {
	want := map[string]bool{"serve": false, "migrate": false, "seed-dev": false, "scan": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestMigrateAndSeed(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "rollcall.db")
	t.Setenv("ROLLCALL_DB_PATH", dbPath)
	t.Setenv("ROLLCALL_CONFIG_FILE", "")
	t.Setenv("ROLLCALL_KNOWN_SCANNERS", "gate-1")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil); rootCmd.SetArgs(nil) })

	rootCmd.SetArgs([]string{"migrate"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out.String(), "schema versions [1]") {
		t.Errorf("unexpected migrate output %q", out.String())
	}

	out.Reset()
	rootCmd.SetArgs([]string{"seed-dev", "--timezone", "UTC"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("seed-dev: %v", err)
	}
	if !strings.Contains(out.String(), "1 scanners") {
		t.Errorf("unexpected seed output %q", out.String())
	}
}

func TestScanRequiresFlags(t *testing.T) {
	rootCmd.SetArgs([]string{"scan"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	rootCmd.SetErr(&bytes.Buffer{})
	t.Cleanup(func() { rootCmd.SetErr(nil) })

	if err := rootCmd.Execute(); err == nil {
		t.Fatal("expected missing required flags to fail")
	}
}
