package deadlined

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("deadlined", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8095 {
		t.Fatalf("port = %d, want 8095", cfg.Port)
	}
	if cfg.JournalDBPath != "data/journal.db" {
		t.Fatalf("journal db = %q", cfg.JournalDBPath)
	}
	if cfg.SweepInterval != time.Second {
		t.Fatalf("sweep interval = %v, want 1s", cfg.SweepInterval)
	}
}

func TestParseConfigEnvAndFlagOverrides(t *testing.T) {
	t.Setenv("DEADLINE_PORT", "9000")
	t.Setenv("DEADLINE_SWEEP_INTERVAL", "250ms")

	fs := flag.NewFlagSet("deadlined", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-sweep-batch", "10"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9000 {
		t.Fatalf("port = %d, want env override 9000", cfg.Port)
	}
	if cfg.SweepInterval != 250*time.Millisecond {
		t.Fatalf("sweep interval = %v, want 250ms", cfg.SweepInterval)
	}
	if cfg.SweepBatch != 10 {
		t.Fatalf("sweep batch = %d, want flag override 10", cfg.SweepBatch)
	}
}
