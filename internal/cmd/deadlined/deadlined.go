// Package deadlined parses daemon command flags and launches the deadline
// daemon runtime.
package deadlined

import (
	"context"
	"flag"
	"time"

	"github.com/castlebay/deadline/internal/app"
	entrypoint "github.com/castlebay/deadline/internal/platform/cmd"
)

// Config holds daemon command configuration.
type Config struct {
	Port          int           `env:"DEADLINE_PORT" envDefault:"8095"`
	JournalDBPath string        `env:"DEADLINE_JOURNAL_DB_PATH" envDefault:"data/journal.db"`
	PendingDBPath string        `env:"DEADLINE_PENDING_DB_PATH" envDefault:"data/deadlines.db"`
	SweepInterval time.Duration `env:"DEADLINE_SWEEP_INTERVAL" envDefault:"1s"`
	SweepBatch    int           `env:"DEADLINE_SWEEP_BATCH" envDefault:"100"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The daemon health gRPC server port")
	fs.StringVar(&cfg.JournalDBPath, "journal-db-path", cfg.JournalDBPath, "The journal SQLite database path")
	fs.StringVar(&cfg.PendingDBPath, "pending-db-path", cfg.PendingDBPath, "The pending-deadline SQLite database path")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Pause between due-deadline sweeps")
	fs.IntVar(&cfg.SweepBatch, "sweep-batch", cfg.SweepBatch, "Maximum due rows claimed per sweep")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the daemon runtime with the given domain registrations.
func Run(ctx context.Context, cfg Config, domain app.Domain) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDeadlined, func(context.Context) error {
		return app.Run(ctx, app.RuntimeConfig{
			Port:          cfg.Port,
			JournalDBPath: cfg.JournalDBPath,
			PendingDBPath: cfg.PendingDBPath,
			SweepInterval: cfg.SweepInterval,
			SweepBatch:    cfg.SweepBatch,
		}, domain)
	})
}
