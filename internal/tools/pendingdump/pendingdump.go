// Package pendingdump inspects a pending-deadline store and prints each row
// in its wire form.
package pendingdump

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"google.golang.org/protobuf/encoding/protojson"

	"github.com/castlebay/deadline/internal/deadline/storage"
	storesqlite "github.com/castlebay/deadline/internal/deadline/storage/sqlite"
	"github.com/castlebay/deadline/internal/transport/wire"
)

// Config holds configuration for the pending-deadline dump.
type Config struct {
	DBPath string
	Filter string
	Limit  int
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{DBPath: "data/deadlines.db"}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "pending-deadline SQLite database path")
	fs.StringVar(&cfg.Filter, "filter", cfg.Filter, `AIP-160 filter, e.g. name = "expire" AND entity_type = "timer"`)
	fs.IntVar(&cfg.Limit, "limit", cfg.Limit, "maximum rows to print (default: all)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run lists pending rows matching the filter and writes one line per row.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		return errors.New("output is required")
	}
	store, err := storesqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open pending-deadline store: %w", err)
	}
	defer store.Close()

	rows, err := store.List(ctx, storage.ListQuery{Filter: cfg.Filter, Limit: cfg.Limit})
	if err != nil {
		return fmt.Errorf("list pending deadlines: %w", err)
	}
	for _, row := range rows {
		if err := writeRow(out, row); err != nil {
			return err
		}
	}
	return nil
}

// writeRow prints the row's wire record as a key=value line.
func writeRow(out io.Writer, row storage.PendingDeadline) error {
	record, err := wire.Encode(row.Message(), map[string]string{
		"created_at": row.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("encode %s: %w", row.ScheduleID, err)
	}

	payload := "-"
	if record.Payload != nil {
		raw, err := protojson.Marshal(record.Payload)
		if err != nil {
			return fmt.Errorf("render payload for %s: %w", row.ScheduleID, err)
		}
		payload = fmt.Sprintf("%s:%s", record.PayloadType, raw)
	}
	_, err = fmt.Fprintf(out, "schedule_id=%s name=%s scope=%s due=%s payload=%s created_at=%s\n",
		record.ScheduleID, record.Name, record.Scope,
		record.ScheduledAt.AsTime().Format(time.RFC3339Nano),
		payload, record.Metadata["created_at"])
	return err
}
