package migrations

import "embed"

// FS contains embedded SQLite migrations for the pending-deadline store.
//
//go:embed *.sql
var FS embed.FS
