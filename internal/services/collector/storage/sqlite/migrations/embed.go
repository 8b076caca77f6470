package migrations

import "embed"

// FS contains embedded SQLite migrations for collector storage.
//
//go:embed *.sql
var FS embed.FS
