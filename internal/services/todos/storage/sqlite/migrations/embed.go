package migrations

import "embed"

// FS contains the embedded SQLite schema for todo storage.
//
//go:embed *.sql
var FS embed.FS
