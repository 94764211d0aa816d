// Package migrations embeds the SQLite schema so binaries and tests share it.
package migrations

import "embed"

// FS holds the numbered migration files.
//
//go:embed *.sql
var FS embed.FS
