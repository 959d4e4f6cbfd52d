// Package migrations embeds the goose SQL migrations for the ledger schema.
package migrations

import "embed"

// FS holds every migration file.
//
//go:embed *.sql
var FS embed.FS
