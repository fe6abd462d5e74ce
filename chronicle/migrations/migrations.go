// Package migrations embeds the SQLite schema of the chronicle.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
