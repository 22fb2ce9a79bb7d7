// Package migrations embeds the SQL schema so the binaries can migrate
// without a migrations directory on disk.
package migrations

import "embed"

// FS holds the golang-migrate up/down files
//
//go:embed *.sql
var FS embed.FS
