// Package migrations embeds the identity service SQL migrations.
package migrations

import "embed"

// FS holds every *.sql file in this directory. Only *.up.sql files are run.
//
//go:embed *.sql
var FS embed.FS
