// Package migrations embeds the SQL migration files so the compiled binary
// carries its own schema management; `teampulse migrate` and the test harness
// both read from this FS.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
