// Package migrations holds the SQL schema migrations applied by the migrate
// command.
package migrations

import "embed"

// FS contains every numbered .sql migration in this directory.
//
//go:embed *.sql
var FS embed.FS
