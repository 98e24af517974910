// Package migrations embeds the SQL schema migrations for the vector store.
package migrations

import "embed"

// FS contains all *.up.sql migration files.
//
//go:embed *.sql
var FS embed.FS
