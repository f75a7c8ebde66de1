// Package migrations embeds the goose SQL migrations shared by the SQLite and
// PostgreSQL stores. Statements stick to the subset both engines accept.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
