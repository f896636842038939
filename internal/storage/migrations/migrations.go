// Package migrations embeds the goose SQL migrations for the postgres
// artifact store.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
