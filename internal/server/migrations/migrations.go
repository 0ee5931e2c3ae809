// Package migrations embeds the goose SQL migrations creating one table per
// collection.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
