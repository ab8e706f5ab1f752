// Package database embeds the schema migrations for each supported dialect.
package database

import "embed"

// Migrations holds migrations/<dialect>/NNNNNN_name.{up,down}.sql.
//
//go:embed migrations
var Migrations embed.FS
