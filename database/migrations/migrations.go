// Package migrations embeds the schema scripts of every supported database.
package migrations

import "embed"

// FS holds one directory of numbered up/down scripts per driver.
//
//go:embed postgres/*.sql sqlite/*.sql oracle/*.sql
var FS embed.FS
