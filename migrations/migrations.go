// Package migrations holds the schema for validation runs and their messages.
// The SQL files are baked into the binary so the server does not depend on
// its working directory.
package migrations

import "embed"

// FS contains every up and down migration
//
//go:embed *.sql
var FS embed.FS
