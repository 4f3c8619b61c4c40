package migrations

import "embed"

// FS holds the numbered up/down SQL files applied by cmd/migrate and the
// integration tests.
//
//go:embed *.sql
var FS embed.FS
