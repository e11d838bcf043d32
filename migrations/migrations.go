package migrations

import "embed"

// FS holds the postgres migrations so binaries do not depend on the working
// directory.
//
//go:embed *.sql
var FS embed.FS
