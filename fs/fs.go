package appfs

import "embed"

// FS holds the embedded goose migrations.
//go:embed migrations
var FS embed.FS
