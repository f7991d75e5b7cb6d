// Package assets embeds static files shipped with the binaries.
package assets

import "embed"

// all: keeps the _base layouts, which a plain directory pattern skips.
//
//go:embed all:templates
var FS embed.FS
