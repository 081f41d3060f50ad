package render

import "embed"

//go:embed templates
var builtin embed.FS
