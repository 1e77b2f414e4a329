// Package templates embeds default configuration and rule files.
package templates

import "embed"

//go:embed config.yaml rules.yaml preset.yaml
var FS embed.FS
