// Package version exposes the qqeval release embedded at build time.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Get returns the current version, with whitespace trimmed
func Get() string {
	return strings.TrimSpace(versionContent)
}

// UserAgent identifies qqeval in outbound requests.
func UserAgent() string {
	return "qqeval/" + Get()
}
