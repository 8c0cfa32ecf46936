// Package version carries the hnswbuild release version, embedded from
// version.txt at compile time.
//
// The CLI prints Version in its startup log line, ahead of the line that
// logs the builder's build_id.
package version

import (
	_ "embed"
	"strings"
)

//go:embed version.txt
var raw string

// Version is the trimmed semantic version, e.g. "0.1.0".
var Version = strings.TrimSpace(raw)
