// Package debug provides env-gated diagnostic logging.
// Set HX_DEBUG=1 to enable trace output on stderr.
package debug

import (
	"fmt"
	"os"
)

var enabled = os.Getenv("HX_DEBUG") != ""

// Enabled reports whether debug tracing is on.
func Enabled() bool {
	return enabled
}

// Logf writes a formatted trace line to stderr when debugging is enabled.
func Logf(format string, args ...any) {
	if !enabled {
		return
	}
	fmt.Fprintf(os.Stderr, "[debug] "+format+"\n", args...)
}
