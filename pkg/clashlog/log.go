// Package clashlog is the ambient warning/diagnostic sink used by the
// probe and inspector for their non-fatal-exclusion policy (§4.1, §4.2).
// It follows the teacher's convention of writing decorated lines to an
// explicit io.Writer rather than reaching for a global logger.
package clashlog

import (
	"fmt"
	"io"
)

// Logger writes decorated warning lines. The zero value is not usable;
// construct one with New.
type Logger struct {
	out io.Writer
}

// New returns a Logger that writes to out.
func New(out io.Writer) *Logger {
	return &Logger{out: out}
}

// Warn writes a "warning: " prefixed, formatted line.
func (l *Logger) Warn(format string, args ...any) {
	fmt.Fprintf(l.out, "warning: %s\n", fmt.Sprintf(format, args...))
}

// Discard is a Logger that drops every warning, for callers (tests,
// library embedders) that don't want diagnostic noise.
func Discard() *Logger {
	return New(io.Discard)
}
