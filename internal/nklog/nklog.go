// Package nklog provides the nanokernel's logging convention: each
// subsystem owns a *log.Logger prefixed with its own name, falling back
// to a package-wide default when none is configured. This mirrors
// pkg/blobserver/blobpacked's storage.logger() in the teacher
// repository rather than introducing a structured-logging framework the
// examples don't use.
package nklog

import (
	"log"
	"os"
)

// New returns a *log.Logger prefixed "<subsystem>: " writing to
// os.Stderr with the standard flags, the same construction
// blobpacked.storage.logger() uses for its nil-logger fallback.
func New(subsystem string) *log.Logger {
	return log.New(os.Stderr, subsystem+": ", log.LstdFlags)
}

// OrDefault returns l if non-nil, else a freshly constructed logger for
// subsystem. Subsystems hold a *log.Logger field that is nil unless a
// caller overrides it (e.g. for test silencing), and call this at each
// use site rather than eagerly constructing a logger no one reads.
func OrDefault(l *log.Logger, subsystem string) *log.Logger {
	if l != nil {
		return l
	}
	return New(subsystem)
}
