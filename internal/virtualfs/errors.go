package virtualfs

import "errors"

// ErrReadOnly is returned by any write attempt against a synthetic
// filesystem whose reference forbids it (spec.md §4.N: /proc writes
// rejected; /dev zero/random writes fail).
var ErrReadOnly = errors.New("virtualfs: read-only entry")

// ErrNoInput is returned by a read against a /dev entry that never
// produces input (console, tty).
var ErrNoInput = errors.New("virtualfs: entry has no input")

// ErrUnknownDriver is returned when /net is asked to operate on a path
// with no registered VFSNetDriver.
var ErrUnknownDriver = errors.New("virtualfs: no net driver bound to this mount")
