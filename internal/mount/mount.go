// Package mount implements the nanokernel's mount table and path
// resolver (spec.md §4.K), grounded on
// original_source/src/Nanokernel/mvfs.c's mount-table portion and
// original_source/include/Nanokernel/vfs_path.h for the path-splitting
// contract.
package mount

import (
	"errors"
	"strings"
	"sync"
)

// MaxEntries bounds the mount table.
const MaxEntries = 32

// Flags selects which union member of Entry.Data is valid, matching
// the original's tagged union of volume | net_mount | vfs_ops.
type Flags uint32

const (
	FlagVolume Flags = 1 << iota
	FlagNetMount
	FlagVFSOps
)

var (
	ErrTableFull           = errors.New("mount: table full")
	ErrDuplicateMountPoint = errors.New("mount: mount point already in use")
	ErrNotFound            = errors.New("mount: no entry covers path")
)

// Entry is one mount table row.
type Entry struct {
	Source     string
	MountPoint string
	FSType     string
	Flags      Flags
	Data       any
}

// Table is the global mount table plus the single process-wide CWD the
// spec models (no per-process CWDs).
type Table struct {
	mu         sync.Mutex
	entries    []Entry
	bootVolume string
	cwd        string
}

// New builds an empty mount table. bootVolume names the volume an
// absolute path without a /Volumes/NAME prefix resolves against.
func New(bootVolume string) *Table {
	return &Table{bootVolume: bootVolume, cwd: "/"}
}

// Add inserts a mount table entry, rejecting a duplicate mount point
// and a full table.
func (t *Table) Add(source, mountPoint, fsType string, flags Flags, data any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.MountPoint == mountPoint {
			return ErrDuplicateMountPoint
		}
	}
	if len(t.entries) >= MaxEntries {
		return ErrTableFull
	}
	t.entries = append(t.entries, Entry{Source: source, MountPoint: mountPoint, FSType: fsType, Flags: flags, Data: data})
	return nil
}

// Remove drops the entry mounted at mountPoint, if any.
func (t *Table) Remove(mountPoint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e.MountPoint == mountPoint {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// isProperPrefix reports whether mountPoint is a proper prefix of path:
// mountPoint matches the start of path and the next character of path
// (if any) is '/'.
func isProperPrefix(mountPoint, path string) bool {
	if !strings.HasPrefix(path, mountPoint) {
		return false
	}
	if len(path) == len(mountPoint) {
		return true
	}
	return path[len(mountPoint)] == '/'
}

// FindByPath returns the entry whose MountPoint is the longest proper
// prefix of path, matching find_by_path's longest-prefix-match rule.
func (t *Table) FindByPath(path string) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var best *Entry
	for i := range t.entries {
		e := &t.entries[i]
		if !isProperPrefix(e.MountPoint, path) {
			continue
		}
		if best == nil || len(e.MountPoint) > len(best.MountPoint) {
			best = e
		}
	}
	if best == nil {
		return Entry{}, ErrNotFound
	}
	return *best, nil
}

// Entries returns a snapshot of every mount table row, for /proc/mounts.
func (t *Table) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// SetCWD updates the single global current working directory.
func (t *Table) SetCWD(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cwd = NormalizePath(path)
}

// CWD returns the current working directory.
func (t *Table) CWD() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cwd
}

// BootVolume returns the default volume name for /-rooted paths
// without a /Volumes/NAME prefix.
func (t *Table) BootVolume() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bootVolume
}

// NormalizePath splits path on '/', collapses "." segments, and pops
// one segment on "..", bounded at the root (".." at the root is a
// no-op, never escaping above it), then rejoins.
func NormalizePath(path string) string {
	abs := strings.HasPrefix(path, "/")
	parts := strings.Split(path, "/")
	var out []string
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, p)
		}
	}
	joined := strings.Join(out, "/")
	if abs {
		return "/" + joined
	}
	return joined
}

// SplitPath recognizes "/Volumes/NAME/rest" and returns (NAME, "/rest",
// true). For any other absolute or relative path it returns ("", path,
// false), leaving the caller to apply the default boot volume or the
// current CWD.
func SplitPath(path string) (volume, rest string, ok bool) {
	const prefix = "/Volumes/"
	if !strings.HasPrefix(path, prefix) {
		return "", path, false
	}
	remainder := path[len(prefix):]
	slash := strings.IndexByte(remainder, '/')
	if slash < 0 {
		return remainder, "/", true
	}
	return remainder[:slash], remainder[slash:], true
}
