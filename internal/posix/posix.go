// Package posix implements the nanokernel's POSIX syscall shim (spec.md
// §4.M), grounded on original_source/src/Nanokernel/syscalls.c and
// fd_table.c: a fixed file-descriptor table sitting on top of
// internal/mount and internal/vfscore, translating path-based syscalls
// into MVFS operations and reporting failure the POSIX way — a global
// errno plus a -1 return — rather than Go's usual (value, error) idiom,
// since this package's callers are meant to be a libc-shaped syscall
// surface, not ordinary Go code.
package posix

import (
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/Kelsidavis/System7-sub000/internal/mount"
	"github.com/Kelsidavis/System7-sub000/internal/vfscore"
)

// Errno mirrors libc's errno values this shim can produce.
type Errno int

const (
	EBADF  Errno = Errno(unix.EBADF)
	EINVAL Errno = Errno(unix.EINVAL)
	ENOENT Errno = Errno(unix.ENOENT)
	ENOTDIR Errno = Errno(unix.ENOTDIR)
	EISDIR Errno = Errno(unix.EISDIR)
	EMFILE Errno = Errno(unix.EMFILE)
)

func (e Errno) Error() string { return unix.Errno(e).Error() }

// MaxFDs bounds the descriptor table. FDs 0-2 are reserved for
// stdin/stdout/stderr and are never allocated by Open.
const MaxFDs = 64

// MaxDirEntries bounds a DIR's cached enumeration, matching
// fd_table.c's entries[64].
const MaxDirEntries = 64

const (
	stdin = iota
	stdout
	stderr
	firstFreeFD
)

type fd struct {
	inUse    bool
	volume   *vfscore.Volume
	path     string
	flags    int
	position int64
}

type dirHandle struct {
	inUse      bool
	volume     *vfscore.Volume
	path       string
	position   int
	enumerated bool
	entries    []vfscore.FileInfo
}

// Shim is one instance of the syscall surface. It holds the FD and DIR
// tables and errno; the mount table and VFS registry are passed to each
// path-based call. Real deployments have exactly one; tests can build
// several in isolation.
type Shim struct {
	mu    sync.Mutex
	fds   [MaxFDs]fd
	dirs  [MaxFDs]dirHandle
	errno Errno
}

// New builds a Shim with FDs 0-2 marked reserved.
func New() *Shim {
	s := &Shim{}
	s.fds[stdin].inUse = true
	s.fds[stdout].inUse = true
	s.fds[stderr].inUse = true
	return s
}

// Errno returns the error code set by the most recent failing syscall
// on this Shim.
func (s *Shim) Errno() Errno {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errno
}

func (s *Shim) fail(e Errno) int {
	s.mu.Lock()
	s.errno = e
	s.mu.Unlock()
	return -1
}

func (s *Shim) ok() int {
	s.mu.Lock()
	s.errno = 0
	s.mu.Unlock()
	return 0
}

// Open resolves path through tbl/reg, allocates the first free FD slot
// at or above 3, and returns it (or -1 with Errno set).
func (s *Shim) Open(tbl *mount.Table, reg *vfscore.Registry, path string, flags int) int {
	vol, info, err := tbl.ResolvePath(reg, path)
	if err != nil {
		s.fail(ENOENT)
		return -1
	}
	if info.IsDir && (flags&(unix.O_WRONLY|unix.O_RDWR)) != 0 {
		s.fail(EISDIR)
		return -1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	slot := -1
	for i := firstFreeFD; i < MaxFDs; i++ {
		if !s.fds[i].inUse {
			slot = i
			break
		}
	}
	if slot == -1 {
		s.errno = EMFILE
		return -1
	}
	s.fds[slot] = fd{inUse: true, volume: vol, path: volumePath(tbl, path), flags: flags, position: 0}
	s.errno = 0
	return slot
}

// volumePath returns path relative to its volume's root, the form the
// FileSystemOps drivers are called with, using the same CWD join,
// normalization and /Volumes/NAME split as mount.Table.ResolvePath.
func volumePath(tbl *mount.Table, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = tbl.CWD() + "/" + path
	}
	path = mount.NormalizePath(path)
	if _, rest, ok := mount.SplitPath(path); ok {
		return mount.NormalizePath(rest)
	}
	return path
}

func (s *Shim) lookupFD(f int) (*fd, bool) {
	if f < 0 || f >= MaxFDs {
		return nil, false
	}
	if !s.fds[f].inUse {
		return nil, false
	}
	return &s.fds[f], true
}

// Read delegates to the resolved volume's Ops.Read and advances the
// FD's position by the byte count returned.
func (s *Shim) Read(f int, buf []byte) int {
	s.mu.Lock()
	entry, ok := s.lookupFD(f)
	if !ok || entry.volume == nil {
		s.mu.Unlock()
		s.fail(EBADF)
		return -1
	}
	if (entry.flags & unix.O_WRONLY) != 0 {
		s.mu.Unlock()
		s.fail(EINVAL)
		return -1
	}
	vol, path, pos := entry.volume, entry.path, entry.position
	s.mu.Unlock()

	n, err := vol.Ops.Read(vol, path, buf, pos)
	if err != nil {
		s.fail(EINVAL)
		return -1
	}

	s.mu.Lock()
	if e, ok := s.lookupFD(f); ok {
		e.position += int64(n)
	}
	s.mu.Unlock()
	s.ok()
	return n
}

// Write delegates to the resolved volume's Ops.Write and advances the
// FD's position by the byte count returned.
func (s *Shim) Write(f int, buf []byte) int {
	s.mu.Lock()
	entry, ok := s.lookupFD(f)
	if !ok || entry.volume == nil {
		s.mu.Unlock()
		s.fail(EBADF)
		return -1
	}
	if (entry.flags & (unix.O_WRONLY | unix.O_RDWR)) == 0 {
		s.mu.Unlock()
		s.fail(EINVAL)
		return -1
	}
	vol, path, pos := entry.volume, entry.path, entry.position
	s.mu.Unlock()

	n, err := vol.Ops.Write(vol, path, buf, pos)
	if err != nil {
		s.fail(EINVAL)
		return -1
	}

	s.mu.Lock()
	if e, ok := s.lookupFD(f); ok {
		e.position += int64(n)
	}
	s.mu.Unlock()
	s.ok()
	return n
}

// Lseek recomputes the FD's position from whence, rejecting a negative
// result. SEEK_END queries the volume's GetFileInfo for the current size.
func (s *Shim) Lseek(f int, offset int64, whence int) int64 {
	s.mu.Lock()
	entry, ok := s.lookupFD(f)
	if !ok || entry.volume == nil {
		s.mu.Unlock()
		s.fail(EBADF)
		return -1
	}
	vol, path, cur := entry.volume, entry.path, entry.position
	s.mu.Unlock()

	var base int64
	switch whence {
	case unix.SEEK_SET:
		base = 0
	case unix.SEEK_CUR:
		base = cur
	case unix.SEEK_END:
		info, err := vol.Ops.GetFileInfo(vol, path)
		if err != nil {
			s.fail(ENOENT)
			return -1
		}
		base = info.Size
	default:
		s.fail(EINVAL)
		return -1
	}

	newPos := base + offset
	if newPos < 0 {
		s.fail(EINVAL)
		return -1
	}

	s.mu.Lock()
	if e, ok := s.lookupFD(f); ok {
		e.position = newPos
	}
	s.mu.Unlock()
	s.ok()
	return newPos
}

// Close clears an FD's slot. FDs 0-2 can never be closed.
func (s *Shim) Close(f int) int {
	if f >= stdin && f <= stderr {
		s.fail(EBADF)
		return -1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if f < 0 || f >= MaxFDs || !s.fds[f].inUse {
		s.errno = EBADF
		return -1
	}
	s.fds[f] = fd{}
	s.errno = 0
	return 0
}

// Stat fills out with the POSIX stat fields for path, resolved fresh
// through tbl/reg (no FD required).
func (s *Shim) Stat(tbl *mount.Table, reg *vfscore.Registry, path string, out *unix.Stat_t) int {
	vol, info, err := tbl.ResolvePath(reg, path)
	if err != nil {
		s.fail(ENOENT)
		return -1
	}
	fillStat(out, info)
	_ = vol
	s.ok()
	return 0
}

// Fstat fills out with the POSIX stat fields for an already-open FD.
func (s *Shim) Fstat(f int, out *unix.Stat_t) int {
	s.mu.Lock()
	entry, ok := s.lookupFD(f)
	if !ok || entry.volume == nil {
		s.mu.Unlock()
		s.fail(EBADF)
		return -1
	}
	vol, path := entry.volume, entry.path
	s.mu.Unlock()

	info, err := vol.Ops.GetFileInfo(vol, path)
	if err != nil {
		s.fail(ENOENT)
		return -1
	}
	fillStat(out, info)
	s.ok()
	return 0
}

func fillStat(out *unix.Stat_t, info vfscore.FileInfo) {
	*out = unix.Stat_t{}
	if info.IsDir {
		out.Mode = unix.S_IFDIR | 0755
	} else {
		out.Mode = unix.S_IFREG | 0644
	}
	out.Size = info.Size
}

// Dup duplicates oldfd onto the first free slot.
func (s *Shim) Dup(oldfd int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.lookupFD(oldfd)
	if !ok {
		s.errno = EBADF
		return -1
	}
	slot := -1
	for i := firstFreeFD; i < MaxFDs; i++ {
		if !s.fds[i].inUse {
			slot = i
			break
		}
	}
	if slot == -1 {
		s.errno = EMFILE
		return -1
	}
	s.fds[slot] = *entry
	s.errno = 0
	return slot
}

// Dup2 duplicates oldfd onto newfd, closing newfd first if it was open,
// matching fd_table.c's fd_dup2.
func (s *Shim) Dup2(oldfd, newfd int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.lookupFD(oldfd)
	if !ok {
		s.errno = EBADF
		return -1
	}
	if newfd < 0 || newfd >= MaxFDs {
		s.errno = EBADF
		return -1
	}
	if oldfd == newfd {
		s.errno = 0
		return newfd
	}
	s.fds[newfd] = *entry
	s.errno = 0
	return newfd
}
