package posix

import (
	"github.com/Kelsidavis/System7-sub000/internal/mount"
	"github.com/Kelsidavis/System7-sub000/internal/vfscore"
)

// Opendir resolves path and allocates a DIR handle (a separate table
// from the file FD table, matching fd_table.c's DIR/FD split). The
// first Readdir call populates entries by calling Enumerate once; the
// handle is otherwise inert until then.
func (s *Shim) Opendir(tbl *mount.Table, reg *vfscore.Registry, path string) int {
	vol, info, err := tbl.ResolvePath(reg, path)
	if err != nil {
		s.fail(ENOENT)
		return -1
	}
	if !info.IsDir {
		s.fail(ENOTDIR)
		return -1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	slot := -1
	for i := 0; i < MaxFDs; i++ {
		if !s.dirs[i].inUse {
			slot = i
			break
		}
	}
	if slot == -1 {
		s.errno = EMFILE
		return -1
	}
	s.dirs[slot] = dirHandle{inUse: true, volume: vol, path: volumePath(tbl, path)}
	s.errno = 0
	return slot
}

// Readdir returns the next cached entry for dirfd, enumerating on the
// first call and capping the cache at MaxDirEntries, matching
// fd_table.c's entries[64].
func (s *Shim) Readdir(dirfd int) (vfscore.FileInfo, bool) {
	s.mu.Lock()
	if dirfd < 0 || dirfd >= MaxFDs || !s.dirs[dirfd].inUse {
		s.mu.Unlock()
		s.fail(EBADF)
		return vfscore.FileInfo{}, false
	}
	d := &s.dirs[dirfd]
	if !d.enumerated {
		vol, path := d.volume, d.path
		s.mu.Unlock()
		entries, err := vol.Ops.Enumerate(vol, path)
		if err != nil {
			s.fail(ENOENT)
			return vfscore.FileInfo{}, false
		}
		if len(entries) > MaxDirEntries {
			entries = entries[:MaxDirEntries]
		}
		s.mu.Lock()
		d.entries = entries
		d.enumerated = true
	}
	if d.position >= len(d.entries) {
		s.mu.Unlock()
		s.ok()
		return vfscore.FileInfo{}, false
	}
	info := d.entries[d.position]
	d.position++
	s.mu.Unlock()
	s.ok()
	return info, true
}

// Closedir frees dirfd's handle.
func (s *Shim) Closedir(dirfd int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dirfd < 0 || dirfd >= MaxFDs || !s.dirs[dirfd].inUse {
		s.errno = EBADF
		return -1
	}
	s.dirs[dirfd] = dirHandle{}
	s.errno = 0
	return 0
}
