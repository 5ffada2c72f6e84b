package virtualfs

import (
	"sync"

	"github.com/Kelsidavis/System7-sub000/internal/blockdev"
	"github.com/Kelsidavis/System7-sub000/internal/vfscore"
)

// VFSNetDriver is the contract spec.md §4.N requires of any network
// filesystem backend (WebDAV, SFTP): open/read/write/close/lseek/stat,
// here collapsed onto the Read/Write/Enumerate/Lookup subset of the
// FileSystemOps shape (no GetFileInfo), since network mounts are
// dispatched through the same VFS core as local ones.
type VFSNetDriver interface {
	Name() string
	Read(path string, buf []byte, offset int64) (int, error)
	Write(path string, buf []byte, offset int64) (int, error)
	Lookup(path string) (vfscore.FileInfo, bool)
	Enumerate(path string) ([]vfscore.FileInfo, error)
}

// NetFS mounts under /net and delegates every operation to whichever
// VFSNetDriver is registered for the mount, matching spec.md §4.N's
// "any path under a NETWORK-flagged mount delegates to the associated
// VFSNetDriver". Drivers are stubs in this port (no real WebDAV/SFTP
// client), same as the reference.
type NetFS struct {
	mu      sync.Mutex
	drivers map[string]VFSNetDriver
}

// NewNetFS builds an empty /net driver registry.
func NewNetFS() *NetFS { return &NetFS{drivers: make(map[string]VFSNetDriver)} }

// BindDriver associates name (the name of the mounted volume, matched
// against Volume.Name) with driver.
func (n *NetFS) BindDriver(name string, driver VFSNetDriver) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.drivers[name] = driver
}

func (n *NetFS) driverFor(vol *vfscore.Volume) (VFSNetDriver, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	d, ok := n.drivers[vol.Name]
	return d, ok
}

func (n *NetFS) Name() string                       { return "netfs" }
func (n *NetFS) Probe(dev blockdev.BlockDevice) bool { return false }
func (n *NetFS) Mount(vol *vfscore.Volume, dev blockdev.BlockDevice) (any, error) {
	return "netfs", nil
}
func (n *NetFS) Unmount(vol *vfscore.Volume) error { return nil }

func (n *NetFS) Read(vol *vfscore.Volume, path string, buf []byte, offset int64) (int, error) {
	d, ok := n.driverFor(vol)
	if !ok {
		return 0, ErrUnknownDriver
	}
	return d.Read(path, buf, offset)
}

func (n *NetFS) Write(vol *vfscore.Volume, path string, buf []byte, offset int64) (int, error) {
	d, ok := n.driverFor(vol)
	if !ok {
		return 0, ErrUnknownDriver
	}
	return d.Write(path, buf, offset)
}

func (n *NetFS) Enumerate(vol *vfscore.Volume, path string) ([]vfscore.FileInfo, error) {
	d, ok := n.driverFor(vol)
	if !ok {
		return nil, ErrUnknownDriver
	}
	return d.Enumerate(path)
}

func (n *NetFS) Lookup(vol *vfscore.Volume, path string) (vfscore.FileInfo, bool) {
	d, ok := n.driverFor(vol)
	if !ok {
		return vfscore.FileInfo{}, false
	}
	return d.Lookup(path)
}

func (n *NetFS) GetStats(vol *vfscore.Volume) (vfscore.VolumeStats, error) {
	return vfscore.VolumeStats{}, nil
}

func (n *NetFS) GetFileInfo(vol *vfscore.Volume, path string) (vfscore.FileInfo, error) {
	info, ok := n.Lookup(vol, path)
	if !ok {
		return vfscore.FileInfo{}, vfscore.ErrVolumeNotFound
	}
	return info, nil
}
