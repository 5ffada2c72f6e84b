// Package vfscore implements the nanokernel's VFS core (spec.md
// §4.J): a FileSystemOps driver registry, probe-then-mount pipeline,
// and volume table, grounded on
// original_source/src/Nanokernel/mvfs.c. The registry shape mirrors the
// teacher's pkg/blobserver storage-backend registry: a fixed set of
// named drivers, a probe step that picks the right one, and a table of
// live instances keyed by a monotonically increasing id.
package vfscore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Kelsidavis/System7-sub000/internal/blockdev"
)

// MaxFilesystems bounds the driver registry, matching VFS_MAX_FILESYSTEMS.
const MaxFilesystems = 16

// MaxVolumes bounds the mounted-volume table.
const MaxVolumes = 32

var (
	ErrDuplicateFilesystem = errors.New("vfscore: filesystem driver already registered")
	ErrFilesystemTableFull = errors.New("vfscore: filesystem driver table full")
	ErrNoDriverProbed      = errors.New("vfscore: no registered driver recognized this device")
	ErrVolumeTableFull     = errors.New("vfscore: volume table full")
	ErrMountFailed         = errors.New("vfscore: driver mount returned no private state")
	ErrVolumeNotFound      = errors.New("vfscore: volume not found")
)

// FileInfo describes one file or directory entry.
type FileInfo struct {
	Name  string
	Size  int64
	IsDir bool
}

// VolumeStats reports free/used space, mirroring get_stats.
type VolumeStats struct {
	TotalBytes uint64
	FreeBytes  uint64
}

// FileSystemOps is the driver vtable every filesystem implementation
// registers, matching mvfs.c's fs_ops contract.
type FileSystemOps interface {
	Name() string
	Probe(dev blockdev.BlockDevice) bool
	Mount(vol *Volume, dev blockdev.BlockDevice) (any, error)
	Unmount(vol *Volume) error
	Read(vol *Volume, path string, buf []byte, offset int64) (int, error)
	Write(vol *Volume, path string, buf []byte, offset int64) (int, error)
	Enumerate(vol *Volume, path string) ([]FileInfo, error)
	Lookup(vol *Volume, path string) (FileInfo, bool)
	GetStats(vol *Volume) (VolumeStats, error)
	GetFileInfo(vol *Volume, path string) (FileInfo, error)
}

// Volume is one mounted filesystem instance.
type Volume struct {
	ID      uint32
	Name    string
	FSName  string
	Mounted bool
	Device  blockdev.BlockDevice
	Ops     FileSystemOps
	Private any
}

// Registry holds the driver list and the volume table.
type Registry struct {
	mu        sync.Mutex
	drivers   []FileSystemOps
	volumes   [MaxVolumes]*Volume
	nextVolID uint32
}

// NewRegistry builds an empty VFS registry.
func NewRegistry() *Registry { return &Registry{nextVolID: 1} }

// RegisterFilesystem adds ops to the global driver list, rejecting
// duplicates by Name() and a full table, matching register_filesystem.
func (r *Registry) RegisterFilesystem(ops FileSystemOps) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.drivers {
		if d.Name() == ops.Name() {
			return ErrDuplicateFilesystem
		}
	}
	if len(r.drivers) >= MaxFilesystems {
		return ErrFilesystemTableFull
	}
	r.drivers = append(r.drivers, ops)
	return nil
}

// Drivers returns a snapshot of the registered drivers, for autodetect.
func (r *Registry) Drivers() []FileSystemOps {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FileSystemOps, len(r.drivers))
	copy(out, r.drivers)
	return out
}

// Mount probes every registered driver against dev in registration
// order; the first driver whose Probe returns true mounts it. name
// defaults to "Volume_<id>" when empty, matching mvfs.c's default.
func (r *Registry) Mount(dev blockdev.BlockDevice, name string) (*Volume, error) {
	r.mu.Lock()
	drivers := make([]FileSystemOps, len(r.drivers))
	copy(drivers, r.drivers)
	r.mu.Unlock()

	var chosen FileSystemOps
	for _, d := range drivers {
		if d.Probe(dev) {
			chosen = d
			break
		}
	}
	if chosen == nil {
		return nil, ErrNoDriverProbed
	}

	r.mu.Lock()
	slot := -1
	for i, v := range r.volumes {
		if v == nil {
			slot = i
			break
		}
	}
	if slot == -1 {
		r.mu.Unlock()
		return nil, ErrVolumeTableFull
	}
	id := r.nextVolID
	r.nextVolID++
	if name == "" {
		name = fmt.Sprintf("Volume_%d", id)
	}
	vol := &Volume{ID: id, Name: name, FSName: chosen.Name(), Device: dev, Ops: chosen}
	r.volumes[slot] = vol
	r.mu.Unlock()

	priv, err := chosen.Mount(vol, dev)
	if err != nil || priv == nil {
		r.mu.Lock()
		r.volumes[slot] = nil
		r.mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("vfscore: mount %s: %w", name, err)
		}
		return nil, ErrMountFailed
	}

	r.mu.Lock()
	vol.Private = priv
	vol.Mounted = true
	r.mu.Unlock()
	return vol, nil
}

// Unmount calls the owning driver's Unmount and frees the volume slot.
func (r *Registry) Unmount(vol *Volume) error {
	if err := vol.Ops.Unmount(vol); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range r.volumes {
		if v == vol {
			r.volumes[i] = nil
			return nil
		}
	}
	return ErrVolumeNotFound
}

// GetVolumeByID scans the volume table for id.
func (r *Registry) GetVolumeByID(id uint32) (*Volume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.volumes {
		if v != nil && v.ID == id {
			return v, nil
		}
	}
	return nil, ErrVolumeNotFound
}

// GetVolumeByName scans the volume table for name.
func (r *Registry) GetVolumeByName(name string) (*Volume, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.volumes {
		if v != nil && v.Name == name {
			return v, nil
		}
	}
	return nil, ErrVolumeNotFound
}

// Volumes returns every currently-mounted volume.
func (r *Registry) Volumes() []*Volume {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Volume
	for _, v := range r.volumes {
		if v != nil {
			out = append(out, v)
		}
	}
	return out
}

// CreateMemoryBlockDevice adapts an in-memory buffer to the
// BlockDevice contract, matching create_memory_block_device.
func CreateMemoryBlockDevice(buf []byte) blockdev.BlockDevice {
	return blockdev.NewMemoryDevice(buf)
}

// CreateATABlockDevice adapts a host-backed disk image file to the
// BlockDevice contract, standing in for create_ata_block_device(index)
// since this port has no raw ATA port access.
func CreateATABlockDevice(imagePath string, sectorCount uint64) (blockdev.BlockDevice, error) {
	return blockdev.OpenFileDevice(imagePath, sectorCount)
}
