// Package virtualfs implements the nanokernel's synthetic filesystems
// (spec.md §4.N): /proc, /dev, and /net, each a vfscore.FileSystemOps
// backed by generated text or device semantics instead of a block
// device, grounded on original_source/src/Nanokernel/procfs.c,
// devfs.c, and netfs.c.
package virtualfs

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kelsidavis/System7-sub000/internal/blockdev"
	"github.com/Kelsidavis/System7-sub000/internal/mount"
	"github.com/Kelsidavis/System7-sub000/internal/nkmem"
	"github.com/Kelsidavis/System7-sub000/internal/nksched"
	"github.com/Kelsidavis/System7-sub000/internal/vfscore"
)

// procEntries is the fixed /proc listing, matching spec.md §9's note
// that enumeration lists are unspecified — a port should provide one.
var procEntries = []string{"version", "mounts", "meminfo", "cpuinfo", "uptime"}

// Sources supplies the live kernel state ProcFS renders. A nil PMM or
// Mounts renders its entry as an empty body and a nil Sched an uptime
// of 0.00, rather than panicking, since a boot stage may mount /proc
// before every subsystem is wired.
type Sources struct {
	Version string
	PMM     *nkmem.PMM
	Sched   *nksched.Scheduler
	Mounts  *mount.Table
	BootAt  time.Time
}

// ProcFS is a read-only synthetic filesystem over Sources.
type ProcFS struct {
	src Sources
}

// NewProcFS builds a /proc driver over src.
func NewProcFS(src Sources) *ProcFS { return &ProcFS{src: src} }

func (p *ProcFS) Name() string { return "procfs" }

// Probe never recognizes a real block device; /proc is mounted
// explicitly by boot wiring, not autodetected.
func (p *ProcFS) Probe(dev blockdev.BlockDevice) bool { return false }

func (p *ProcFS) Mount(vol *vfscore.Volume, dev blockdev.BlockDevice) (any, error) {
	return "procfs", nil
}

func (p *ProcFS) Unmount(vol *vfscore.Volume) error { return nil }

func entryName(path string) (string, bool) {
	name := strings.TrimPrefix(path, "/")
	for _, e := range procEntries {
		if e == name {
			return e, true
		}
	}
	return "", false
}

func (p *ProcFS) body(name string) string {
	switch name {
	case "version":
		v := p.src.Version
		if v == "" {
			v = "unknown"
		}
		return v + "\n"
	case "mounts":
		if p.src.Mounts == nil {
			return ""
		}
		var b strings.Builder
		for _, e := range p.src.Mounts.Entries() {
			fmt.Fprintf(&b, "%s %s %s\n", e.Source, e.MountPoint, e.FSType)
		}
		return b.String()
	case "meminfo":
		if p.src.PMM == nil {
			return ""
		}
		s := p.src.PMM.Stats()
		return fmt.Sprintf("MemTotal: %d kB\nMemFree: %d kB\n",
			s.TotalPages*nkmem.PageSize/1024, s.FreePages*nkmem.PageSize/1024)
	case "cpuinfo":
		return "processor : 0\nmodel name : nanokernel virtual cpu\n"
	case "uptime":
		if p.src.Sched == nil || p.src.BootAt.IsZero() {
			return "0.00\n"
		}
		up := time.Since(p.src.BootAt).Seconds()
		return fmt.Sprintf("%.2f\n", up)
	default:
		return ""
	}
}

func (p *ProcFS) Read(vol *vfscore.Volume, path string, buf []byte, offset int64) (int, error) {
	name, ok := entryName(path)
	if !ok {
		return 0, vfscore.ErrVolumeNotFound
	}
	text := p.body(name)
	if offset >= int64(len(text)) {
		return 0, nil
	}
	return copy(buf, text[offset:]), nil
}

func (p *ProcFS) Write(vol *vfscore.Volume, path string, buf []byte, offset int64) (int, error) {
	return 0, ErrReadOnly
}

func (p *ProcFS) Enumerate(vol *vfscore.Volume, path string) ([]vfscore.FileInfo, error) {
	out := make([]vfscore.FileInfo, 0, len(procEntries))
	for _, e := range procEntries {
		out = append(out, vfscore.FileInfo{Name: e, Size: int64(len(p.body(e)))})
	}
	return out, nil
}

func (p *ProcFS) Lookup(vol *vfscore.Volume, path string) (vfscore.FileInfo, bool) {
	if path == "/" {
		return vfscore.FileInfo{Name: "/", IsDir: true}, true
	}
	name, ok := entryName(path)
	if !ok {
		return vfscore.FileInfo{}, false
	}
	return vfscore.FileInfo{Name: name, Size: int64(len(p.body(name)))}, true
}

func (p *ProcFS) GetStats(vol *vfscore.Volume) (vfscore.VolumeStats, error) {
	return vfscore.VolumeStats{}, nil
}

func (p *ProcFS) GetFileInfo(vol *vfscore.Volume, path string) (vfscore.FileInfo, error) {
	info, ok := p.Lookup(vol, path)
	if !ok {
		return vfscore.FileInfo{}, vfscore.ErrVolumeNotFound
	}
	return info, nil
}
