package virtualfs

import (
	"io"
	"strings"
	"sync"

	"github.com/Kelsidavis/System7-sub000/internal/blockdev"
	"github.com/Kelsidavis/System7-sub000/internal/vfscore"
)

var devEntries = []string{"null", "zero", "random", "console", "tty"}

// lcg is the deterministic pseudo-random generator /dev/random uses,
// matching spec.md §4.N's "random → LCG PRNG" — intentionally not a
// cryptographic source, since the reference device is a predictable
// in-kernel stream, not an entropy pool.
type lcg struct {
	mu    sync.Mutex
	state uint32
}

// Multiplier and increment of the classic ANSI C rand() LCG.
const (
	lcgMultiplier = 1103515245
	lcgIncrement  = 12345
)

func newLCG(seed uint32) *lcg { return &lcg{state: seed} }

func (l *lcg) next() byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = l.state*lcgMultiplier + lcgIncrement
	return byte(l.state >> 16)
}

func (l *lcg) fill(buf []byte) {
	for i := range buf {
		buf[i] = l.next()
	}
}

// ConsoleWriter receives bytes written to /dev/console or /dev/tty,
// standing in for the serial port the original writes to.
type ConsoleWriter interface {
	io.Writer
}

// DevFS is the /dev synthetic filesystem.
type DevFS struct {
	console ConsoleWriter
	rng     *lcg
}

// NewDevFS builds a /dev driver writing console/tty output to console
// (nil discards it) and seeding /dev/random's LCG with seed.
func NewDevFS(console ConsoleWriter, seed uint32) *DevFS {
	return &DevFS{console: console, rng: newLCG(seed)}
}

func (d *DevFS) Name() string                       { return "devfs" }
func (d *DevFS) Probe(dev blockdev.BlockDevice) bool { return false }
func (d *DevFS) Mount(vol *vfscore.Volume, dev blockdev.BlockDevice) (any, error) {
	return "devfs", nil
}
func (d *DevFS) Unmount(vol *vfscore.Volume) error { return nil }

func devEntryName(path string) (string, bool) {
	name := strings.TrimPrefix(path, "/")
	for _, e := range devEntries {
		if e == name {
			return e, true
		}
	}
	return "", false
}

func (d *DevFS) Read(vol *vfscore.Volume, path string, buf []byte, offset int64) (int, error) {
	name, ok := devEntryName(path)
	if !ok {
		return 0, vfscore.ErrVolumeNotFound
	}
	switch name {
	case "null":
		return 0, nil
	case "zero":
		for i := range buf {
			buf[i] = 0
		}
		return len(buf), nil
	case "random":
		d.rng.fill(buf)
		return len(buf), nil
	case "console", "tty":
		return 0, ErrNoInput
	default:
		return 0, vfscore.ErrVolumeNotFound
	}
}

func (d *DevFS) Write(vol *vfscore.Volume, path string, buf []byte, offset int64) (int, error) {
	name, ok := devEntryName(path)
	if !ok {
		return 0, vfscore.ErrVolumeNotFound
	}
	switch name {
	case "null":
		return len(buf), nil
	case "console", "tty":
		if d.console != nil {
			return d.console.Write(buf)
		}
		return len(buf), nil
	case "zero", "random":
		return 0, ErrReadOnly
	default:
		return 0, vfscore.ErrVolumeNotFound
	}
}

func (d *DevFS) Enumerate(vol *vfscore.Volume, path string) ([]vfscore.FileInfo, error) {
	out := make([]vfscore.FileInfo, 0, len(devEntries))
	for _, e := range devEntries {
		out = append(out, vfscore.FileInfo{Name: e})
	}
	return out, nil
}

func (d *DevFS) Lookup(vol *vfscore.Volume, path string) (vfscore.FileInfo, bool) {
	if path == "/" {
		return vfscore.FileInfo{Name: "/", IsDir: true}, true
	}
	name, ok := devEntryName(path)
	if !ok {
		return vfscore.FileInfo{}, false
	}
	return vfscore.FileInfo{Name: name}, true
}

func (d *DevFS) GetStats(vol *vfscore.Volume) (vfscore.VolumeStats, error) {
	return vfscore.VolumeStats{}, nil
}

func (d *DevFS) GetFileInfo(vol *vfscore.Volume, path string) (vfscore.FileInfo, error) {
	info, ok := d.Lookup(vol, path)
	if !ok {
		return vfscore.FileInfo{}, vfscore.ErrVolumeNotFound
	}
	return info, nil
}
