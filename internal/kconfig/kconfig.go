// Package kconfig reads the nanokernel's boot manifest, the teacher's
// own configuration idiom: a go4.org/jsonconfig.Obj wrapping a JSON
// document, grounded on
// perkeep-perkeep/pkg/blobserver/registry.go's StorageConstructor/
// HandlerConstructor pattern of threading a jsonconfig.Obj through
// construction instead of hand-rolled flag parsing.
package kconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"go4.org/jsonconfig"
)

// Filesystem describes one driver the boot manifest asks to be
// registered before autodetect runs.
type Filesystem struct {
	Name string `json:"name"`
}

// MountEntry describes one pre-declared mount table row.
type MountEntry struct {
	Source     string `json:"source"`
	MountPoint string `json:"mountPoint"`
	FSType     string `json:"fsType"`
}

// DaemonSocket describes one filesystem daemon the boot manifest
// registers up front, by name and port capacity.
type DaemonSocket struct {
	Name         string `json:"name"`
	PortCapacity int    `json:"portCapacity"`
}

// Boot is the parsed boot manifest: PMM size/base, heap bounds, timer
// Hz, the filesystems to register, the mount table to seed, and the
// daemons to pre-register.
type Boot struct {
	PMMSizeBytes   uint64
	PMMPhysBase    uintptr
	HeapStartBytes uint64
	HeapEndBytes   uint64
	TimerHz        uint32
	BootVolume     string
	Filesystems    []Filesystem
	Mounts         []MountEntry
	Daemons        []DaemonSocket
	MetricsAddr    string
}

// Load reads path via jsonconfig.ReadFile and decodes it into a Boot,
// rejecting any manifest key this package doesn't recognize.
func Load(path string) (*Boot, error) {
	obj, err := jsonconfig.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kconfig: read %s: %w", path, err)
	}
	return fromObj(obj)
}

// Parse decodes raw JSON boot-manifest bytes into a Boot, for tests
// that don't want to round-trip through a file.
func Parse(raw []byte) (*Boot, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("kconfig: decode manifest: %w", err)
	}
	return fromObj(jsonconfig.Obj(m))
}

// fromObj extracts the nested mounts/daemons arrays (a shape
// jsonconfig.Obj's string/int/list getters don't cover) by deleting
// them from the map once consumed, so Validate's unknown-key scan
// sees them as handled the same way the getters mark a plain key.
func fromObj(conf jsonconfig.Obj) (*Boot, error) {
	rawMounts, _ := conf["mounts"].([]any)
	delete(conf, "mounts")
	rawDaemons, _ := conf["daemons"].([]any)
	delete(conf, "daemons")

	b := &Boot{
		PMMSizeBytes:   uint64(conf.OptionalInt("pmmSizeBytes", 64*1024*1024)),
		PMMPhysBase:    uintptr(conf.OptionalInt("pmmPhysBase", 0)),
		HeapStartBytes: uint64(conf.OptionalInt("heapStartBytes", 0)),
		HeapEndBytes:   uint64(conf.OptionalInt("heapEndBytes", 16*1024*1024)),
		TimerHz:        uint32(conf.OptionalInt("timerHz", 100)),
		BootVolume:     conf.RequiredString("bootVolume"),
		MetricsAddr:    conf.OptionalString("metricsAddr", ""),
	}

	for _, name := range conf.OptionalList("filesystems") {
		b.Filesystems = append(b.Filesystems, Filesystem{Name: name})
	}

	for _, m := range rawMounts {
		entry, ok := m.(map[string]any)
		if !ok {
			continue
		}
		b.Mounts = append(b.Mounts, MountEntry{
			Source:     stringField(entry, "source"),
			MountPoint: stringField(entry, "mountPoint"),
			FSType:     stringField(entry, "fsType"),
		})
	}

	for _, d := range rawDaemons {
		entry, ok := d.(map[string]any)
		if !ok {
			continue
		}
		cap := 8
		if v, ok := entry["portCapacity"].(float64); ok {
			cap = int(v)
		}
		b.Daemons = append(b.Daemons, DaemonSocket{
			Name:         stringField(entry, "name"),
			PortCapacity: cap,
		})
	}

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("kconfig: %w", err)
	}
	return b, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
