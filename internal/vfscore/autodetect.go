package vfscore

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Kelsidavis/System7-sub000/internal/blockdev"
	"github.com/Kelsidavis/System7-sub000/internal/nklog"
)

var autodetectLog = nklog.New("vfscore")

// KnownPartitionTypes are the MBR partition type bytes spec.md §6
// recognizes by name; unknown types are still probed, since the
// allowlist only affects diagnostics, never whether a mount is
// attempted.
var KnownPartitionTypes = map[byte]string{
	0x06: "FAT16",
	0x07: "NTFS/exFAT",
	0x0B: "FAT32",
	0x0C: "FAT32-LBA",
	0x0E: "FAT16-LBA",
	0x05: "Extended",
	0x83: "Linux",
	0xAF: "HFS+",
}

// AutodetectResult records one mount attempt made during autodetect,
// success or failure, for the caller to log or report.
type AutodetectResult struct {
	DeviceName string
	Volume     *Volume
	Err        error
}

// NamedDevice pairs a registered block device with the name autodetect
// should probe it under.
type NamedDevice struct {
	Name   string
	Device blockdev.BlockDevice
}

// Autodetect enumerates devices, reads sector 0 of each looking for an
// MBR signature, and attempts to mount every partition it finds (or the
// raw device, if no MBR is present). Per-device work runs concurrently
// via errgroup since probing one device cannot affect another; an
// individual mount failure is logged and recorded in the result set,
// never treated as fatal to the overall scan, matching
// autodetect_mount's contract in spec.md §4.J.
func Autodetect(reg *Registry, devices []NamedDevice) []AutodetectResult {
	var (
		mu      sync.Mutex
		results []AutodetectResult
	)
	record := func(name string, vol *Volume, err error) {
		mu.Lock()
		results = append(results, AutodetectResult{DeviceName: name, Volume: vol, Err: err})
		mu.Unlock()
		if err != nil {
			autodetectLog.Printf("mount %s: %v", name, err)
		}
	}

	var eg errgroup.Group
	for _, nd := range devices {
		nd := nd
		eg.Go(func() error {
			partitions, hasMBR, err := ReadMBR(nd.Device)
			if err != nil {
				record(nd.Name, nil, fmt.Errorf("read sector 0: %w", err))
				return nil
			}
			if !hasMBR {
				vol, err := reg.Mount(nd.Device, nd.Name)
				record(nd.Name, vol, err)
				return nil
			}
			for i, p := range partitions {
				if p.SectorCnt == 0 {
					continue
				}
				partName := fmt.Sprintf("%sp%d", nd.Name, i)
				pdev := NewPartitionDevice(nd.Device, uint64(p.StartLBA), uint64(p.SectorCnt))
				vol, err := reg.Mount(pdev, partName)
				record(partName, vol, err)
			}
			return nil
		})
	}
	// eg.Wait's error is always nil: every goroutine above swallows its
	// own error into record() rather than returning one, since a single
	// device's failure must never cancel the others' probing.
	_ = eg.Wait()

	return results
}
