package vfscore

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Kelsidavis/System7-sub000/internal/blockdev"
)

// fakeFS is a minimal FileSystemOps that probes true for devices whose
// first byte is a magic marker, for registry/mount tests.
type fakeFS struct {
	name      string
	magic     byte
	mountErr  error
	unmounted []*Volume
}

func (f *fakeFS) Name() string { return f.name }

func (f *fakeFS) Probe(dev blockdev.BlockDevice) bool {
	buf := make([]byte, blockdev.SectorSize)
	if err := dev.ReadBlock(0, buf); err != nil {
		return false
	}
	return buf[0] == f.magic
}

func (f *fakeFS) Mount(vol *Volume, dev blockdev.BlockDevice) (any, error) {
	if f.mountErr != nil {
		return nil, f.mountErr
	}
	return "private-state", nil
}

func (f *fakeFS) Unmount(vol *Volume) error {
	f.unmounted = append(f.unmounted, vol)
	return nil
}

func (f *fakeFS) Read(vol *Volume, path string, buf []byte, offset int64) (int, error) { return 0, nil }
func (f *fakeFS) Write(vol *Volume, path string, buf []byte, offset int64) (int, error) {
	return 0, nil
}
func (f *fakeFS) Enumerate(vol *Volume, path string) ([]FileInfo, error) { return nil, nil }
func (f *fakeFS) Lookup(vol *Volume, path string) (FileInfo, bool)       { return FileInfo{}, false }
func (f *fakeFS) GetStats(vol *Volume) (VolumeStats, error)              { return VolumeStats{}, nil }
func (f *fakeFS) GetFileInfo(vol *Volume, path string) (FileInfo, error) {
	return FileInfo{}, nil
}

func deviceWithMagic(magic byte) blockdev.BlockDevice {
	buf := make([]byte, blockdev.SectorSize*2)
	buf[0] = magic
	return blockdev.NewMemoryDevice(buf)
}

func TestMountProbesInRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	fsA := &fakeFS{name: "fsA", magic: 0xA1}
	fsB := &fakeFS{name: "fsB", magic: 0xB2}
	if err := reg.RegisterFilesystem(fsA); err != nil {
		t.Fatalf("RegisterFilesystem fsA: %v", err)
	}
	if err := reg.RegisterFilesystem(fsB); err != nil {
		t.Fatalf("RegisterFilesystem fsB: %v", err)
	}

	dev := deviceWithMagic(0xB2)
	vol, err := reg.Mount(dev, "")
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if vol.FSName != "fsB" {
		t.Fatalf("FSName = %q, want fsB", vol.FSName)
	}
	if vol.Name != "Volume_1" {
		t.Fatalf("default Name = %q, want Volume_1", vol.Name)
	}
}

func TestMountRejectsUnprobedDevice(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterFilesystem(&fakeFS{name: "fsA", magic: 0xA1})
	dev := deviceWithMagic(0x00)
	if _, err := reg.Mount(dev, "x"); err != ErrNoDriverProbed {
		t.Fatalf("Mount = %v, want ErrNoDriverProbed", err)
	}
}

func TestMountFailurePropagatesAndFreesSlot(t *testing.T) {
	reg := NewRegistry()
	fsFail := &fakeFS{name: "fsFail", magic: 0xF1, mountErr: errors.New("disk error")}
	reg.RegisterFilesystem(fsFail)

	dev := deviceWithMagic(0xF1)
	if _, err := reg.Mount(dev, "vol"); err == nil {
		t.Fatal("expected mount error to propagate")
	}
	if len(reg.Volumes()) != 0 {
		t.Fatal("expected volume slot to be freed after mount failure")
	}
}

func TestUnmountReleasesSlot(t *testing.T) {
	reg := NewRegistry()
	fs := &fakeFS{name: "fs", magic: 0x77}
	reg.RegisterFilesystem(fs)

	dev := deviceWithMagic(0x77)
	vol, err := reg.Mount(dev, "vol")
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if err := reg.Unmount(vol); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if len(fs.unmounted) != 1 || fs.unmounted[0] != vol {
		t.Fatal("expected driver Unmount to be called")
	}
	if _, err := reg.GetVolumeByID(vol.ID); err != ErrVolumeNotFound {
		t.Fatalf("GetVolumeByID after unmount = %v, want ErrVolumeNotFound", err)
	}
}

func TestReadMBRDetectsSignatureAndPartitions(t *testing.T) {
	sector := make([]byte, blockdev.SectorSize)
	sector[510] = 0x55
	sector[511] = 0xAA
	// partition 0: type 0x83, start LBA 2048, count 4096
	off := mbrPartitionTableOffset
	sector[off+4] = 0x83
	sector[off+8] = 0x00
	sector[off+9] = 0x08
	sector[off+10] = 0x00
	sector[off+11] = 0x00
	sector[off+12] = 0x00
	sector[off+13] = 0x10
	sector[off+14] = 0x00
	sector[off+15] = 0x00

	buf := make([]byte, blockdev.SectorSize*8192)
	copy(buf, sector)
	dev := blockdev.NewMemoryDevice(buf)

	partitions, ok, err := ReadMBR(dev)
	if err != nil {
		t.Fatalf("ReadMBR: %v", err)
	}
	if !ok {
		t.Fatal("expected MBR signature to be detected")
	}
	if partitions[0].Type != 0x83 || partitions[0].StartLBA != 2048 || partitions[0].SectorCnt != 4096 {
		t.Fatalf("partition[0] = %+v, want Type=0x83 StartLBA=2048 SectorCnt=4096", partitions[0])
	}
}

func TestAutodetectMountsPartitionsAndRawDevices(t *testing.T) {
	reg := NewRegistry()
	fs := &fakeFS{name: "fs", magic: 0x99}
	reg.RegisterFilesystem(fs)

	// Raw device with no MBR, magic byte set directly.
	raw := deviceWithMagic(0x99)

	// Partitioned device: MBR with one partition whose first sector
	// carries the magic byte.
	partBuf := make([]byte, blockdev.SectorSize*16)
	partBuf[0] = 0x00 // sector 0 is the MBR itself, not probed directly
	partBuf[510], partBuf[511] = 0x55, 0xAA
	off := mbrPartitionTableOffset
	partBuf[off+4] = 0x83
	partBuf[off+8], partBuf[off+9], partBuf[off+10], partBuf[off+11] = 2, 0, 0, 0 // LBA 2
	partBuf[off+12], partBuf[off+13], partBuf[off+14], partBuf[off+15] = 4, 0, 0, 0 // 4 sectors
	partBuf[2*blockdev.SectorSize] = 0x99 // partition's first sector carries the magic byte
	partitioned := blockdev.NewMemoryDevice(partBuf)

	results := Autodetect(reg, []NamedDevice{
		{Name: "raw0", Device: raw},
		{Name: "disk0", Device: partitioned},
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 autodetect results, got %d: %+v", len(results), results)
	}
	var sawRaw, sawPartition bool
	for _, r := range results {
		if r.DeviceName == "raw0" && r.Err == nil {
			sawRaw = true
		}
		if r.DeviceName == "disk0p0" && r.Err == nil {
			sawPartition = true
		}
	}
	if !sawRaw {
		t.Fatal("expected raw device to mount successfully")
	}
	if !sawPartition {
		t.Fatal("expected partition 0 to mount successfully")
	}
}

func TestPartitionDeviceWindowsParent(t *testing.T) {
	parent := make([]byte, blockdev.SectorSize*4)
	copy(parent[blockdev.SectorSize:], bytes.Repeat([]byte{0x42}, blockdev.SectorSize))
	dev := blockdev.NewMemoryDevice(parent)
	part := NewPartitionDevice(dev, 1, 2)

	buf := make([]byte, blockdev.SectorSize)
	if err := part.ReadBlock(0, buf); err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if buf[0] != 0x42 {
		t.Fatalf("partition-relative LBA 0 did not read parent LBA 1")
	}
	if err := part.ReadBlock(2, buf); err != blockdev.ErrOutOfRange {
		t.Fatalf("ReadBlock past partition bound = %v, want ErrOutOfRange", err)
	}
}
