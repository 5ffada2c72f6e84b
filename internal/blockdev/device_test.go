package blockdev

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestRegistryRejectsDuplicateAndFull(t *testing.T) {
	r := NewRegistry()
	dev := NewMemoryDevice(make([]byte, SectorSize*4))
	if err := r.Register(dev, TypeMemory, "ram0"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(dev, TypeMemory, "ram0-again"); err != ErrDuplicateDevice {
		t.Fatalf("Register duplicate = %v, want ErrDuplicateDevice", err)
	}

	for i := 0; i < MaxDevices-1; i++ {
		d := NewMemoryDevice(make([]byte, SectorSize))
		if err := r.Register(d, TypeMemory, "ram"); err != nil {
			t.Fatalf("Register #%d: %v", i, err)
		}
	}
	overflow := NewMemoryDevice(make([]byte, SectorSize))
	if err := r.Register(overflow, TypeMemory, "overflow"); err != ErrTableFull {
		t.Fatalf("Register past capacity = %v, want ErrTableFull", err)
	}
}

func TestRegistryGetByNameAndIndex(t *testing.T) {
	r := NewRegistry()
	dev := NewMemoryDevice(make([]byte, SectorSize*2))
	if err := r.Register(dev, TypeMemory, "disk0"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, typ, err := r.GetByName("disk0")
	if err != nil || got != dev || typ != TypeMemory {
		t.Fatalf("GetByName = (%v, %v, %v)", got, typ, err)
	}
	got2, _, name, err := r.GetByIndex(0)
	if err != nil || got2 != dev || name != "disk0" {
		t.Fatalf("GetByIndex = (%v, %q, %v)", got2, name, err)
	}
	if _, _, err := r.GetByName("missing"); err != ErrNotFound {
		t.Fatalf("GetByName missing = %v, want ErrNotFound", err)
	}
}

func TestMemoryDeviceReadWriteRoundTrip(t *testing.T) {
	dev := NewMemoryDevice(make([]byte, SectorSize*4))
	want := bytes.Repeat([]byte{0xAB}, SectorSize)
	if err := dev.WriteBlock(2, want); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	got := make([]byte, SectorSize)
	if err := dev.ReadBlock(2, got); err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("read data does not match written data")
	}
	if err := dev.ReadBlock(4, got); err != ErrOutOfRange {
		t.Fatalf("ReadBlock out of range = %v, want ErrOutOfRange", err)
	}
	if dev.SectorCount() != 4 {
		t.Fatalf("SectorCount = %d, want 4", dev.SectorCount())
	}
}

func TestFileDeviceReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	dev, err := OpenFileDevice(path, 8)
	if err != nil {
		t.Fatalf("OpenFileDevice: %v", err)
	}
	defer dev.Close()

	want := bytes.Repeat([]byte{0x5A}, SectorSize)
	if err := dev.WriteBlock(3, want); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := dev.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	got := make([]byte, SectorSize)
	if err := dev.ReadBlock(3, got); err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("read data does not match written data")
	}
	if err := dev.WriteBlock(8, want); err != ErrOutOfRange {
		t.Fatalf("WriteBlock out of range = %v, want ErrOutOfRange", err)
	}
}
