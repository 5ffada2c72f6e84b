package virtualfs

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Kelsidavis/System7-sub000/internal/nkmem"
	"github.com/Kelsidavis/System7-sub000/internal/vfscore"
)

func TestProcFSVersionAndMeminfo(t *testing.T) {
	pmm := nkmem.NewPMM(16*nkmem.PageSize, 0)
	proc := NewProcFS(Sources{Version: "nanokernel test build", PMM: pmm})

	buf := make([]byte, 128)
	n, err := proc.Read(nil, "/version", buf, 0)
	if err != nil {
		t.Fatalf("Read version: %v", err)
	}
	if string(buf[:n]) != "nanokernel test build\n" {
		t.Fatalf("version body = %q", buf[:n])
	}

	n, err = proc.Read(nil, "/meminfo", buf, 0)
	if err != nil {
		t.Fatalf("Read meminfo: %v", err)
	}
	if !strings.Contains(string(buf[:n]), "MemTotal") {
		t.Fatalf("meminfo body = %q", buf[:n])
	}
}

func TestProcFSWriteRejected(t *testing.T) {
	proc := NewProcFS(Sources{})
	if _, err := proc.Write(nil, "/version", []byte("x"), 0); err != ErrReadOnly {
		t.Fatalf("Write = %v, want ErrReadOnly", err)
	}
}

func TestProcFSEnumerateListsFixedEntries(t *testing.T) {
	proc := NewProcFS(Sources{})
	entries, err := proc.Enumerate(nil, "/")
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(entries) != len(procEntries) {
		t.Fatalf("Enumerate = %d entries, want %d", len(entries), len(procEntries))
	}
}

func TestDevFSNullZeroRandom(t *testing.T) {
	dev := NewDevFS(nil, 42)

	buf := make([]byte, 8)
	n, err := dev.Read(nil, "/null", buf, 0)
	if err != nil || n != 0 {
		t.Fatalf("Read null = (%d, %v)", n, err)
	}

	for i := range buf {
		buf[i] = 0xFF
	}
	n, err = dev.Read(nil, "/zero", buf, 0)
	if err != nil || n != len(buf) {
		t.Fatalf("Read zero = (%d, %v)", n, err)
	}
	for _, b := range buf {
		if b != 0 {
			t.Fatalf("zero buffer has non-zero byte: %v", buf)
		}
	}

	a := make([]byte, 16)
	b := make([]byte, 16)
	if _, err := dev.Read(nil, "/random", a, 0); err != nil {
		t.Fatalf("Read random: %v", err)
	}
	if _, err := dev.Read(nil, "/random", b, 0); err != nil {
		t.Fatalf("Read random: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("consecutive /dev/random reads produced identical bytes")
	}
}

func TestDevFSConsoleWritesToWriter(t *testing.T) {
	var out bytes.Buffer
	dev := NewDevFS(&out, 1)
	n, err := dev.Write(nil, "/console", []byte("hello"), 0)
	if err != nil || n != 5 {
		t.Fatalf("Write console = (%d, %v)", n, err)
	}
	if out.String() != "hello" {
		t.Fatalf("console output = %q", out.String())
	}
}

func TestDevFSZeroRandomWriteRejected(t *testing.T) {
	dev := NewDevFS(nil, 1)
	if _, err := dev.Write(nil, "/zero", []byte("x"), 0); err != ErrReadOnly {
		t.Fatalf("Write zero = %v, want ErrReadOnly", err)
	}
	if _, err := dev.Write(nil, "/random", []byte("x"), 0); err != ErrReadOnly {
		t.Fatalf("Write random = %v, want ErrReadOnly", err)
	}
}

// fakeNetDriver is a minimal in-memory VFSNetDriver for NetFS tests.
type fakeNetDriver struct {
	files map[string][]byte
}

func (f *fakeNetDriver) Name() string { return "fakenet" }
func (f *fakeNetDriver) Read(path string, buf []byte, offset int64) (int, error) {
	data, ok := f.files[path]
	if !ok {
		return 0, vfscore.ErrVolumeNotFound
	}
	return copy(buf, data[offset:]), nil
}
func (f *fakeNetDriver) Write(path string, buf []byte, offset int64) (int, error) {
	f.files[path] = append([]byte{}, buf...)
	return len(buf), nil
}
func (f *fakeNetDriver) Lookup(path string) (vfscore.FileInfo, bool) {
	data, ok := f.files[path]
	return vfscore.FileInfo{Name: path, Size: int64(len(data))}, ok
}
func (f *fakeNetDriver) Enumerate(path string) ([]vfscore.FileInfo, error) {
	var out []vfscore.FileInfo
	for name := range f.files {
		out = append(out, vfscore.FileInfo{Name: name})
	}
	return out, nil
}

func TestNetFSDelegatesToRoutedDriver(t *testing.T) {
	net := NewNetFS()
	driver := &fakeNetDriver{files: map[string][]byte{"/remote.txt": []byte("remote data")}}
	net.BindDriver("Share", driver)

	vol := &vfscore.Volume{Name: "Share"}
	buf := make([]byte, 32)
	n, err := net.Read(vol, "/remote.txt", buf, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "remote data" {
		t.Fatalf("Read = %q", buf[:n])
	}
}

func TestNetFSUnboundMountFails(t *testing.T) {
	net := NewNetFS()
	vol := &vfscore.Volume{Name: "Unbound"}
	if _, err := net.Read(vol, "/x", make([]byte, 1), 0); err != ErrUnknownDriver {
		t.Fatalf("Read = %v, want ErrUnknownDriver", err)
	}
}
