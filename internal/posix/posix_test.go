package posix

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/Kelsidavis/System7-sub000/internal/blockdev"
	"github.com/Kelsidavis/System7-sub000/internal/mount"
	"github.com/Kelsidavis/System7-sub000/internal/vfscore"
)

// fakeFS is a minimal in-memory FileSystemOps for exercising the
// syscall shim without a real filesystem driver.
type fakeFS struct {
	files map[string][]byte
	dirs  map[string][]vfscore.FileInfo
}

func (f *fakeFS) Name() string                               { return "fakefs" }
func (f *fakeFS) Probe(dev blockdev.BlockDevice) bool         { return true }
func (f *fakeFS) Mount(vol *vfscore.Volume, dev blockdev.BlockDevice) (any, error) {
	return "mounted", nil
}
func (f *fakeFS) Unmount(vol *vfscore.Volume) error { return nil }

func (f *fakeFS) Read(vol *vfscore.Volume, path string, buf []byte, offset int64) (int, error) {
	data, ok := f.files[path]
	if !ok {
		return 0, vfscore.ErrVolumeNotFound
	}
	if offset >= int64(len(data)) {
		return 0, nil
	}
	n := copy(buf, data[offset:])
	return n, nil
}

func (f *fakeFS) Write(vol *vfscore.Volume, path string, buf []byte, offset int64) (int, error) {
	data := f.files[path]
	end := offset + int64(len(buf))
	if end > int64(len(data)) {
		grown := make([]byte, end)
		copy(grown, data)
		data = grown
	}
	copy(data[offset:], buf)
	f.files[path] = data
	return len(buf), nil
}

func (f *fakeFS) Enumerate(vol *vfscore.Volume, path string) ([]vfscore.FileInfo, error) {
	return f.dirs[path], nil
}

func (f *fakeFS) Lookup(vol *vfscore.Volume, path string) (vfscore.FileInfo, bool) {
	if data, ok := f.files[path]; ok {
		return vfscore.FileInfo{Name: path, Size: int64(len(data))}, true
	}
	if _, ok := f.dirs[path]; ok {
		return vfscore.FileInfo{Name: path, IsDir: true}, true
	}
	return vfscore.FileInfo{}, false
}

func (f *fakeFS) GetStats(vol *vfscore.Volume) (vfscore.VolumeStats, error) {
	return vfscore.VolumeStats{}, nil
}

func (f *fakeFS) GetFileInfo(vol *vfscore.Volume, path string) (vfscore.FileInfo, error) {
	info, ok := f.Lookup(vol, path)
	if !ok {
		return vfscore.FileInfo{}, vfscore.ErrVolumeNotFound
	}
	return info, nil
}

func setup(t *testing.T) (*mount.Table, *vfscore.Registry, *fakeFS) {
	t.Helper()
	fs := &fakeFS{
		files: map[string][]byte{"/hello.txt": []byte("hello")},
		dirs:  map[string][]vfscore.FileInfo{"/": {{Name: "hello.txt", Size: 5}}},
	}
	reg := vfscore.NewRegistry()
	if err := reg.RegisterFilesystem(fs); err != nil {
		t.Fatalf("RegisterFilesystem: %v", err)
	}
	dev := blockdev.NewMemoryDevice(make([]byte, blockdev.SectorSize))
	if _, err := reg.Mount(dev, "BOOT"); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	tbl := mount.New("BOOT")
	return tbl, reg, fs
}

func TestOpenReadCloseThenEBADF(t *testing.T) {
	tbl, reg, _ := setup(t)
	s := New()

	f := s.Open(tbl, reg, "/Volumes/BOOT/hello.txt", unix.O_RDONLY)
	if f < 3 {
		t.Fatalf("Open = %d, want fd >= 3", f)
	}

	buf := make([]byte, 5)
	n := s.Read(f, buf)
	if n != 5 || string(buf) != "hello" {
		t.Fatalf("Read = (%d, %q)", n, buf)
	}

	if rc := s.Close(f); rc != 0 {
		t.Fatalf("Close = %d, want 0", rc)
	}

	if n := s.Read(f, buf); n != -1 {
		t.Fatalf("Read after close = %d, want -1", n)
	}
	if s.Errno() != EBADF {
		t.Fatalf("Errno after closed read = %v, want EBADF", s.Errno())
	}
}

func TestReservedFDsCannotClose(t *testing.T) {
	s := New()
	for _, f := range []int{0, 1, 2} {
		if rc := s.Close(f); rc != -1 {
			t.Fatalf("Close(%d) = %d, want -1", f, rc)
		}
		if s.Errno() != EBADF {
			t.Fatalf("Errno after Close(%d) = %v, want EBADF", f, s.Errno())
		}
	}
}

func TestLseekSetCurEnd(t *testing.T) {
	tbl, reg, _ := setup(t)
	s := New()
	f := s.Open(tbl, reg, "/Volumes/BOOT/hello.txt", unix.O_RDONLY)

	if pos := s.Lseek(f, 2, unix.SEEK_SET); pos != 2 {
		t.Fatalf("SEEK_SET = %d, want 2", pos)
	}
	if pos := s.Lseek(f, 1, unix.SEEK_CUR); pos != 3 {
		t.Fatalf("SEEK_CUR = %d, want 3", pos)
	}
	if pos := s.Lseek(f, 0, unix.SEEK_END); pos != 5 {
		t.Fatalf("SEEK_END = %d, want 5", pos)
	}
	if pos := s.Lseek(f, -100, unix.SEEK_SET); pos != -1 {
		t.Fatalf("negative seek = %d, want -1", pos)
	}
	if s.Errno() != EINVAL {
		t.Fatalf("Errno after negative seek = %v, want EINVAL", s.Errno())
	}
}

func TestStatReportsModeAndSize(t *testing.T) {
	tbl, reg, _ := setup(t)
	s := New()

	var st unix.Stat_t
	if rc := s.Stat(tbl, reg, "/Volumes/BOOT/hello.txt", &st); rc != 0 {
		t.Fatalf("Stat = %d", rc)
	}
	if st.Mode != unix.S_IFREG|0644 || st.Size != 5 {
		t.Fatalf("Stat = %+v", st)
	}
}

func TestOpendirReaddirClosedir(t *testing.T) {
	tbl, reg, _ := setup(t)
	s := New()

	d := s.Opendir(tbl, reg, "/Volumes/BOOT")
	if d < 0 {
		t.Fatalf("Opendir = %d", d)
	}

	info, ok := s.Readdir(d)
	if !ok || info.Name != "hello.txt" {
		t.Fatalf("Readdir = (%+v, %v)", info, ok)
	}
	if _, ok := s.Readdir(d); ok {
		t.Fatalf("Readdir after exhausting entries returned ok=true")
	}
	if rc := s.Closedir(d); rc != 0 {
		t.Fatalf("Closedir = %d", rc)
	}
}

func TestDup2ReplacesTargetAndSharesPosition(t *testing.T) {
	tbl, reg, _ := setup(t)
	s := New()
	f := s.Open(tbl, reg, "/Volumes/BOOT/hello.txt", unix.O_RDONLY)

	buf := make([]byte, 2)
	s.Read(f, buf)

	g := f + 1
	if rc := s.Dup2(f, g); rc != g {
		t.Fatalf("Dup2 = %d, want %d", rc, g)
	}

	buf2 := make([]byte, 3)
	n := s.Read(g, buf2)
	if n != 3 || string(buf2) != "llo" {
		t.Fatalf("Read via dup'd fd = (%d, %q)", n, buf2)
	}
}
