package mount

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Kelsidavis/System7-sub000/internal/vfscore"
)

var (
	ErrVolumeNotMounted  = errors.New("mount: named volume is not mounted")
	ErrComponentNotFound = errors.New("mount: path component not found")
	ErrNotADirectory     = errors.New("mount: path component is not a directory")
)

// ResolvePath normalizes path, splits it into a volume name and a
// relative remainder (via SplitPath, falling back to the table's boot
// volume for paths with no /Volumes/NAME prefix and to the current CWD
// for relative paths), looks the volume up in reg, and returns the
// resolved volume plus the final FileInfo.
//
// Descending the path one component at a time is a supplemented
// feature: spec.md §9 notes recursive path lookup is specified but not
// implemented in the reference (original_source/include/Nanokernel/
// vfs_path.h names the contract; the .c file leaves it a stub). This
// walks every intermediate component via FileSystemOps.Lookup,
// confirming each is a directory before descending further, rather
// than only checking the final path component.
func (t *Table) ResolvePath(reg *vfscore.Registry, path string) (*vfscore.Volume, vfscore.FileInfo, error) {
	if !strings.HasPrefix(path, "/") {
		path = t.CWD() + "/" + path
	}
	path = NormalizePath(path)

	volName, rest, ok := SplitPath(path)
	if !ok {
		volName = t.BootVolume()
		rest = path
	}

	vol, err := reg.GetVolumeByName(volName)
	if err != nil {
		return nil, vfscore.FileInfo{}, fmt.Errorf("%w: %s", ErrVolumeNotMounted, volName)
	}

	rest = NormalizePath(rest)
	if rest == "" || rest == "/" {
		return vol, vfscore.FileInfo{Name: "/", IsDir: true}, nil
	}

	components := strings.Split(strings.TrimPrefix(rest, "/"), "/")
	cur := ""
	var info vfscore.FileInfo
	for i, comp := range components {
		if cur == "" {
			cur = "/" + comp
		} else {
			cur = cur + "/" + comp
		}
		fi, found := vol.Ops.Lookup(vol, cur)
		if !found {
			return nil, vfscore.FileInfo{}, fmt.Errorf("%w: %s", ErrComponentNotFound, cur)
		}
		if i < len(components)-1 && !fi.IsDir {
			return nil, vfscore.FileInfo{}, fmt.Errorf("%w: %s", ErrNotADirectory, cur)
		}
		info = fi
	}
	return vol, info, nil
}
