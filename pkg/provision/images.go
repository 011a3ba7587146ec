package provision

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
)

// Image directories under the images root, one per partition.
const (
	RawImagesDir    = "raw_partition"
	FatImagesDir    = "fat_partition"
	RootfsImagesDir = "rootfs_partition"
)

// ListImages returns the absolute paths of the entries of dir whose names
// match pattern, in directory order. With dirs set only directories are
// returned, otherwise only non-directories.
func ListImages(dir, pattern string, dirs bool) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot list %s: %w", abs, err)
	}

	var out []string
	for _, e := range entries {
		if !g.Match(e.Name()) {
			continue
		}
		full := filepath.Join(abs, e.Name())
		info, err := os.Stat(full)
		if err != nil {
			continue
		}
		if info.IsDir() == dirs {
			out = append(out, full)
		}
	}
	return out, nil
}
