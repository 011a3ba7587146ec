package provision

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/hashicorp/go-multierror"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sys/unix"
)

// ArchiveExt is appended to archive base names.
const ArchiveExt = ".tar.gz"

// DefaultExcludes are the virtual or transient trees never archived. The
// patterns are matched against "./"-prefixed paths relative to the root.
var DefaultExcludes = []string{"./proc", "./lost+found", "./sys", "./mnt", "./media", "./dev"}

// ArchivePaths derives the archive and restore-script paths from a base
// path, with or without the archive extension.
func ArchivePaths(base string) (archive, script string) {
	base = strings.TrimSuffix(base, ArchiveExt)
	return base + ArchiveExt, base + ".sh"
}

// ArchiveStats summarizes a WriteArchive run.
type ArchiveStats struct {
	Entries int
	// Skipped lists entries tar cannot represent, such as sockets.
	Skipped []string
}

// WriteArchive writes a gzip-compressed tar of root to dest. Owners are
// stored numerically, permissions are kept, and the walk does not descend
// into other filesystems. Paths matching one of excludes are left out
// together with everything below them.
func WriteArchive(root, dest string, excludes []string) (stats ArchiveStats, err error) {
	matchers := make([]glob.Glob, 0, len(excludes))
	for _, p := range excludes {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return stats, fmt.Errorf("bad exclude pattern %q: %w", p, err)
		}
		matchers = append(matchers, g)
	}

	var rootStat unix.Stat_t
	if err := unix.Stat(root, &rootStat); err != nil {
		return stats, fmt.Errorf("cannot stat %s: %w", root, err)
	}
	absDest, _ := filepath.Abs(dest)

	f, err := os.Create(dest)
	if err != nil {
		return stats, fmt.Errorf("cannot create archive: %w", err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	defer func() {
		var result *multierror.Error
		if err != nil {
			result = multierror.Append(result, err)
		}
		for _, c := range []io.Closer{tw, gz, f} {
			if cerr := c.Close(); cerr != nil {
				result = multierror.Append(result, cerr)
			}
		}
		err = result.ErrorOrNil()
		if result != nil && len(result.Errors) == 1 {
			err = result.Errors[0]
		}
		if err != nil {
			os.Remove(dest)
		}
	}()

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := "./"
		if rel != "." {
			name += filepath.ToSlash(rel)
			if excluded(matchers, name) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if abs, _ := filepath.Abs(path); abs == absDest {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSocket != 0 {
			stats.Skipped = append(stats.Skipped, name)
			return nil
		}
		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		hdr.Name = name
		if d.IsDir() && !strings.HasSuffix(hdr.Name, "/") {
			hdr.Name += "/"
		}
		hdr.Uname, hdr.Gname = "", ""
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			if err := appendFile(tw, path); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		stats.Entries++

		if d.IsDir() && rel != "." {
			var st unix.Stat_t
			if err := unix.Lstat(path, &st); err == nil && st.Dev != rootStat.Dev {
				return filepath.SkipDir
			}
		}
		return nil
	})
	return stats, err
}

func excluded(matchers []glob.Glob, name string) bool {
	for _, g := range matchers {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func appendFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// RestoreScript is the companion script written next to an archive. Run as
// root from the archive's directory with the target mount point as $1.
func RestoreScript(archiveName string) string {
	return `#!/bin/bash

if [ ${UID} -ne 0 ] ; then
    echo "${SELF}: error: you need root privileges. Use sudo."
    exit -1
fi

if [ -z "$1" ]
  then
    echo "error: you must specify the path to the SDCARD rootfs."
    exit -1
fi

tar -C $1 -xzpf ` + archiveName + "\n"
}

// WriteRestoreScript writes RestoreScript for archive to path.
func WriteRestoreScript(path, archive string) error {
	return os.WriteFile(path, []byte(RestoreScript(filepath.Base(archive))), 0o644)
}
