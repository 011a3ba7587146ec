package provision

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ProgressFunc is told about each file as it is copied. done counts the
// files finished before name.
type ProgressFunc func(done, total int, name string)

// CopyBootFiles copies the regular files directly inside src into dest.
// Subdirectories of src are not copied. It returns the copied names.
func CopyBootFiles(src, dest string, progress ProgressFunc) ([]string, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return nil, fmt.Errorf("cannot read boot files from %s: %w", src, err)
	}

	var files []string
	for _, e := range entries {
		info, err := os.Stat(filepath.Join(src, e.Name()))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, e.Name())
	}

	for i, name := range files {
		if progress != nil {
			progress(i, len(files), name)
		}
		if err := copyFile(filepath.Join(src, name), filepath.Join(dest, name)); err != nil {
			return files[:i], err
		}
	}
	if progress != nil {
		progress(len(files), len(files), "")
	}
	return files, nil
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("cannot copy %s to %s: %w", from, to, err)
	}
	return out.Close()
}

// WipeDir removes everything inside dir but keeps dir itself.
func WipeDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			return removed, err
		}
		removed = append(removed, p)
	}
	return removed, nil
}
