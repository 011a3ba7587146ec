package device

import (
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/procfs"
)

// Mount is one entry of the system mount table.
type Mount struct {
	Source string
	Target string
	FSType string
}

// MountTable abstracts where mount information comes from so tests can
// provide a static table.
type MountTable interface {
	Mounts() ([]Mount, error)
}

// ProcMountTable reads <ProcRoot>/<PID>/mountinfo.
type ProcMountTable struct {
	ProcRoot string
	PID      int
}

// NewProcMountTable returns a table for the current process under /proc.
func NewProcMountTable() *ProcMountTable {
	return &ProcMountTable{ProcRoot: procfs.DefaultMountPoint, PID: os.Getpid()}
}

func (t *ProcMountTable) Mounts() ([]Mount, error) {
	fs, err := procfs.NewFS(t.ProcRoot)
	if err != nil {
		return nil, fmt.Errorf("cannot open procfs at %s: %w", t.ProcRoot, err)
	}
	proc, err := fs.Proc(t.PID)
	if err != nil {
		return nil, fmt.Errorf("cannot open process %d: %w", t.PID, err)
	}
	infos, err := proc.MountInfo()
	if err != nil {
		return nil, fmt.Errorf("cannot read mountinfo: %w", err)
	}

	mounts := make([]Mount, 0, len(infos))
	for _, mi := range infos {
		mounts = append(mounts, Mount{Source: mi.Source, Target: mi.MountPoint, FSType: mi.FSType})
	}
	return mounts, nil
}

// StaticMountTable is a fixed table.
type StaticMountTable []Mount

func (s StaticMountTable) Mounts() ([]Mount, error) {
	return s, nil
}

// MountsOf returns the entries whose source is the disk or one of its
// partitions, in table order.
func MountsOf(table MountTable, disk string) ([]Mount, error) {
	all, err := table.Mounts()
	if err != nil {
		return nil, err
	}
	disk = EnsureDevPrefix(disk)

	var out []Mount
	for _, m := range all {
		if !strings.HasPrefix(m.Source, "/dev/") {
			continue
		}
		if m.Source == disk || BaseDisk(m.Source) == disk {
			out = append(out, m)
		}
	}
	return out, nil
}

// MountPoint returns where node is mounted, or "" when it is not.
func MountPoint(table MountTable, node string) (string, error) {
	all, err := table.Mounts()
	if err != nil {
		return "", err
	}
	for _, m := range all {
		if m.Source == node {
			return m.Target, nil
		}
	}
	return "", nil
}
