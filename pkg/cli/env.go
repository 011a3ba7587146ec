package cli

import (
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	"github.com/woliveiras/sdprep/pkg/device"
	"github.com/woliveiras/sdprep/pkg/layout"
	"github.com/woliveiras/sdprep/pkg/runner"
)

// SysRoot is where sysfs is mounted on the host.
const SysRoot = "/sys"

// Env is what the commands need from the process and the host. Tests
// replace the host-facing fields with fakes.
type Env struct {
	Getenv func(string) string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// UI overrides the prompt surface otherwise built from Stdin/Stdout.
	UI UI

	Geteuid  func() int
	LookPath func(string) (string, error)
	Devices  func() ([]device.Device, error)
	Mounts   device.MountTable
	// Runner overrides the command runner. Nil selects an ExecRunner, or
	// a NoopRunner under --dry-run.
	Runner    runner.Runner
	ReadTable func(path string) (*mbr.Table, error)
	Sleep     func(time.Duration)
	Sync      func()
}

// HostEnv returns an Env backed by the running system.
func HostEnv() Env {
	return Env{
		Getenv:   os.Getenv,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Geteuid:  unix.Geteuid,
		LookPath: exec.LookPath,
		Devices: func() ([]device.Device, error) {
			return device.Probe(procfs.DefaultMountPoint, SysRoot)
		},
		Mounts:    device.NewProcMountTable(),
		ReadTable: layout.ReadTable,
		Sleep:     time.Sleep,
		Sync:      unix.Sync,
	}
}
