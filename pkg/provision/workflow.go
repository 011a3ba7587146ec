package provision

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/woliveiras/sdprep/pkg/device"
	"github.com/woliveiras/sdprep/pkg/layout"
	"github.com/woliveiras/sdprep/pkg/runner"
)

// DefaultSettleDelay is the pause between formatting and mounting that
// gives the kernel time to create the new partition nodes.
const DefaultSettleDelay = time.Second

// JournalMode decides how the ext4 journal question is answered.
type JournalMode string

const (
	JournalAsk JournalMode = "ask"
	JournalYes JournalMode = "yes"
	JournalNo  JournalMode = "no"
)

// ParseJournalMode accepts "ask", "yes", "no" or "" (ask).
func ParseJournalMode(s string) (JournalMode, error) {
	switch JournalMode(s) {
	case "", JournalAsk:
		return JournalAsk, nil
	case JournalYes, JournalNo:
		return JournalMode(s), nil
	default:
		return "", fmt.Errorf("unknown ext4 journal mode %q (want ask, yes or no)", s)
	}
}

// Args carries the per-invocation inputs of an operation. Empty paths are
// asked for interactively.
type Args struct {
	// Force skips confirmations and the optional questions.
	Force bool

	SPLImage     string
	BootDir      string
	RootfsScript string
	// RootfsCopy is the archive base path for CopyRootfs.
	RootfsCopy string
}

// Workflow runs provisioning operations against one card at a time.
type Workflow struct {
	Runner  runner.Runner
	Catalog *device.Catalog
	Mounts  device.MountTable
	Prompt  Prompter
	Logger  logrus.FieldLogger

	ImagesDir   string
	Dialect     layout.Dialect
	Ext4Journal JournalMode
	SettleDelay time.Duration
	// SudoUser owns the archives and the FAT mount; empty means root.
	SudoUser string
	// JournalPath, when set, receives a section per Run.
	JournalPath string
	Progress    ProgressFunc

	// ReadTable reads the partition table back after partitioning and for
	// the pre-partition warning. Nil skips both.
	ReadTable func(path string) (*mbr.Table, error)
	Sleep     func(time.Duration)
	// Sync flushes filesystem buffers; nil means unix.Sync.
	Sync func()
	// DryRun replaces in-process steps with a log line. Pair it with a
	// runner.NoopRunner.
	DryRun bool
}

// Run dispatches op for d and journals the outcome.
func (w *Workflow) Run(ctx context.Context, op Operation, d device.Device, args Args) error {
	var (
		steps []Step
		err   error
	)
	switch op {
	case OpMount:
		steps, err = w.Mount(ctx, d)
	case OpUnmount:
		steps, err = w.Unmount(ctx, d)
	case OpPrepare:
		steps, err = w.Prepare(ctx, d, args)
	case OpInstallSPL:
		steps, err = w.InstallSPL(ctx, d, args)
	case OpFormatFAT:
		steps, err = w.FormatFAT(ctx, d, args)
	case OpInstallBootFiles:
		steps, err = w.InstallBootFiles(ctx, d, args)
	case OpCopyRootfs:
		steps, err = w.CopyRootfs(ctx, d, args)
	case OpFormatRootfs:
		steps, err = w.FormatRootfs(ctx, d, args)
	case OpInstallRootfs:
		steps, err = w.InstallRootfs(ctx, d, args)
	default:
		err = fmt.Errorf("unknown operation %s", op)
	}

	if w.JournalPath != "" {
		entry := JournalEntry{Time: time.Now(), Device: d, Operation: op, Steps: steps, Err: err}
		if jerr := AppendJournal(w.JournalPath, entry); jerr != nil {
			w.log().WithError(jerr).Warn("cannot write journal")
		}
	}
	return err
}

func (w *Workflow) log() logrus.FieldLogger {
	if w.Logger != nil {
		return w.Logger
	}
	return logSink
}

func (w *Workflow) catalog() *device.Catalog {
	if w.Catalog != nil {
		return w.Catalog
	}
	return device.NewCatalog(nil, 0)
}

func (w *Workflow) apply(ctx context.Context, steps []Step) ([]Step, error) {
	if w.DryRun {
		for i := range steps {
			if steps[i].Do == nil {
				continue
			}
			op := steps[i].Operation
			steps[i].Do = func(context.Context) error {
				w.log().Infof("NOOP: %s", op)
				return nil
			}
		}
	}
	return Apply(ctx, steps, w.Runner, w.log())
}

func (w *Workflow) validate(d device.Device) error {
	return ValidateDevice(w.catalog(), d)
}

func (w *Workflow) confirm(args Args, question, phrase string) error {
	if args.Force {
		return nil
	}
	if w.Prompt == nil {
		return fmt.Errorf("confirmation required but no prompt available (use force)")
	}
	w.Prompt.Println(question)
	return Confirm(w.Prompt, fmt.Sprintf("Type %s or anything else to abort: ", phrase), phrase)
}

func (w *Workflow) choose(title, dir, pattern string, dirs bool) (string, error) {
	if w.Prompt == nil {
		return "", fmt.Errorf("no %s given and no prompt available", title)
	}
	items, err := ListImages(dir, pattern, dirs)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", fmt.Errorf("no %s found in %s", title, dir)
	}
	names := make([]string, len(items))
	for i, p := range items {
		names[i] = filepath.Base(p)
	}
	w.Prompt.Println("")
	w.Prompt.Printf("Choose %s from %s:\n", title, dir)
	idx, err := Choose(w.Prompt, "Enter # then press <enter>: ", names)
	if err != nil {
		return "", err
	}
	return items[idx], nil
}

func (w *Workflow) sleep() {
	delay := w.SettleDelay
	if delay == 0 {
		delay = DefaultSettleDelay
	}
	if w.Sleep != nil {
		w.Sleep(delay)
		return
	}
	time.Sleep(delay)
}

func (w *Workflow) sync() {
	if w.Sync != nil {
		w.Sync()
		return
	}
	unix.Sync()
}

// ext4Journal settles the journal question before anything destructive
// runs. Forced runs take the journal-less default unless configured.
func (w *Workflow) ext4Journal(args Args) (bool, error) {
	switch w.Ext4Journal {
	case JournalYes:
		return true, nil
	case JournalNo:
		return false, nil
	}
	if args.Force || w.Prompt == nil {
		return false, nil
	}
	w.Prompt.Println("Enter yes for journal support on the EXT4 partition or anything else for the data_writeback default.")
	ans, err := w.Prompt.Ask("Type yes or anything else for default: ")
	if err != nil {
		return false, err
	}
	return ConfirmPhrase(ans, YesPhrase) == Proceed, nil
}

// DryRunMountPoint stands in for the mount point of an unmounted node
// during a dry run.
func DryRunMountPoint(node string) string {
	return "<mount point of " + node + ">"
}

func node(d device.Device, role layout.Role) string {
	return device.PartitionNode(d.Path, role.Slot())
}

func (w *Workflow) unmountStep(d device.Device) Step {
	return Step{
		Operation:   "unmount",
		Device:      d.Path,
		Description: fmt.Sprintf("Dis-mounting all mounts on %s", d.Path),
		Do: func(ctx context.Context) error {
			return w.unmountAll(ctx, d)
		},
	}
}

func (w *Workflow) unmountAll(ctx context.Context, d device.Device) error {
	mounts, err := device.MountsOf(w.Mounts, d.Path)
	if err != nil {
		return fmt.Errorf("cannot read mount table: %w", err)
	}
	for _, m := range mounts {
		w.log().Infof("Unmounting %s from %s", m.Source, m.Target)
		if _, err := w.Runner.Run(ctx, UmountCommand(m.Source)); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workflow) mountStep(d device.Device, role layout.Role, bestEffort bool) Step {
	n := node(d, role)
	user := ""
	if role == layout.RoleFAT {
		user = w.SudoUser
	}
	s := commandStep("mount-"+role.String(), d.Path, role.Slot(), "Mounting "+n, MountCommand(n, user))
	s.BestEffort = bestEffort
	return s
}

func (w *Workflow) formatFATSteps(d device.Device) []Step {
	n := node(d, layout.RoleFAT)
	slot := layout.RoleFAT.Slot()
	return []Step{
		commandStep("zero-fat", d.Path, slot, "Formatting "+n+" as BOOT:FAT32", ZeroSectorCommand(n)),
		commandStep("mkfs-fat", d.Path, slot, "", MkfsFATCommand(n)),
	}
}

func (w *Workflow) formatRootfsSteps(d device.Device, journal bool) []Step {
	n := node(d, layout.RoleRootFS)
	slot := layout.RoleRootFS.Slot()
	var steps []Step
	for i, c := range Ext4Commands(n, journal) {
		desc := ""
		if i == 0 {
			desc = "Formatting " + n + " as ROOTFS:EXT4"
		}
		steps = append(steps, commandStep("format-rootfs", d.Path, slot, desc, c))
	}
	return steps
}

// ensureMounted returns the mount point of the role's partition, mounting
// it first when needed. A dry run that would mount gets DryRunMountPoint.
func (w *Workflow) ensureMounted(ctx context.Context, d device.Device, role layout.Role) (string, []Step, error) {
	n := node(d, role)
	mp, err := device.MountPoint(w.Mounts, n)
	if err != nil {
		return "", nil, fmt.Errorf("cannot read mount table: %w", err)
	}
	if mp != "" {
		return mp, nil, nil
	}

	steps, err := w.apply(ctx, []Step{w.mountStep(d, role, false)})
	if err != nil {
		return "", steps, err
	}
	if w.DryRun {
		return DryRunMountPoint(n), steps, nil
	}
	if mp, err = device.MountPoint(w.Mounts, n); err != nil {
		return "", steps, fmt.Errorf("cannot read mount table: %w", err)
	}
	if mp == "" {
		return "", steps, fmt.Errorf("unable to determine %s mount point of %s", role, n)
	}
	return mp, steps, nil
}
