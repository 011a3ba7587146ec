package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/woliveiras/sdprep/pkg/config"
	"github.com/woliveiras/sdprep/pkg/device"
	"github.com/woliveiras/sdprep/pkg/provision"
	"github.com/woliveiras/sdprep/pkg/runner"
)

var (
	errMissingDevice = errors.New("missing target SDCard device")
	errNoSDCards     = errors.New("no valid SDCards found in system")
)

// SdprepOptions holds the sdprep flags.
type SdprepOptions struct {
	Device        string
	PrepareCard   bool
	ImagesLoc     string
	SPLLoc        string
	RootfsLoc     string
	RootfsCopyLoc string
	BootLoc       string
	LogFile       string
	Force         bool
	List          bool
	Verbose       bool
	ConfigPath    string
	DryRun        bool
}

// batch reports whether the flags name an action to run without the
// operation menu.
func (o *SdprepOptions) batch() bool {
	return o.PrepareCard || o.BootLoc != "" || o.RootfsLoc != ""
}

func (o *SdprepOptions) args() provision.Args {
	return provision.Args{
		Force:        o.Force,
		SPLImage:     o.SPLLoc,
		BootDir:      o.BootLoc,
		RootfsScript: o.RootfsLoc,
		RootfsCopy:   o.RootfsCopyLoc,
	}
}

// NewSdprepCommand builds the sdprep command tree.
func NewSdprepCommand(env Env, logger *logrus.Logger) *cobra.Command {
	opts := &SdprepOptions{}
	cmd := &cobra.Command{
		Use:   "sdprep",
		Short: "Partition, format and populate a boot SD card for SoC FPGA boards",
		Long: `sdprep prepares a boot SD card: a RAW partition for the preloader,
a FAT partition for the boot files and an ext4 ROOTFS partition.

Without --prepare_card, --boot_loc or --rootfs_loc it runs an interactive
menu. Every destructive operation asks for confirmation unless --force is
given.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSdprep(cmd, opts, env, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Device, "device", "d", "", "SD block device node (e.g. sdc)")
	flags.BoolVar(&opts.PrepareCard, "prepare_card", false, "re-partition and format the target device")
	flags.StringVarP(&opts.ImagesLoc, "images_loc", "i", "../ImageFiles", "image files directory containing the partition directories")
	flags.StringVarP(&opts.SPLLoc, "spl_loc", "s", "", "SPL image written to the RAW partition")
	flags.StringVarP(&opts.RootfsLoc, "rootfs_loc", "r", "", "restore script for the ROOTFS partition")
	flags.StringVarP(&opts.RootfsCopyLoc, "rootfs_copy_loc", "c", "", "file path for storing a ROOTFS copy")
	flags.StringVarP(&opts.BootLoc, "boot_loc", "b", "", "directory with the files written to the FAT partition")
	flags.BoolVarP(&opts.Force, "force", "f", false, "no prompts before executing the chosen action")
	flags.BoolVar(&opts.List, "list", false, "list detected devices and exit")
	addLoggingFlags(flags, &opts.LogFile, &opts.Verbose, "log.txt", "echo commands and their output")
	flags.StringVar(&opts.ConfigPath, "config", config.DefaultPath, "configuration file")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "log the commands instead of running them")
	return cmd
}

// RunSdprep runs sdprep with args, os.Args style.
func RunSdprep(ctx context.Context, args []string, env Env, logger *logrus.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("no arguments provided")
	}
	cmd := NewSdprepCommand(env, logger)
	cmd.SetArgs(args[1:])
	cmd.SetIn(env.Stdin)
	cmd.SetOut(env.Stdout)
	cmd.SetErr(env.Stderr)
	return cmd.ExecuteContext(ctx)
}

func runSdprep(cmd *cobra.Command, opts *SdprepOptions, env Env, logger *logrus.Logger) (err error) {
	ctx := cmd.Context()
	flags := cmd.Flags()

	if !opts.DryRun {
		if err := provision.RequireRoot(env.Geteuid); err != nil {
			return err
		}
	}

	cfg, err := config.Load(opts.ConfigPath, flags.Changed("config"))
	if err != nil {
		return err
	}
	if !flags.Changed("images_loc") {
		opts.ImagesLoc = cfg.ImagesLoc
	}
	if !flags.Changed("logfile") {
		opts.LogFile = cfg.LogFile
	}

	closer, err := SetupLogging(logger, env.Stderr, opts.Verbose, opts.LogFile)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil && !errors.Is(err, provision.ErrAborted) {
			logger.WithError(err).Debug("sdprep failed")
		}
		closer.Close()
	}()
	provision.SetLogger(logger)
	defer provision.SetLogger(nil)
	switch {
	case cfg.Source != "":
		logger.Debugf("configuration loaded from %s", cfg.Source)
	case opts.ConfigPath != "":
		logger.Debugf("configuration file %s not found, using defaults", opts.ConfigPath)
	}

	devs, err := env.Devices()
	if err != nil {
		return err
	}
	catalog := device.NewCatalog(devs, cfg.MaxSDCardSize())
	pal := newPalette(isTerminal(env.Stdout))

	ui, closeUI, err := newUI(env)
	if err != nil {
		return err
	}
	defer closeUI()

	if opts.List {
		listDevices(ui, pal, catalog)
		return nil
	}

	var target device.Device
	if opts.Device != "" {
		d, ok := catalog.Find(opts.Device)
		if !ok {
			return fmt.Errorf("device %q not found", opts.Device)
		}
		target = d
	}
	if err := validateSources(opts); err != nil {
		return err
	}

	if !opts.DryRun {
		if err := provision.CheckPrerequisites(env.LookPath); err != nil {
			return err
		}
	}

	r := env.Runner
	if r == nil {
		if opts.DryRun {
			r = runner.NewNoopRunner(logger)
		} else {
			r = runner.NewExecRunner(logger)
		}
	}
	progress := newCopyProgress(env.Stdout)
	defer progress.Stop()

	w := &provision.Workflow{
		Runner:      r,
		Catalog:     catalog,
		Mounts:      env.Mounts,
		Prompt:      ui,
		Logger:      logger,
		ImagesDir:   opts.ImagesLoc,
		Dialect:     cfg.Dialect(),
		Ext4Journal: cfg.JournalMode(),
		SettleDelay: cfg.SettleDelay,
		SudoUser:    env.Getenv("SUDO_USER"),
		JournalPath: cfg.JournalFile,
		Progress:    progress.Func(),
		ReadTable:   env.ReadTable,
		Sleep:       env.Sleep,
		Sync:        env.Sync,
		DryRun:      opts.DryRun,
	}
	if opts.DryRun {
		w.ReadTable = nil
		w.JournalPath = ""
	}

	printBanner(ui, pal)

	if opts.batch() {
		if target.Path == "" {
			ui.Println(pal.red("ERROR: Missing target SDCard device."))
			ui.Println()
			_ = cmd.Usage()
			return errMissingDevice
		}
		logger.WithFields(logrus.Fields{
			"device":       target.Path,
			"prepare_card": opts.PrepareCard,
			"spl_loc":      opts.SPLLoc,
			"boot_loc":     opts.BootLoc,
			"rootfs_loc":   opts.RootfsLoc,
			"force":        opts.Force,
		}).Debug("non-interactive run")
		return runBatch(ctx, w, catalog, target, opts)
	}
	return runInteractive(ctx, w, ui, pal, catalog, target, opts.args())
}

// validateSources checks the source paths given on the command line
// before anything touches the card.
func validateSources(opts *SdprepOptions) error {
	if opts.SPLLoc != "" && !isRegular(opts.SPLLoc) {
		return fmt.Errorf("SPL file location specified %q is not valid", opts.SPLLoc)
	}
	if opts.BootLoc != "" && !isDir(opts.BootLoc) {
		return fmt.Errorf("boot files location specified %q is not valid", opts.BootLoc)
	}
	if opts.RootfsLoc != "" && !isRegular(opts.RootfsLoc) {
		return fmt.Errorf("ROOTFS script location specified %q is not valid", opts.RootfsLoc)
	}
	return nil
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func printBanner(ui UI, pal palette) {
	ui.Println("------------------------------------------------------")
	ui.Println("| Script to create Boot SD card for Altera SOC FPGAs |")
	ui.Println("------------------------------------------------------")
	ui.Println()
	ui.Println(pal.red("Warning: Will delete all data on target device!!!"))
}

func listDevices(ui UI, pal palette, c *device.Catalog) {
	for _, d := range c.List() {
		if c.IsPlausibleSDCard(d) {
			ui.Println(pal.green(d.String()))
		} else {
			ui.Println(pal.dim(d.String() + "  Not an SDCard"))
		}
	}
}

// runBatch runs the actions named on the command line in a fixed order:
// prepare, SPL, boot files, ROOTFS. The first failure or decline stops it.
func runBatch(ctx context.Context, w *provision.Workflow, c *device.Catalog, target device.Device, opts *SdprepOptions) error {
	if err := provision.ValidateDevice(c, target); err != nil {
		return err
	}

	var ops []provision.Operation
	if opts.PrepareCard {
		ops = append(ops, provision.OpPrepare)
	}
	if opts.SPLLoc != "" {
		ops = append(ops, provision.OpInstallSPL)
	}
	if opts.BootLoc != "" {
		ops = append(ops, provision.OpInstallBootFiles)
	}
	if opts.RootfsLoc != "" {
		ops = append(ops, provision.OpInstallRootfs)
	}

	args := opts.args()
	for _, op := range ops {
		if err := w.Run(ctx, op, target, args); err != nil {
			return err
		}
	}
	return nil
}

// runInteractive selects the device, unless one was given, and then
// loops over the operation menu until the operator leaves it empty or an
// operation fails.
func runInteractive(ctx context.Context, w *provision.Workflow, ui UI, pal palette, c *device.Catalog, target device.Device, args provision.Args) error {
	if target.Path != "" {
		if err := provision.ValidateDevice(c, target); err != nil {
			return err
		}
	} else {
		d, err := chooseDevice(ui, pal, c)
		if err != nil {
			return err
		}
		target = d
	}

	ops := provision.Operations()
	labels := make([]string, len(ops))
	for i, op := range ops {
		labels[i] = op.String()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ui.Println()
		ui.Println("List of operations possible to perform on device " + pal.green(target.Path))
		idx, err := provision.Choose(ui, "Enter operation to perform then press <enter>:", labels)
		if err != nil {
			reportChoice(ui, pal, err)
			return err
		}

		err = w.Run(ctx, ops[idx], target, args)
		switch {
		case errors.Is(err, provision.ErrAborted):
			ui.Println(pal.red("User abort."))
		case err != nil:
			return err
		}
	}
}

func chooseDevice(ui UI, pal palette, c *device.Catalog) (device.Device, error) {
	ui.Println("List of system devices.")
	devs := c.List()
	for i, d := range devs {
		text := fmt.Sprintf("  %d)  %s", i+1, d)
		if c.IsPlausibleSDCard(d) {
			ui.Println(pal.green(text))
		} else {
			ui.Println(pal.dim(text + "  Not an SDCard"))
		}
	}
	if len(c.Plausible()) == 0 {
		ui.Println(pal.red("ERROR: no valid SDCards found in system. Aborting."))
		return device.Device{}, errNoSDCards
	}

	ans, err := ui.Ask("Choose target device then press <enter>:")
	if err != nil {
		return device.Device{}, err
	}
	idx, decision := provision.ParseChoice(ans, len(devs))
	switch decision {
	case provision.Abort:
		reportChoice(ui, pal, provision.ErrAborted)
		return device.Device{}, provision.ErrAborted
	case provision.Invalid:
		err := fmt.Errorf("%w: %q", provision.ErrInvalidChoice, ans)
		reportChoice(ui, pal, err)
		return device.Device{}, err
	}

	d := devs[idx]
	if err := provision.ValidateDevice(c, d); err != nil {
		reportChoice(ui, pal, err)
		return device.Device{}, err
	}
	return d, nil
}

func reportChoice(ui UI, pal palette, err error) {
	switch {
	case errors.Is(err, provision.ErrAborted):
		ui.Println(pal.red("User abort."))
	case errors.Is(err, provision.ErrInvalidChoice), errors.Is(err, provision.ErrNotSDCard):
		ui.Println(pal.red("ERROR: Invalid choice."))
	}
}
