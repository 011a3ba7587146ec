package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/woliveiras/sdprep/pkg/device"
	"github.com/woliveiras/sdprep/pkg/layout"
)

// Mount mounts the FAT and ROOTFS partitions.
func (w *Workflow) Mount(ctx context.Context, d device.Device) ([]Step, error) {
	if err := w.validate(d); err != nil {
		return nil, err
	}
	return w.apply(ctx, []Step{
		w.mountStep(d, layout.RoleFAT, false),
		w.mountStep(d, layout.RoleRootFS, false),
	})
}

// Unmount unmounts every mounted partition of the device.
func (w *Workflow) Unmount(ctx context.Context, d device.Device) ([]Step, error) {
	if err := w.validate(d); err != nil {
		return nil, err
	}
	return w.apply(ctx, []Step{w.unmountStep(d)})
}

// Prepare repartitions and formats the whole card, then mounts both
// filesystems. It stops at the first failing step and does not roll back.
func (w *Workflow) Prepare(ctx context.Context, d device.Device, args Args) ([]Step, error) {
	if err := w.validate(d); err != nil {
		return nil, err
	}
	l, err := layout.Compute(d.Size)
	if err != nil {
		return nil, err
	}
	sfdisk, err := layout.SfdiskCommand(d.Path, l, w.Dialect)
	if err != nil {
		return nil, err
	}

	if !args.Force {
		w.warnRepartition(d)
		if w.Prompt == nil {
			return nil, fmt.Errorf("confirmation required but no prompt available (use force)")
		}
		w.Prompt.Printf("Type in '%s' then press <enter> to perform the operation\n", PreparePhrase)
		if err := Confirm(w.Prompt, "or anything else to abort: ", PreparePhrase); err != nil {
			return nil, err
		}
	}
	journal, err := w.ext4Journal(args)
	if err != nil {
		return nil, err
	}

	steps := []Step{
		w.unmountStep(d),
		commandStep("zero", d.Path, 0, "Writing zeros to the first 1MB+1024 of the card to clear any left over data", ZeroCommand(d.Path)),
		commandStep("partition", d.Path, 0, "Repartitioning to create FAT32 and Linux partitions", sfdisk),
	}
	if w.ReadTable != nil {
		steps = append(steps, Step{
			Operation:   "verify-partitions",
			Device:      d.Path,
			Description: "Verifying the new partition table",
			Do: func(context.Context) error {
				table, err := w.ReadTable(d.Path)
				if err != nil {
					return err
				}
				return l.Verify(table)
			},
		})
	}
	steps = append(steps, w.formatFATSteps(d)...)
	steps = append(steps, w.formatRootfsSteps(d, journal)...)
	steps = append(steps,
		Step{
			Operation: "settle",
			Device:    d.Path,
			Do: func(context.Context) error {
				w.sleep()
				return nil
			},
		},
		w.mountStep(d, layout.RoleFAT, false),
		w.mountStep(d, layout.RoleRootFS, false),
	)

	done, err := w.apply(ctx, steps)
	if err == nil {
		w.log().Info("Repartitioning and formatting complete")
	}
	return done, err
}

func (w *Workflow) warnRepartition(d device.Device) {
	if w.Prompt == nil {
		return
	}
	w.Prompt.Println("")
	w.Prompt.Println("##########################################################")
	w.Prompt.Printf("THIS OPERATION WILL REPARTITION THE ENTIRE %s DEVICE\n", d.Path)
	w.Prompt.Println("!!!ALL DATA WILL BE LOST!!!")
	w.Prompt.Println("##########################################################")

	if w.ReadTable == nil {
		return
	}
	table, err := w.ReadTable(d.Path)
	if err != nil {
		w.log().WithError(err).Debug("no readable partition table")
		return
	}
	w.Prompt.Println("")
	w.Prompt.Printf("Existing partitions on %s:\n", d.Path)
	for i, p := range table.Partitions {
		if p == nil || p.Size == 0 {
			continue
		}
		w.Prompt.Printf("  %d  %s\n", i+1, device.HumanSize(uint64(p.Size)*layout.SectorSize))
	}
	w.Prompt.Println("")
}

// InstallSPL writes the preloader image to the RAW partition.
func (w *Workflow) InstallSPL(ctx context.Context, d device.Device, args Args) ([]Step, error) {
	if err := w.validate(d); err != nil {
		return nil, err
	}
	image := args.SPLImage
	if image == "" {
		var err error
		dir := filepath.Join(w.ImagesDir, RawImagesDir)
		if image, err = w.choose("preloader image", dir, "*.bin", false); err != nil {
			return nil, err
		}
	}
	if info, err := os.Stat(image); err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("SPL file location %q is not valid", image)
	}

	n := node(d, layout.RoleRaw)
	w.log().Infof("SPL image will be read from : %s", image)
	w.log().Infof("SPL image will be written to: %s", n)
	return w.apply(ctx, []Step{
		commandStep("install-spl", d.Path, layout.RoleRaw.Slot(), "Writing SPL image", WriteSPLCommand(image, n)),
	})
}

// FormatFAT reformats the FAT partition. Remounting ROOTFS afterwards is
// best-effort since that partition may not hold a filesystem yet.
func (w *Workflow) FormatFAT(ctx context.Context, d device.Device, args Args) ([]Step, error) {
	if err := w.validate(d); err != nil {
		return nil, err
	}
	if err := w.confirm(args, "Are you sure you want to format the FAT partition?", YesPhrase); err != nil {
		return nil, err
	}

	steps := []Step{w.unmountStep(d)}
	steps = append(steps, w.formatFATSteps(d)...)
	steps = append(steps,
		w.mountStep(d, layout.RoleFAT, false),
		w.mountStep(d, layout.RoleRootFS, true),
	)
	return w.apply(ctx, steps)
}

// FormatRootfs reformats the ROOTFS partition as ext4 and remounts. The
// FAT remount is best-effort, mirroring FormatFAT.
func (w *Workflow) FormatRootfs(ctx context.Context, d device.Device, args Args) ([]Step, error) {
	if err := w.validate(d); err != nil {
		return nil, err
	}
	if err := w.confirm(args, "Are you sure you want to format the ROOTFS partition?", YesPhrase); err != nil {
		return nil, err
	}
	journal, err := w.ext4Journal(args)
	if err != nil {
		return nil, err
	}

	steps := []Step{w.unmountStep(d)}
	steps = append(steps, w.formatRootfsSteps(d, journal)...)
	steps = append(steps,
		w.mountStep(d, layout.RoleFAT, true),
		w.mountStep(d, layout.RoleRootFS, false),
	)
	return w.apply(ctx, steps)
}

// InstallBootFiles copies the files of a boot directory onto the FAT
// partition, optionally wiping it first.
func (w *Workflow) InstallBootFiles(ctx context.Context, d device.Device, args Args) ([]Step, error) {
	if err := w.validate(d); err != nil {
		return nil, err
	}
	dest, done, err := w.ensureMounted(ctx, d, layout.RoleFAT)
	if err != nil {
		return done, err
	}

	wipe := false
	if !args.Force && w.Prompt != nil {
		w.Prompt.Println("")
		w.Prompt.Println("Delete all current files on FAT partition?")
		ans, err := w.Prompt.Ask("Type 'yes' or 'no (default)': ")
		if err != nil {
			return done, err
		}
		wipe = ConfirmPhrase(ans, YesPhrase) == Proceed
	}

	src := args.BootDir
	if src == "" {
		dir := filepath.Join(w.ImagesDir, FatImagesDir)
		if src, err = w.choose("boot source directory", dir, "*", true); err != nil {
			return done, err
		}
	}
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return done, fmt.Errorf("boot files location %q is not valid", src)
	}

	w.log().Infof("BOOT files will be read from : %s", src)
	w.log().Infof("BOOT files will be written to: %s", dest)
	if err := w.confirm(args, "Are you sure you want to continue?", YesPhrase); err != nil {
		return done, err
	}

	var steps []Step
	if wipe {
		steps = append(steps, Step{
			Operation:   "wipe-fat",
			Device:      d.Path,
			Slot:        layout.RoleFAT.Slot(),
			Description: "Deleting all files on " + dest,
			Do: func(context.Context) error {
				removed, err := WipeDir(dest)
				for _, p := range removed {
					w.log().Debugf("deleted %s", p)
				}
				return err
			},
		})
	}
	steps = append(steps, Step{
		Operation:   "copy-boot-files",
		Device:      d.Path,
		Slot:        layout.RoleFAT.Slot(),
		Description: "Copying boot files",
		Do: func(context.Context) error {
			files, err := CopyBootFiles(src, dest, w.Progress)
			for _, f := range files {
				w.log().Debugf("copied %s to %s", f, filepath.Join(dest, f))
			}
			if err != nil {
				return err
			}
			w.sync()
			return nil
		},
	})

	more, err := w.apply(ctx, steps)
	done = append(done, more...)
	if err == nil {
		w.log().Info("BOOT files have been copied to FAT partition")
	}
	return done, err
}

// CopyRootfs archives the mounted ROOTFS partition next to a restore
// script and hands both files to the invoking user.
func (w *Workflow) CopyRootfs(ctx context.Context, d device.Device, args Args) ([]Step, error) {
	if err := w.validate(d); err != nil {
		return nil, err
	}
	src, done, err := w.ensureMounted(ctx, d, layout.RoleRootFS)
	if err != nil {
		return done, err
	}

	base := args.RootfsCopy
	if base == "" {
		if w.Prompt == nil {
			return done, fmt.Errorf("no archive location given and no prompt available")
		}
		dir, err := filepath.Abs(filepath.Join(w.ImagesDir, RootfsImagesDir))
		if err != nil {
			return done, err
		}
		w.Prompt.Println("")
		w.Prompt.Printf("ROOTFS copy will be stored in %s\n", dir)
		w.Prompt.Println("Enter file name of the archive (no extension):")
		name, err := w.Prompt.Ask("> ")
		if err != nil {
			return done, err
		}
		if name == "" {
			return done, ErrAborted
		}
		base = filepath.Join(dir, name)
	}
	archive, script := ArchivePaths(base)

	w.log().Infof("ROOTFS files will be read from : %s", src)
	w.log().Infof("ROOTFS files will be written to: %s", archive)
	if err := w.confirm(args, "Are you sure you want to continue?", YesPhrase); err != nil {
		return done, err
	}

	steps := []Step{
		{
			Operation:   "archive-rootfs",
			Device:      d.Path,
			Slot:        layout.RoleRootFS.Slot(),
			Description: "Archiving ROOTFS to " + archive,
			Do: func(context.Context) error {
				stats, err := WriteArchive(src, archive, DefaultExcludes)
				for _, s := range stats.Skipped {
					w.log().Warnf("skipped %s: not archivable", s)
				}
				w.log().Debugf("archived %d entries", stats.Entries)
				return err
			},
		},
		{
			Operation:   "restore-script",
			Device:      d.Path,
			Description: "Writing restore script " + script,
			Do: func(context.Context) error {
				return WriteRestoreScript(script, archive)
			},
		},
	}
	if w.SudoUser != "" {
		steps = append(steps,
			commandStep("chown", d.Path, 0, "", ChownCommand(archive, w.SudoUser)),
			commandStep("chown", d.Path, 0, "", ChownCommand(script, w.SudoUser)),
		)
	} else {
		w.log().Warn("SUDO_USER is not set, archive stays owned by root")
	}
	steps = append(steps, commandStep("chmod", d.Path, 0, "", ChmodCommand(script, "a+x")))

	more, err := w.apply(ctx, steps)
	return append(done, more...), err
}

// InstallRootfs restores an archive onto the mounted ROOTFS partition by
// running its restore script.
func (w *Workflow) InstallRootfs(ctx context.Context, d device.Device, args Args) ([]Step, error) {
	if err := w.validate(d); err != nil {
		return nil, err
	}
	dest, done, err := w.ensureMounted(ctx, d, layout.RoleRootFS)
	if err != nil {
		return done, err
	}

	script := args.RootfsScript
	if script == "" {
		dir := filepath.Join(w.ImagesDir, RootfsImagesDir)
		if script, err = w.choose("ROOTFS script", dir, "*.sh", false); err != nil {
			return done, err
		}
	}
	if info, err := os.Stat(script); err != nil || !info.Mode().IsRegular() {
		return done, fmt.Errorf("ROOTFS script location %q is not valid", script)
	}

	w.log().Infof("ROOTFS files will be read from : %s", script)
	w.log().Infof("ROOTFS files will be written to: %s", dest)
	if err := w.confirm(args, "Are you sure you want to continue?", YesPhrase); err != nil {
		return done, err
	}

	more, err := w.apply(ctx, []Step{
		commandStep("restore-rootfs", d.Path, layout.RoleRootFS.Slot(), "Restoring ROOTFS", RestoreCommand(script, dest)),
		{
			Operation: "sync",
			Device:    d.Path,
			Do: func(context.Context) error {
				w.sync()
				return nil
			},
		},
	})
	done = append(done, more...)
	if err == nil {
		w.log().Info("ROOTFS files have been copied to ROOTFS partition")
	}
	return done, err
}
