package provision

import (
	"path/filepath"

	"github.com/woliveiras/sdprep/pkg/runner"
)

// The builders below only assemble commands; nothing is executed here.

// ZeroCommand clears the first 1 MiB + 1 KiB of the disk, which covers the
// MBR and the preloader search area.
func ZeroCommand(disk string) runner.Command {
	return runner.New("dd", "if=/dev/zero", "of="+disk, "bs=1024", "count=1025")
}

// WriteSPLCommand copies a preloader image onto the raw partition node.
func WriteSPLCommand(image, node string) runner.Command {
	return runner.New("dd", "if="+image, "of="+node, "bs=512")
}

// ZeroSectorCommand clears the first sector of a partition before mkfs.
func ZeroSectorCommand(node string) runner.Command {
	return runner.New("dd", "if=/dev/zero", "of="+node, "bs=512", "count=1")
}

// MkfsFATCommand formats node as FAT32 labelled BOOT.
func MkfsFATCommand(node string) runner.Command {
	return runner.New("mkfs.vfat", "-F", "32", "-n", "BOOT", node)
}

// Ext4Commands formats node as ext4 labelled ROOTFS. Without journal the
// filesystem is created without one and switched to data=writeback.
// Both variants end with huge_file disabled and a forced e2fsck pass, which
// exits 1 when it corrected something.
func Ext4Commands(node string, journal bool) []runner.Command {
	tuning := []string{"-E", "stride=2,stripe-width=256", "-b", "4096", "-L", "ROOTFS"}

	var cmds []runner.Command
	if journal {
		cmds = append(cmds, runner.New("mkfs.ext4", append(tuning, node)...))
	} else {
		args := append([]string{"-O", "^has_journal"}, tuning...)
		cmds = append(cmds,
			runner.New("mkfs.ext4", append(args, node)...),
			runner.New("tune2fs", "-o", "journal_data_writeback", node),
			runner.New("tune2fs", "-O", "^has_journal", node),
		)
	}

	fsck := runner.New("e2fsck", "-fpv", node)
	fsck.Accept = []int{1}
	return append(cmds, runner.New("tune2fs", "-O", "^huge_file", node), fsck)
}

// MountCommand mounts node through udisks. With user set the mount is done
// on behalf of that user so the files stay accessible without root.
func MountCommand(node, user string) runner.Command {
	args := []string{"mount", "--no-user-interaction", "-b", node}
	if user == "" {
		return runner.New("udisksctl", args...)
	}
	return runner.New("sudo", append([]string{"-u", user, "udisksctl"}, args...)...)
}

func UmountCommand(source string) runner.Command {
	return runner.New("umount", source)
}

// ChownCommand hands path back to user (and the group of the same name).
func ChownCommand(path, user string) runner.Command {
	return runner.New("chown", user+":"+user, path)
}

func ChmodCommand(path, mode string) runner.Command {
	return runner.New("chmod", mode, path)
}

// RestoreCommand runs a restore script from its own directory so the
// archive name it references resolves.
func RestoreCommand(script, mountpoint string) runner.Command {
	c := runner.New("sh", filepath.Base(script), mountpoint)
	c.Dir = filepath.Dir(script)
	return c
}
