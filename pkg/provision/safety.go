package provision

import (
	"errors"
	"fmt"
	"strings"

	"github.com/woliveiras/sdprep/pkg/device"
)

// ErrNotSDCard is returned when a device fails the SD-card plausibility
// check. Every operation re-checks it before touching the card.
var ErrNotSDCard = errors.New("not a valid SDCard device")

// ErrNotRoot is returned by RequireRoot for unprivileged callers.
var ErrNotRoot = errors.New("you must be root to run this tool")

// RequiredTools are the external commands the workflow shells out to.
var RequiredTools = []string{
	"dd",
	"sfdisk",
	"mkfs.vfat",
	"mkfs.ext4",
	"tune2fs",
	"e2fsck",
	"udisksctl",
	"umount",
	"chown",
	"chmod",
	"sh",
}

// CheckPrerequisites reports every tool lookPath cannot find.
func CheckPrerequisites(lookPath func(string) (string, error)) error {
	var missing []string
	for _, cmd := range RequiredTools {
		if _, err := lookPath(cmd); err != nil {
			missing = append(missing, cmd)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required commands: %s. Install them before running (e.g. apt-get install util-linux dosfstools e2fsprogs udisks2)", strings.Join(missing, ", "))
	}
	return nil
}

// RequireRoot fails unless euid reports 0.
func RequireRoot(euid func() int) error {
	if euid() != 0 {
		return ErrNotRoot
	}
	return nil
}

// ValidateDevice is the hard gate in front of every operation on the card.
func ValidateDevice(c *device.Catalog, d device.Device) error {
	if d.Path == "" {
		return fmt.Errorf("%w: no device selected", ErrNotSDCard)
	}
	if !c.IsPlausibleSDCard(d) {
		return fmt.Errorf("%w: %s is larger than %s. Are you sure this is the drive you want?",
			ErrNotSDCard, d, device.HumanSize(c.MaxSDCardSize()))
	}
	return nil
}
