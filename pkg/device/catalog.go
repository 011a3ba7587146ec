package device

import (
	"fmt"
	"strings"

	"github.com/prometheus/procfs/blockdevice"
)

const (
	GiB = 1 << 30

	// DefaultMaxSDCardSize is the largest device still treated as an SD
	// card. Anything bigger is most likely a system disk.
	DefaultMaxSDCardSize uint64 = 32 * GiB
)

// Device is a block device as seen at enumeration time. Its size is read
// once and never changes afterwards.
type Device struct {
	Path string
	Size uint64
}

func (d Device) String() string {
	return fmt.Sprintf("%s [%s]", d.Path, HumanSize(d.Size))
}

// Catalog is an ordered snapshot of the host's block devices.
type Catalog struct {
	devices []Device
	maxSize uint64
}

// NewCatalog keeps devices in the given order. A zero maxSize selects
// DefaultMaxSDCardSize.
func NewCatalog(devices []Device, maxSize uint64) *Catalog {
	if maxSize == 0 {
		maxSize = DefaultMaxSDCardSize
	}
	return &Catalog{devices: devices, maxSize: maxSize}
}

// List returns the devices in enumeration order.
func (c *Catalog) List() []Device {
	out := make([]Device, len(c.devices))
	copy(out, c.devices)
	return out
}

// MaxSDCardSize is the configured ceiling.
func (c *Catalog) MaxSDCardSize() uint64 {
	return c.maxSize
}

// Find looks a device up by path ("/dev/sdc") or by bare name ("sdc").
// The boolean is false when nothing matches.
func (c *Catalog) Find(name string) (Device, bool) {
	for _, d := range c.devices {
		if name == d.Path || "/dev/"+name == d.Path {
			return d, true
		}
	}
	return Device{}, false
}

// IsPlausibleSDCard is true iff the device is not larger than the ceiling.
func (c *Catalog) IsPlausibleSDCard(d Device) bool {
	return d.Size <= c.maxSize
}

// Plausible returns the devices that pass IsPlausibleSDCard.
func (c *Catalog) Plausible() []Device {
	var out []Device
	for _, d := range c.devices {
		if c.IsPlausibleSDCard(d) {
			out = append(out, d)
		}
	}
	return out
}

var excludePrefixes = []string{"loop", "zram", "ram"}

// Probe enumerates whole-disk block devices below sysRoot/block (normally
// /sys/block). procRoot is only used to construct the procfs handle.
func Probe(procRoot, sysRoot string) ([]Device, error) {
	fs, err := blockdevice.NewFS(procRoot, sysRoot)
	if err != nil {
		return nil, fmt.Errorf("cannot open sysfs at %s: %w", sysRoot, err)
	}

	names, err := fs.SysBlockDevices()
	if err != nil {
		return nil, fmt.Errorf("cannot list block devices: %w", err)
	}

	var devices []Device
	for _, name := range names {
		if hasAnyPrefix(name, excludePrefixes) {
			continue
		}
		size, err := fs.SysBlockDeviceSize(name)
		if err != nil {
			return nil, fmt.Errorf("cannot read size of %s: %w", name, err)
		}
		devices = append(devices, Device{Path: "/dev/" + name, Size: size})
	}
	return devices, nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// HumanSize renders a byte count in GiB with two decimals, the unit the
// device listings use.
func HumanSize(b uint64) string {
	return fmt.Sprintf("%.2f GiB", float64(b)/float64(GiB))
}
