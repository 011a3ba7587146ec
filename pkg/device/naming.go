package device

import (
	"fmt"
	"strings"
)

// EnsureDevPrefix turns "sdc" into "/dev/sdc" and leaves full paths alone.
func EnsureDevPrefix(name string) string {
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "/dev/") {
		return name
	}
	return "/dev/" + name
}

// PartitionNode returns the device node of partition slot on disk, e.g.
// /dev/sdc3 or /dev/mmcblk0p3.
func PartitionNode(disk string, slot int) string {
	name := strings.TrimPrefix(EnsureDevPrefix(disk), "/dev/")

	if strings.HasPrefix(name, "mmcblk") || strings.HasPrefix(name, "nvme") {
		return fmt.Sprintf("/dev/%sp%d", name, slot)
	}
	return fmt.Sprintf("/dev/%s%d", name, slot)
}

// BaseDisk takes a device like "/dev/mmcblk0p2" or "/dev/sda1" and returns
// the whole-disk path ("/dev/mmcblk0" or "/dev/sda").
func BaseDisk(dev string) string {
	if !strings.HasPrefix(dev, "/dev/") {
		return dev
	}

	s := strings.TrimRight(dev, "0123456789")
	if s == "/dev/" {
		return dev
	}
	if strings.HasSuffix(s, "p") && (strings.Contains(s, "mmcblk") || strings.Contains(s, "nvme")) {
		return s[:len(s)-1]
	}
	if strings.Contains(s, "mmcblk") || strings.Contains(s, "nvme") {
		// mmcblk0 / nvme0n1 without a partition suffix.
		return dev
	}
	return s
}
