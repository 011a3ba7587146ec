package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/woliveiras/sdprep/pkg/device"
	"github.com/woliveiras/sdprep/pkg/runner"
)

// Dialect selects how the layout is handed to sfdisk.
type Dialect string

const (
	// DialectScript is the sfdisk script format of util-linux >= 2.26,
	// positions in 512-byte sectors.
	DialectScript Dialect = "script"
	// DialectLegacy feeds "start,size,type,bootable" records in 1 KiB
	// blocks with an explicit CHS geometry (-D -H -S -C -uB), which only
	// util-linux < 2.26 accepts.
	DialectLegacy Dialect = "legacy"
)

// ParseDialect accepts "script", "legacy" or "" (script).
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case "", DialectScript:
		return DialectScript, nil
	case DialectLegacy:
		return DialectLegacy, nil
	default:
		return "", fmt.Errorf("unknown sfdisk dialect %q (want %q or %q)", s, DialectScript, DialectLegacy)
	}
}

// Records renders "start,length,type,bootable" lines in slot order, the
// input the legacy sfdisk reads with -uB.
func (l Layout) Records() string {
	var b strings.Builder
	for _, p := range l.bySlot {
		boot := "-"
		if p.Bootable {
			boot = "*"
		}
		fmt.Fprintf(&b, "%d,%d,0x%02X,%s,\n", p.Start, p.Length, p.Type, boot)
	}
	return b.String()
}

// Script renders an sfdisk script with one line per slot. Slots are pinned
// by naming the partition node, so their order on disk does not matter.
func (l Layout) Script(disk string) string {
	const sectorsPerBlock = BlockSize / SectorSize

	var b strings.Builder
	b.WriteString("label: dos\n")
	b.WriteString("unit: sectors\n\n")
	for _, p := range l.bySlot {
		fmt.Fprintf(&b, "%s : start=%d, size=%d, type=%x",
			device.PartitionNode(disk, p.Slot()), p.Start*sectorsPerBlock, p.Length*sectorsPerBlock, p.Type)
		if p.Bootable {
			b.WriteString(", bootable")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SfdiskCommand builds the command writing the layout to disk. It does not
// execute anything.
func SfdiskCommand(disk string, l Layout, dialect Dialect) (runner.Command, error) {
	disk = device.EnsureDevPrefix(disk)
	if disk == "" {
		return runner.Command{}, fmt.Errorf("SfdiskCommand: device is required")
	}

	switch dialect {
	case "", DialectScript:
		return runner.Command{
			Name:  "sfdisk",
			Args:  []string{"--force", "--no-reread", disk},
			Stdin: l.Script(disk),
		}, nil
	case DialectLegacy:
		return runner.Command{
			Name: "sfdisk",
			Args: []string{
				"-f", "-D",
				"-H", strconv.Itoa(Heads),
				"-S", strconv.Itoa(SectorsPerTrack),
				"-C", strconv.FormatUint(l.Cylinders, 10),
				"-uB", disk,
			},
			Stdin: l.Records(),
		}, nil
	default:
		return runner.Command{}, fmt.Errorf("SfdiskCommand: unknown dialect %q", dialect)
	}
}
