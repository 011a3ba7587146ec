package layout

import (
	"errors"
	"fmt"
)

const (
	Heads           = 224
	SectorsPerTrack = 56
	SectorSize      = 512

	CylinderBytes  = Heads * SectorsPerTrack * SectorSize
	CylinderBlocks = CylinderBytes / BlockSize

	BlockSize = 1024

	// RawStart leaves the first MiB for the partition table and the
	// preloader's search area.
	RawStart = 1024

	// FatCylinders is the size of the boot partition.
	FatCylinders = 10

	// MinCylinders is the smallest device that still gets a non-empty root
	// partition: one cylinder for RAW, ten for FAT and one for ROOTFS.
	MinCylinders = 1 + FatCylinders + 1
)

// ErrDeviceTooSmall is returned by Compute for devices below MinCylinders.
var ErrDeviceTooSmall = errors.New("device too small for partition layout")

// Role names what a partition is used for.
type Role int

const (
	RoleFAT Role = iota + 1
	RoleRootFS
	RoleRaw
)

func (r Role) String() string {
	switch r {
	case RoleFAT:
		return "FAT"
	case RoleRootFS:
		return "ROOTFS"
	case RoleRaw:
		return "RAW"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Slot is the partition table entry number the bootloader expects the role
// in.
func (r Role) Slot() int {
	switch r {
	case RoleFAT:
		return 1
	case RoleRootFS:
		return 2
	case RoleRaw:
		return 3
	default:
		return 0
	}
}

// MBR partition type codes.
const (
	TypeFAT32  byte = 0x0B
	TypeLinux  byte = 0x83
	TypeAltera byte = 0xA2
)

// PartitionSpec is one partition in 1 KiB blocks.
type PartitionSpec struct {
	Role     Role
	Start    uint64
	Length   uint64
	Type     byte
	Bootable bool
}

func (p PartitionSpec) Slot() int { return p.Role.Slot() }

// End is the first block after the partition.
func (p PartitionSpec) End() uint64 { return p.Start + p.Length }

func (p PartitionSpec) String() string {
	boot := ""
	if p.Bootable {
		boot = " boot"
	}
	return fmt.Sprintf("%d %-6s start=%d length=%d type=0x%02X%s", p.Slot(), p.Role, p.Start, p.Length, p.Type, boot)
}

// Layout is the partition plan for one device size.
type Layout struct {
	DeviceSize  uint64
	Cylinders   uint64
	TotalBlocks uint64

	// bySlot holds FAT, ROOTFS, RAW at indexes 0, 1, 2.
	bySlot [3]PartitionSpec
}

// Compute derives the layout for a device of size bytes. Devices smaller
// than MinCylinders cylinders are rejected with ErrDeviceTooSmall.
func Compute(size uint64) (Layout, error) {
	cylinders := size / CylinderBytes
	if cylinders < MinCylinders {
		return Layout{}, fmt.Errorf("%w: %d bytes is %d cylinders of %d bytes, need at least %d",
			ErrDeviceTooSmall, size, cylinders, CylinderBytes, MinCylinders)
	}
	total := cylinders * CylinderBlocks

	fat := PartitionSpec{
		Role:     RoleFAT,
		Start:    1 * CylinderBlocks,
		Length:   FatCylinders * CylinderBlocks,
		Type:     TypeFAT32,
		Bootable: true,
	}
	rootStart := uint64((1 + FatCylinders) * CylinderBlocks)
	rootfs := PartitionSpec{
		Role:   RoleRootFS,
		Start:  rootStart,
		Length: total - rootStart,
		Type:   TypeLinux,
	}
	raw := PartitionSpec{
		Role:   RoleRaw,
		Start:  RawStart,
		Length: 1*CylinderBlocks - RawStart,
		Type:   TypeAltera,
	}

	return Layout{
		DeviceSize:  size,
		Cylinders:   cylinders,
		TotalBlocks: total,
		bySlot:      [3]PartitionSpec{fat, rootfs, raw},
	}, nil
}

// Partitions returns the specs in partition-table slot order 1, 2, 3.
func (l Layout) Partitions() []PartitionSpec {
	out := make([]PartitionSpec, len(l.bySlot))
	copy(out, l.bySlot[:])
	return out
}

// Partition returns the partition placed for role.
func (l Layout) Partition(role Role) PartitionSpec {
	return l.bySlot[role.Slot()-1]
}

func (l Layout) String() string {
	s := fmt.Sprintf("layout: %d cylinders, %d blocks\n", l.Cylinders, l.TotalBlocks)
	for _, p := range l.bySlot {
		s += "  " + p.String() + "\n"
	}
	return s
}
