package layout

import (
	"fmt"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/mbr"
)

// Table converts the layout into a go-diskfs MBR table in sector units.
func (l Layout) Table() *mbr.Table {
	const sectorsPerBlock = BlockSize / SectorSize

	t := &mbr.Table{
		LogicalSectorSize:  SectorSize,
		PhysicalSectorSize: SectorSize,
	}
	for _, p := range l.bySlot {
		t.Partitions = append(t.Partitions, &mbr.Partition{
			Bootable: p.Bootable,
			Type:     mbr.Type(p.Type),
			Start:    uint32(p.Start * sectorsPerBlock),
			Size:     uint32(p.Length * sectorsPerBlock),
		})
	}
	return t
}

// Verify compares an MBR read back from the device with the layout and
// reports the first slot that differs.
func (l Layout) Verify(table *mbr.Table) error {
	if table == nil {
		return fmt.Errorf("verify: no partition table")
	}
	want := l.Table()
	for i, w := range want.Partitions {
		slot := i + 1
		if i >= len(table.Partitions) || table.Partitions[i] == nil {
			return fmt.Errorf("verify: slot %d missing", slot)
		}
		got := table.Partitions[i]
		switch {
		case got.Type != w.Type:
			return fmt.Errorf("verify: slot %d type 0x%02X, want 0x%02X", slot, byte(got.Type), byte(w.Type))
		case got.Start != w.Start:
			return fmt.Errorf("verify: slot %d starts at sector %d, want %d", slot, got.Start, w.Start)
		case got.Size != w.Size:
			return fmt.Errorf("verify: slot %d has %d sectors, want %d", slot, got.Size, w.Size)
		case got.Bootable != w.Bootable:
			return fmt.Errorf("verify: slot %d bootable=%v, want %v", slot, got.Bootable, w.Bootable)
		}
	}
	return nil
}

// ReadTable opens path read-only and returns its MBR partition table.
func ReadTable(path string) (*mbr.Table, error) {
	d, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer d.Close()

	pt, err := d.GetPartitionTable()
	if err != nil {
		return nil, fmt.Errorf("cannot read partition table of %s: %w", path, err)
	}
	table, ok := pt.(*mbr.Table)
	if !ok {
		return nil, fmt.Errorf("%s does not carry an MBR partition table", path)
	}
	return table, nil
}
