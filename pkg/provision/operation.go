package provision

import "fmt"

// Operation is one entry of the provisioning menu.
type Operation int

const (
	OpMount Operation = iota + 1
	OpUnmount
	OpPrepare
	OpInstallSPL
	OpFormatFAT
	OpInstallBootFiles
	OpCopyRootfs
	OpFormatRootfs
	OpInstallRootfs
)

var operationLabels = map[Operation]string{
	OpMount:            "mount partitions on SDCARD",
	OpUnmount:          "unmount partitions on SDCARD",
	OpPrepare:          "re-partition and format entire SDCARD",
	OpInstallSPL:       "install SPL to RAW partition",
	OpFormatFAT:        "format FAT partition",
	OpInstallBootFiles: "install boot files on FAT partition",
	OpCopyRootfs:       "copy ROOTFS from SDCARD to local archive",
	OpFormatRootfs:     "format ROOTFS partition",
	OpInstallRootfs:    "install ROOTFS to SDCARD",
}

// Operations returns every operation in menu order.
func Operations() []Operation {
	return []Operation{
		OpMount,
		OpUnmount,
		OpPrepare,
		OpInstallSPL,
		OpFormatFAT,
		OpInstallBootFiles,
		OpCopyRootfs,
		OpFormatRootfs,
		OpInstallRootfs,
	}
}

func (o Operation) String() string {
	if label, ok := operationLabels[o]; ok {
		return label
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}
