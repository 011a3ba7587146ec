// Package layout computes the fixed three-partition layout written to a
// board SD card and renders it for sfdisk.
//
// Partition boundaries are aligned to an artificial cylinder of 224 heads
// x 56 sectors x 512 bytes. The boot ROM and preloader expect the slots
// below; changing them requires rebuilding the preloader and u-boot images:
//
//	slot 1  FAT     boot files          type 0x0B  bootable
//	slot 2  ROOTFS  ext4 root           type 0x83
//	slot 3  RAW     preloader (SPL)     type 0xA2
//
// All block counts in this package are 1 KiB blocks unless a name says
// otherwise.
package layout
