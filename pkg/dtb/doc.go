// Package dtb turns a board-level devicetree source into a binary blob
// using the preprocessor of a cross-compiler and the dtc shipped in a
// Linux kernel source tree.
//
// A build runs three stages:
//
//	preprocess  <cc> -E ... -o <base>.tmp <base>.dts
//	resolve     scripts/dtc/dtc -O dts -o <base>.out.dts ... <base>.tmp
//	compile     scripts/dtc/dtc -I dts -O dtb -o <base>.dtb <base>.out.dts
//
// All outputs are written next to the source. The intermediate .tmp files
// are removed once the resolve stage has finished, whatever its outcome.
package dtb
