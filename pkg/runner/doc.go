// Package runner executes the external tools sdprep and mkdtb drive
// (sfdisk, mkfs, dd, dtc, the cross compiler, ...). A Command describes one
// invocation; a Runner executes it and classifies the exit code against the
// set of codes the caller accepts.
package runner
