// Package provision holds the SD-card provisioning workflow: partitioning
// and formatting a card, installing the preloader, boot files and root
// filesystem, and archiving a root filesystem back to disk.
//
// Every operation runs through a Workflow bound to one runner.Runner, so
// the same code path drives real devices, dry runs and tests. Prompts go
// through the Prompter interface and the pure decision helpers in this
// package; nothing here reads a terminal directly.
package provision
