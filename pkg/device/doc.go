// Package device discovers the block devices of the host, decides which of
// them could plausibly be an SD card, and finds where their partitions are
// mounted. Device enumeration reads sysfs and mount discovery reads the
// procfs mountinfo table, both through github.com/prometheus/procfs.
package device
