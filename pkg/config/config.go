// Package config loads the optional sdprep configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/woliveiras/sdprep/pkg/device"
	"github.com/woliveiras/sdprep/pkg/layout"
	"github.com/woliveiras/sdprep/pkg/provision"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "/etc/sdprep.toml"

// Config holds the file-level settings. Command-line flags override them.
type Config struct {
	ImagesLoc     string        `toml:"images_loc"`
	MaxSDCardGiB  int           `toml:"max_sdcard_gib"`
	SettleDelay   time.Duration `toml:"settle_delay"`
	SfdiskDialect string        `toml:"sfdisk_dialect"`
	Ext4Journal   string        `toml:"ext4_journal"`
	LogFile       string        `toml:"log_file"`
	// JournalFile receives one section per operation; empty disables it.
	JournalFile string `toml:"journal_file"`

	// Source is the file the settings were read from, empty for defaults.
	Source string `toml:"-"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ImagesLoc:     "../ImageFiles",
		MaxSDCardGiB:  int(device.DefaultMaxSDCardSize / device.GiB),
		SettleDelay:   provision.DefaultSettleDelay,
		SfdiskDialect: string(layout.DialectScript),
		Ext4Journal:   string(provision.JournalAsk),
		LogFile:       "log.txt",
	}
}

// Load decodes path over the defaults. A missing file yields the defaults,
// with an empty Source, unless required is set.
func Load(path string, required bool) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || required {
			return nil, fmt.Errorf("cannot load config %s: %w", path, err)
		}
		return c, nil
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	c.Source = path
	return c, nil
}

// Validate rejects values no workflow can use.
func (c *Config) Validate() error {
	if c.MaxSDCardGiB <= 0 {
		return fmt.Errorf("max_sdcard_gib must be positive, got %d", c.MaxSDCardGiB)
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative, got %s", c.SettleDelay)
	}
	if _, err := layout.ParseDialect(c.SfdiskDialect); err != nil {
		return err
	}
	if _, err := provision.ParseJournalMode(c.Ext4Journal); err != nil {
		return err
	}
	return nil
}

// MaxSDCardSize is the catalog ceiling in bytes.
func (c *Config) MaxSDCardSize() uint64 {
	return uint64(c.MaxSDCardGiB) * device.GiB
}

// Dialect is the parsed sfdisk dialect. Call Validate first.
func (c *Config) Dialect() layout.Dialect {
	d, _ := layout.ParseDialect(c.SfdiskDialect)
	return d
}

// JournalMode is the parsed ext4 journal mode. Call Validate first.
func (c *Config) JournalMode() provision.JournalMode {
	m, _ := provision.ParseJournalMode(c.Ext4Journal)
	return m
}
