package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogging_ConsoleLevels(t *testing.T) {
	cases := []struct {
		verbose   bool
		wantDebug bool
	}{
		{false, false},
		{true, true},
	}
	for _, c := range cases {
		logger := logrus.New()
		var console bytes.Buffer
		closer, err := SetupLogging(logger, &console, c.verbose, "")
		require.NoError(t, err)

		logger.Debug("EXEC: sfdisk")
		logger.Info("Formatting partitions")
		require.NoError(t, closer.Close())

		assert.Contains(t, console.String(), "Formatting partitions")
		assert.Equal(t, c.wantDebug, strings.Contains(console.String(), "EXEC: sfdisk"))
		assert.NotContains(t, console.String(), "\x1b[")
	}
}

func TestSetupLogging_FileGetsEveryLevelAppended(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("previous run\n"), 0o644))

	logger := logrus.New()
	closer, err := SetupLogging(logger, io.Discard, false, path)
	require.NoError(t, err)
	logger.Debug("EXEC: mkfs.vfat -F 32 -n BOOT /dev/sdc1")
	logger.Warn("mount-rootfs failed, continuing")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "previous run\n"))
	assert.Contains(t, content, "level=debug")
	assert.Contains(t, content, `msg="EXEC: mkfs.vfat -F 32 -n BOOT /dev/sdc1"`)
	assert.Contains(t, content, "level=warning")
}

func TestSetupLogging_BadLogFile(t *testing.T) {
	_, err := SetupLogging(logrus.New(), io.Discard, false, filepath.Join(t.TempDir(), "missing", "log.txt"))
	assert.ErrorContains(t, err, "cannot open log file")
}

func TestCopyProgress_PlainLines(t *testing.T) {
	var out bytes.Buffer
	p := newCopyProgress(&out)
	progress := p.Func()

	progress(0, 2, "u-boot.scr")
	progress(1, 2, "zImage")
	progress(2, 2, "")
	p.Stop()

	assert.Equal(t, "  Copying \"u-boot.scr\" (1/2)\n  Copying \"zImage\" (2/2)\n  Copied 2/2 files\n", out.String())
}
