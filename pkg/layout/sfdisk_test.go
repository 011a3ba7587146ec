package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecords_SlotOrderInBlocks(t *testing.T) {
	l, err := Compute(8 * gib)
	require.NoError(t, err)

	want := "6272,62720,0x0B,*,\n" +
		"68992,8316672,0x83,-,\n" +
		"1024,5248,0xA2,-,\n"
	assert.Equal(t, want, l.Records())
}

func TestSfdiskCommand_Legacy(t *testing.T) {
	l, err := Compute(8 * gib)
	require.NoError(t, err)

	cmd, err := SfdiskCommand("sdc", l, DialectLegacy)
	require.NoError(t, err)
	assert.Equal(t, "sfdisk -f -D -H 224 -S 56 -C 1337 -uB /dev/sdc", cmd.String())
	assert.Equal(t, l.Records(), cmd.Stdin)
}

func TestSfdiskCommand_Script(t *testing.T) {
	l, err := Compute(8 * gib)
	require.NoError(t, err)

	cmd, err := SfdiskCommand("/dev/mmcblk0", l, DialectScript)
	require.NoError(t, err)
	assert.Equal(t, "sfdisk --force --no-reread /dev/mmcblk0", cmd.String())

	want := "label: dos\n" +
		"unit: sectors\n\n" +
		"/dev/mmcblk0p1 : start=12544, size=125440, type=b, bootable\n" +
		"/dev/mmcblk0p2 : start=137984, size=16633344, type=83\n" +
		"/dev/mmcblk0p3 : start=2048, size=10496, type=a2\n"
	assert.Equal(t, want, cmd.Stdin)
}

func TestSfdiskCommand_Errors(t *testing.T) {
	l, err := Compute(8 * gib)
	require.NoError(t, err)

	_, err = SfdiskCommand("", l, DialectScript)
	assert.Error(t, err)

	_, err = SfdiskCommand("sdc", l, Dialect("gpt"))
	assert.Error(t, err)
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("")
	require.NoError(t, err)
	assert.Equal(t, DialectScript, d)

	d, err = ParseDialect("legacy")
	require.NoError(t, err)
	assert.Equal(t, DialectLegacy, d)

	_, err = ParseDialect("fdisk")
	assert.Error(t, err)
}
