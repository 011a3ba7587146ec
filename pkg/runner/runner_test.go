package runner

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func newTestRunner() (*ExecRunner, *logrusTest.Hook) {
	logger, hook := logrusTest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewExecRunner(logger), hook
}

func TestAccepted(t *testing.T) {
	cases := []struct {
		code   int
		accept []int
		want   bool
	}{
		{0, nil, true},
		{1, nil, false},
		{1, []int{1}, true},
		{2, []int{1}, false},
		{0, []int{1}, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Accepted(tc.code, tc.accept), "code=%d accept=%v", tc.code, tc.accept)
	}
}

func TestExecRunner_CapturesStdoutAndStderr(t *testing.T) {
	requireShell(t)
	r, _ := newTestRunner()

	res, err := r.Run(context.Background(), New("sh", "-c", "echo one; echo two; echo oops >&2"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, []string{"one", "two"}, res.Stdout)
	assert.Equal(t, []string{"oops"}, res.Stderr)
}

func TestExecRunner_NonZeroExitIsFailure(t *testing.T) {
	requireShell(t)
	r, hook := newTestRunner()

	res, err := r.Run(context.Background(), New("sh", "-c", "echo broken >&2; exit 3"))
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, 3, r.LastExitCode())

	var cerr *CommandError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "sh", cerr.Program)
	assert.Equal(t, 3, cerr.ExitCode)
	assert.Equal(t, []string{"broken"}, cerr.Stderr)
	assert.Equal(t, "sh failed with code 3", err.Error())
	assert.Equal(t, "sh failed with code 3", hook.LastEntry().Message)
}

func TestExecRunner_AcceptedExitCodeIsSuccess(t *testing.T) {
	requireShell(t)
	r, _ := newTestRunner()

	cmd := New("sh", "-c", "exit 1")
	cmd.Accept = []int{1}
	res, err := r.Run(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.ExitCode)
}

func TestExecRunner_FeedsStdinAndHonoursDir(t *testing.T) {
	requireShell(t)
	r, _ := newTestRunner()
	dir := t.TempDir()

	cmd := Command{Name: "sh", Args: []string{"-c", "cat; pwd"}, Dir: dir, Stdin: "from stdin\n"}
	res, err := r.Run(context.Background(), cmd)
	require.NoError(t, err)
	require.Len(t, res.Stdout, 2)
	assert.Equal(t, "from stdin", res.Stdout[0])
	assert.Contains(t, res.Stdout[1], filepath.Base(dir))
}

func TestExecRunner_MissingProgram(t *testing.T) {
	r, _ := newTestRunner()

	res, err := r.Run(context.Background(), New("/nonexistent/sdprep-tool"))
	require.Error(t, err)
	assert.Equal(t, -1, res.ExitCode)
	var cerr *CommandError
	assert.False(t, errors.As(err, &cerr))
}

func TestCommand_String(t *testing.T) {
	c := New("mkfs.vfat", "-F", "32", "-n", "BOOT", "/dev/sdc1")
	assert.Equal(t, "mkfs.vfat -F 32 -n BOOT /dev/sdc1", c.String())

	c = New("dd", "if=/tmp/my image.bin")
	assert.Equal(t, "dd 'if=/tmp/my image.bin'", c.String())
	assert.Equal(t, "dtc", New("scripts/dtc/dtc").Program())
}

func TestNoopRunner_RecordsWithoutExecuting(t *testing.T) {
	logger, hook := logrusTest.NewNullLogger()
	n := NewNoopRunner(logger)

	res, err := n.Run(context.Background(), New("dd", "if=/dev/zero", "of=/dev/sdz"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, n.Commands, 1)
	assert.Equal(t, "NOOP: dd if=/dev/zero of=/dev/sdz", hook.LastEntry().Message)
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"one", "two"}, splitLines([]byte("one\r\ntwo\n")))
	assert.Nil(t, splitLines(nil))

	long := strings.Repeat("x", 2*1024*1024)
	lines := splitLines([]byte("first\n" + long + "\nlast\n"))
	require.Len(t, lines, 3)
	assert.Equal(t, "first", lines[0])
	assert.Len(t, lines[1], len(long))
	assert.Equal(t, "last", lines[2])
}
