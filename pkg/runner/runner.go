package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

// Command is a single external tool invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir   string
	Stdin string
	// Accept lists non-zero exit codes that still count as success
	// (e2fsck returns 1 when it fixed something, for example).
	Accept []int
}

// New is a shorthand for a Command without stdin or accepted codes.
func New(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// String renders the command the way an operator would type it.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t'\"") {
			a = "'" + strings.ReplaceAll(a, "'", `'\''`) + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Program is the base name of the executable, used in error summaries.
func (c Command) Program() string {
	return filepath.Base(c.Name)
}

// Result is what one invocation produced. It is returned per call and not
// retained by the runner.
type Result struct {
	ExitCode int
	Stdout   []string
	Stderr   []string
	Success  bool
}

// CommandError reports a command that exited with a code outside its
// accepted set.
type CommandError struct {
	Program  string
	ExitCode int
	Stderr   []string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed with code %d", e.Program, e.ExitCode)
}

// Runner abstracts how commands are executed so workflows can be tested
// against a recording fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands on the local system with os/exec. Commands block
// until the child exits; there is no timeout.
type ExecRunner struct {
	Logger logrus.FieldLogger

	lastExitCode int
}

// NewExecRunner returns an ExecRunner logging through logger.
func NewExecRunner(logger logrus.FieldLogger) *ExecRunner {
	return &ExecRunner{Logger: logger}
}

// LastExitCode is the exit code of the most recent command. It is only kept
// for diagnostics; callers should use the returned Result.
func (r *ExecRunner) LastExitCode() int {
	return r.lastExitCode
}

func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	log := r.Logger.WithField("cmd", c.Program())
	log.Debugf("EXEC: %s", c.String())

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	res := Result{
		Stdout: splitLines(stdout.Bytes()),
		Stderr: splitLines(stderr.Bytes()),
	}
	for _, line := range res.Stdout {
		log.Debugf("  %s", line)
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		res.ExitCode = 0
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		r.lastExitCode = res.ExitCode
		return res, fmt.Errorf("cannot start %s: %w", c.Program(), runErr)
	}
	r.lastExitCode = res.ExitCode

	res.Success = Accepted(res.ExitCode, c.Accept)
	if res.Success {
		return res, nil
	}

	for _, line := range res.Stderr {
		log.Errorf("  %s", line)
	}
	cerr := &CommandError{Program: c.Program(), ExitCode: res.ExitCode, Stderr: res.Stderr}
	log.Error(cerr.Error())
	return res, cerr
}

// Accepted reports whether code counts as success: zero, or listed in accept.
func Accepted(code int, accept []int) bool {
	return code == 0 || slices.Contains(accept, code)
}

// splitLines breaks captured output into lines. Output with a line longer
// than the scanner buffer is split on newlines directly.
func splitLines(b []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(b))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if scanner.Err() != nil {
		return strings.Split(strings.TrimSuffix(strings.ReplaceAll(string(b), "\r\n", "\n"), "\n"), "\n")
	}
	return lines
}
