package fakes

import (
	"context"
	"strings"

	"github.com/woliveiras/sdprep/pkg/runner"
)

// FakeRunner records commands and replays scripted results. Unscripted
// commands succeed with no output.
type FakeRunner struct {
	Commands []runner.Command

	// CommandResults is keyed by Command.String().
	CommandResults map[string][]FakeCmdResult
	// ProgramResults is keyed by program name and consulted when no full
	// command line matches.
	ProgramResults map[string][]FakeCmdResult

	// OnRun, when set, is called after a command is recorded. Tests use it
	// to simulate side effects such as a mount appearing.
	OnRun func(cmd runner.Command)
}

type FakeCmdResult struct {
	Stdout     []string
	Stderr     []string
	ExitStatus int
	Error      error
	Sticky     bool // Set to true if this result should ALWAYS be returned for the given command
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		CommandResults: map[string][]FakeCmdResult{},
		ProgramResults: map[string][]FakeCmdResult{},
	}
}

func (f *FakeRunner) AddCmdResult(fullCmd string, result FakeCmdResult) {
	f.CommandResults[fullCmd] = append(f.CommandResults[fullCmd], result)
}

func (f *FakeRunner) AddProgramResult(program string, result FakeCmdResult) {
	f.ProgramResults[program] = append(f.ProgramResults[program], result)
}

// Lines returns every recorded command rendered with Command.String.
func (f *FakeRunner) Lines() []string {
	lines := make([]string, 0, len(f.Commands))
	for _, c := range f.Commands {
		lines = append(lines, c.String())
	}
	return lines
}

// Programs returns the program name of every recorded command.
func (f *FakeRunner) Programs() []string {
	names := make([]string, 0, len(f.Commands))
	for _, c := range f.Commands {
		names = append(names, c.Program())
	}
	return names
}

// Ran reports whether a recorded command line starts with prefix.
func (f *FakeRunner) Ran(prefix string) bool {
	for _, line := range f.Lines() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func (f *FakeRunner) Run(_ context.Context, cmd runner.Command) (runner.Result, error) {
	f.Commands = append(f.Commands, cmd)
	if f.OnRun != nil {
		f.OnRun(cmd)
	}

	result, ok := next(f.CommandResults, cmd.String())
	if !ok {
		result, ok = next(f.ProgramResults, cmd.Program())
	}
	if !ok {
		return runner.Result{Success: true}, nil
	}
	if result.Error != nil {
		return runner.Result{ExitCode: -1}, result.Error
	}

	res := runner.Result{
		ExitCode: result.ExitStatus,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		Success:  runner.Accepted(result.ExitStatus, cmd.Accept),
	}
	if res.Success {
		return res, nil
	}
	return res, &runner.CommandError{Program: cmd.Program(), ExitCode: res.ExitCode, Stderr: res.Stderr}
}

func next(table map[string][]FakeCmdResult, key string) (FakeCmdResult, bool) {
	results, found := table[key]
	if !found || len(results) == 0 {
		return FakeCmdResult{}, false
	}
	result := results[0]
	if !result.Sticky {
		table[key] = results[1:]
	}
	return result, true
}
