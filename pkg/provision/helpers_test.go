package provision

import (
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/sirupsen/logrus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"

	"github.com/woliveiras/sdprep/pkg/device"
	"github.com/woliveiras/sdprep/pkg/layout"
	"github.com/woliveiras/sdprep/pkg/runner"
	"github.com/woliveiras/sdprep/pkg/runner/fakes"
)

const gib = 1 << 30

var card = device.Device{Path: "/dev/sdc", Size: 8 * gib}

// scriptedPrompter answers Ask calls from a fixed list and records output.
type scriptedPrompter struct {
	answers []string
	asked   []string
	out     strings.Builder
}

func newPrompter(answers ...string) *scriptedPrompter {
	return &scriptedPrompter{answers: answers}
}

func (p *scriptedPrompter) Println(a ...any) {
	fmt.Fprintln(&p.out, a...)
}

func (p *scriptedPrompter) Printf(format string, a ...any) {
	fmt.Fprintf(&p.out, format, a...)
}

func (p *scriptedPrompter) Ask(prompt string) (string, error) {
	p.asked = append(p.asked, prompt)
	if len(p.answers) == 0 {
		return "", io.EOF
	}
	ans := p.answers[0]
	p.answers = p.answers[1:]
	return ans, nil
}

// mountTable is a mutable device.MountTable.
type mountTable struct {
	mounts []device.Mount
}

func (m *mountTable) Mounts() ([]device.Mount, error) {
	return m.mounts, nil
}

func (m *mountTable) add(source, target string) {
	m.mounts = append(m.mounts, device.Mount{Source: source, Target: target, FSType: "auto"})
}

type harness struct {
	w      *Workflow
	runner *fakes.FakeRunner
	mounts *mountTable
	prompt *scriptedPrompter
	hook   *logrusTest.Hook
	sleeps []time.Duration
	syncs  int
}

func newHarness(t *testing.T, answers ...string) *harness {
	t.Helper()
	logger, hook := logrusTest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &harness{
		runner: fakes.NewFakeRunner(),
		mounts: &mountTable{},
		prompt: newPrompter(answers...),
		hook:   hook,
	}
	h.w = &Workflow{
		Runner:      h.runner,
		Catalog:     device.NewCatalog([]device.Device{card}, 0),
		Mounts:      h.mounts,
		Prompt:      h.prompt,
		Logger:      logger,
		ImagesDir:   t.TempDir(),
		Dialect:     layout.DialectScript,
		Ext4Journal: JournalNo,
		Sleep:       func(d time.Duration) { h.sleeps = append(h.sleeps, d) },
		Sync:        func() { h.syncs++ },
		ReadTable: func(path string) (*mbr.Table, error) {
			l, err := layout.Compute(card.Size)
			if err != nil {
				return nil, err
			}
			return l.Table(), nil
		},
	}
	return h
}

// mountOnRun makes udisksctl mounts show up in the mount table under root.
func (h *harness) mountOnRun(targets map[string]string) {
	h.runner.OnRun = func(cmd runner.Command) {
		if cmd.Program() != "udisksctl" && cmd.Program() != "sudo" {
			return
		}
		n := cmd.Args[len(cmd.Args)-1]
		if target, ok := targets[n]; ok {
			h.mounts.add(n, target)
		}
	}
}

func (h *harness) warnings() []string {
	var out []string
	for _, e := range h.hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			out = append(out, e.Message)
		}
	}
	return out
}
