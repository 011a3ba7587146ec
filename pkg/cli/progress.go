package cli

import (
	"fmt"
	"io"

	"github.com/gosuri/uilive"

	"github.com/woliveiras/sdprep/pkg/provision"
)

// copyProgress renders boot-file copy progress in place on a terminal and
// as plain lines elsewhere.
type copyProgress struct {
	out     io.Writer
	live    *uilive.Writer
	started bool
}

func newCopyProgress(out io.Writer) *copyProgress {
	p := &copyProgress{out: out}
	if isTerminal(out) {
		p.live = uilive.New()
		p.live.Out = out
	}
	return p
}

// Func is the provision.ProgressFunc for one copy.
func (p *copyProgress) Func() provision.ProgressFunc {
	return func(done, total int, name string) {
		w := p.out
		if p.live != nil {
			if !p.started {
				p.live.Start()
				p.started = true
			}
			w = p.live
		}
		if name == "" {
			fmt.Fprintf(w, "  Copied %d/%d files\n", done, total)
			p.Stop()
			return
		}
		fmt.Fprintf(w, "  Copying %q (%d/%d)\n", name, done+1, total)
	}
}

// Stop flushes the live writer. It is safe to call more than once.
func (p *copyProgress) Stop() {
	if p.started {
		p.live.Stop()
		p.started = false
	}
}
