package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/woliveiras/sdprep/pkg/provision"
)

// UI abstracts user interaction so we can support both interactive
// and non-interactive modes and keep things testable.
type UI interface {
	Println(a ...any)
	Printf(format string, a ...any)
	Ask(prompt string) (string, error)
}

var _ provision.Prompter = UI(nil)

type stdUI struct {
	in  *bufio.Reader
	out io.Writer
}

// NewStdUI returns a line-buffered UI over in and out. End of input is
// read as an empty answer.
func NewStdUI(in io.Reader, out io.Writer) UI {
	return &stdUI{in: bufio.NewReader(in), out: out}
}

func (u *stdUI) Println(a ...any) {
	fmt.Fprintln(u.out, a...)
}

func (u *stdUI) Printf(format string, a ...any) {
	fmt.Fprintf(u.out, format, a...)
}

func (u *stdUI) Ask(prompt string) (string, error) {
	u.Printf("%s", prompt)
	text, err := u.in.ReadString('\n')
	if errors.Is(err, io.EOF) {
		if text == "" {
			u.Println()
		}
		err = nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(text, "\r\n"), nil
}

type readlineUI struct {
	rl *readline.Instance
}

// NewReadlineUI returns a UI with line editing on the terminal. Close it
// when done.
func NewReadlineUI(in io.ReadCloser, out io.Writer) (UI, io.Closer, error) {
	rl, err := readline.NewEx(&readline.Config{
		Stdin:                  in,
		Stdout:                 out,
		InterruptPrompt:        "^C",
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		return nil, nil, err
	}
	return &readlineUI{rl: rl}, rl, nil
}

func (u *readlineUI) Println(a ...any) {
	fmt.Fprintln(u.rl.Stdout(), a...)
}

func (u *readlineUI) Printf(format string, a ...any) {
	fmt.Fprintf(u.rl.Stdout(), format, a...)
}

// Ask treats ^C as an abort and EOF as an empty answer.
func (u *readlineUI) Ask(prompt string) (string, error) {
	u.rl.SetPrompt(prompt)
	line, err := u.rl.Readline()
	switch {
	case errors.Is(err, readline.ErrInterrupt):
		return "", provision.ErrAborted
	case errors.Is(err, io.EOF):
		return "", nil
	case err != nil:
		return "", err
	}
	return line, nil
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newUI picks readline for a terminal on stdin and a plain reader
// otherwise.
func newUI(env Env) (UI, func(), error) {
	if env.UI != nil {
		return env.UI, func() {}, nil
	}
	if rc, ok := env.Stdin.(io.ReadCloser); ok && isTerminal(env.Stdin) {
		ui, closer, err := NewReadlineUI(rc, env.Stdout)
		if err != nil {
			return nil, nil, err
		}
		return ui, func() { _ = closer.Close() }, nil
	}
	return NewStdUI(env.Stdin, env.Stdout), func() {}, nil
}

// palette colors console text when the output is a terminal.
type palette struct {
	r, g, d *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{r: color.New(color.FgRed), g: color.New(color.FgGreen), d: color.New(color.Faint)}
	for _, c := range []*color.Color{p.r, p.g, p.d} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) red(s string) string   { return p.r.Sprint(s) }
func (p palette) green(s string) string { return p.g.Sprint(s) }
func (p palette) dim(s string) string   { return p.d.Sprint(s) }
