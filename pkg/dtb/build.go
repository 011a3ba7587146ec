package dtb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/woliveiras/sdprep/pkg/runner"
)

// Stage names.
const (
	StagePreprocess = "preprocess"
	StageResolve    = "resolve"
	StageCompile    = "compile"
)

// DefaultArch is the kernel architecture used when none is given.
const DefaultArch = "arm"

// Environment variables consulted when flags are empty.
const (
	EnvKernelRoot   = "ALTERA_SOC_LINUX_KERNEL_LOC"
	EnvCrossCompile = "CROSS_COMPILE"
)

// StageError names the stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Request describes one build.
type Request struct {
	DTS        string
	Arch       string
	Compiler   string
	KernelRoot string
}

// Validate checks the inputs before anything runs and makes the paths
// absolute, since the stages run from inside the kernel tree.
func (r *Request) Validate() error {
	if r.Arch == "" {
		r.Arch = DefaultArch
	}

	if r.KernelRoot == "" {
		return fmt.Errorf("no kernel source location given (use --kernel_loc or set %s)", EnvKernelRoot)
	}
	root, err := filepath.Abs(r.KernelRoot)
	if err != nil {
		return err
	}
	for _, sub := range []string{"", "arch", "scripts"} {
		if info, err := os.Stat(filepath.Join(root, sub)); err != nil || !info.IsDir() {
			return fmt.Errorf("kernel source location specified %q is not valid", r.KernelRoot)
		}
	}
	r.KernelRoot = root

	if r.Compiler == "" {
		return fmt.Errorf("no compiler specified (use --compiler or set %s)", EnvCrossCompile)
	}
	if info, err := os.Stat(r.Compiler); err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("compiler specified %q is not valid", r.Compiler)
	}
	if r.Compiler, err = filepath.Abs(r.Compiler); err != nil {
		return err
	}

	if r.DTS == "" {
		return errors.New("missing source file")
	}
	if info, err := os.Stat(r.DTS); err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("source file %q is not valid", r.DTS)
	}
	if filepath.Ext(r.DTS) != ".dts" {
		return fmt.Errorf("expected a DTS source file, got %q", r.DTS)
	}
	r.DTS, err = filepath.Abs(r.DTS)
	return err
}

// Paths are the files a build reads and writes for one source.
type Paths struct {
	Source       string
	Base         string
	Preprocessed string
	Deps         string
	DtcDeps      string
	FullDTS      string
	DTB          string
}

// PathsFor derives every output path from the source path.
func PathsFor(dts string) Paths {
	base := strings.TrimSuffix(dts, filepath.Ext(dts))
	return Paths{
		Source:       dts,
		Base:         base,
		Preprocessed: base + ".tmp",
		Deps:         base + ".pre.tmp",
		DtcDeps:      base + ".dtc.tmp",
		FullDTS:      base + ".out.dts",
		DTB:          base + ".dtb",
	}
}

// Temps lists the intermediate files removed after the resolve stage.
func (p Paths) Temps() []string {
	return []string{p.Preprocessed, p.Deps, p.DtcDeps}
}

func dtcPath(kernelRoot string) string {
	return filepath.Join(kernelRoot, "scripts", "dtc", "dtc")
}

// PreprocessCommand runs the compiler as a C preprocessor over the source
// with the kernel's devicetree include paths.
func PreprocessCommand(r Request, p Paths) runner.Command {
	dts := "arch/" + r.Arch + "/boot/dts"
	c := runner.New(r.Compiler,
		"-E", "-Wp,-MD,"+p.Deps,
		"-nostdinc",
		"-I"+dts, "-I"+dts+"/include",
		"-undef", "-D__DTS__",
		"-x", "assembler-with-cpp",
		"-o", p.Preprocessed, p.Source,
	)
	c.Dir = r.KernelRoot
	return c
}

// ResolveCommand turns the preprocessed file into a complete DTS.
func ResolveCommand(r Request, p Paths) runner.Command {
	c := runner.New(dtcPath(r.KernelRoot),
		"-O", "dts", "-o", p.FullDTS,
		"-b", "0",
		"-i", "arch/"+r.Arch+"/boot/dts",
		"-d", p.DtcDeps,
		p.Preprocessed,
	)
	c.Dir = r.KernelRoot
	return c
}

// CompileCommand compiles the complete DTS into the blob.
func CompileCommand(r Request, p Paths) runner.Command {
	c := runner.New(dtcPath(r.KernelRoot), "-I", "dts", "-O", "dtb", "-o", p.DTB, p.FullDTS)
	c.Dir = r.KernelRoot
	return c
}

// Builder runs the three stages through a runner.
type Builder struct {
	Runner runner.Runner
	Logger logrus.FieldLogger
}

// Build validates req and produces the .dtb next to the source. It returns
// the blob's path.
func (b *Builder) Build(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	p := PathsFor(req.DTS)

	if err := b.intermediate(ctx, req, p); err != nil {
		return "", err
	}
	if err := b.stage(ctx, StageCompile, CompileCommand(req, p)); err != nil {
		return "", err
	}
	b.log().Infof("wrote %s", p.DTB)
	return p.DTB, nil
}

func (b *Builder) intermediate(ctx context.Context, req Request, p Paths) error {
	defer func() {
		if err := RemoveTemps(p.Temps()); err != nil {
			b.log().WithError(err).Warn("cannot remove temporary files")
		}
	}()

	if err := b.stage(ctx, StagePreprocess, PreprocessCommand(req, p)); err != nil {
		return err
	}
	return b.stage(ctx, StageResolve, ResolveCommand(req, p))
}

func (b *Builder) log() logrus.FieldLogger {
	if b.Logger != nil {
		return b.Logger
	}
	return logrus.StandardLogger()
}

func (b *Builder) stage(ctx context.Context, name string, c runner.Command) error {
	b.log().Debugf("%s: %s", name, c)
	if _, err := b.Runner.Run(ctx, c); err != nil {
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

// RemoveTemps removes every path that exists and aggregates the failures.
func RemoveTemps(paths []string) error {
	var result *multierror.Error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// ResolveKernelRoot prefers the flag value and falls back to the
// environment.
func ResolveKernelRoot(flag string, getenv func(string) string) string {
	if flag != "" {
		return flag
	}
	return getenv(EnvKernelRoot)
}

// ResolveCompiler prefers the flag value and otherwise appends "gcc" to
// the cross-compile prefix from the environment.
func ResolveCompiler(flag string, getenv func(string) string) string {
	if flag != "" {
		return flag
	}
	if prefix := getenv(EnvCrossCompile); prefix != "" {
		return prefix + "gcc"
	}
	return ""
}
