package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/woliveiras/sdprep/pkg/dtb"
	"github.com/woliveiras/sdprep/pkg/runner"
)

// MkdtbOptions holds the mkdtb flags.
type MkdtbOptions struct {
	KernelLoc string
	Compiler  string
	Arch      string
	LogFile   string
	Verbose   bool
}

// NewMkdtbCommand builds the mkdtb command.
func NewMkdtbCommand(env Env, logger *logrus.Logger) *cobra.Command {
	opts := &MkdtbOptions{}
	cmd := &cobra.Command{
		Use:   "mkdtb DTS_FILE",
		Short: "Create full DTS and DTB files from a board level DTS",
		Long: `mkdtb runs a board level DTS through the cross compiler's preprocessor
with the include paths of a kernel source tree, resolves it into a full
DTS with the kernel's dtc and compiles that into a DTB next to the source.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var dts string
			if len(args) > 0 {
				dts = args[0]
			}
			return runMkdtb(cmd.Context(), dts, opts, env, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.KernelLoc, "kernel_loc", "k", "", "kernel source location (default $"+dtb.EnvKernelRoot+")")
	flags.StringVarP(&opts.Compiler, "compiler", "c", "", "compiler to use (default $"+dtb.EnvCrossCompile+"gcc)")
	flags.StringVarP(&opts.Arch, "arch", "a", dtb.DefaultArch, "target architecture")
	addLoggingFlags(flags, &opts.LogFile, &opts.Verbose, "", "echo commands to the console")
	return cmd
}

// RunMkdtb runs mkdtb with args, os.Args style.
func RunMkdtb(ctx context.Context, args []string, env Env, logger *logrus.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("no arguments provided")
	}
	cmd := NewMkdtbCommand(env, logger)
	cmd.SetArgs(args[1:])
	cmd.SetOut(env.Stdout)
	cmd.SetErr(env.Stderr)
	return cmd.ExecuteContext(ctx)
}

func runMkdtb(ctx context.Context, dts string, opts *MkdtbOptions, env Env, logger *logrus.Logger) (err error) {
	closer, err := SetupLogging(logger, env.Stderr, opts.Verbose, opts.LogFile)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			logger.WithError(err).Debug("mkdtb failed")
		}
		closer.Close()
	}()

	req := dtb.Request{
		DTS:        dts,
		Arch:       opts.Arch,
		Compiler:   dtb.ResolveCompiler(opts.Compiler, env.Getenv),
		KernelRoot: dtb.ResolveKernelRoot(opts.KernelLoc, env.Getenv),
	}

	r := env.Runner
	if r == nil {
		r = runner.NewExecRunner(logger)
	}
	b := &dtb.Builder{Runner: r, Logger: logger}
	out, err := b.Build(ctx, req)
	if err != nil {
		return err
	}

	s, err := dtb.Inspect(out)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"model":      s.Model,
		"compatible": strings.Join(s.Compatible, ", "),
		"nodes":      len(s.Children),
	}).Infof("%s is a valid devicetree blob", out)
	return nil
}
