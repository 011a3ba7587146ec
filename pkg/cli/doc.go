// Package cli provides the command-line interfaces of sdprep and mkdtb.
//
// Both commands are cobra command trees. RunSdprep and RunMkdtb are the
// entry points used by the binaries under cmd/; they take the arguments,
// the environment lookup and the logger explicitly so tests can drive
// them without touching the host.
//
// Example usage:
//
//	logger := logrus.New()
//	err := cli.RunSdprep(ctx, os.Args, cli.HostEnv(), logger)
//	os.Exit(cli.ExitCode(err))
package cli
