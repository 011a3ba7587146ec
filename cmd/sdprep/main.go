package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/woliveiras/sdprep/pkg/cli"
	"github.com/woliveiras/sdprep/pkg/provision"
)

func main() {
	logger := logrus.New()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)

	err := cli.RunSdprep(ctx, os.Args, cli.HostEnv(), logger)
	cancel()
	if err != nil && !errors.Is(err, provision.ErrAborted) {
		fmt.Fprintf(os.Stderr, "sdprep: %v\n", err)
	}
	os.Exit(cli.ExitCode(err))
}
