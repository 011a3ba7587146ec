package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/woliveiras/sdprep/pkg/cli"
)

func main() {
	logger := logrus.New()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)

	err := cli.RunMkdtb(ctx, os.Args, cli.HostEnv(), logger)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mkdtb: %v\n", err)
	}
	os.Exit(cli.ExitCode(err))
}
