package cli_test

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/woliveiras/sdprep/pkg/cli"
	"github.com/woliveiras/sdprep/pkg/provision"
)

func ExampleNewStdUI() {
	ui := cli.NewStdUI(strings.NewReader("yes\n"), os.Stdout)
	ans, _ := ui.Ask("Answer:")
	fmt.Println()
	fmt.Println(ans)
	// Output:
	// Answer:
	// yes
}

func ExampleRunSdprep_noArguments() {
	// Calling RunSdprep with an empty args slice returns a deterministic error.
	var args []string
	if err := cli.RunSdprep(context.Background(), args, cli.Env{}, logrus.New()); err != nil {
		fmt.Println("error:", err)
	}
	// Output: error: no arguments provided
}

func ExampleExitCode() {
	fmt.Println(cli.ExitCode(nil))
	fmt.Println(cli.ExitCode(provision.ErrAborted))
	fmt.Println(cli.ExitCode(provision.ErrNotRoot))
	fmt.Println(cli.ExitCode(provision.ErrNotSDCard))
	// Output:
	// 0
	// 0
	// 1
	// -1
}
