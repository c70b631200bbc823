// Command tlcomm compiles tile kernels that use communication intrinsics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/tlcomm/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := cli.NewRootCommand()
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		// Subcommands print their own diagnostics; flag and argument errors
		// from cobra itself still need reporting.
		if _, ok := err.(*cli.ExitError); !ok {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}
