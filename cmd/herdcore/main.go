// Command herdcore runs the reproductive lifecycle engine from the command line.
package main

import (
	"context"
	"fmt"
	"herdcore/internal/cli"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "herdcore:", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
