package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "lungmask/internal/api"
)

// version подставляется при сборке через -ldflags "-X main.version=...".
var version = "0.2.8"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand(version).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	stop()
	os.Exit(cli.ExitCode(err))
}
