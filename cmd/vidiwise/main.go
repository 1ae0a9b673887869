package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vidiwise/internal/cli"
	"vidiwise/internal/domain"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", domain.Cause(err))
		stop()
		os.Exit(1)
	}
}
