// Command admitctl is the operator CLI for the admission advisor.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/admit/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = os.Stderr.WriteString("admitctl: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
