// Command modman installs, upgrades and removes Minecraft mods with their
// dependencies.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

var (
	// version is set via -ldflags.
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+formatError(err))
		stop()
		os.Exit(exitCode(err))
	}
}
