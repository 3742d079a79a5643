// Package main is the entry point for the class-patcher CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"class-patcher/internal/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cmd.NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cmd.ExitCodeFromError(err))
	}
}
