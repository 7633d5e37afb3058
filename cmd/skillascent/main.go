// Command skillascent tracks skills and practice sessions and awards badges.
//
// By default it keeps everything in a local SQLite file. When DATABASE_URL is
// set it works against the shared PostgreSQL database instead, and if Redis is
// configured it also announces changes on the skill change feed so the worker
// and other processes see them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
