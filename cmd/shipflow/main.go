package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/RealZimboGuy/shipflow/pkg/shipflow"
)

func main() {
	shipflow.SetupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := shipflow.Start(ctx); err != nil {
		slog.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
}
