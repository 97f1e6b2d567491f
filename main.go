package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if app != nil && app.logger != nil {
			app.logger.Error("command failed", zap.Error(err))
			_ = app.logger.Sync()
		}
		os.Exit(1)
	}
}
