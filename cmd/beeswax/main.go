package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cinema6/beeswax-client/pkg/config"
	"github.com/cinema6/beeswax-client/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cfg := config.Load()
	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	logg := logger.S()

	err := newRootCommand(newApp(cfg, logg.Desugar(), os.Stdout)).ExecuteContext(ctx)
	stop()
	if err != nil {
		logg.Errorw("command failed", "error", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}
