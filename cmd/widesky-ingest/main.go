// widesky-ingest is a streaming ingest pipeline for the AT Protocol
// firehose. It maintains one upstream WebSocket connection, decodes
// and classifies commit frames, and persists posts, reposts, likes,
// and author records into PostgreSQL with idempotent batched writes.
//
// Usage:
//
//	./widesky-ingest          # reads configuration from the environment
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/widesky/widesky-ingest/internal/config"
	"github.com/widesky/widesky-ingest/internal/lifecycle"
	"github.com/widesky/widesky-ingest/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "widesky-ingest:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logger.Close()

	logger.Info("widesky-ingest starting")

	coord, err := lifecycle.New(cfg, logger.Logger)
	if err != nil {
		return fmt.Errorf("construct pipeline: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	coord.Start(ctx)
	<-ctx.Done()
	coord.Stop(context.Background())

	return nil
}
