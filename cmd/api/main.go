package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/docbundle/internal/app"
	"github.com/markdave123-py/docbundle/internal/config"
	"github.com/markdave123-py/docbundle/internal/logging"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT/SIGTERM for graceful shutdown
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	cfg := config.LoadConfig()
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup failed: %v\n", err)
		os.Exit(1)
	}
	for _, w := range cfg.Warnings {
		log.Warn("config", zap.String("warning", w))
	}

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer application.Close()

	go func() {
		if err := application.Server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
			cancel()
		}
	}()

	log.Info("docbundle is running")
	<-ctx.Done()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := application.Server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", zap.Error(err))
	}
}
