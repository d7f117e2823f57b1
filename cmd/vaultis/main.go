package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vaultis-labs/go-vaultis/config"
	"github.com/vaultis-labs/go-vaultis/node"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	dataDir := flag.String("data-dir", "", "override the configured data directory")
	listenAddr := flag.String("listen", "", "override the configured API listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *listenAddr != "" {
		cfg.API.ListenAddr = *listenAddr
	}

	logger, err := node.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	n, err := node.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to build node", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- n.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("api server failed", zap.Error(err))
		}
	}

	if err := n.Stop(); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}
