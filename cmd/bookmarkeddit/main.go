package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bookmarkeddit/bookmarkeddit/internal/client/cli"
	"github.com/bookmarkeddit/bookmarkeddit/internal/client/config"
	"github.com/bookmarkeddit/bookmarkeddit/internal/logger"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ bookmarkeddit failed to start: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cli.New(cfg, logger.New(cfg.LogLevel, cfg.PrettyLog), os.Stdin, os.Stdout)
	if err := c.Run(ctx); err != nil {
		log.Fatalf("❌ bookmarkeddit exited with error: %v", err)
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "bookmarkeddit.yaml"
	}
	return dir + "/bookmarkeddit/config.yaml"
}
