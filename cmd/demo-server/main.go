package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/realtime-sync/syncdemo/internal/config"
	"github.com/realtime-sync/syncdemo/internal/logging"
	"github.com/realtime-sync/syncdemo/internal/server"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	dev := flag.Bool("dev", false, "Human-readable development logs")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *dev {
		cfg.Log.Development = true
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, log)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Errorw("server stopped", "error", err)
		os.Exit(1)
	}
	log.Infow("server stopped")
}
