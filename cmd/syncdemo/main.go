package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/realtime-sync/syncdemo/internal/app"
	"github.com/realtime-sync/syncdemo/internal/client"
	"github.com/realtime-sync/syncdemo/internal/config"
	"github.com/realtime-sync/syncdemo/internal/livesync"
	"github.com/realtime-sync/syncdemo/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	baseURL := flag.String("url", "", "Base URL of the demo server (overrides config)")
	clientID := flag.String("id", "", "Numeric chat client id (overrides config)")
	logFile := flag.String("log", "syncdemo.log", "File to write logs to")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.Client.BaseURL = *baseURL
	}
	if *clientID != "" {
		cfg.Client.ClientID = *clientID
	}
	// The terminal belongs to the UI.
	cfg.Log.Output = []string{*logFile}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	api := client.NewHTTPClient(cfg.Client.BaseURL, cfg.Client.RequestTimeout)
	ctrl := livesync.NewController(
		livesync.NewRegistry(log),
		livesync.NewDispatcher(log),
		livesync.WithLogger(log),
		livesync.WithFailureThreshold(cfg.Client.FailureThreshold),
	)

	m := app.New(ctrl, api, app.Options{
		ClientID:     cfg.Client.ClientID,
		PollInterval: cfg.Client.PollInterval,
	})
	log.Infow("client starting", "server", api.BaseURL(), "client_id", cfg.Client.ClientID)

	_, runErr := tea.NewProgram(m, tea.WithAltScreen()).Run()
	m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ctrl.Shutdown(ctx); err != nil {
		log.Warnw("shutdown incomplete", "error", err)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}
