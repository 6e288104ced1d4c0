package main

import (
	"fmt"
	"log/slog"
	"os"

	"sparkboard/internal/client"
	"sparkboard/internal/config"
	"sparkboard/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "boardctl",
		Short: "Drive a Sparkboard relay from the terminal",
		Long: `boardctl talks to a Sparkboard relay.

Create or join a session and watch collaborators draw, inspect a
session's board, or find relays on the local network.

Settings come from the environment (or a .env file):
  SPARKBOARD_URL, SPARKBOARD_USER, RECONNECT_ATTEMPTS,
  RECONNECT_INTERVAL, BOARD_FILE, LOG_LEVEL`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		createCmd(),
		joinCmd(),
		infoCmd(),
		discoverCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// newClient builds a collaboration client from the environment.
func newClient() (*client.Client, *config.ClientConfig, *slog.Logger, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, nil, nil, err
	}

	logger, _ := logging.New(logging.Options{Level: cfg.LogLevel})

	c, err := client.New(client.Config{
		BaseURL:              cfg.BaseURL,
		MaxReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectInterval:    cfg.ReconnectInterval,
		Logger:               logger,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return c, cfg, logger, nil
}

func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
