package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"zenix/internal/di"
	"zenix/internal/infrastructure/config"
	"zenix/internal/infrastructure/env"
)

var (
	configPath string
	verbose    bool

	container *di.Container
)

var rootCmd = &cobra.Command{
	Use:   "zenix",
	Short: "Zenix - ask an AI about the page you are looking at",
	Long: `Zenix answers questions about the current web page, or about one element
you pick on it, streaming the model's answer as it is produced.

  serve   run the AI proxy server
  ask     open a browser and chat about its pages in this terminal
  browse  open a browser and wait for a remote panel
  panel   attach a terminal panel to a running browse session`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envService := env.NewEnvService("")
		path := configPath
		if path == "" {
			path = envService.Get("ZENIX_CONFIG")
		}

		cfg, err := config.Load(path, envService)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Log.Level = "debug"
			cfg.Log.Development = true
		}
		applyFlags(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		container, err = di.NewContainer(cfg)
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		container.Logger.Debug("Configuration loaded", "app_env", envService.AppEnv, "files", envService.Loaded)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $ZENIX_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd, askCmd, browseCmd, panelCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if container != nil {
		container.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
