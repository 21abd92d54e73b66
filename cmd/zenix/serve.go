package main

import (
	"github.com/spf13/cobra"

	"zenix/internal/infrastructure/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the AI proxy server",
	Long: `Serves POST /api/ai/stream, GET /api/ai/health, GET /health and
GET /metrics. The model API key comes with each request.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return container.Server().Run(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :3000 or $PORT)")
	serveCmd.Flags().String("provider", "", "model provider: gemini or openai")
	serveCmd.Flags().String("model", "", "model name")
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("provider") {
		cfg.LLM.Provider, _ = flags.GetString("provider")
	}
	if flags.Changed("model") {
		cfg.LLM.Model, _ = flags.GetString("model")
	}
	if flags.Changed("server") {
		cfg.Proxy.ServerURL, _ = flags.GetString("server")
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless, _ = flags.GetBool("headless")
	}
	if flags.Changed("text") {
		if text, _ := flags.GetBool("text"); text {
			cfg.ContentMode = "text"
		}
	}
}
