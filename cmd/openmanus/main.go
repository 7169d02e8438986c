package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/LedMarketing/OpenManus/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "openmanus",
	Short: "OpenManus demo server: AI chat, code generation and web scraping",
	Long: `OpenManus serves a small web UI backed by a Mistral-compatible chat API,
a static page scraper, a headless browser extractor and an LLM-driven
scraper script generator.

Running without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd, scrapeCmd, mcpCmd, keyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initLogger configures slog based on the LogConfig. Logs go to w so the
// stdio MCP server can keep stdout for protocol frames.
func initLogger(cfg config.LogConfig, w *os.File) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
