package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "assetpipe",
	Short: "Asset-pipeline server for BF content libraries",
	Long: `assetpipe watches a content library, keeps a catalog of every source
file, and compiles stale assets into .bf artifacts by invoking the external
importer tools (img2bf, obj2bf, matcomp). Clients follow progress over a
server-sent event stream and a small JSON HTTP API.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:8000",
		"base URL of a running assetpipe server (client commands)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}
