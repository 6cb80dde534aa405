package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bfengine/assetpipe/internal/catalog"
	"github.com/bfengine/assetpipe/internal/compiler"
	"github.com/bfengine/assetpipe/internal/config"
	"github.com/bfengine/assetpipe/internal/event"
	"github.com/bfengine/assetpipe/internal/importer"
	"github.com/bfengine/assetpipe/internal/library"
	"github.com/bfengine/assetpipe/internal/ops"
	"github.com/bfengine/assetpipe/internal/scanner"
	"github.com/bfengine/assetpipe/internal/server"
	"github.com/bfengine/assetpipe/internal/watcher"
)

var (
	serveSettings string
	serveAddr     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the asset-pipeline server",
	Long: `Loads the settings record, opens the catalog, performs an initial
library scan, and serves the HTTP API and event stream until interrupted.
With watch enabled, filesystem changes are picked up automatically.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg config.Settings
		var err error
		if serveSettings != "" {
			cfg, err = config.LoadFile(serveSettings)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
		return runServe(cfg)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveSettings, "settings", "",
		"settings file path (overrides "+config.EnvSettingsPath+")")
	serveCmd.Flags().StringVar(&serveAddr, "addr", server.DefaultAddr, "HTTP bind address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cfg config.Settings) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	lib := library.New(cfg.LibraryRoot, cfg.LibraryTarget)

	cat, err := catalog.Open(cfg.DBFile, cfg.Input2UUID)
	if err != nil {
		return err
	}

	events := event.NewBroadcaster()
	imp := importer.New(lib, cat)
	scan := scanner.New(lib, cat, imp, events)
	sched := compiler.New(ctx, lib, cat, scan, events, cfg.MaxConcurrency)
	sched.ToolOverrides = cfg.ExternalTools

	o := &ops.Ops{
		Lib:         lib,
		Catalog:     cat,
		Importer:    imp,
		Scanner:     scan,
		Scheduler:   sched,
		Events:      events,
		AutoCompile: cfg.AutoCompile,
	}

	go cat.RunAutoFlush(ctx)
	go events.RunHealthTicks(ctx)

	slog.Info("Scanning library", "root", lib.Root)
	res, err := o.Refresh()
	if err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}
	slog.Info("Initial scan complete",
		"scanned", res.Scanned, "imported", res.Imported,
		"removed", res.Removed, "dirty", len(res.Dirty))

	if cfg.Watch {
		w := watcher.New(o)
		go func() {
			if err := w.Run(ctx); err != nil {
				slog.Error("Watcher stopped", "err", err)
			}
		}()
	}

	srv := server.New(o, events, serveAddr)
	err = srv.ListenAndServe(ctx)

	// Let in-flight compiles finish and persist what they produced.
	sched.Wait()
	if cat.Dirty() {
		if flushErr := cat.Flush(); flushErr != nil {
			slog.Warn("Final catalog flush failed", "err", flushErr)
		}
	}
	return err
}
