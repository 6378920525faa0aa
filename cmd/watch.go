package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/weftware/weft/internal/config"
	"github.com/weftware/weft/internal/devserver"
	"github.com/weftware/weft/internal/engine"
	"github.com/weftware/weft/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Recompile templates on file changes",
	Long: `Watch the configured template paths, invalidating and recompiling
templates as their files change. With --serve, also expose /healthz, /stats,
and a websocket /events stream of compile events for operators.

If cache.sweep_schedule is configured, expired durable cache entries are
swept on that cron schedule while watching.

Examples:
  weft watch                       # Watch and recompile
  weft watch --serve               # Also start the dev server`,
	RunE: runWatch,
}

var watchServe bool

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchServe, "serve", false, "Also start the dev server")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newCLILogger()
	eng, err := engine.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer eng.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tw, err := watcher.New(300*time.Millisecond, logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer tw.Stop()

	tw.AddFilter(watcher.NoHiddenFilter)
	tw.AddFilter(watcher.ExtensionFilter(cfg.Templates.Extensions))
	tw.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, event := range events {
			handleTemplateChange(ctx, eng, event)
		}
		return nil
	})

	for _, path := range cfg.Templates.Paths {
		if err := tw.AddRecursive(path); err != nil {
			logger.Warn(ctx, err, "failed to watch path", "path", path)
		}
	}
	tw.Start(ctx)

	if cfg.Cache.SweepSchedule != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(cfg.Cache.SweepSchedule, func() {
			removed := eng.SweepCache()
			if removed > 0 {
				logger.Info(ctx, "swept expired cache entries", "removed", removed)
			}
		}); err != nil {
			return fmt.Errorf("invalid sweep schedule: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	if watchServe {
		srv := devserver.New(eng, logger, cfg.Serve.Host, cfg.Serve.Port, cfg.Serve.AllowedOrigins)
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error(ctx, err, "dev server stopped")
				cancel()
			}
		}()
		fmt.Printf("dev server listening on %s:%d\n", cfg.Serve.Host, cfg.Serve.Port)
	}

	fmt.Println("watching for template changes, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}

func handleTemplateChange(ctx context.Context, eng *engine.Engine, event watcher.ChangeEvent) {
	name := templateNameFromPath(event.Path)
	eng.InvalidateCache(name)

	switch event.Type {
	case watcher.EventTypeDeleted, watcher.EventTypeRenamed:
		eng.Registry().Remove(name)
	default:
		fr := eng.ProcessFile(ctx, event.Path)
		if fr.Err != nil {
			fmt.Fprintf(os.Stderr, "recompile failed: %v\n", fr.Err)
			return
		}
		fmt.Printf("recompiled %s (%s)\n", name, event.Type)
	}
}

func templateNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
