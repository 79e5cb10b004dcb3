package cli

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/techmap/internal/server"
	"github.com/matzehuels/techmap/pkg/dataset"
	"github.com/matzehuels/techmap/pkg/observability"
	"github.com/matzehuels/techmap/pkg/pipeline"
)

const shutdownTimeout = 30 * time.Second

// serveCommand creates the HTTP server command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		watch   bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve [dataset]",
		Short: "Serve scenes over HTTP",
		Long: `Serve scenes over HTTP.

Scenes are laid out on request and returned as JSON, YAML, CSV, SVG, PNG
or PDF. The force simulation can be streamed frame by frame as server-sent
events. With --watch a dataset file is reloaded whenever it changes.

Routes:
  GET  /healthz
  GET  /metrics
  GET  /api/v1/years
  GET  /api/v1/dataset
  GET  /api/v1/scene/{year}[.format]
  GET  /api/v1/scene/{year}/frames
  GET  /api/v1/theme
  PUT  /api/v1/theme
  POST /api/v1/theme/toggle`,
		Example: `  techmap serve data/usage.json
  techmap serve data/usage.yaml --addr :9000 --watch
  curl localhost:8080/api/v1/scene/2021.svg?theme=light`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd, argOrEmpty(args), addr, watch, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the dataset file when it changes")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runServe(cmd *cobra.Command, input, addr string, watch, noCache bool) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	cfg, err := c.config()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Serve.Addr
	}
	if !cmd.Flags().Changed("watch") {
		watch = cfg.Serve.Watch
	}

	ds, err := c.loadDataset(ctx, input)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	metrics := observability.NewPromHooks()
	metrics.Install()
	defer observability.Reset()

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	themes, closeThemes, err := c.newThemeStore(ctx)
	if err != nil {
		return err
	}
	defer closeThemes()

	srv := server.New(ds, server.Options{
		Runner: runner,
		Base: func(year int) (pipeline.Options, error) {
			return cfg.Options(year)
		},
		Themes:        themes,
		Metrics:       metrics,
		FrameInterval: cfg.Serve.FrameInterval,
		Logger:        logger,
	})

	hs := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: frame streams outlive any fixed deadline.
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", addr, "years", len(ds.Years), "tech", len(ds.Tech))
		if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return hs.Shutdown(shutdownCtx)
	})

	if watch {
		path, ok := watchablePath(input, cfg.Dataset.Ref, cfg.Dataset.MongoURI)
		if !ok {
			logger.Warn("--watch needs a local dataset file, not watching")
		} else {
			w, err := dataset.NewWatcher(path, cfg.Dataset.WatchDebounce, logger)
			if err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			g.Go(func() error {
				return w.Run(gctx, func(next *dataset.Dataset) {
					srv.SetDataset(next)
					logger.Info("dataset reloaded", "years", len(next.Years), "tech", len(next.Tech))
				})
			})
		}
	}

	return g.Wait()
}

// watchablePath returns the local file behind the dataset reference, if
// there is one.
func watchablePath(input, configured, mongoURI string) (string, bool) {
	ref := input
	if ref == "" {
		if mongoURI != "" {
			return "", false
		}
		ref = configured
	}
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return "", false
	}
	return ref, true
}
