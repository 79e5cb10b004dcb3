package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/techmap/pkg/buildinfo"
	"github.com/matzehuels/techmap/pkg/cache"
	"github.com/matzehuels/techmap/pkg/config"
	"github.com/matzehuels/techmap/pkg/dataset"
	"github.com/matzehuels/techmap/pkg/errors"
	"github.com/matzehuels/techmap/pkg/pipeline"
	"github.com/matzehuels/techmap/pkg/theme"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "techmap"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Techmap lays out technology usage as overlap-free chips",
		Long: `Techmap places one chip per technology on two planes: technologies in use
for the selected year on the active plane, everything else on the inactive
plane. Layouts are deterministic per year, so the same year always yields
the same picture.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: <user config dir>/techmap/config.toml)")

	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.scrubCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.ticksCommand())
	root.AddCommand(c.themeCommand())
	root.AddCommand(c.datasetCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// config loads the configuration once per process.
func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.Load(c.configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	cc, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cc, nil, c.Logger), nil
}

// newCache builds the cache named by the config: Redis when an address is
// set, a file cache otherwise. A cache that cannot be opened degrades to
// no caching.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	if noCache || !cfg.Cache.Enabled {
		return cache.NewNullCache(), nil
	}
	if cfg.Cache.RedisAddr != "" {
		rc, err := cache.DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.Prefix)
		if err != nil {
			c.Logger.Warn("redis unavailable, caching disabled", "addr", cfg.Cache.RedisAddr, "err", err)
			return cache.NewNullCache(), nil
		}
		return rc, nil
	}
	dir, err := c.cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// newThemeStore opens the theme preference store named by the config.
// The returned close function releases its connection, if any.
func (c *CLI) newThemeStore(ctx context.Context) (theme.Store, func() error, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, nil, err
	}
	nop := func() error { return nil }
	switch cfg.Theme.Store {
	case "memory":
		return &theme.MemoryStore{}, nop, nil
	case "redis":
		rc, err := cache.DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.Prefix)
		if err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to redis at %s", cfg.Cache.RedisAddr)
		}
		return theme.NewRedisStore(rc.Client(), ""), rc.Close, nil
	default:
		fs, err := theme.NewFileStore(cfg.Theme.Path)
		if err != nil {
			return nil, nil, err
		}
		return fs, nop, nil
	}
}

// =============================================================================
// Dataset Loading
// =============================================================================

// openDataset resolves ref to a source. Without a ref the config decides:
// MongoDB when a URI is set, then dataset.ref.
func (c *CLI) openDataset(ctx context.Context, ref string) (dataset.Source, func(context.Context) error, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, nil, err
	}
	nop := func(context.Context) error { return nil }
	if ref == "" && cfg.Dataset.MongoURI != "" {
		d := cfg.Dataset
		src, disconnect, err := dataset.ConnectMongo(ctx, d.MongoURI, d.MongoDatabase, d.MongoCollection, d.MongoID, c.Logger)
		if err != nil {
			return nil, nil, err
		}
		return src, disconnect, nil
	}
	if ref == "" {
		ref = cfg.Dataset.Ref
	}
	if ref == "" {
		return nil, nil, errors.New(errors.ErrCodeInvalidInput, "no dataset given: pass a file or URL, or set dataset.ref in the config")
	}
	src, err := dataset.Open(ref, c.Logger)
	if err != nil {
		return nil, nil, err
	}
	return src, nop, nil
}

// loadDataset opens and loads the dataset in one step.
func (c *CLI) loadDataset(ctx context.Context, ref string) (*dataset.Dataset, error) {
	src, closeFn, err := c.openDataset(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer closeFn(context.WithoutCancel(ctx))
	return src.Load(ctx)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the configured cache directory, falling back to the XDG
// location (~/.cache/techmap/).
func (c *CLI) cacheDir() (string, error) {
	if cfg, err := c.config(); err == nil && cfg.Cache.Dir != "" {
		return cfg.Cache.Dir, nil
	}
	return cacheDir()
}

// cacheDir returns the cache directory using XDG standard (~/.cache/techmap/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// parseFormats parses a comma-separated format string into a slice,
// using def when s is empty.
func parseFormats(s, def string) []string {
	if s == "" {
		return []string{def}
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(parts[i]))
	}
	return parts
}

// argOrEmpty returns the first positional argument, if any.
func argOrEmpty(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
