// Package config loads techmap configuration from TOML.
//
// Defaults are embedded in the binary. A user file is decoded on top of
// them, so it only needs the keys it changes:
//
//	[planes.active]
//	width = 720.0
//	algorithm = "relaxation"
//
//	[cache]
//	redis_addr = "localhost:6379"
//
// Command-line flags override configuration values.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/classify"
	"github.com/matzehuels/techmap/pkg/errors"
	"github.com/matzehuels/techmap/pkg/layout"
	"github.com/matzehuels/techmap/pkg/pipeline"
	"github.com/matzehuels/techmap/pkg/theme"
)

//go:embed defaults.toml
var defaultsTOML string

// FileName is the config file looked up in the user config directory.
const FileName = "config.toml"

// Config is the full configuration.
type Config struct {
	Planes  PlanesConfig    `toml:"planes"`
	Layout  LayoutConfig    `toml:"layout"`
	Policy  classify.Policy `toml:"policy"`
	Render  RenderConfig    `toml:"render"`
	Cache   CacheConfig     `toml:"cache"`
	Dataset DatasetConfig   `toml:"dataset"`
	Theme   ThemeConfig     `toml:"theme"`
	Serve   ServeConfig     `toml:"serve"`
}

// PlanesConfig holds both plane boxes.
type PlanesConfig struct {
	Active   PlaneConfig `toml:"active"`
	Inactive PlaneConfig `toml:"inactive"`
}

// PlaneConfig describes one plane box and how it is laid out.
type PlaneConfig struct {
	Width         float64 `toml:"width"`
	Height        float64 `toml:"height"`
	Padding       float64 `toml:"padding"`
	SafeMargin    float64 `toml:"safe_margin"`
	Algorithm     string  `toml:"algorithm"`
	Deterministic bool    `toml:"deterministic"`
	SeedOffset    uint32  `toml:"seed_offset"`
	Animate       bool    `toml:"animate"`
	RadiusPolicy  string  `toml:"radius_policy"`

	// Gap overrides the algorithm's default minimum gap when set.
	Gap *float64 `toml:"gap"`
}

// LayoutConfig tunes each algorithm. It applies to every plane that uses
// the algorithm.
type LayoutConfig struct {
	Spiral layout.SpiralConfig `toml:"spiral"`
	Relax  layout.RelaxConfig  `toml:"relaxation"`
	Force  layout.ForceConfig  `toml:"force"`
}

// RenderConfig holds drawing defaults.
type RenderConfig struct {
	Theme string  `toml:"theme"`
	Ticks bool    `toml:"ticks"`
	Scale float64 `toml:"scale"`
}

// CacheConfig selects the layout cache. Redis is used when RedisAddr is
// set, otherwise a file cache under Dir.
type CacheConfig struct {
	Enabled       bool   `toml:"enabled"`
	Dir           string `toml:"dir"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	Prefix        string `toml:"prefix"`
}

// DatasetConfig names the dataset. Ref is a file path or URL; MongoURI
// takes precedence when set.
type DatasetConfig struct {
	Ref             string        `toml:"ref"`
	MongoURI        string        `toml:"mongo_uri"`
	MongoDatabase   string        `toml:"mongo_database"`
	MongoCollection string        `toml:"mongo_collection"`
	MongoID         string        `toml:"mongo_id"`
	WatchDebounce   time.Duration `toml:"watch_debounce"`
}

// ThemeConfig selects where the theme preference is persisted:
// "file", "memory" or "redis".
type ThemeConfig struct {
	Store string `toml:"store"`
	Path  string `toml:"path"`
}

// ServeConfig configures the HTTP server.
type ServeConfig struct {
	Addr          string        `toml:"addr"`
	Watch         bool          `toml:"watch"`
	FrameInterval time.Duration `toml:"frame_interval"`
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg := &Config{}
	if _, err := toml.Decode(defaultsTOML, cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load decodes path over the embedded defaults and validates the result.
// An empty path yields the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads the config file in the user config directory if it
// exists, and the defaults otherwise.
func LoadDefault() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return Load("")
	}
	if _, err := os.Stat(path); err != nil {
		return Load("")
	}
	return Load(path)
}

// DefaultPath returns the config file location in the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "techmap", FileName), nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	for _, p := range chip.Planes {
		if _, err := c.Plane(p); err != nil {
			return fmt.Errorf("planes.%s: %w", p, err)
		}
	}
	if err := theme.Validate(c.Render.Theme); err != nil {
		return err
	}
	if c.Render.Scale <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "render.scale must be positive, got %v", c.Render.Scale)
	}
	switch c.Theme.Store {
	case "file", "memory", "redis":
	default:
		return errors.New(errors.ErrCodeInvalidInput, "theme.store must be file, memory or redis, got %q", c.Theme.Store)
	}
	if c.Theme.Store == "redis" && c.Cache.RedisAddr == "" {
		return errors.New(errors.ErrCodeInvalidInput, "theme.store = \"redis\" requires cache.redis_addr")
	}
	if c.Dataset.WatchDebounce < 0 || c.Serve.FrameInterval < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "durations must not be negative")
	}
	return nil
}

// Plane converts the plane section into pipeline options.
func (c *Config) Plane(p chip.Plane) (pipeline.PlaneOptions, error) {
	pc := c.Planes.Inactive
	if p == chip.Active {
		pc = c.Planes.Active
	}

	alg, err := layout.ParseAlgorithm(pc.Algorithm)
	if err != nil {
		return pipeline.PlaneOptions{}, err
	}
	rp, err := chip.ParseRadiusPolicy(pc.RadiusPolicy)
	if err != nil {
		return pipeline.PlaneOptions{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "radius_policy")
	}

	cfg := layout.DefaultConfig(alg)
	cfg.RadiusPolicy = rp
	cfg.Spiral = c.Layout.Spiral
	cfg.Relax = c.Layout.Relax
	cfg.Force = c.Layout.Force
	if pc.Gap != nil {
		cfg.Gap = *pc.Gap
	}

	po := pipeline.PlaneOptions{
		Region: layout.Region{
			Width:      pc.Width,
			Height:     pc.Height,
			Padding:    layout.Uniform(pc.Padding),
			SafeMargin: pc.SafeMargin,
		},
		Algorithm:     alg,
		Deterministic: pc.Deterministic,
		SeedOffset:    pc.SeedOffset,
		Animate:       pc.Animate,
		Layout:        &cfg,
	}
	if err := po.Validate(); err != nil {
		return pipeline.PlaneOptions{}, err
	}
	return po, nil
}

// Options returns pipeline options for year built from the configuration.
func (c *Config) Options(year int) (pipeline.Options, error) {
	active, err := c.Plane(chip.Active)
	if err != nil {
		return pipeline.Options{}, err
	}
	inactive, err := c.Plane(chip.Inactive)
	if err != nil {
		return pipeline.Options{}, err
	}
	policy := c.Policy
	return pipeline.Options{
		Year:     year,
		Active:   active,
		Inactive: inactive,
		Policy:   &policy,
		Theme:    theme.Parse(c.Render.Theme),
		Ticks:    c.Render.Ticks,
		Scale:    c.Render.Scale,
	}, nil
}
