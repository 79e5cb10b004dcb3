package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/classify"
	"github.com/matzehuels/techmap/pkg/errors"
	"github.com/matzehuels/techmap/pkg/layout"
	"github.com/matzehuels/techmap/pkg/pipeline"
	"github.com/matzehuels/techmap/pkg/theme"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsMatchPackageDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	opts, err := cfg.Options(2021)
	if err != nil {
		t.Fatalf("Options: %v", err)
	}

	for _, p := range chip.Planes {
		got := opts.PlaneOptions(p)
		want := pipeline.DefaultPlane(p)
		if got.Region != want.Region {
			t.Errorf("%v region = %+v, want %+v", p, got.Region, want.Region)
		}
		if got.Algorithm != want.Algorithm || got.SeedOffset != want.SeedOffset || got.Deterministic != want.Deterministic {
			t.Errorf("%v = %+v, want %+v", p, got, want)
		}
		if *got.Layout != layout.DefaultConfig(want.Algorithm) {
			t.Errorf("%v layout = %+v, want defaults", p, *got.Layout)
		}
	}
	if !reflect.DeepEqual(*opts.Policy, classify.DefaultPolicy()) {
		t.Errorf("policy = %+v, want DefaultPolicy", *opts.Policy)
	}
	if opts.Theme != theme.Dark || !opts.Ticks {
		t.Errorf("render = %v ticks=%v", opts.Theme, opts.Ticks)
	}
	if cfg.Dataset.WatchDebounce != 200*time.Millisecond {
		t.Errorf("watch_debounce = %v, want 200ms", cfg.Dataset.WatchDebounce)
	}
	if cfg.Serve.Addr != ":8080" || cfg.Cache.Prefix != "techmap:" {
		t.Errorf("serve/cache = %q %q", cfg.Serve.Addr, cfg.Cache.Prefix)
	}
}

func TestLoadOverlay(t *testing.T) {
	path := writeConfig(t, `
[planes.active]
width = 720.0
algorithm = "relaxation"
gap = 4.0

[layout.relaxation]
iterations = 120

[[policy.density]]
above = 5
factor = 0.5

[render]
theme = "light"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	active, err := cfg.Plane(chip.Active)
	if err != nil {
		t.Fatal(err)
	}
	if active.Region.Width != 720 || active.Region.Height != 440 {
		t.Errorf("region = %+v, want width overridden and height kept", active.Region)
	}
	if active.Algorithm != layout.Relaxation || active.Layout.Gap != 4 {
		t.Errorf("algorithm/gap = %v/%v", active.Algorithm, active.Layout.Gap)
	}
	if active.Layout.Relax.Iterations != 120 || active.Layout.Relax.Passes != 5 {
		t.Errorf("relax = %+v", active.Layout.Relax)
	}
	if len(cfg.Policy.Density) != 1 || cfg.Policy.Density[0].Above != 5 {
		t.Errorf("density = %+v, want the file's array to replace the default", cfg.Policy.Density)
	}
	if cfg.Render.Theme != "light" {
		t.Errorf("theme = %q", cfg.Render.Theme)
	}

	inactive, err := cfg.Plane(chip.Inactive)
	if err != nil {
		t.Fatal(err)
	}
	if inactive.Layout.Gap != layout.DefaultConfig(layout.SpiralPack).Gap {
		t.Errorf("inactive gap = %v, want default", inactive.Layout.Gap)
	}
}

func TestForceLayoutOnBothPlanes(t *testing.T) {
	path := writeConfig(t, `
[planes.active]
deterministic = false

[planes.inactive]
algorithm = "force"
safe_margin = 0.0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	opts, err := cfg.Options(2021)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Active.Deterministic || opts.Deterministic() {
		t.Error("active plane should be seeded from the clock")
	}
	in := opts.Inactive
	if in.Algorithm != layout.ForceSimulation || in.Region.SafeMargin != 0 || in.SeedOffset != pipeline.InactiveSeedOffset {
		t.Errorf("inactive = %+v, want force without safe margin at year+%d", in, pipeline.InactiveSeedOffset)
	}
	if *in.Layout != layout.DefaultConfig(layout.ForceSimulation) {
		t.Errorf("inactive layout = %+v, want force defaults", *in.Layout)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code errors.Code
	}{
		{"unknown key", "[planes.active]\ncolour = \"red\"\n", errors.ErrCodeInvalidInput},
		{"bad syntax", "[planes\n", errors.ErrCodeInvalidInput},
		{"bad algorithm", "[planes.inactive]\nalgorithm = \"grid\"\n", errors.ErrCodeInvalidAlgorithm},
		{"bad geometry", "[planes.active]\nwidth = -5.0\n", errors.ErrCodeInvalidGeometry},
		{"bad theme", "[render]\ntheme = \"sepia\"\n", errors.ErrCodeInvalidTheme},
		{"redis theme store", "[theme]\nstore = \"redis\"\n", errors.ErrCodeInvalidInput},
		{"bad layout tuning", "[layout.force]\nvelocity_decay = 2.0\n", errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, tt.code) {
				t.Errorf("Load = %v, want code %s", err, tt.code)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestOptionsValidate(t *testing.T) {
	opts, err := Default().Options(2020)
	if err != nil {
		t.Fatal(err)
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Errorf("options from defaults should validate: %v", err)
	}
	if opts.Scale != 2 {
		t.Errorf("scale = %v, want 2", opts.Scale)
	}
}
