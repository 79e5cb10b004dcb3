package layout

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/errors"
)

// Algorithm selects a layout strategy.
type Algorithm int

const (
	// SpiralPack is the greedy spiral-search packer.
	SpiralPack Algorithm = iota
	// Relaxation is the iterative physics relaxation.
	Relaxation
	// ForceSimulation is the cooling force simulation.
	ForceSimulation
)

// Algorithms lists every strategy in a stable order.
var Algorithms = []Algorithm{SpiralPack, Relaxation, ForceSimulation}

func (a Algorithm) String() string {
	switch a {
	case SpiralPack:
		return "spiral"
	case Relaxation:
		return "relaxation"
	case ForceSimulation:
		return "force"
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

// ParseAlgorithm parses an algorithm name. Accepted names are "spiral",
// "relaxation" and "force" plus a few aliases.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spiral", "spiral-pack", "pack":
		return SpiralPack, nil
	case "relaxation", "relax", "physics":
		return Relaxation, nil
	case "force", "force-simulation", "sim":
		return ForceSimulation, nil
	}
	return SpiralPack, errors.New(errors.ErrCodeInvalidAlgorithm,
		"unknown layout algorithm %q (must be 'spiral', 'relaxation', or 'force')", s)
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(b []byte) error {
	v, err := ParseAlgorithm(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Engine computes placements for nodes inside a region.
//
// Placements are returned in input order. A seed fully determines the
// result; callers that want time-varying layouts derive the seed from the
// clock (see rng.Seed). Layout never fails for crowded regions; it returns
// an error only for invalid geometry or a cancelled context.
type Engine interface {
	Layout(ctx context.Context, region Region, nodes []Node, seed uint32) (Result, error)
}

// Result is the output of an Engine.
type Result struct {
	Placements []Placement `json:"placements"`
	Report     Report      `json:"report"`
	// Steps counts the main loop iterations: packing attempts, relaxation
	// iterations or simulation ticks.
	Steps int `json:"steps"`
	// Fallbacks counts nodes placed by the raster fallback.
	Fallbacks int `json:"fallbacks"`
}

// SpiralConfig tunes the spiral packer.
type SpiralConfig struct {
	Anchors         int     `toml:"anchors"`
	Rings           int     `toml:"rings"`
	Step            float64 `toml:"step"`
	AngleStep       float64 `toml:"angle_step"`
	Jitter          float64 `toml:"jitter"`
	VerticalScatter float64 `toml:"vertical_scatter"`
	Restarts        int     `toml:"restarts"`
	// Shelf enables the shelf and corner packings tried after the
	// restarts and before the raster fallback.
	Shelf           bool    `toml:"shelf"`
}

// RelaxConfig tunes the physics relaxation.
type RelaxConfig struct {
	Iterations int     `toml:"iterations"`
	Passes     int     `toml:"passes"`
	CenterPull float64 `toml:"center_pull"`
	// Repulsion is the constant push, in pixels per iteration, between
	// every pair regardless of distance.
	Repulsion  float64 `toml:"repulsion"`
	Damping    float64 `toml:"damping"`
}

// ForceConfig tunes the force simulation.
type ForceConfig struct {
	StepsMax          int     `toml:"steps_max"`
	Alpha             float64 `toml:"alpha"`
	AlphaMin          float64 `toml:"alpha_min"`
	AlphaDecay        float64 `toml:"alpha_decay"`
	VelocityDecay     float64 `toml:"velocity_decay"`
	Charge            float64 `toml:"charge"`
	Theta             float64 `toml:"theta"`
	AxisStrength      float64 `toml:"axis_strength"`
	CollideIterations int     `toml:"collide_iterations"`
	CollideStrength   float64 `toml:"collide_strength"`
	TicksPerFrame     int     `toml:"ticks_per_frame"`
}

// Config configures an Engine. Only the sub-config of the selected
// algorithm is read.
type Config struct {
	Gap           float64           `toml:"gap"`
	RadiusPolicy  chip.RadiusPolicy `toml:"-"`
	CenterCluster bool              `toml:"center_cluster"`
	SettlePasses  int               `toml:"settle_passes"`

	Spiral SpiralConfig `toml:"spiral"`
	Relax  RelaxConfig  `toml:"relaxation"`
	Force  ForceConfig  `toml:"force"`
}

// DefaultConfig returns the tuned defaults for alg.
func DefaultConfig(alg Algorithm) Config {
	cfg := Config{
		RadiusPolicy: chip.Diagonal,
		Spiral: SpiralConfig{
			Anchors:         20,
			Rings:           70,
			Step:            8,
			AngleStep:       0.85,
			Jitter:          0.6,
			VerticalScatter: 18,
			Restarts:        3,
			Shelf:           true,
		},
		Relax: RelaxConfig{
			Iterations: 220,
			Passes:     5,
			CenterPull: 0.004,
			Repulsion:  0.02,
			Damping:    0.85,
		},
		Force: ForceConfig{
			StepsMax:          1200,
			Alpha:             1,
			AlphaMin:          0.001,
			AlphaDecay:        0.08,
			VelocityDecay:     0.28,
			Charge:            -22,
			Theta:             0.9,
			AxisStrength:      0.05,
			CollideIterations: 8,
			CollideStrength:   1,
			TicksPerFrame:     1,
		},
	}
	switch alg {
	case SpiralPack:
		cfg.Gap = 10
		cfg.SettlePasses = 64
	case Relaxation:
		cfg.Gap = 8
		cfg.SettlePasses = 128
	case ForceSimulation:
		cfg.Gap = 6
		cfg.SettlePasses = 128
		cfg.CenterCluster = true
	}
	return cfg
}

// Validate rejects negative or non-finite tuning values.
func (c Config) Validate() error {
	floats := map[string]float64{
		"gap":                     c.Gap,
		"spiral.step":             c.Spiral.Step,
		"spiral.vertical_scatter": c.Spiral.VerticalScatter,
		"spiral.jitter":           c.Spiral.Jitter,
		"relaxation.center_pull":  c.Relax.CenterPull,
		"relaxation.repulsion":    c.Relax.Repulsion,
		"relaxation.damping":      c.Relax.Damping,
		"force.alpha":             c.Force.Alpha,
		"force.alpha_min":         c.Force.AlphaMin,
		"force.alpha_decay":       c.Force.AlphaDecay,
		"force.velocity_decay":    c.Force.VelocityDecay,
		"force.theta":             c.Force.Theta,
		"force.axis_strength":     c.Force.AxisStrength,
		"force.collide_strength":  c.Force.CollideStrength,
	}
	for name, v := range floats {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return errors.New(errors.ErrCodeInvalidInput, "layout config %s must be a non-negative number, got %v", name, v)
		}
	}
	ints := map[string]int{
		"settle_passes":            c.SettlePasses,
		"spiral.anchors":           c.Spiral.Anchors,
		"spiral.rings":             c.Spiral.Rings,
		"spiral.restarts":          c.Spiral.Restarts,
		"relaxation.iterations":    c.Relax.Iterations,
		"relaxation.passes":        c.Relax.Passes,
		"force.steps_max":          c.Force.StepsMax,
		"force.collide_iterations": c.Force.CollideIterations,
		"force.ticks_per_frame":    c.Force.TicksPerFrame,
	}
	for name, v := range ints {
		if v < 0 {
			return errors.New(errors.ErrCodeInvalidInput, "layout config %s must not be negative, got %d", name, v)
		}
	}
	if c.Relax.Damping > 1 || c.Force.VelocityDecay > 1 {
		return errors.New(errors.ErrCodeInvalidInput, "damping and velocity decay must be in [0,1]")
	}
	if math.IsNaN(c.Force.Charge) || math.IsInf(c.Force.Charge, 0) {
		return errors.New(errors.ErrCodeInvalidInput, "layout config force.charge must be finite")
	}
	return nil
}

// Metric returns the separation metric the engine for alg is measured with.
func (c Config) Metric(alg Algorithm) Metric {
	if alg == SpiralPack {
		return BoxMetric{Gap: c.Gap}
	}
	return CircleMetric{Policy: c.RadiusPolicy, Gap: c.Gap}
}

var builders = map[Algorithm]func(Config) Engine{
	SpiralPack:      func(c Config) Engine { return &spiralEngine{cfg: c} },
	Relaxation:      func(c Config) Engine { return &relaxEngine{cfg: c} },
	ForceSimulation: func(c Config) Engine { return &forceEngine{cfg: c} },
}

// Available reports whether alg can be constructed in this build.
func Available(alg Algorithm) bool {
	_, ok := builders[alg]
	return ok
}

// New returns the engine for alg configured with cfg.
func New(alg Algorithm, cfg Config) (Engine, error) {
	build, ok := builders[alg]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported, "layout algorithm %s is not available", alg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return build(cfg), nil
}

// prepare validates the inputs shared by every engine.
func prepare(ctx context.Context, region Region, nodes []Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := region.Validate(); err != nil {
		return err
	}
	return validateNodes(nodes)
}

// finish runs the shared tail of every engine: settle, optional cluster
// centering, clamping and the quality report.
func finish(region Region, ps []Placement, cfg Config, m Metric) Report {
	w, h := region.Content()
	clampAll(ps, w, h)
	settle(ps, w, h, m, cfg.SettlePasses)
	if cfg.CenterCluster {
		centerCluster(ps, w, h)
	}
	return Check(region, ps, m)
}

// byHeightDesc returns node indices sorted by descending height, then
// width, ties in input order.
func byHeightDesc(nodes []Node) []int {
	order := make([]int, len(nodes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		na, nb := nodes[order[a]], nodes[order[b]]
		if na.H != nb.H {
			return na.H > nb.H
		}
		return na.W > nb.W
	})
	return order
}

// byAreaDesc returns node indices sorted by descending area, ties in input order.
func byAreaDesc(nodes []Node) []int {
	order := make([]int, len(nodes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return nodes[order[a]].W*nodes[order[a]].H > nodes[order[b]].W*nodes[order[b]].H
	})
	return order
}
