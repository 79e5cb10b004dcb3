// Package theme holds the dark/light colour theme and its persistence.
//
// The theme is a single preference stored under [Key]. Unknown or missing
// values read back as [Dark], the default.
package theme

import (
	"github.com/matzehuels/techmap/pkg/errors"
)

// Theme is a colour theme name.
type Theme string

const (
	Dark  Theme = "dark"
	Light Theme = "light"

	// Default is used when nothing is stored.
	Default = Dark
)

// Key is the storage key of the preference.
const Key = "techmap-theme"

// Parse returns the theme named s; anything but "light" is Dark.
func Parse(s string) Theme {
	if Theme(s) == Light {
		return Light
	}
	return Dark
}

// Validate rejects names other than "dark" and "light".
func Validate(s string) error {
	if Theme(s) != Dark && Theme(s) != Light {
		return errors.New(errors.ErrCodeInvalidTheme, "invalid theme %q (must be dark or light)", s)
	}
	return nil
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == Light {
		return Dark
	}
	return Light
}

// IsLight reports whether t is the light theme.
func (t Theme) IsLight() bool { return t == Light }

// Palette is the set of colours a renderer needs.
type Palette struct {
	Background string
	Plane      string
	PlaneEdge  string
	Chip       string
	ChipEdge   string
	Inactive   string
	Text       string
	Muted      string
	Accent     string
	Track      string
}

var palettes = map[Theme]Palette{
	Dark: {
		Background: "#0b0f17",
		Plane:      "#111827",
		PlaneEdge:  "#1f2937",
		Chip:       "#1e293b",
		ChipEdge:   "#334155",
		Inactive:   "#161e2b",
		Text:       "#e5e7eb",
		Muted:      "#94a3b8",
		Accent:     "#38bdf8",
		Track:      "#1f2937",
	},
	Light: {
		Background: "#f8fafc",
		Plane:      "#ffffff",
		PlaneEdge:  "#e2e8f0",
		Chip:       "#f1f5f9",
		ChipEdge:   "#cbd5e1",
		Inactive:   "#f8fafc",
		Text:       "#0f172a",
		Muted:      "#64748b",
		Accent:     "#0284c7",
		Track:      "#e2e8f0",
	},
}

// Palette returns the colours of t.
func (t Theme) Palette() Palette {
	return palettes[Parse(string(t))]
}
