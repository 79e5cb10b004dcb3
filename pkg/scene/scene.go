// Package scene is the serializable result of one layout pass: both planes
// with their chips positioned and scaled, ready for a presentation layer.
//
// Chip positions are relative to the region's padded origin (the safe
// margin is included), matching what a presentation layer applies to the
// visual element inside the padded plane box.
package scene

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/layout"
)

// =============================================================================
// Scene
// =============================================================================

// Scene is a full layout for one year.
type Scene struct {
	RunID  string      `json:"run_id" yaml:"run_id"`
	Year   int         `json:"year" yaml:"year"`
	Years  []int       `json:"years" yaml:"years"`
	Theme  string      `json:"theme,omitempty" yaml:"theme,omitempty"`
	Planes []PlaneView `json:"planes" yaml:"planes"`
}

// PlaneView is the layout of one plane.
type PlaneView struct {
	Plane     chip.Plane    `json:"plane" yaml:"plane"`
	Region    layout.Region `json:"region" yaml:"region"`
	Algorithm string        `json:"algorithm" yaml:"algorithm"`
	Seed      uint32        `json:"seed" yaml:"seed"`
	Chips     []Chip        `json:"chips" yaml:"chips"`
	Report    layout.Report `json:"report" yaml:"report"`
	Steps     int           `json:"steps" yaml:"steps"`
	Fallbacks int           `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`
}

// Chip is a placed chip. W and H are the effective (scaled) size.
type Chip struct {
	Name     string  `json:"name" yaml:"name"`
	Usage    int     `json:"usage" yaml:"usage"`
	Progress int     `json:"progress" yaml:"progress"`
	Scale    float64 `json:"scale" yaml:"scale"`
	X        float64 `json:"x" yaml:"x"`
	Y        float64 `json:"y" yaml:"y"`
	W        float64 `json:"w" yaml:"w"`
	H        float64 `json:"h" yaml:"h"`
}

// Plane returns the view of p, or nil if the scene has none.
func (s *Scene) Plane(p chip.Plane) *PlaneView {
	for i := range s.Planes {
		if s.Planes[i].Plane == p {
			return &s.Planes[i]
		}
	}
	return nil
}

// SetPlane replaces or appends the view for v.Plane.
func (s *Scene) SetPlane(v PlaneView) {
	if cur := s.Plane(v.Plane); cur != nil {
		*cur = v
		return
	}
	s.Planes = append(s.Planes, v)
}

// ChipCount returns the number of chips across planes.
func (s *Scene) ChipCount() int {
	n := 0
	for _, p := range s.Planes {
		n += len(p.Chips)
	}
	return n
}

// =============================================================================
// Serialization
// =============================================================================

// Marshal serializes a scene to pretty-printed JSON.
func Marshal(s *Scene) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Unmarshal parses a JSON scene.
func Unmarshal(data []byte) (*Scene, error) {
	var s Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal scene: %w", err)
	}
	return &s, nil
}

// MarshalPlane serializes one plane view to compact JSON.
func MarshalPlane(v PlaneView) ([]byte, error) {
	return json.Marshal(v)
}

// UnmarshalPlane parses a JSON plane view.
func UnmarshalPlane(data []byte) (PlaneView, error) {
	var v PlaneView
	if err := json.Unmarshal(data, &v); err != nil {
		return PlaneView{}, fmt.Errorf("unmarshal plane: %w", err)
	}
	return v, nil
}

// WriteFile writes the scene as JSON to path.
func WriteFile(s *Scene, path string) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile reads a JSON scene from path.
func ReadFile(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// WriteYAML writes the scene as YAML.
func WriteYAML(w io.Writer, s *Scene) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// row is the CSV form of a chip.
type row struct {
	Year     int     `csv:"year"`
	Plane    string  `csv:"plane"`
	Name     string  `csv:"name"`
	Usage    int     `csv:"usage"`
	Progress int     `csv:"progress"`
	Scale    float64 `csv:"scale"`
	X        float64 `csv:"x"`
	Y        float64 `csv:"y"`
	W        float64 `csv:"w"`
	H        float64 `csv:"h"`
}

// WriteCSV writes one row per chip with a header.
func WriteCSV(w io.Writer, s *Scene) error {
	rows := make([]*row, 0, s.ChipCount())
	for _, p := range s.Planes {
		for _, c := range p.Chips {
			rows = append(rows, &row{
				Year: s.Year, Plane: p.Plane.String(), Name: c.Name,
				Usage: c.Usage, Progress: c.Progress, Scale: c.Scale,
				X: c.X, Y: c.Y, W: c.W, H: c.H,
			})
		}
	}
	data, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// =============================================================================
// Presentation hook
// =============================================================================

// Frame is one publication of a plane's positions. Animated layouts publish
// intermediate frames with Final unset.
type Frame struct {
	Plane chip.Plane
	Year  int
	View  PlaneView
	Final bool
}

// Presenter applies frames to a presentation layer.
type Presenter interface {
	Present(ctx context.Context, f Frame) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, f Frame) error

// Present implements Presenter.
func (fn PresenterFunc) Present(ctx context.Context, f Frame) error { return fn(ctx, f) }
