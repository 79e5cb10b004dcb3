package scene

import (
	"bytes"
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/layout"
)

func sample() *Scene {
	return &Scene{
		RunID: "run-1",
		Year:  2020,
		Years: []int{2019, 2020},
		Planes: []PlaneView{
			{
				Plane:     chip.Active,
				Region:    layout.Region{Width: 300, Height: 200, Padding: layout.Uniform(16)},
				Algorithm: "force",
				Seed:      2020,
				Chips: []Chip{
					{Name: "Go", Usage: 7, Progress: 70, Scale: 1.3, X: 10, Y: 12, W: 80, H: 30},
					{Name: "Rust", Usage: 2, Progress: 20, Scale: 1.1, X: 120, Y: 40, W: 70, H: 28},
				},
			},
			{
				Plane:     chip.Inactive,
				Region:    layout.Region{Width: 300, Height: 150, SafeMargin: 18},
				Algorithm: "spiral",
				Seed:      3019,
				Chips:     []Chip{{Name: "Perl", Scale: 1, X: 20, Y: 20, W: 60, H: 24}},
			},
		},
	}
}

func TestPlaneLookup(t *testing.T) {
	s := sample()
	if v := s.Plane(chip.Inactive); v == nil || v.Chips[0].Name != "Perl" {
		t.Fatalf("Plane(inactive) = %+v", v)
	}
	if s.ChipCount() != 3 {
		t.Errorf("ChipCount = %d, want 3", s.ChipCount())
	}

	s.SetPlane(PlaneView{Plane: chip.Inactive})
	if len(s.Planes) != 2 || len(s.Plane(chip.Inactive).Chips) != 0 {
		t.Error("SetPlane should replace an existing plane")
	}

	empty := &Scene{}
	if empty.Plane(chip.Active) != nil {
		t.Error("empty scene has no planes")
	}
	empty.SetPlane(PlaneView{Plane: chip.Active})
	if empty.Plane(chip.Active) == nil {
		t.Error("SetPlane should append a missing plane")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	s := sample()
	data, err := Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"plane": "inactive"`) {
		t.Error("planes should encode by name")
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, s) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, s)
	}

	if _, err := Unmarshal([]byte("{")); err == nil {
		t.Error("truncated JSON should fail")
	}
}

func TestPlaneRoundTrip(t *testing.T) {
	v := sample().Planes[0]
	data, err := MarshalPlane(v)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalPlane(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, v) {
		t.Error("plane round trip mismatch")
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.json")
	if err := WriteFile(sample(), path); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Year != 2020 || got.ChipCount() != 3 {
		t.Errorf("ReadFile = %+v", got)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteYAML(&buf, sample()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"run_id: run-1", "year: 2020", "plane: active", "name: Perl"} {
		if !strings.Contains(out, want) {
			t.Errorf("YAML missing %q:\n%s", want, out)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample()); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want header + 3", len(lines))
	}
	if lines[0] != "year,plane,name,usage,progress,scale,x,y,w,h" {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[3], "2020,inactive,Perl,0,0,1,") {
		t.Errorf("inactive row = %q", lines[3])
	}
}

func TestPresenterFunc(t *testing.T) {
	var got Frame
	p := PresenterFunc(func(_ context.Context, f Frame) error {
		got = f
		return nil
	})
	f := Frame{Plane: chip.Active, Year: 2020, Final: true}
	if err := p.Present(context.Background(), f); err != nil {
		t.Fatal(err)
	}
	if got.Plane != chip.Active || !got.Final {
		t.Errorf("presented frame = %+v", got)
	}
}
