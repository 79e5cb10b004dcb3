package classify

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/dataset"
)

func twoTech() *dataset.Dataset {
	return &dataset.Dataset{
		Years: []int{2020, 2021},
		Tech: []dataset.Tech{
			{Name: "A", Series: map[string]int{"2020": 5, "2021": 0}},
			{Name: "B", Series: map[string]int{"2020": 0, "2021": 3}},
		},
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestClassifyPlaneFlip(t *testing.T) {
	ds := twoTech()
	wide := Widths{Active: 1200, Inactive: 1200}
	p := DefaultPolicy()

	a := Classify(ds, 2020, wide, p)
	if a.ActiveCount != 1 || a.Density != 1 {
		t.Errorf("ActiveCount, Density = %d, %v; want 1, 1", a.ActiveCount, a.Density)
	}
	if a.Items[0].Plane != chip.Active || a.Items[1].Plane != chip.Inactive {
		t.Errorf("2020 planes = %v, %v; want active, inactive", a.Items[0].Plane, a.Items[1].Plane)
	}
	if !approx(a.Items[0].Scale, 1.425) {
		t.Errorf("A scale = %v, want 1.425", a.Items[0].Scale)
	}
	if a.Items[1].Scale != 1.0 {
		t.Errorf("B scale = %v, want responsive constant 1.0", a.Items[1].Scale)
	}
	if a.Items[0].Progress != 50 {
		t.Errorf("A progress = %d, want 50", a.Items[0].Progress)
	}

	b := Classify(ds, 2021, wide, p)
	if b.Items[0].Plane != chip.Inactive || b.Items[1].Plane != chip.Active {
		t.Errorf("2021 planes = %v, %v; want inactive, active", b.Items[0].Plane, b.Items[1].Plane)
	}
	if want := 0.75 + 0.3*1.35; !approx(b.Items[1].Scale, want) {
		t.Errorf("B scale = %v, want %v", b.Items[1].Scale, want)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	ds := twoTech()
	w := Widths{Active: 500, Inactive: 700}
	first := Classify(ds, 2020, w, DefaultPolicy())
	second := Classify(ds, 2020, w, DefaultPolicy())
	if !reflect.DeepEqual(first, second) {
		t.Error("Classify is not idempotent")
	}
}

func TestBreakpoints(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		width    float64
		inactive float64
		active   float64
	}{
		{320, 0.72, 0.82},
		{420, 0.72, 0.82},
		{421, 0.80, 0.88},
		{600, 0.80, 0.88},
		{900, 0.90, 0.94},
		{901, 1.00, 1.00},
	}
	for _, tt := range tests {
		if got := p.InactiveScale.At(tt.width); got != tt.inactive {
			t.Errorf("InactiveScale.At(%v) = %v, want %v", tt.width, got, tt.inactive)
		}
		if got := p.ActiveScale.At(tt.width); got != tt.active {
			t.Errorf("ActiveScale.At(%v) = %v, want %v", tt.width, got, tt.active)
		}
	}
}

func TestDensityFactor(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		count int
		want  float64
	}{
		{0, 1}, {7, 1}, {8, 0.86}, {10, 0.86}, {11, 0.78}, {14, 0.78}, {15, 0.70}, {40, 0.70},
	}
	for _, tt := range tests {
		if got := p.DensityFactor(tt.count); got != tt.want {
			t.Errorf("DensityFactor(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestScaleCapAndMultiplier(t *testing.T) {
	ds := &dataset.Dataset{Years: []int{2020}}
	for i := 0; i < 3; i++ {
		ds.Tech = append(ds.Tech, dataset.Tech{Name: fmt.Sprint("t", i), Series: map[string]int{"2020": 10}})
	}
	a := Classify(ds, 2020, Widths{Active: 400, Inactive: 400}, DefaultPolicy())
	// base 2.10 is capped at 1.55 before the 0.82 multiplier.
	for _, it := range a.Items {
		if !approx(it.Scale, 1.55*0.82) {
			t.Errorf("%s scale = %v, want %v", it.Name, it.Scale, 1.55*0.82)
		}
		if it.Progress != 100 {
			t.Errorf("%s progress = %d, want 100", it.Name, it.Progress)
		}
	}
}

func TestDensityDiscount(t *testing.T) {
	ds := &dataset.Dataset{Years: []int{2020}}
	for i := 0; i < 15; i++ {
		ds.Tech = append(ds.Tech, dataset.Tech{Name: fmt.Sprint("t", i), Series: map[string]int{"2020": 2}})
	}
	a := Classify(ds, 2020, Widths{Active: 1000, Inactive: 1000}, DefaultPolicy())
	if a.Density != 0.70 {
		t.Fatalf("Density = %v, want 0.70", a.Density)
	}
	want := (0.75 + 0.2*1.35) * 0.70
	if !approx(a.Items[0].Scale, want) {
		t.Errorf("scale = %v, want %v", a.Items[0].Scale, want)
	}
}

func TestInactiveCapVariant(t *testing.T) {
	p := DefaultPolicy()
	p.InactiveCap = 0.92
	a := Classify(twoTech(), 2020, Widths{Active: 1200, Inactive: 1200}, p)
	// usage 0 gives base 0.75, below the cap.
	if got := a.Items[1].Scale; !approx(got, 0.75) {
		t.Errorf("inactive scale = %v, want 0.75", got)
	}
}

func TestClassifyEmpty(t *testing.T) {
	a := Classify(nil, 2020, Widths{}, DefaultPolicy())
	if len(a.Items) != 0 || a.ActiveCount != 0 {
		t.Errorf("Classify(nil) = %+v, want empty", a)
	}
	a = Classify(&dataset.Dataset{}, 2020, Widths{}, DefaultPolicy())
	if len(a.Active()) != 0 || len(a.Inactive()) != 0 {
		t.Errorf("Classify(empty) = %+v, want empty", a)
	}
}

func TestFilters(t *testing.T) {
	a := Classify(twoTech(), 2020, Widths{Active: 800, Inactive: 800}, DefaultPolicy())
	if len(a.Active()) != 1 || a.Active()[0].Name != "A" {
		t.Errorf("Active() = %+v", a.Active())
	}
	if len(a.On(chip.Inactive)) != 1 || a.On(chip.Inactive)[0].Name != "B" {
		t.Errorf("On(Inactive) = %+v", a.On(chip.Inactive))
	}
}
