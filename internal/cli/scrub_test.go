package cli

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/layout"
	"github.com/matzehuels/techmap/pkg/scene"
)

type resize struct {
	plane chip.Plane
	w, h  float64
}

type fakeScheduler struct {
	years   []int
	resizes []resize
}

func (f *fakeScheduler) SetYear(year int) error {
	f.years = append(f.years, year)
	return nil
}

func (f *fakeScheduler) Resize(p chip.Plane, w, h float64) error {
	f.resizes = append(f.resizes, resize{p, w, h})
	return nil
}

func press(m tea.Model, key string) tea.Model {
	var msg tea.KeyMsg
	switch key {
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	case "home":
		msg = tea.KeyMsg{Type: tea.KeyHome}
	case "end":
		msg = tea.KeyMsg{Type: tea.KeyEnd}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next
}

func TestScrubModelSeek(t *testing.T) {
	sched := &fakeScheduler{}
	var m tea.Model = newScrubModel(sched, []int{2019, 2020, 2021}, 2021, false)

	m = press(m, "right") // already at the end
	m = press(m, "left")
	m = press(m, "h")
	m = press(m, "left") // already at the start
	m = press(m, "end")
	m = press(m, "g")

	want := []int{2020, 2019, 2021, 2019}
	if len(sched.years) != len(want) {
		t.Fatalf("SetYear calls = %v, want %v", sched.years, want)
	}
	for i := range want {
		if sched.years[i] != want[i] {
			t.Errorf("SetYear calls = %v, want %v", sched.years, want)
			break
		}
	}
	if got := m.(scrubModel).idx; got != 0 {
		t.Errorf("idx = %d, want 0", got)
	}
}

func TestScrubModelUnknownYearStartsAtLatest(t *testing.T) {
	m := newScrubModel(&fakeScheduler{}, []int{2019, 2020}, 1999, false)
	if m.idx != 1 {
		t.Errorf("idx = %d, want the last year", m.idx)
	}
}

func TestScrubModelResize(t *testing.T) {
	sched := &fakeScheduler{}
	var m tea.Model = newScrubModel(sched, []int{2021}, 2021, false)

	m, _ = m.Update(tea.WindowSizeMsg{Width: 104, Height: 48})

	if len(sched.resizes) != 2 {
		t.Fatalf("Resize calls = %d, want one per plane", len(sched.resizes))
	}
	act, inact := sched.resizes[0], sched.resizes[1]
	if act.plane != chip.Active || inact.plane != chip.Inactive {
		t.Errorf("resized planes = %v, %v", act.plane, inact.plane)
	}
	if act.w != 100*cellW || inact.w != 100*cellW {
		t.Errorf("widths = %v/%v, want %v", act.w, inact.w, 100*cellW)
	}
	if act.h <= inact.h {
		t.Errorf("active plane height %v should exceed inactive %v", act.h, inact.h)
	}

	// Too small to draw: no resize.
	sched.resizes = nil
	m.Update(tea.WindowSizeMsg{Width: 6, Height: 4})
	if len(sched.resizes) != 0 {
		t.Errorf("tiny window should not resize, got %v", sched.resizes)
	}
}

func TestScrubModelView(t *testing.T) {
	var m tea.Model = newScrubModel(&fakeScheduler{}, []int{2020, 2021}, 2021, false)
	if !strings.Contains(m.View(), "loading") {
		t.Error("view before the first resize should show loading")
	}

	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	m, _ = m.Update(frameMsg(scene.Frame{
		Plane: chip.Active,
		Year:  2021,
		Final: true,
		View: scene.PlaneView{
			Plane:  chip.Active,
			Region: layout.Region{Width: 600, Height: 300},
			Chips:  []scene.Chip{{Name: "Go", X: 100, Y: 100, W: 60, H: 30}},
		},
	}))

	view := m.View()
	for _, want := range []string{"Go", "1 chips", "[2021]", "q: quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "settling") {
		t.Error("a final frame should not be marked as settling")
	}
}

func TestScrubModelQuit(t *testing.T) {
	m := newScrubModel(&fakeScheduler{}, []int{2021}, 2021, false)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestDrawPlane(t *testing.T) {
	v := scene.PlaneView{
		Region: layout.Region{Width: 100, Height: 100},
		Chips: []scene.Chip{
			{Name: "Go", X: 0, Y: 0, W: 10, H: 10},
			{Name: "Offscreen", X: 500, Y: 500, W: 10, H: 10},
		},
	}
	out := drawPlane(v, 10, 5)
	lines := strings.Split(out, "\n")
	if len(lines) != 5 {
		t.Fatalf("rows = %d, want 5", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Go") {
		t.Errorf("first row = %q, want the Go chip at the left", lines[0])
	}
	if strings.Contains(out, "Offscreen") {
		t.Error("chips outside the region should be skipped")
	}
}
