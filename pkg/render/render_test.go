package render

import (
	"bytes"
	"context"
	"image/png"
	"os/exec"
	"strings"
	"testing"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/errors"
	"github.com/matzehuels/techmap/pkg/layout"
	"github.com/matzehuels/techmap/pkg/scene"
	"github.com/matzehuels/techmap/pkg/theme"
)

func testScene() *scene.Scene {
	region := layout.Region{Width: 400, Height: 200, Padding: layout.Uniform(10)}
	return &scene.Scene{
		Year:  2021,
		Years: []int{2018, 2019, 2020, 2021},
		Planes: []scene.PlaneView{
			{
				Plane:  chip.Active,
				Region: region,
				Chips: []scene.Chip{
					{Name: "Go", Usage: 8, Progress: 80, Scale: 1.5, X: 20, Y: 30, W: 90, H: 40},
				},
			},
			{
				Plane:  chip.Inactive,
				Region: region,
				Chips: []scene.Chip{
					{Name: "C<++>", Scale: 1, X: 100, Y: 50, W: 80, H: 30},
				},
			},
		},
	}
}

func TestSVG(t *testing.T) {
	out := string(SVG(testScene(), WithTicks()))

	for _, want := range []string{
		`<svg xmlns="http://www.w3.org/2000/svg"`,
		`data-theme="dark"`,
		`id="plane-active"`,
		`id="plane-inactive"`,
		`id="chip-Go"`,
		`C&lt;++&gt;`,
		`class="usage"`,
		`>2021</text>`,
		theme.Dark.Palette().Background,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("SVG missing %q", want)
		}
	}
	if strings.Count(out, `class="usage"`) != 1 {
		t.Error("only active chips with usage get a usage bar")
	}
	if !strings.HasSuffix(out, "</svg>\n") {
		t.Error("SVG not closed")
	}
}

func TestSVGLightTheme(t *testing.T) {
	out := string(SVG(testScene(), WithTheme(theme.Light)))
	if !strings.Contains(out, theme.Light.Palette().Background) {
		t.Error("light theme background missing")
	}
	if strings.Contains(out, `id="ticks"`) {
		t.Error("ticks drawn without WithTicks")
	}
}

func TestSVGChipPosition(t *testing.T) {
	// Chip X/Y are relative to the padded origin: margin + padding + X.
	out := string(SVG(testScene()))
	if !strings.Contains(out, `x="54.00" y="118.00" width="90.00" height="40.00"`) {
		t.Errorf("active chip not placed at padded origin offset:\n%s", out)
	}
}

func TestFrameGeometry(t *testing.T) {
	f := newFrame(testScene(), newOptions([]Option{WithTicks()}))
	if f.w != 400+2*margin {
		t.Errorf("w = %v, want %v", f.w, 400+2*margin)
	}
	if len(f.boxes) != 2 {
		t.Fatalf("boxes = %d, want 2", len(f.boxes))
	}
	if f.boxes[1].y <= f.boxes[0].y+f.boxes[0].h {
		t.Error("inactive plane should sit below the active plane")
	}
	if len(f.ticks) != 4 {
		t.Errorf("ticks = %d, want 4", len(f.ticks))
	}
	if f.tickX(0, 4) != f.trackX || f.tickX(3, 4) != f.trackX+f.trackW {
		t.Error("first and last tick should span the track")
	}

	empty := newFrame(&scene.Scene{}, newOptions(nil))
	if empty.w != minFrameW || empty.h <= 0 {
		t.Errorf("empty frame = %vx%v", empty.w, empty.h)
	}
}

func TestPNG(t *testing.T) {
	data, err := PNG(testScene(), WithScale(2), WithTicks())
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	f := newFrame(testScene(), newOptions([]Option{WithTicks()}))
	b := img.Bounds()
	if b.Dx() != int(f.w*2) {
		t.Errorf("width = %d, want %d", b.Dx(), int(f.w*2))
	}

	bg := hexColor(theme.Dark.Palette().Background)
	r, g, bl, _ := img.At(1, 1).RGBA()
	if uint8(r>>8) != bg.R || uint8(g>>8) != bg.G || uint8(bl>>8) != bg.B {
		t.Error("corner pixel should be background")
	}
	// Inside the active chip, left of the label.
	ox, oy := f.boxes[0].origin()
	cr, cg, cb, _ := img.At(int((ox+20+12)*2), int((oy+30+10)*2)).RGBA()
	chipFill := hexColor(theme.Dark.Palette().Chip)
	if uint8(cr>>8) != chipFill.R || uint8(cg>>8) != chipFill.G || uint8(cb>>8) != chipFill.B {
		t.Errorf("chip pixel = %d,%d,%d, want chip fill %v", cr>>8, cg>>8, cb>>8, chipFill)
	}
}

func TestHexColor(t *testing.T) {
	c := hexColor("#38bdf8")
	if c.R != 0x38 || c.G != 0xbd || c.B != 0xf8 || c.A != 255 {
		t.Errorf("hexColor = %v", c)
	}
	if hexColor("blue").A != 255 {
		t.Error("malformed colour should be opaque black")
	}
}

func TestPDF(t *testing.T) {
	svg := SVG(testScene())
	out, err := PDF(context.Background(), svg)
	if _, lookErr := exec.LookPath("rsvg-convert"); lookErr != nil {
		if !errors.Is(err, errors.ErrCodeUnsupported) {
			t.Errorf("PDF without rsvg-convert = %v, want UNSUPPORTED", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("PDF: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Error("output is not a PDF")
	}
}
