package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/scene"
)

// kappa places cubic control points for a quarter circle.
const kappa = 0.5523

// PNG rasterizes s natively; it needs no external tools.
func PNG(s *scene.Scene, opts ...Option) ([]byte, error) {
	o := newOptions(opts)
	f := newFrame(s, o)
	rc, err := newRaster(f, o.scale)
	if err != nil {
		return nil, err
	}
	pal := f.palette

	draw.Draw(rc.img, rc.img.Bounds(), image.NewUniform(hexColor(pal.Background)), image.Point{}, draw.Src)
	rc.text(margin, headerH-16, headingSize, fmt.Sprint(s.Year), hexColor(pal.Text), false)

	for _, b := range f.boxes {
		rc.text(b.x, b.y-8, titleSize, b.title, hexColor(pal.Muted), false)
		rc.pill(b.x, b.y, b.w, b.h, 14, hexColor(pal.PlaneEdge))
		rc.pill(b.x+1, b.y+1, b.w-2, b.h-2, 13, hexColor(pal.Plane))

		ox, oy := b.origin()
		active := b.view.Plane == chip.Active
		for _, c := range b.view.Chips {
			x, y := ox+c.X, oy+c.Y
			fill, text := hexColor(pal.Inactive), hexColor(pal.Muted)
			if active {
				fill, text = hexColor(pal.Chip), hexColor(pal.Text)
			}
			rc.pill(x, y, c.W, c.H, c.H/2, hexColor(pal.ChipEdge))
			rc.pill(x+1, y+1, c.W-2, c.H-2, c.H/2-1, fill)
			if active && c.Progress > 0 {
				inset := c.H / 2
				bw := (c.W - 2*inset) * float64(c.Progress) / 100
				rc.pill(x+inset, y+c.H-barH-3, bw, barH, 1.5, hexColor(pal.Accent))
			}
			rc.text(x+c.W/2, y+c.H/2, chipFontSize(c), c.Name, text, true)
		}
	}

	if len(f.ticks) > 0 {
		rc.pill(f.trackX, f.trackY, f.trackW, 4, 2, hexColor(pal.Track))
		n := len(f.ticks)
		for i, t := range f.ticks {
			x := f.tickX(i, n)
			c := hexColor(pal.Muted)
			if t.Year == s.Year {
				c = hexColor(pal.Accent)
				rc.pill(x-7, f.trackY+2-7, 14, 14, 7, c)
			}
			if t.Label {
				rc.text(x, f.trackY+22, 12, strconv.Itoa(t.Year), c, true)
			} else {
				rc.pill(x-2, f.trackY+20, 4, 4, 2, c)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, rc.img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// raster draws frame-coordinate shapes onto an image at a pixel density.
type raster struct {
	img   *image.RGBA
	k     float64
	font  *opentype.Font
	faces map[float64]font.Face
}

func newRaster(f frame, k float64) (*raster, error) {
	fnt, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	w := int(math.Ceil(f.w * k))
	h := int(math.Ceil(f.h * k))
	return &raster{
		img:   image.NewRGBA(image.Rect(0, 0, w, h)),
		k:     k,
		font:  fnt,
		faces: map[float64]font.Face{},
	}, nil
}

// pill fills a rounded rectangle. The rasterizer covers only the shape's
// bounding box.
func (rc *raster) pill(x, y, w, h, r float64, c color.Color) {
	x, y, w, h, r = x*rc.k, y*rc.k, w*rc.k, h*rc.k, r*rc.k
	if w <= 0 || h <= 0 {
		return
	}
	r = max(0, min(r, w/2, h/2))
	bx, by := int(math.Floor(x)), int(math.Floor(y))
	bw, bh := int(math.Ceil(x+w))-bx, int(math.Ceil(y+h))-by
	if bw <= 0 || bh <= 0 {
		return
	}
	lx, ly := float32(x-float64(bx)), float32(y-float64(by))
	fw, fh, fr := float32(w), float32(h), float32(r)
	kr := float32(kappa) * fr

	z := vector.NewRasterizer(bw, bh)
	z.DrawOp = draw.Over
	z.MoveTo(lx+fr, ly)
	z.LineTo(lx+fw-fr, ly)
	z.CubeTo(lx+fw-fr+kr, ly, lx+fw, ly+fr-kr, lx+fw, ly+fr)
	z.LineTo(lx+fw, ly+fh-fr)
	z.CubeTo(lx+fw, ly+fh-fr+kr, lx+fw-fr+kr, ly+fh, lx+fw-fr, ly+fh)
	z.LineTo(lx+fr, ly+fh)
	z.CubeTo(lx+fr-kr, ly+fh, lx, ly+fh-fr+kr, lx, ly+fh-fr)
	z.LineTo(lx, ly+fr)
	z.CubeTo(lx, ly+fr-kr, lx+fr-kr, ly, lx+fr, ly)
	z.ClosePath()
	z.Draw(rc.img, image.Rect(bx, by, bx+bw, by+bh), image.NewUniform(c), image.Point{})
}

func (rc *raster) face(size float64) font.Face {
	size = math.Round(size*rc.k*4) / 4
	if f, ok := rc.faces[size]; ok {
		return f
	}
	f, err := opentype.NewFace(rc.font, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil
	}
	rc.faces[size] = f
	return f
}

// text draws s with its left edge at x, or centred on x when centre is
// set. y is the baseline, or the vertical centre when centre is set.
func (rc *raster) text(x, y, size float64, s string, c color.Color, centre bool) {
	face := rc.face(size)
	if face == nil {
		return
	}
	px, py := x*rc.k, y*rc.k
	if centre {
		m := face.Metrics()
		px -= float64(font.MeasureString(face, s)) / 64 / 2
		py += float64(m.Ascent-m.Descent) / 64 / 2
	}
	d := &font.Drawer{
		Dst:  rc.img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(px * 64), Y: fixed.Int26_6(py * 64)},
	}
	d.DrawString(s)
}

// hexColor parses "#rrggbb"; malformed input yields opaque black.
func hexColor(s string) color.RGBA {
	if len(s) != 7 || s[0] != '#' {
		return color.RGBA{A: 255}
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
}
