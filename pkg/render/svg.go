package render

import (
	"bytes"
	"fmt"
	"html"
	"strconv"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/scene"
	"github.com/matzehuels/techmap/pkg/theme"
)

const chipCSS = `
    .chip { transition: transform 0.4s ease; }
    .chip text { font-family: 'Go', 'Inter', system-ui, sans-serif; dominant-baseline: central; text-anchor: middle; }
    .chip:hover rect.pill { stroke-width: 2; }
    .title { font-family: system-ui, sans-serif; letter-spacing: 0.06em; text-transform: uppercase; }
    .heading { font-family: system-ui, sans-serif; font-weight: 600; }`

// SVG renders s as a standalone SVG document.
func SVG(s *scene.Scene, opts ...Option) []byte {
	o := newOptions(opts)
	f := newFrame(s, o)
	pal := f.palette

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f" data-theme="%s">`+"\n",
		f.w, f.h, f.w, f.h, o.theme)
	fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", chipCSS)
	fmt.Fprintf(&buf, `  <rect width="100%%" height="100%%" fill="%s"/>`+"\n", pal.Background)
	fmt.Fprintf(&buf, `  <text class="heading" x="%.1f" y="%.1f" font-size="%.0f" fill="%s">%d</text>`+"\n",
		margin, headerH-16, headingSize, pal.Text, s.Year)

	for _, b := range f.boxes {
		renderPlane(&buf, b, pal)
	}
	if len(f.ticks) > 0 {
		renderTicks(&buf, f, s.Year)
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func renderPlane(buf *bytes.Buffer, b box, pal theme.Palette) {
	fmt.Fprintf(buf, `  <text class="title" x="%.1f" y="%.1f" font-size="%.0f" fill="%s">%s</text>`+"\n",
		b.x, b.y-8, titleSize, pal.Muted, b.title)
	fmt.Fprintf(buf, `  <g id="plane-%s">`+"\n", b.view.Plane)
	fmt.Fprintf(buf, `    <rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" rx="14" fill="%s" stroke="%s"/>`+"\n",
		b.x, b.y, b.w, b.h, pal.Plane, pal.PlaneEdge)

	ox, oy := b.origin()
	active := b.view.Plane == chip.Active
	for _, c := range b.view.Chips {
		renderChip(buf, c, ox, oy, active, pal)
	}
	buf.WriteString("  </g>\n")
}

func renderChip(buf *bytes.Buffer, c scene.Chip, ox, oy float64, active bool, pal theme.Palette) {
	x, y := ox+c.X, oy+c.Y
	fill, text := pal.Inactive, pal.Muted
	if active {
		fill, text = pal.Chip, pal.Text
	}
	name := html.EscapeString(c.Name)

	fmt.Fprintf(buf, `    <g class="chip" id="chip-%s" data-usage="%d" data-scale="%s">`+"\n",
		name, c.Usage, strconv.FormatFloat(c.Scale, 'f', 3, 64))
	fmt.Fprintf(buf, `      <rect class="pill" x="%.2f" y="%.2f" width="%.2f" height="%.2f" rx="%.2f" fill="%s" stroke="%s"/>`+"\n",
		x, y, c.W, c.H, c.H/2, fill, pal.ChipEdge)
	if active && c.Progress > 0 {
		inset := c.H / 2
		bw := (c.W - 2*inset) * float64(c.Progress) / 100
		fmt.Fprintf(buf, `      <rect class="usage" x="%.2f" y="%.2f" width="%.2f" height="%.1f" rx="1.5" fill="%s"/>`+"\n",
			x+inset, y+c.H-barH-3, bw, barH, pal.Accent)
	}
	fmt.Fprintf(buf, `      <text x="%.2f" y="%.2f" font-size="%.2f" fill="%s">%s</text>`+"\n",
		x+c.W/2, y+c.H/2, chipFontSize(c), text, name)
	buf.WriteString("    </g>\n")
}

func renderTicks(buf *bytes.Buffer, f frame, year int) {
	pal := f.palette
	fmt.Fprintf(buf, `  <g id="ticks">`+"\n")
	fmt.Fprintf(buf, `    <rect x="%.1f" y="%.1f" width="%.1f" height="4" rx="2" fill="%s"/>`+"\n",
		f.trackX, f.trackY, f.trackW, pal.Track)
	n := len(f.ticks)
	for i, t := range f.ticks {
		x := f.tickX(i, n)
		color := pal.Muted
		if t.Year == year {
			color = pal.Accent
			fmt.Fprintf(buf, `    <circle cx="%.1f" cy="%.1f" r="7" fill="%s"/>`+"\n", x, f.trackY+2, pal.Accent)
		}
		if t.Label {
			fmt.Fprintf(buf, `    <text class="tick tick--label" x="%.1f" y="%.1f" font-size="12" text-anchor="middle" fill="%s">%d</text>`+"\n",
				x, f.trackY+26, color, t.Year)
		} else {
			fmt.Fprintf(buf, `    <circle class="tick tick--dot" cx="%.1f" cy="%.1f" r="2" fill="%s"/>`+"\n",
				x, f.trackY+22, color)
		}
	}
	buf.WriteString("  </g>\n")
}
