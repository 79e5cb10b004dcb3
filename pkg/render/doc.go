// Package render draws a [scene.Scene] as SVG, PNG or PDF.
//
// The drawing mirrors the interactive page: a year heading, the active
// plane box above the inactive plane box, each chip as a pill sized by its
// scale with its label centred and, for active chips, a usage bar along
// the bottom edge. An optional row of year ticks runs along the foot.
//
// [SVG] and [PNG] share one frame geometry, so both formats place chips
// at the same coordinates. [PDF] converts SVG output with rsvg-convert
// from librsvg, which must be installed.
//
//	svg := render.SVG(s, render.WithTheme(theme.Light), render.WithTicks())
//	pdf, err := render.PDF(ctx, svg)
package render
