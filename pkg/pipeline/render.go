package pipeline

import (
	"bytes"
	"context"
	"fmt"

	"github.com/matzehuels/techmap/pkg/cache"
	"github.com/matzehuels/techmap/pkg/observability"
	"github.com/matzehuels/techmap/pkg/render"
	"github.com/matzehuels/techmap/pkg/scene"
)

// Render produces the requested formats for s.
func (r *Runner) Render(ctx context.Context, s *scene.Scene, opts Options) (map[string][]byte, error) {
	out, _, err := r.RenderWithCacheInfo(ctx, s, opts)
	return out, err
}

// RenderWithCacheInfo renders s in every format of opts.Formats and
// reports whether all drawn artifacts came from the cache. Data formats
// are encoded directly and never cached, and neither are artifacts of
// non-deterministic scenes.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, s *scene.Scene, opts Options) (map[string][]byte, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}

	out := make(map[string][]byte, len(opts.Formats))
	allHit, drawn := true, 0
	cacheable := opts.Deterministic() && s.RunID != ""
	var svg []byte
	for _, format := range opts.Formats {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		switch format {
		case FormatJSON:
			data, err := scene.Marshal(s)
			if err != nil {
				return nil, false, err
			}
			out[format] = data
			continue
		case FormatYAML:
			var buf bytes.Buffer
			if err := scene.WriteYAML(&buf, s); err != nil {
				return nil, false, err
			}
			out[format] = buf.Bytes()
			continue
		case FormatCSV:
			var buf bytes.Buffer
			if err := scene.WriteCSV(&buf, s); err != nil {
				return nil, false, err
			}
			out[format] = buf.Bytes()
			continue
		}

		drawn++
		key := r.Keyer.RenderKey(s.RunID, cache.RenderKeyOpts{
			Format: format,
			Theme:  string(opts.Theme),
			Ticks:  opts.Ticks,
			Scale:  opts.Scale,
		})
		if cacheable {
			if data, ok := r.cachedArtifact(ctx, key, opts); ok {
				out[format] = data
				continue
			}
		}
		allHit = false

		var data []byte
		var err error
		switch format {
		case FormatSVG:
			data = r.svg(s, opts, &svg)
		case FormatPNG:
			data, err = render.PNG(s, append(renderOptions(opts), render.WithScale(opts.Scale))...)
		case FormatPDF:
			data, err = render.PDF(ctx, r.svg(s, opts, &svg))
		default:
			err = ValidateFormat(format)
		}
		if err != nil {
			return nil, false, fmt.Errorf("%s: %w", format, err)
		}
		out[format] = data
		if cacheable {
			r.storeArtifact(ctx, key, data)
		}
	}
	return out, drawn > 0 && allHit, nil
}

// svg renders the SVG once per call and reuses it for PDF conversion.
func (r *Runner) svg(s *scene.Scene, opts Options, memo *[]byte) []byte {
	if *memo == nil {
		*memo = render.SVG(s, renderOptions(opts)...)
	}
	return *memo
}

func renderOptions(opts Options) []render.Option {
	ro := []render.Option{render.WithTheme(opts.Theme)}
	if opts.Ticks {
		ro = append(ro, render.WithTicks())
	}
	return ro
}

func (r *Runner) cachedArtifact(ctx context.Context, key string, opts Options) ([]byte, bool) {
	if opts.Refresh {
		return nil, false
	}
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, "render")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "render")
	return data, true
}

func (r *Runner) storeArtifact(ctx context.Context, key string, data []byte) {
	if err := r.Cache.Set(ctx, key, data, cache.TTLRender); err == nil {
		observability.Cache().OnCacheSet(ctx, "render", len(data))
	}
}
