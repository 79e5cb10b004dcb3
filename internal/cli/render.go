package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/techmap/pkg/errors"
	"github.com/matzehuels/techmap/pkg/pipeline"
	"github.com/matzehuels/techmap/pkg/theme"
)

// drawFormats are the formats the render command writes.
var drawFormats = map[string]bool{
	pipeline.FormatSVG: true,
	pipeline.FormatPNG: true,
	pipeline.FormatPDF: true,
}

// savedTheme selects the stored theme preference.
const savedTheme = "saved"

// renderCommand creates the render command, which draws a year's layout.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		flags   layoutFlags
		formats string
		output  string
		noCache bool
		th      string
		ticks   bool
		scale   float64
	)

	cmd := &cobra.Command{
		Use:   "render [dataset]",
		Short: "Draw a year's chips as SVG, PNG or PDF",
		Long: `Draw a year's chips as SVG, PNG or PDF.

Both planes are drawn side by side with the year slider underneath.
PDF output requires rsvg-convert (librsvg) on the PATH.

Examples:
  techmap render usage.json --year 2019
  techmap render usage.json -f svg,png --theme light --scale 3
  techmap render --theme saved -o - > map.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := parseFormats(formats, pipeline.FormatSVG)
			for _, f := range fs {
				if !drawFormats[f] {
					return errors.New(errors.ErrCodeInvalidInput, "invalid render format %q (must be svg, png or pdf)", f)
				}
			}
			t, err := c.resolveTheme(cmd.Context(), cmd.Flags().Changed("theme"), th)
			if err != nil {
				return err
			}
			return c.runExecute(cmd, argOrEmpty(args), &flags, func(opts *pipeline.Options) {
				opts.Formats = fs
				if t != "" {
					opts.Theme = t
				}
				if cmd.Flags().Changed("ticks") {
					opts.Ticks = ticks
				}
				if cmd.Flags().Changed("scale") {
					opts.Scale = scale
				}
			}, output, noCache, "Render")
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&formats, "format", "f", "", "output formats: svg (default), png, pdf (comma-separated)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <dataset>-<year>.<format>, - for stdout)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&th, "theme", "", "theme: dark, light, or saved for the stored preference (default: config)")
	cmd.Flags().BoolVar(&ticks, "ticks", true, "draw the year slider")
	cmd.Flags().Float64Var(&scale, "scale", 2, "PNG pixel density")

	return cmd
}

// resolveTheme returns the theme requested on the command line, or "" to
// keep the configured one.
func (c *CLI) resolveTheme(ctx context.Context, changed bool, name string) (theme.Theme, error) {
	if !changed {
		return "", nil
	}
	if name != savedTheme {
		if err := theme.Validate(name); err != nil {
			return "", err
		}
		return theme.Theme(name), nil
	}
	store, closeFn, err := c.newThemeStore(ctx)
	if err != nil {
		return "", err
	}
	defer closeFn()
	return store.Get(ctx)
}
