package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/techmap/pkg/dataset"
	"github.com/matzehuels/techmap/pkg/errors"
	"github.com/matzehuels/techmap/pkg/pipeline"
)

// layoutFlags are the layout overrides shared by every command that lays
// out a year. Unset flags leave the config values alone.
type layoutFlags struct {
	year     int
	active   string
	inactive string
	width    float64
	random   bool
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.year, "year", "y", 0, "year to lay out (default: latest in the dataset)")
	cmd.Flags().StringVar(&f.active, "active-algorithm", "", "active plane algorithm: spiral, relaxation, force")
	cmd.Flags().StringVar(&f.inactive, "inactive-algorithm", "", "inactive plane algorithm: spiral, relaxation, force")
	cmd.Flags().Float64Var(&f.width, "width", 0, "width of both plane boxes in pixels")
	cmd.Flags().BoolVar(&f.random, "random", false, "seed layouts from the clock instead of the year")
}

// options builds pipeline options from the config with the flags applied.
func (c *CLI) options(cmd *cobra.Command, f *layoutFlags, ds *dataset.Dataset) (pipeline.Options, error) {
	base, err := c.config()
	if err != nil {
		return pipeline.Options{}, err
	}
	cfg := *base

	if cmd.Flags().Changed("active-algorithm") {
		cfg.Planes.Active.Algorithm = f.active
	}
	if cmd.Flags().Changed("inactive-algorithm") {
		cfg.Planes.Inactive.Algorithm = f.inactive
	}
	if cmd.Flags().Changed("width") {
		cfg.Planes.Active.Width = f.width
		cfg.Planes.Inactive.Width = f.width
	}
	if f.random {
		cfg.Planes.Active.Deterministic = false
		cfg.Planes.Inactive.Deterministic = false
	}

	year := f.year
	if year == 0 {
		year = ds.Latest()
	}
	if year == 0 {
		year = time.Now().Year()
	}
	if err := errors.ValidateYear(year); err != nil {
		return pipeline.Options{}, err
	}
	if !ds.HasYear(year) {
		c.Logger.Warn("year not in dataset, every technology will be inactive", "year", year)
	}

	opts, err := cfg.Options(year)
	if err != nil {
		return pipeline.Options{}, err
	}
	opts.Logger = c.Logger
	return opts, nil
}
