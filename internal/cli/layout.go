package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/techmap/pkg/dataset"
	"github.com/matzehuels/techmap/pkg/errors"
	"github.com/matzehuels/techmap/pkg/pipeline"
)

// dataFormats are the formats the layout command writes.
var dataFormats = map[string]bool{
	pipeline.FormatJSON: true,
	pipeline.FormatYAML: true,
	pipeline.FormatCSV:  true,
}

// layoutCommand creates the layout command, which computes chip positions
// for a year and writes them as data.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		flags   layoutFlags
		formats string
		output  string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "layout [dataset]",
		Short: "Compute chip positions for a year",
		Long: `Compute chip positions for a year.

The dataset is a JSON or YAML file, or an http(s) URL serving one. Without
an argument the dataset configured in the config file is used.

The output is the laid-out scene: one entry per chip with its plane, scale,
position and size. JSON output can be rendered later with 'techmap render'.

Deterministic layouts are cached locally for faster subsequent runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := parseFormats(formats, pipeline.FormatJSON)
			for _, f := range fs {
				if !dataFormats[f] {
					return errors.New(errors.ErrCodeInvalidInput, "invalid layout format %q (must be json, yaml or csv)", f)
				}
			}
			return c.runExecute(cmd, argOrEmpty(args), &flags, func(opts *pipeline.Options) {
				opts.Formats = fs
			}, output, noCache, "Layout")
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&formats, "format", "f", "", "output formats: json (default), yaml, csv (comma-separated)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <dataset>-<year>.<format>, - for stdout)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// runExecute loads the dataset, runs the pipeline and writes every
// requested artifact. customize adjusts the options after the flags.
func (c *CLI) runExecute(cmd *cobra.Command, input string, flags *layoutFlags, customize func(*pipeline.Options), output string, noCache bool, label string) error {
	ctx := cmd.Context()

	ds, err := c.loadDataset(ctx, input)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	opts, err := c.options(cmd, flags, ds)
	if err != nil {
		return err
	}
	customize(&opts)

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	res, err := c.execute(ctx, runner, ds, opts, output == stdoutPath)
	if err != nil {
		return err
	}

	paths, err := writeArtifacts(res.Artifacts, opts.Formats, output, input, opts.Year)
	if err != nil {
		return err
	}
	if output == stdoutPath {
		return nil
	}

	printSuccess("%s complete for %d", label, opts.Year)
	for _, p := range paths {
		printFile(p)
	}
	printStats(res.Stats.Active, res.Stats.Inactive, res.CacheInfo.SceneHit)
	if opts.Formats[0] == pipeline.FormatJSON && label == "Layout" {
		printNextStep("Render", strings.Join(append([]string{appName, "render"}, nonEmpty(input, "--year", strconv.Itoa(opts.Year))...), " "))
	}
	return nil
}

// execute runs the pipeline behind a spinner. The spinner is skipped when
// the artifact goes to standard output.
func (c *CLI) execute(ctx context.Context, runner *pipeline.Runner, ds *dataset.Dataset, opts pipeline.Options, quiet bool) (*pipeline.Result, error) {
	var spinner *Spinner
	if !quiet {
		spinner = newSpinnerWithContext(ctx, fmt.Sprintf("Laying out %d...", opts.Year))
		spinner.Start()
	}
	res, err := runner.Execute(ctx, ds, opts)
	if spinner != nil {
		if err != nil {
			spinner.StopWithError("Layout failed")
		} else {
			spinner.Stop()
		}
	}
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return res, nil
}

// nonEmpty drops empty values, so an omitted dataset leaves no gap.
func nonEmpty(vals ...string) []string {
	out := vals[:0]
	for _, v := range vals {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
