package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/techmap/pkg/chip"
	"github.com/matzehuels/techmap/pkg/classify"
	"github.com/matzehuels/techmap/pkg/dataset"
	"github.com/matzehuels/techmap/pkg/errors"
)

// datasetCommand groups dataset inspection and storage commands.
func (c *CLI) datasetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Inspect, convert and store usage datasets",
	}

	cmd.AddCommand(c.datasetInfoCommand())
	cmd.AddCommand(c.datasetExportCommand())
	cmd.AddCommand(c.datasetPushCommand())

	return cmd
}

// datasetInfoCommand prints how a year classifies.
func (c *CLI) datasetInfoCommand() *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "info [dataset]",
		Short: "Show a year's usage and plane assignment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := c.loadDataset(cmd.Context(), argOrEmpty(args))
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if year == 0 {
				year = ds.Latest()
			}
			if err := errors.ValidateYear(year); err != nil {
				return err
			}

			widths := classify.Widths{Active: cfg.Planes.Active.Width, Inactive: cfg.Planes.Inactive.Width}
			a := classify.Classify(ds, year, widths, cfg.Policy)

			printKeyValue("Years", yearRange(ds.Years))
			printKeyValue("Technologies", strconv.Itoa(len(ds.Tech)))
			printKeyValue("Year", strconv.Itoa(year))
			printKeyValue("Active", strconv.Itoa(a.ActiveCount))
			printKeyValue("Density", strconv.FormatFloat(a.Density, 'f', 2, 64))
			fmt.Fprintln(stdout)
			fmt.Fprintln(stdout, assignmentTable(a))
			return nil
		},
	}

	cmd.Flags().IntVarP(&year, "year", "y", 0, "year to classify (default: latest)")
	return cmd
}

// assignmentTable renders one row per technology, active plane first.
func assignmentTable(a classify.Assignment) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	var rows [][]string
	for _, p := range chip.Planes {
		for _, it := range a.On(p) {
			rows = append(rows, []string{it.Name, p.String(), usageBar(it.Usage), strconv.FormatFloat(it.Scale, 'f', 2, 64)})
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Technology", "Plane", "Usage", "Scale").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 2 {
				return lipgloss.NewStyle()
			}
			if row < len(rows) && rows[row][1] == chip.Active.String() {
				return lipgloss.NewStyle().Foreground(colorWhite)
			}
			return lipgloss.NewStyle().Foreground(colorDim)
		})
	return t.Render()
}

func yearRange(years []int) string {
	switch len(years) {
	case 0:
		return "none"
	case 1:
		return strconv.Itoa(years[0])
	}
	return fmt.Sprintf("%d-%d (%d years)", years[0], years[len(years)-1], len(years))
}

// datasetExportCommand converts a dataset between JSON and YAML.
func (c *CLI) datasetExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export [dataset]",
		Short: "Write the normalized dataset as JSON or YAML",
		Long: `Write the normalized dataset as JSON or YAML.

The output extension selects the format (.yaml/.yml for YAML, JSON
otherwise). Without -o the dataset is written to stdout as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := c.loadDataset(cmd.Context(), argOrEmpty(args))
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}
			path := output
			if path == "" {
				path = stdoutPath
			}
			out, err := openOutput(path)
			if err != nil {
				return err
			}
			defer out.Close()
			if err := dataset.Encode(out, ds, dataset.FormatFromPath(path)); err != nil {
				return err
			}
			if path != stdoutPath {
				printSuccess("Exported %d technologies", len(ds.Tech))
				printFile(path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

// datasetPushCommand stores a dataset file in the configured MongoDB.
func (c *CLI) datasetPushCommand() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "push <dataset>",
		Short: "Store a dataset in MongoDB",
		Long: `Store a dataset in MongoDB.

The connection comes from dataset.mongo_uri in the config. Commands run
without a dataset argument then read it from there.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.pushDataset(cmd.Context(), args[0], id)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "document id (default: dataset.mongo_id)")
	return cmd
}

func (c *CLI) pushDataset(ctx context.Context, ref, id string) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	d := cfg.Dataset
	if d.MongoURI == "" {
		return errors.New(errors.ErrCodeInvalidInput, "dataset.mongo_uri is not set in the config")
	}
	if id == "" {
		id = d.MongoID
	}
	if strings.TrimSpace(id) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "empty document id")
	}

	ds, err := c.loadDataset(ctx, ref)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	src, disconnect, err := dataset.ConnectMongo(ctx, d.MongoURI, d.MongoDatabase, d.MongoCollection, id, c.Logger)
	if err != nil {
		return err
	}
	defer disconnect(context.WithoutCancel(ctx))

	prog := newProgress(c.Logger)
	if err := src.Save(ctx, ds); err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Stored %d technologies as %q", len(ds.Tech), id))
	printSuccess("Dataset pushed")
	printDetail("Database: %s.%s", d.MongoDatabase, d.MongoCollection)
	return nil
}
