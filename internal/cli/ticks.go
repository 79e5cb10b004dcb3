package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/techmap/pkg/pipeline"
	"github.com/matzehuels/techmap/pkg/ticks"
)

// ticksCommand prints the year slider labels for a track width.
func (c *CLI) ticksCommand() *cobra.Command {
	var (
		width  float64
		light  bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "ticks [dataset]",
		Short: "Show which slider years get a label at a width",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := c.loadDataset(cmd.Context(), argOrEmpty(args))
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}
			ts := ticks.Labels(ds.Years, width, light)
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(ts)
			}
			writeTicks(os.Stdout, ts)
			printDetail("%d of %d years labelled (target %d)", ticks.Count(ts), len(ts), ticks.Target(width, light))
			return nil
		},
	}

	cmd.Flags().Float64Var(&width, "width", pipeline.DefaultWidth, "slider track width in pixels")
	cmd.Flags().BoolVar(&light, "light", false, "use the light theme's label budget")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print ticks as JSON")

	return cmd
}

// writeTicks prints labelled years and a dot for the rest.
func writeTicks(w io.Writer, ts []ticks.Tick) {
	parts := make([]string, len(ts))
	for i, t := range ts {
		if t.Label {
			parts[i] = StyleNumber.Render(strconv.Itoa(t.Year))
		} else {
			parts[i] = StyleDim.Render("·")
		}
	}
	fmt.Fprintln(w, strings.Join(parts, " "))
}
