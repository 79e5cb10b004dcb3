package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/techmap/pkg/theme"
)

// themeCommand creates the theme command for the stored theme preference.
func (c *CLI) themeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme",
		Short: "Show or change the stored theme preference",
		Long: `Show or change the stored theme preference.

The preference lives where theme.store in the config points: a JSON file
(default), Redis, or memory. 'techmap render --theme saved' and the HTTP
server's /api/v1/theme endpoint read it.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the current theme",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withThemeStore(cmd.Context(), func(ctx context.Context, s theme.Store) error {
				t, err := s.Get(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), t)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "set <dark|light>",
		Short:     "Store a theme",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(theme.Dark), string(theme.Light)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withThemeStore(cmd.Context(), func(ctx context.Context, s theme.Store) error {
				if err := s.Set(ctx, theme.Theme(args[0])); err != nil {
					return err
				}
				printSuccess("Theme set to %s", StyleHighlight.Render(args[0]))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "toggle",
		Short: "Switch between dark and light",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withThemeStore(cmd.Context(), func(ctx context.Context, s theme.Store) error {
				t, err := theme.Toggle(ctx, s)
				if err != nil {
					return err
				}
				printSuccess("Theme set to %s", StyleHighlight.Render(string(t)))
				return nil
			})
		},
	})

	return cmd
}

func (c *CLI) withThemeStore(ctx context.Context, fn func(context.Context, theme.Store) error) error {
	s, closeFn, err := c.newThemeStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, s)
}
