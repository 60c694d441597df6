package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newSeriesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "series",
		Short: "Series commands",
	}
	cmd.AddCommand(newSeriesListCmd(app))
	cmd.AddCommand(newSeriesCreateCmd(app))
	cmd.AddCommand(newSeriesShowCmd(app))
	cmd.AddCommand(newSeriesSetPrimaryCmd(app))
	return cmd
}

func newSeriesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List series",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.localStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			list, err := st.ListSeries(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": list})
		},
	}
}

func newSeriesCreateCmd(app *App) *cobra.Command {
	var (
		title   string
		tags    []string
		private bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a series",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.localStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			sr, err := st.CreateSeries(cmd.Context(), strings.TrimSpace(title), tags, private)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data":   sr,
				"_hints": []string{"cog images import " + sr.ID + " <files...>", "cog edit " + sr.ID},
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Series title")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Series tag (repeatable)")
	cmd.Flags().BoolVar(&private, "private", false, "Hide the series from shared listings")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newSeriesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:               "show <series-id>",
		Short:             "Show a series with its images",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeSeries(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := app.backend(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			sr, err := a.GetSeries(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			ims, err := a.ListImages(ctx, sr.ID)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"series": sr, "images": ims},
			})
		},
	}
}

func newSeriesSetPrimaryCmd(app *App) *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "set-primary <series-id> [image-id]",
		Short: "Point the series primary at an image (or clear it with --clear)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			imageID := ""
			if len(args) == 2 {
				imageID = args[1]
			}
			if imageID == "" && !clear {
				return writeErr(cmd, errMissing("image-id (or --clear)"))
			}
			a, _, err := app.backend(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if clear {
				imageID = ""
			}
			if err := a.SetPrimary(ctx, args[0], imageID); err != nil {
				return writeErr(cmd, err)
			}
			sr, err := a.GetSeries(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": sr})
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Clear the primary pointer")
	return cmd
}
