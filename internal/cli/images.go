package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"cog-cli/internal/editor"
	"cog-cli/internal/model"
	"cog-cli/internal/store"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newImagesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Image commands",
	}
	cmd.AddCommand(newImagesListCmd(app))
	cmd.AddCommand(newImagesImportCmd(app))
	cmd.AddCommand(newImagesRateCmd(app))
	cmd.AddCommand(newImagesTagCmd(app, true))
	cmd.AddCommand(newImagesTagCmd(app, false))
	cmd.AddCommand(newImagesGroupCmd(app))
	cmd.AddCommand(newImagesDeleteCmd(app))
	cmd.AddCommand(newImagesVersionsCmd(app))
	return cmd
}

func newImagesListCmd(app *App) *cobra.Command {
	var human bool

	cmd := &cobra.Command{
		Use:               "list <series-id>",
		Short:             "List the images of a series in display order",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeSeries(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := app.backend(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			ims, err := a.ListImages(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if human {
				sr, err := a.GetSeries(ctx, args[0])
				if err != nil {
					return writeErr(cmd, err)
				}
				for _, im := range ims {
					fmt.Fprintln(cmd.OutOrStdout(), imageLine(im, sr))
				}
				return nil
			}
			return writeOut(cmd, app, map[string]any{"data": ims})
		},
	}

	cmd.Flags().BoolVar(&human, "human", false, "One line per image instead of structured output")
	return cmd
}

func imageLine(im model.Image, sr model.Series) string {
	var flags []string
	if sr.PrimaryImageID != nil && *sr.PrimaryImageID == im.ID {
		flags = append(flags, "primary")
	}
	if im.InGroup() {
		flags = append(flags, "group "+im.Group())
	}
	if im.ParentID != nil {
		flags = append(flags, "from "+*im.ParentID)
	}
	stars := strings.Repeat("*", im.Rating) + strings.Repeat(".", model.MaxRating-im.Rating)
	line := fmt.Sprintf("%-40s %s %5dx%-5d %-9s %s", im.ID, stars, im.Width, im.Height, im.Source, humanize.Time(im.CreatedAt))
	if len(flags) > 0 {
		line += "  [" + strings.Join(flags, ", ") + "]"
	}
	return line
}

func newImagesImportCmd(app *App) *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "import <series-id> <file>...",
		Short: "Import image files into a series",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.localStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			var out []model.Image
			var bytes uint64
			for _, path := range args[1:] {
				im, err := st.ImportImage(ctx, args[0], path, strings.TrimSpace(prompt))
				if err != nil {
					return writeErr(cmd, fmt.Errorf("import %s: %w", path, err))
				}
				if fi, err := os.Stat(path); err == nil {
					bytes += uint64(fi.Size())
				}
				out = append(out, im)
			}
			app.logger().Info("imported images")
			return writeOut(cmd, app, map[string]any{
				"data": out,
				"meta": map[string]any{"count": len(out), "size": humanize.Bytes(bytes)},
			})
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt or caption stored with each image")
	return cmd
}

func newImagesRateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rate <image-id> <0-5>",
		Short: "Set an image rating (0 clears it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			n, err := strconv.Atoi(args[1])
			if err != nil || n < model.MinRating || n > model.MaxRating {
				return writeErr(cmd, fmt.Errorf("rating must be %d-%d: %q", model.MinRating, model.MaxRating, args[1]))
			}
			a, _, err := app.backend(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := a.SetRating(ctx, args[0], n); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"imageId": args[0], "rating": n}})
		},
	}
}

func newImagesTagCmd(app *App, add bool) *cobra.Command {
	use, short, op := "tag <tag-id> <image-id>...", "Add a tag to images", editor.BatchTag
	if !add {
		use, short, op = "untag <tag-id> <image-id>...", "Remove a tag from images", editor.BatchUntag
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, app, op, args[0], args[1:])
		},
	}
}

func newImagesGroupCmd(app *App) *cobra.Command {
	var (
		groupID string
		clear   bool
	)

	cmd := &cobra.Command{
		Use:   "group <image-id>...",
		Short: "Put images in one group (a new group unless --group is given), or --clear it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gid := strings.TrimSpace(groupID)
			switch {
			case clear:
				gid = ""
			case gid == "":
				gid = store.NewGroupID()
			}
			ctx := cmd.Context()
			a, _, err := app.backend(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := a.SetGroup(ctx, args, gid); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"groupId": gid, "imageIds": args}})
		},
	}

	cmd.Flags().StringVar(&groupID, "group", "", "Existing group id to join")
	cmd.Flags().BoolVar(&clear, "clear", false, "Remove the images from their group")
	return cmd
}

func newImagesDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <image-id>...",
		Short: "Delete images (clears the series primary and re-parents newer versions)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return runBatch(cmd, app, editor.BatchDelete, "", args)
			}
			ctx := cmd.Context()
			a, _, err := app.backend(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := a.DeleteImage(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": res})
		},
	}
}

// batchOutput is the aggregate shape of a batch command.
type batchOutput struct {
	Op             editor.BatchOp    `json:"op"`
	Succeeded      []string          `json:"succeeded"`
	Failed         map[string]string `json:"failed,omitempty"`
	PrimaryCleared int               `json:"primaryCleared,omitempty"`
}

func runBatch(cmd *cobra.Command, app *App, op editor.BatchOp, arg string, ids []string) error {
	ctx := cmd.Context()
	a, _, err := app.backend(ctx)
	if err != nil {
		return writeErr(cmd, err)
	}
	res := editor.Batch(ctx, a, op, arg, ids)
	out := batchOutput{Op: res.Op, Succeeded: res.Succeeded, PrimaryCleared: res.PrimaryCleared}
	if out.Succeeded == nil {
		out.Succeeded = []string{}
	}
	if len(res.Failed) > 0 {
		out.Failed = map[string]string{}
		for id, err := range res.Failed {
			out.Failed[id] = err.Error()
		}
	}
	if werr := writeOut(cmd, app, map[string]any{"data": out}); werr != nil {
		return werr
	}
	if err := res.Err(); err != nil {
		app.logger().Warn("batch partially failed")
		return batchError{failed: len(res.Failed), total: res.Total()}
	}
	return nil
}

func newImagesVersionsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <image-id>",
		Short: "Show the version chain of an image, root first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := app.backend(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			chain, err := a.VersionChain(ctx, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": chain})
		},
	}
}
