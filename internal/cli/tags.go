package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newTagsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Tag commands (global tags, series-local tags and tag groups)",
	}
	cmd.AddCommand(newTagsListCmd(app))
	cmd.AddCommand(newTagsCreateCmd(app))
	cmd.AddCommand(newTagsDeleteCmd(app))
	cmd.AddCommand(newTagGroupsCmd(app))
	return cmd
}

func newTagsListCmd(app *App) *cobra.Command {
	var seriesID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List global tags, plus the local tags of --series",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, _, err := app.backend(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			tags, err := a.ListTags(ctx, strings.TrimSpace(seriesID))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": tags})
		},
	}

	cmd.Flags().StringVar(&seriesID, "series", "", "Include tags local to this series")
	return cmd
}

func newTagsCreateCmd(app *App) *cobra.Command {
	var seriesID, groupID string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a tag (global unless --series is given)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.localStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			tag, err := st.CreateTag(ctx, args[0], strings.TrimSpace(groupID), strings.TrimSpace(seriesID))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data":   tag,
				"_hints": []string{"cog images tag " + tag.ID + " <image-id>..."},
			})
		},
	}

	cmd.Flags().StringVar(&seriesID, "series", "", "Make the tag local to this series")
	cmd.Flags().StringVar(&groupID, "group", "", "Tag group id")
	return cmd
}

func newTagsDeleteCmd(app *App) *cobra.Command {
	var seriesID string

	cmd := &cobra.Command{
		Use:   "delete <tag-id>",
		Short: "Delete a tag and its image links (local tags need their --series)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.localStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := st.DeleteTag(ctx, args[0], seriesID); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"deleted": args[0]}})
		},
	}

	cmd.Flags().StringVar(&seriesID, "series", "", "Owning series of a local tag")
	return cmd
}

func newTagGroupsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Tag group commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tag groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.localStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			groups, err := st.ListTagGroups(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": groups})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a tag group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.localStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			g, err := st.CreateTagGroup(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": g})
		},
	})
	return cmd
}
