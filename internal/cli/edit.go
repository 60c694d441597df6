package cli

import (
	"errors"
	"strings"

	"cog-cli/internal/editor"
	"cog-cli/internal/store"
	"cog-cli/internal/tui"

	"github.com/spf13/cobra"
)

type editorArgs struct {
	loc      editor.Location
	lightbox bool
}

func newEditCmd(app *App) *cobra.Command {
	var group, lightbox bool

	cmd := &cobra.Command{
		Use:         "edit <series-id> [image-id]",
		Short:       "Open a series in the interactive editor",
		Args:        cobra.RangeArgs(1, 2),
		Annotations: map[string]string{annotTUI: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := editor.Location{SeriesID: strings.TrimSpace(args[0]), Group: group}
			if len(args) == 2 {
				loc.ImageID = strings.TrimSpace(args[1])
			}
			return runEditor(cmd, app, editorArgs{loc: loc, lightbox: lightbox})
		},
		ValidArgsFunction: completeSeries(app),
	}

	cmd.Flags().BoolVar(&group, "group", false, "Start in group mode")
	cmd.Flags().BoolVar(&lightbox, "lightbox", false, "Lightbox navigation (wraps around at the ends)")
	return cmd
}

func newOpenCmd(app *App) *cobra.Command {
	var lightbox bool

	cmd := &cobra.Command{
		Use:         "open <location>",
		Short:       "Open an editor location such as /tools/cog/<series>/editor/<image>?group=true",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotTUI: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := editor.ParseLocation(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return runEditor(cmd, app, editorArgs{loc: loc, lightbox: lightbox})
		},
	}

	cmd.Flags().BoolVar(&lightbox, "lightbox", false, "Lightbox navigation (wraps around at the ends)")
	return cmd
}

// policyFor applies the configured editor variant and overrides.
func policyFor(ec *store.EditorConfig, lightbox bool) editor.Policy {
	p := editor.EditorPolicy()
	if ec != nil && strings.EqualFold(ec.Variant, "lightbox") {
		lightbox = true
	}
	if lightbox {
		p = editor.LightboxPolicy()
	}
	if ec == nil {
		return p
	}
	if ec.GroupEditExclusive != nil {
		p.GroupEditExclusive = *ec.GroupEditExclusive
	}
	if ec.PreloadRadius > 0 {
		p.PreloadRadius = ec.PreloadRadius
	}
	return p
}

func runEditor(cmd *cobra.Command, app *App, ea editorArgs) error {
	ctx := cmd.Context()
	a, blobs, err := app.backend(ctx)
	if err != nil {
		return writeErr(cmd, err)
	}

	ec := app.config().Editor
	opts := tui.Options{
		Actions:  a,
		Blobs:    blobs,
		Location: ea.loc,
		Policy:   policyFor(ec, ea.lightbox),
		Log:      app.logger(),
	}
	if ec != nil {
		opts.Glyphs = ec.Glyphs
	}
	if app.Remote == "" {
		st, err := app.loadStore(ctx)
		if err != nil {
			return writeErr(cmd, err)
		}
		opts.Prefs = st
		opts.WatchPath = st.WatchPath()
		if opts.Location.SeriesID == "" {
			opts.Location, err = lastLocation(st)
			if err != nil {
				return writeErr(cmd, err)
			}
		}
	}
	if opts.Location.SeriesID == "" {
		return writeErr(cmd, errors.New("no series to open; run `cog edit <series-id>` (see `cog series list`)"))
	}
	return tui.Run(ctx, opts)
}

// lastLocation is the series the editor was last closed on, if any.
func lastLocation(st *store.Store) (editor.Location, error) {
	saved, err := st.LoadEditorState()
	if err != nil || saved == nil || saved.Location == "" {
		return editor.Location{}, err
	}
	loc, err := editor.ParseLocation(saved.Location)
	if err != nil {
		return editor.Location{}, nil
	}
	// The image is restored by the editor from the same saved state.
	return editor.Location{SeriesID: loc.SeriesID}, nil
}
