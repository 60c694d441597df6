package tui

import (
	"context"

	"cog-cli/internal/actions"
	"cog-cli/internal/editor"
	"cog-cli/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// Prefs persists the last editor location between launches.
type Prefs interface {
	LoadEditorState() (*store.EditorState, error)
	SaveEditorState(st *store.EditorState) error
}

type Options struct {
	Actions actions.Actions
	Blobs   actions.Blobs
	// Location opens the editor there. An empty image id restores the saved location
	// when it belongs to the same series.
	Location editor.Location
	Policy   editor.Policy
	Prefs    Prefs
	// WatchPath is the database file to watch for writes by other processes.
	WatchPath  string
	Glyphs     string
	ThumbCache int
	Log        *zap.Logger
}

// Run opens the interactive editor and blocks until it exits.
func Run(ctx context.Context, opts Options) error {
	applyThemePreference()
	profile := applyColorProfilePreference()

	m := newAppModel(ctx, opts, profile)
	if opts.WatchPath != "" {
		w, err := newStoreWatcher(opts.WatchPath)
		if err != nil {
			m.log.Warn("store watch disabled", zap.String("path", opts.WatchPath), zap.Error(err))
		} else {
			m.watch = w
			defer w.Close()
		}
	}
	defer m.close()

	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
