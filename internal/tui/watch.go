package tui

import (
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// storeWatcher reports writes by other processes to the database file.
type storeWatcher struct {
	w    *fsnotify.Watcher
	base string
}

type storeChangedMsg struct{}

type storeSettledMsg struct{ seq uint64 }

type watchErrMsg struct{ err error }

// newStoreWatcher watches the directory holding path. Only the database file and its
// write-ahead log count as changes.
func newStoreWatcher(path string) (*storeWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, err
	}
	return &storeWatcher{w: w, base: filepath.Base(path)}, nil
}

func (sw *storeWatcher) relevant(ev fsnotify.Event) bool {
	name := filepath.Base(ev.Name)
	if name != sw.base && name != sw.base+"-wal" {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create) != 0
}

// next blocks until the next relevant change.
func (sw *storeWatcher) next() tea.Cmd {
	if sw == nil {
		return nil
	}
	return func() tea.Msg {
		for {
			select {
			case ev, ok := <-sw.w.Events:
				if !ok {
					return nil
				}
				if sw.relevant(ev) {
					return storeChangedMsg{}
				}
			case err, ok := <-sw.w.Errors:
				if !ok {
					return nil
				}
				return watchErrMsg{err: err}
			}
		}
	}
}

func (sw *storeWatcher) Close() error {
	if sw == nil {
		return nil
	}
	return sw.w.Close()
}

func settleAfter(seq uint64) tea.Cmd {
	return tea.Tick(watchDebounce, func(time.Time) tea.Msg { return storeSettledMsg{seq: seq} })
}
